package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/Aman-CERP/resumatch/internal/catalog"
)

// UnknownName is used when no name line can be found.
const UnknownName = "N/A"

var (
	emailRe  = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phoneRe  = regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	skillsRe = regexp.MustCompile(`(?i)\bskills?:[ \t]*((?:.|\n)+?)(?:\n[ \t]*\n|\z)`)
	skillSep = regexp.MustCompile(`[,;\t\n]+`)
	degreeRe = regexp.MustCompile(`\b(Bachelor|Master|PhD|BSc|MSc|BA|MA|BS|MS|Doctorate)`)
)

// ParseResume extracts a candidate profile from resume text. It never
// fails; fields it cannot find are left empty and the name falls back to
// UnknownName. The full text becomes the summary so nothing is lost for
// embedding.
func ParseResume(text string) *catalog.Candidate {
	text = strings.TrimSpace(text)
	return &catalog.Candidate{
		Name:      extractName(text),
		Email:     emailRe.FindString(text),
		Phone:     strings.TrimSpace(phoneRe.FindString(text)),
		Education: extractEducation(text),
		Skills:    extractSkills(text),
		Summary:   text,
	}
}

func extractSkills(text string) []string {
	m := skillsRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, s := range skillSep.Split(m[1], -1) {
		s = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(s), "-*•"))
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func extractEducation(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && degreeRe.MatchString(line) {
			out = append(out, line)
		}
	}
	return out
}

// extractName takes the first non-empty line when it reads like a person's
// name: two to four capitalized words of letters.
func extractName(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if looksLikeName(line) {
			return line
		}
		return UnknownName
	}
	return UnknownName
}

func looksLikeName(line string) bool {
	if degreeRe.MatchString(line) {
		return false
	}
	fields := strings.Fields(line)
	if len(fields) < 2 || len(fields) > 4 {
		return false
	}
	for _, f := range fields {
		runes := []rune(f)
		if !unicode.IsUpper(runes[0]) {
			return false
		}
		for _, r := range runes {
			if !unicode.IsLetter(r) && r != '-' && r != '\'' && r != '.' {
				return false
			}
		}
	}
	return true
}
