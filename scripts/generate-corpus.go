//go:build ignore

// Package main generates a synthetic job and resume corpus for load tests.
// Usage: go run scripts/generate-corpus.go -jobs 5000 -resumes 2000 -output testdata/corpus
//
// Then:
//
//	resumatch import jobs testdata/corpus/jobs.json
//	resumatch import resumes testdata/corpus/resumes
//	resumatch rebuild all
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numJobs    = flag.Int("jobs", 1000, "Number of job postings to generate")
	numResumes = flag.Int("resumes", 500, "Number of resumes to generate")
	outputDir  = flag.String("output", "testdata/corpus", "Output directory")
	seed       = flag.Int64("seed", 42, "Random seed for reproducibility")
)

// role pairs a title with the skills that plausibly go with it.
type role struct {
	title  string
	skills []string
}

var roles = []role{
	{"Backend Engineer", []string{"go", "postgresql", "kubernetes", "grpc", "redis", "docker"}},
	{"Frontend Engineer", []string{"typescript", "react", "css", "graphql", "webpack", "accessibility"}},
	{"Data Engineer", []string{"python", "spark", "airflow", "sql", "kafka", "dbt"}},
	{"Machine Learning Engineer", []string{"python", "pytorch", "mlops", "statistics", "sql", "docker"}},
	{"Site Reliability Engineer", []string{"linux", "terraform", "prometheus", "kubernetes", "aws", "bash"}},
	{"Registered Nurse", []string{"patient care", "triage", "bls", "charting", "medication administration"}},
	{"Accountant", []string{"gaap", "excel", "reconciliation", "quickbooks", "tax preparation"}},
	{"Welder", []string{"mig", "tig", "blueprint reading", "fabrication", "osha"}},
	{"Truck Driver", []string{"cdl", "logbooks", "route planning", "vehicle inspection"}},
	{"Pastry Chef", []string{"baking", "lamination", "food safety", "menu planning"}},
	{"Sales Manager", []string{"crm", "negotiation", "forecasting", "salesforce", "coaching"}},
	{"Graphic Designer", []string{"figma", "illustrator", "typography", "branding", "photoshop"}},
}

var (
	seniorities = []string{"Junior", "", "Senior", "Staff", "Lead"}
	companies   = []string{"Acme", "Globex", "Initech", "Umbrella", "Hooli", "Stark Industries", "Wayne Enterprises", "Soylent"}
	locations   = []string{"Remote", "New York, NY", "Austin, TX", "Berlin", "London", "Toronto, ON", "Bangalore"}
	types       = []string{"full-time", "part-time", "contract", "internship"}
	degrees     = []string{"", "Bachelor's degree", "Master's degree", "High school diploma", "Associate degree"}
	firstNames  = []string{"Jane", "John", "Aisha", "Carlos", "Mei", "Olu", "Priya", "Lars", "Fatima", "Diego"}
	lastNames   = []string{"Doe", "Smith", "Okafor", "Garcia", "Chen", "Adeyemi", "Sharma", "Nielsen", "Haddad", "Ruiz"}
	fields      = []string{"Computer Science", "Nursing", "Accounting", "Mechanical Engineering", "Graphic Design", "Business"}
)

// posting uses the keys accepted by 'resumatch import jobs'.
type posting struct {
	Title       string   `json:"job_title"`
	Description string   `json:"job_description"`
	Company     string   `json:"company_name"`
	Location    string   `json:"location"`
	Type        string   `json:"employment_type"`
	Skills      []string `json:"required_skills"`
	Degree      string   `json:"degree_requirement,omitempty"`
	PayRate     payRate  `json:"pay_rate"`
}

type payRate struct {
	Base     int    `json:"base"`
	Currency string `json:"currency"`
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	resumeDir := filepath.Join(*outputDir, "resumes")
	if err := os.MkdirAll(resumeDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create directory %s: %v\n", resumeDir, err)
		os.Exit(1)
	}

	fmt.Printf("Generating %d jobs and %d resumes in %s (seed %d)\n", *numJobs, *numResumes, *outputDir, *seed)

	postings := make([]posting, *numJobs)
	for i := range postings {
		postings[i] = generatePosting(rng)
	}
	data, err := json.MarshalIndent(postings, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode jobs: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(filepath.Join(*outputDir, "jobs.json"), data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write jobs: %v\n", err)
		os.Exit(1)
	}

	for i := range *numResumes {
		name := fmt.Sprintf("resume_%05d.txt", i)
		if err := os.WriteFile(filepath.Join(resumeDir, name), []byte(generateResume(rng)), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", name, err)
			os.Exit(1)
		}
	}

	fmt.Println("Done.")
}

func pick[T any](rng *rand.Rand, pool []T) T {
	return pool[rng.Intn(len(pool))]
}

// sample returns n distinct items from pool in random order.
func sample(rng *rand.Rand, pool []string, n int) []string {
	n = min(n, len(pool))
	out := make([]string, 0, n)
	for _, i := range rng.Perm(len(pool))[:n] {
		out = append(out, pool[i])
	}
	return out
}

func generatePosting(rng *rand.Rand) posting {
	r := pick(rng, roles)
	title := strings.TrimSpace(pick(rng, seniorities) + " " + r.title)
	company := pick(rng, companies)
	skills := sample(rng, r.skills, 2+rng.Intn(3))

	return posting{
		Title: title,
		Description: fmt.Sprintf("%s is hiring a %s. You will work with %s and grow with the team.",
			company, strings.ToLower(title), strings.Join(skills, ", ")),
		Company:  company,
		Location: pick(rng, locations),
		Type:     pick(rng, types),
		Skills:   skills,
		Degree:   pick(rng, degrees),
		PayRate:  payRate{Base: 30000 + rng.Intn(170)*1000, Currency: "USD"},
	}
}

func generateResume(rng *rand.Rand) string {
	r := pick(rng, roles)
	first, last := pick(rng, firstNames), pick(rng, lastNames)
	skills := sample(rng, r.skills, 3+rng.Intn(3))

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", first, last)
	fmt.Fprintf(&b, "%s.%s@example.com\n", strings.ToLower(first), strings.ToLower(last))
	fmt.Fprintf(&b, "+1 555 %03d %04d\n\n", rng.Intn(1000), rng.Intn(10000))
	fmt.Fprintf(&b, "Experienced %s with %d years in the field.\n\n", strings.ToLower(r.title), 1+rng.Intn(15))
	fmt.Fprintf(&b, "Skills: %s\n\n", strings.Join(skills, ", "))
	fmt.Fprintf(&b, "Bachelor of Science in %s\n", pick(rng, fields))
	return b.String()
}
