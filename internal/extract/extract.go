// Package extract turns uploaded resume files into text and best-effort
// candidate profiles.
package extract

import (
	"path/filepath"
	"strings"

	rmerrors "github.com/Aman-CERP/resumatch/internal/errors"
)

// ErrUnsupportedFormat matches errors for file types Text cannot read.
var ErrUnsupportedFormat = &rmerrors.MatchError{Code: rmerrors.ErrCodeUnsupportedFormat}

var textExtensions = map[string]bool{
	"":      true,
	".txt":  true,
	".text": true,
	".md":   true,
}

// Text decodes a plain-text upload. Invalid UTF-8 is replaced, a leading
// byte order mark is dropped and surrounding whitespace trimmed.
func Text(raw []byte, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !textExtensions[ext] {
		return "", rmerrors.Newf(rmerrors.ErrCodeUnsupportedFormat, "unsupported resume format %q", ext).
			WithSuggestion("Convert the file to .txt or .md first")
	}
	s := strings.ToValidUTF8(string(raw), "\ufffd")
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimSpace(s), nil
}
