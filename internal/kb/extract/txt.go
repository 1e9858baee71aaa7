package extract

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"opskb/internal/kb"
)

// extractText reads a plain text file. Invalid byte sequences are replaced
// rather than rejected; logs and exports frequently carry a few stray bytes.
func (s *Service) extractText(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read text file: %v", kb.ErrExtractionFailed, err)
	}

	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return &Result{Text: text, Pages: 1}, nil
}
