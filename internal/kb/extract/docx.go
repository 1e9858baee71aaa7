package extract

import (
	"fmt"
	"strings"

	"github.com/unidoc/unioffice/v2/document"

	"opskb/internal/kb"
)

// extractDocx reads paragraph and table text from a Word document.
func (s *Service) extractDocx(path string) (*Result, error) {
	doc, err := document.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open docx: %v", kb.ErrExtractionFailed, err)
	}
	defer doc.Close()

	var b strings.Builder
	for _, p := range doc.Paragraphs() {
		for _, r := range p.Runs() {
			b.WriteString(r.Text())
		}
		b.WriteString("\n")
	}

	for _, t := range doc.Tables() {
		for _, row := range t.Rows() {
			cells := make([]string, 0, len(row.Cells()))
			for _, c := range row.Cells() {
				var cell strings.Builder
				for _, p := range c.Paragraphs() {
					for _, r := range p.Runs() {
						cell.WriteString(r.Text())
					}
				}
				cells = append(cells, cell.String())
			}
			b.WriteString(strings.Join(cells, "\t"))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	return &Result{Text: b.String(), Pages: 1}, nil
}
