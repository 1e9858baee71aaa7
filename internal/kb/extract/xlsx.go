package extract

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"opskb/internal/kb"
)

// extractXlsx renders each sheet as tab-separated rows under a sheet header,
// which keeps cell adjacency visible to the chunker without inventing a
// markup language the embedding model has to see through.
func (s *Service) extractXlsx(path string) (*Result, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open xlsx: %v", kb.ErrExtractionFailed, err)
	}
	defer f.Close()

	var b strings.Builder
	sheets := f.GetSheetList()
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			s.log.WithError(err).WithField("sheet", sheet).Warn("skipping unreadable sheet")
			continue
		}
		if len(rows) == 0 {
			continue
		}
		fmt.Fprintf(&b, "--- sheet: %s ---\n", sheet)
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	return &Result{Text: b.String(), Pages: len(sheets)}, nil
}
