package extract

import (
	"context"
	"fmt"
	"os"

	"opskb/internal/kb"
)

// extractImage hands the whole file to the OCR engine; images have no text
// layer to try first.
func (s *Service) extractImage(ctx context.Context, path string) (*Result, error) {
	if s.ocr == nil {
		return nil, fmt.Errorf("%w: image file requires ocr, which is disabled", kb.ErrInputRejected)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read image: %v", kb.ErrExtractionFailed, err)
	}
	text, err := s.ocr.Recognize(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%w: ocr image: %v", kb.ErrExtractionFailed, err)
	}
	return &Result{Text: text, Pages: 1, OCRUsed: true}, nil
}
