package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"opskb/internal/kb"
)

// extractPDF pulls the text layer out of a PDF page by page. When the text
// layer is missing or too sparse the pages are rasterized and handed to the
// OCR engine instead.
func (s *Service) extractPDF(ctx context.Context, path string) (*Result, error) {
	text, pages, err := pdfTextLayer(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read pdf: %v", kb.ErrExtractionFailed, err)
	}

	if !s.needsOCR(text) {
		return &Result{Text: text, Pages: pages}, nil
	}

	s.log.WithField("pages", pages).Info("pdf text layer too sparse, running ocr")
	ocrText, err := s.ocrPDF(ctx, path)
	if err != nil {
		// A sparse text layer is still a text layer. Fall back to it
		// rather than failing the whole document on an OCR error.
		if strings.TrimSpace(text) != "" {
			s.log.WithError(err).Warn("ocr failed, keeping sparse pdf text layer")
			return &Result{Text: text, Pages: pages}, nil
		}
		return nil, err
	}
	return &Result{Text: combineText(text, ocrText), Pages: pages, OCRUsed: true}, nil
}

// combineText keeps whatever the text layer yielded ahead of the recognised
// text so a partially scanned document loses neither source.
func combineText(primary, ocr string) string {
	if strings.TrimSpace(primary) == "" {
		return ocr
	}
	if strings.TrimSpace(ocr) == "" {
		return primary
	}
	return strings.TrimRight(primary, "\n") + "\n\n" + ocr
}

func pdfTextLayer(path string) (string, int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	total := r.NumPage()
	var b strings.Builder
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Unparseable pages degrade to OCR via the length check.
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		fmt.Fprintf(&b, "--- page %d ---\n%s\n", i, text)
	}
	return b.String(), total, nil
}

// ocrPDF rasterizes each page and recognises it through the OCR engine.
func (s *Service) ocrPDF(ctx context.Context, path string) (string, error) {
	images, err := rasterizePDF(ctx, path, s.dpi)
	if err != nil {
		return "", fmt.Errorf("%w: rasterize pdf: %v", kb.ErrExtractionFailed, err)
	}

	var b strings.Builder
	for i, img := range images {
		text, err := s.ocr.Recognize(ctx, img)
		if err != nil {
			return "", fmt.Errorf("%w: ocr page %d: %v", kb.ErrExtractionFailed, i+1, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		fmt.Fprintf(&b, "--- page %d ---\n%s\n", i+1, text)
	}
	return b.String(), nil
}
