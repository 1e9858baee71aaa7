// Package extract turns uploaded files into plain text. Format handlers cover
// PDF, Word, Excel and plain text; image files and text-poor PDFs route
// through the OCR engine when one is configured.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"

	"opskb/internal/kb"
	"opskb/pkg/logger"
)

// Result is the outcome of text extraction for one file.
type Result struct {
	Text    string
	Pages   int
	OCRUsed bool
}

type fileKind int

const (
	kindUnknown fileKind = iota
	kindPDF
	kindDocx
	kindXlsx
	kindText
	kindImage
)

// Service dispatches files to the right format handler and applies the OCR
// fallback policy.
type Service struct {
	maxFileSize   int64
	minTextLength int
	ocr           Engine // nil when OCR is disabled
	dpi           int
	log           *logger.Logger
}

// New builds an extraction service. engine may be nil to disable OCR
// entirely; scanned documents then fail extraction instead of degrading
// silently.
func New(maxFileSize int64, minTextLength, dpi int, engine Engine, log *logger.Logger) *Service {
	return &Service{
		maxFileSize:   maxFileSize,
		minTextLength: minTextLength,
		ocr:           engine,
		dpi:           dpi,
		log:           log,
	}
}

// Extract reads the file at path and returns its text. declaredName is the
// filename the uploader supplied; its extension settles kind disputes when
// content sniffing is inconclusive.
func (s *Service) Extract(ctx context.Context, path, declaredName string) (*Result, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", kb.ErrExtractionFailed, path, err)
	}
	if st.Size() == 0 {
		return nil, fmt.Errorf("%w: file is empty", kb.ErrInputRejected)
	}
	if s.maxFileSize > 0 && st.Size() > s.maxFileSize {
		return nil, fmt.Errorf("%w: file size %d exceeds limit %d", kb.ErrInputRejected, st.Size(), s.maxFileSize)
	}

	kind, err := s.detectKind(path, declaredName)
	if err != nil {
		return nil, err
	}

	var res *Result
	switch kind {
	case kindPDF:
		res, err = s.extractPDF(ctx, path)
	case kindDocx:
		res, err = s.extractDocx(path)
	case kindXlsx:
		res, err = s.extractXlsx(path)
	case kindText:
		res, err = s.extractText(path)
	case kindImage:
		res, err = s.extractImage(ctx, path)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", kb.ErrInputRejected, filepath.Ext(declaredName))
	}
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(res.Text) == "" {
		return nil, fmt.Errorf("%w: no text content found", kb.ErrExtractionFailed)
	}
	return res, nil
}

// detectKind sniffs the file content first and only trusts the declared
// extension when sniffing is inconclusive. OOXML containers sniff as plain
// zip when the inner structure is unusual, which is the main case the
// extension fallback exists for.
func (s *Service) detectKind(path, declaredName string) (fileKind, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return kindUnknown, fmt.Errorf("%w: detect file type: %v", kb.ErrExtractionFailed, err)
	}

	switch {
	case mtype.Is("application/pdf"):
		return kindPDF, nil
	case mtype.Is("application/vnd.openxmlformats-officedocument.wordprocessingml.document"):
		return kindDocx, nil
	case mtype.Is("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"):
		return kindXlsx, nil
	case strings.HasPrefix(mtype.String(), "image/"):
		return kindImage, nil
	case strings.HasPrefix(mtype.String(), "text/"):
		return kindText, nil
	}

	switch strings.ToLower(filepath.Ext(declaredName)) {
	case ".pdf":
		return kindPDF, nil
	case ".docx":
		return kindDocx, nil
	case ".xlsx":
		return kindXlsx, nil
	case ".txt", ".md", ".log", ".csv":
		return kindText, nil
	case ".png", ".jpg", ".jpeg", ".bmp", ".tiff", ".webp":
		return kindImage, nil
	}
	return kindUnknown, nil
}

// needsOCR reports whether the primary extraction produced too little text to
// be useful, the signature of a scanned or image-heavy document. The
// threshold counts characters, not bytes, so multi-byte scripts are not
// over-counted.
func (s *Service) needsOCR(text string) bool {
	return s.ocr != nil && utf8.RuneCountInString(strings.TrimSpace(text)) < s.minTextLength
}
