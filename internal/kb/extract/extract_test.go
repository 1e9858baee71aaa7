package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"opskb/internal/kb"
	"opskb/pkg/logger"
)

func testService(t *testing.T, engine Engine) *Service {
	t.Helper()
	logger.Init("error")
	return New(1<<20, 50, 150, engine, logger.New("extract-test"))
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

type fakeEngine struct {
	text  string
	err   error
	calls int
}

func (f *fakeEngine) Recognize(ctx context.Context, image []byte) (string, error) {
	f.calls++
	return f.text, f.err
}

func TestExtractPlainText(t *testing.T) {
	s := testService(t, nil)
	content := "Restart the ingest service after rotating credentials.\nCheck the audit log afterwards."
	path := writeFile(t, "runbook.txt", []byte(content))

	res, err := s.Extract(context.Background(), path, "runbook.txt")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Text != content {
		t.Errorf("text mangled:\n%q", res.Text)
	}
	if res.OCRUsed {
		t.Error("OCRUsed set for plain text")
	}
}

func TestExtractInvalidUTF8Replaced(t *testing.T) {
	s := testService(t, nil)
	path := writeFile(t, "log.txt", []byte("valid text here with some length\xff\xfe more text"))

	res, err := s.Extract(context.Background(), path, "log.txt")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(res.Text, "�") {
		t.Error("invalid bytes not replaced")
	}
	if !strings.Contains(res.Text, "valid text here") {
		t.Error("valid portion lost")
	}
}

func TestExtractEmptyFileRejected(t *testing.T) {
	s := testService(t, nil)
	path := writeFile(t, "empty.txt", nil)

	_, err := s.Extract(context.Background(), path, "empty.txt")
	if !errors.Is(err, kb.ErrInputRejected) {
		t.Fatalf("err = %v, want ErrInputRejected", err)
	}
}

func TestExtractOversizeRejected(t *testing.T) {
	logger.Init("error")
	s := New(10, 50, 150, nil, logger.New("extract-test")) // 10-byte limit
	path := writeFile(t, "big.txt", []byte("this file is larger than ten bytes"))

	_, err := s.Extract(context.Background(), path, "big.txt")
	if !errors.Is(err, kb.ErrInputRejected) {
		t.Fatalf("err = %v, want ErrInputRejected", err)
	}
}

func TestExtractUnsupportedTypeRejected(t *testing.T) {
	s := testService(t, nil)
	// ELF magic, sniffs as application/x-executable
	path := writeFile(t, "binary.bin", []byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0, 0, 0, 0, 0})

	_, err := s.Extract(context.Background(), path, "binary.bin")
	if !errors.Is(err, kb.ErrInputRejected) {
		t.Fatalf("err = %v, want ErrInputRejected", err)
	}
}

func TestExtractWhitespaceOnlyFails(t *testing.T) {
	s := testService(t, nil)
	path := writeFile(t, "blank.txt", []byte("   \n\t\n   "))

	_, err := s.Extract(context.Background(), path, "blank.txt")
	if !errors.Is(err, kb.ErrExtractionFailed) {
		t.Fatalf("err = %v, want ErrExtractionFailed", err)
	}
}

// minimal 1x1 PNG
var tinyPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x62, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func TestExtractImageUsesOCR(t *testing.T) {
	engine := &fakeEngine{text: "TOTAL DUE: 1,240.00"}
	s := testService(t, engine)
	path := writeFile(t, "scan.png", tinyPNG)

	res, err := s.Extract(context.Background(), path, "scan.png")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !res.OCRUsed {
		t.Error("OCRUsed not set for image input")
	}
	if engine.calls != 1 {
		t.Errorf("engine called %d times, want 1", engine.calls)
	}
	if res.Text != "TOTAL DUE: 1,240.00" {
		t.Errorf("text = %q", res.Text)
	}
}

func TestExtractImageWithoutOCRRejected(t *testing.T) {
	s := testService(t, nil)
	path := writeFile(t, "scan.png", tinyPNG)

	_, err := s.Extract(context.Background(), path, "scan.png")
	if !errors.Is(err, kb.ErrInputRejected) {
		t.Fatalf("err = %v, want ErrInputRejected", err)
	}
}

func TestExtractImageOCRFailure(t *testing.T) {
	engine := &fakeEngine{err: errors.New("model not loaded")}
	s := testService(t, engine)
	path := writeFile(t, "scan.png", tinyPNG)

	_, err := s.Extract(context.Background(), path, "scan.png")
	if !errors.Is(err, kb.ErrExtractionFailed) {
		t.Fatalf("err = %v, want ErrExtractionFailed", err)
	}
}

func TestDetectKindFallsBackToExtension(t *testing.T) {
	s := testService(t, nil)
	// Content that sniffs as generic binary but is declared .txt is still
	// rejected only if unsupported; an unknown sniff with a known
	// extension resolves through the extension.
	path := writeFile(t, "notes", []byte("plain notes about the rollout process, long enough to matter"))

	kind, err := s.detectKind(path, "notes.txt")
	if err != nil {
		t.Fatalf("detectKind: %v", err)
	}
	if kind != kindText {
		t.Errorf("kind = %v, want kindText", kind)
	}
}

func TestNeedsOCRThreshold(t *testing.T) {
	engine := &fakeEngine{}
	s := testService(t, engine)

	if !s.needsOCR("short") {
		t.Error("text below threshold should trigger ocr")
	}
	if s.needsOCR(strings.Repeat("long enough text ", 10)) {
		t.Error("text above threshold should not trigger ocr")
	}

	// 20 CJK characters are 60 bytes but still under the 50-character
	// threshold
	if !s.needsOCR(strings.Repeat("维", 20)) {
		t.Error("short multi-byte text should trigger ocr")
	}
	if s.needsOCR(strings.Repeat("运维手册", 15)) {
		t.Error("60 multi-byte characters should not trigger ocr")
	}

	noOCR := testService(t, nil)
	if noOCR.needsOCR("short") {
		t.Error("disabled ocr must never trigger")
	}
}

func TestCombineTextKeepsBothSources(t *testing.T) {
	primary := "--- page 1 ---\npartial text layer\n"
	ocr := "--- page 1 ---\nrecognised scan text\n"

	got := combineText(primary, ocr)
	if !strings.Contains(got, "partial text layer") {
		t.Error("primary text dropped")
	}
	if !strings.Contains(got, "recognised scan text") {
		t.Error("ocr text dropped")
	}
	if strings.Index(got, "partial") > strings.Index(got, "recognised") {
		t.Error("primary text should come first")
	}

	if combineText("  \n ", ocr) != ocr {
		t.Error("blank primary should yield ocr text alone")
	}
	if combineText(primary, " \n") != primary {
		t.Error("blank ocr should yield primary text alone")
	}
}
