package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// Engine recognises text in a single raster image.
type Engine interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

const ocrPrompt = "Transcribe all text visible in this image. Output only the text, preserving line breaks. If there is no text, output nothing."

// OllamaEngine runs OCR through a local vision model. When GPU inference
// fails it retries the same request pinned to CPU and stays there for the
// rest of the process lifetime.
type OllamaEngine struct {
	client *ollama.Client
	model  string

	mu      sync.Mutex
	cpuOnly bool
}

// NewOllamaEngine builds an OCR engine around an Ollama vision model.
func NewOllamaEngine(model, baseURL string) (*OllamaEngine, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ocr base URL: %w", err)
	}
	hc := &http.Client{Timeout: 300 * time.Second}
	return &OllamaEngine{client: ollama.NewClient(parsed, hc), model: model}, nil
}

func (e *OllamaEngine) Recognize(ctx context.Context, image []byte) (string, error) {
	e.mu.Lock()
	cpuOnly := e.cpuOnly
	e.mu.Unlock()

	text, err := e.generate(ctx, image, cpuOnly)
	if err == nil {
		return text, nil
	}
	if cpuOnly || ctx.Err() != nil {
		return "", err
	}

	// GPU inference can fail on memory pressure while CPU still works.
	text, cpuErr := e.generate(ctx, image, true)
	if cpuErr != nil {
		return "", fmt.Errorf("ocr failed on gpu (%v) and cpu: %w", err, cpuErr)
	}
	e.mu.Lock()
	e.cpuOnly = true
	e.mu.Unlock()
	return text, nil
}

func (e *OllamaEngine) generate(ctx context.Context, image []byte, cpuOnly bool) (string, error) {
	req := &ollama.GenerateRequest{
		Model:  e.model,
		Prompt: ocrPrompt,
		Images: []ollama.ImageData{image},
		Stream: &[]bool{false}[0],
	}
	if cpuOnly {
		req.Options = map[string]interface{}{"num_gpu": 0}
	}

	var out strings.Builder
	err := e.client.Generate(ctx, req, func(resp ollama.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

// rasterizePDF renders each page to a PNG using poppler's pdftoppm. The
// binary is a runtime dependency only on the OCR path; installations without
// it simply cannot OCR PDFs.
func rasterizePDF(ctx context.Context, path string, dpi int) ([][]byte, error) {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		return nil, fmt.Errorf("pdftoppm not installed: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "ocr-pages-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm", "-png", "-r", strconv.Itoa(dpi), path, prefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm: %v: %s", err, strings.TrimSpace(string(out)))
	}

	matches, err := filepath.Glob(prefix + "*.png")
	if err != nil {
		return nil, err
	}
	// pdftoppm zero-pads page numbers, lexical order is page order
	sort.Strings(matches)

	images := make([][]byte, 0, len(matches))
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			return nil, fmt.Errorf("read page image %s: %w", m, err)
		}
		images = append(images, data)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no pages")
	}
	return images, nil
}
