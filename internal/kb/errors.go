// Package kb holds the types and error kinds shared across the
// ingestion-to-answer pipeline.
package kb

import "errors"

// Error kinds surfaced by the pipeline. They are matched with errors.Is at
// the decision points that pick a fallback or a terminal document state.
var (
	// ErrInputRejected marks input refused before any processing: oversized
	// file, unsupported format, malformed file.
	ErrInputRejected = errors.New("input rejected")

	// ErrExtractionFailed means every extraction path, OCR included, yielded
	// no usable text. The document transitions to failed with this reason.
	ErrExtractionFailed = errors.New("no usable text extracted")

	// ErrEmbeddingUnavailable means the embedding provider is unreachable or
	// misconfigured. Fatal at startup, per-document failure at runtime.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// ErrVectorStoreWrite marks a mid-pipeline vector write failure. It
	// triggers rollback of any vectors already written for the document.
	ErrVectorStoreWrite = errors.New("vector store write failed")

	// ErrGenerativeFailed means the generative path exhausted its retry
	// budget. The synthesizer falls through to extractive mode.
	ErrGenerativeFailed = errors.New("generative model failed")
)
