// Package chunker splits extracted text into overlapping segments suitable
// for embedding. Break points prefer paragraph and sentence boundaries near
// the target size so chunk edges stay semantically whole.
package chunker

import (
	"fmt"
	"unicode"
)

// Chunk is one segment of the source text. Start and End are rune offsets
// into the source, kept so a viewer can re-display the passage in place.
// Spans of consecutive chunks overlap by construction.
type Chunk struct {
	Index int
	Text  string
	Start int
	End   int
}

// Chunker performs deterministic, boundary-aware splitting.
type Chunker struct {
	size    int
	overlap int
}

// New validates the parameters. Overlap not strictly less than size is a
// configuration error, not something to clamp at runtime.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap (%d) must be less than chunk size (%d)", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split returns the ordered chunk sequence for text. Identical input always
// yields an identical sequence. Text no longer than one chunk comes back as
// a single chunk; empty text yields none.
func (c *Chunker) Split(text string) []Chunk {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}
	if n <= c.size {
		return []Chunk{{Index: 0, Text: text, Start: 0, End: n}}
	}

	var chunks []Chunk
	start := 0
	for start < n {
		end := start + c.size
		if end >= n {
			end = n
		} else {
			end = c.breakPoint(runes, start, end)
		}

		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Text:  string(runes[start:end]),
			Start: start,
			End:   end,
		})

		if end == n {
			break
		}
		next := end - c.overlap
		if next <= start {
			// Overlap would stall the scan; step past the break instead.
			next = end
		}
		start = next
	}
	return chunks
}

// breakPoint picks a cut position in (start+size/2, limit], preferring a
// paragraph break, then a sentence end, then any whitespace. A hard cut at
// limit is the last resort.
func (c *Chunker) breakPoint(runes []rune, start, limit int) int {
	min := start + c.size/2

	for i := limit; i > min; i-- {
		if runes[i-1] == '\n' && i >= 2 && runes[i-2] == '\n' {
			return i
		}
	}
	for i := limit; i > min; i-- {
		if isSentenceEnd(runes[i-1]) {
			return i
		}
	}
	for i := limit; i > min; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return limit
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '；', ';':
		return true
	}
	return false
}
