package kb

// Evidence is one retrieved chunk, cross-validated against the relational
// records, carrying everything needed to cite and re-display the passage.
type Evidence struct {
	VectorID     string
	DocumentID   uint
	DocumentName string
	ChunkID      uint
	ChunkIndex   int
	Text         string
	StartOffset  int
	EndOffset    int
	Similarity   float32

	// BelowFloor marks a result returned despite scoring under the
	// similarity floor, when nothing cleared it. Callers may present these
	// with a lower-confidence hint.
	BelowFloor bool
}

// Citation points a reader back at the passage an answer was grounded on.
type Citation struct {
	DocumentID   uint    `json:"document_id"`
	DocumentName string  `json:"document_name"`
	ChunkID      uint    `json:"chunk_id"`
	ChunkIndex   int     `json:"chunk_index"`
	StartOffset  int     `json:"start_offset"`
	EndOffset    int     `json:"end_offset"`
	Similarity   float32 `json:"similarity"`
}

// CitationOf builds the citation for a piece of evidence.
func CitationOf(ev Evidence) Citation {
	return Citation{
		DocumentID:   ev.DocumentID,
		DocumentName: ev.DocumentName,
		ChunkID:      ev.ChunkID,
		ChunkIndex:   ev.ChunkIndex,
		StartOffset:  ev.StartOffset,
		EndOffset:    ev.EndOffset,
		Similarity:   ev.Similarity,
	}
}
