// Package models defines core data structures for documents, passages, conversations, and retrieval results.
package models

// Page is one page (or sheet, or slide) of extracted document text. Index is 1-based.
type Page struct {
	Index  int    `json:"index"`
	Offset int    `json:"offset"` // rune offset of the page start within the whole document
	Text   string `json:"text"`
}

// Passage is a bounded span of document text stored and retrieved as a unit.
type Passage struct {
	Text         string            `json:"text"`
	SourceOffset int               `json:"source_offset"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Metadata keys set on passages during ingestion.
const (
	MetaID     = "id"
	MetaSource = "source"
	MetaPage   = "page"
	MetaChunk  = "chunk"
)

// RetrievalResult is a passage with its similarity score to a query.
type RetrievalResult struct {
	Passage Passage `json:"passage"`
	Score   float64 `json:"score"`
}
