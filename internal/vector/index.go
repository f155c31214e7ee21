// Package vector provides the in-memory vector index used for passage retrieval.
package vector

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// Entry pairs an embedding with the passage it was computed from.
type Entry struct {
	Vector  []float32
	Passage models.Passage
}

// Searcher is the read side of an index, used by retrieval.
type Searcher interface {
	Search(ctx context.Context, query []float32, k int) ([]models.RetrievalResult, error)
	Size() int
	Dimensions() int
}
