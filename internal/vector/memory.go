package vector

import (
	"context"
	"fmt"
	"sort"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// MemoryIndex is an in-memory vector index using brute-force cosine similarity.
//
// It has two phases. During ingestion a single goroutine calls InsertAll.
// Afterwards the index is never mutated and Search may be called from any
// number of goroutines without locking. Calling InsertAll concurrently with
// Search is not supported.
type MemoryIndex struct {
	dimensions int
	vectors    [][]float32 // L2-normalized copies, in insertion order
	passages   []models.Passage
}

// NewMemoryIndex creates an empty index for vectors of the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive", models.ErrInvalidInput)
	}
	return &MemoryIndex{dimensions: dimensions}, nil
}

// InsertAll appends entries in order. All entries are validated before any is
// stored, so a dimension mismatch leaves the index unchanged.
func (m *MemoryIndex) InsertAll(ctx context.Context, entries []Entry) error {
	for i, e := range entries {
		if len(e.Vector) != m.dimensions {
			return fmt.Errorf("%w: entry %d has dimension %d, index expects %d",
				models.ErrDimensionMismatch, i, len(e.Vector), m.dimensions)
		}
	}
	for _, e := range entries {
		m.vectors = append(m.vectors, utils.Normalized(e.Vector))
		m.passages = append(m.passages, e.Passage)
	}
	return nil
}

// Search returns the k passages most similar to query, by descending cosine
// similarity. Equal scores keep insertion order.
//
// k larger than Size() is clamped: the result holds min(k, Size()) entries and
// no error is returned. k < 1 fails with ErrInvalidInput. An empty index fails
// with ErrEmptyIndex, and a query of the wrong dimension fails with
// ErrDimensionMismatch before any entry is scored.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]models.RetrievalResult, error) {
	if len(m.vectors) == 0 {
		return nil, models.ErrEmptyIndex
	}
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("%w: query has dimension %d, index expects %d",
			models.ErrDimensionMismatch, len(query), m.dimensions)
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be at least 1, got %d", models.ErrInvalidInput, k)
	}
	q := utils.Normalized(query)
	type scored struct {
		pos   int
		score float64
	}
	scores := make([]scored, len(m.vectors))
	for i, vec := range m.vectors {
		scores[i] = scored{pos: i, score: utils.Dot(q, vec)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	k = min(k, len(scores))
	results := make([]models.RetrievalResult, k)
	for i := 0; i < k; i++ {
		results[i] = models.RetrievalResult{
			Passage: m.passages[scores[i].pos],
			Score:   scores[i].score,
		}
	}
	return results, nil
}

// Size returns the number of entries in the index.
func (m *MemoryIndex) Size() int {
	return len(m.vectors)
}

// Dimensions returns the vector dimension the index accepts.
func (m *MemoryIndex) Dimensions() int {
	return m.dimensions
}
