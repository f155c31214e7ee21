package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// HashEmbedder is a deterministic bag-of-words embedder. Each term is hashed
// into one of Dimensions() buckets and the counts are L2-normalized, so texts
// sharing terms score higher under cosine similarity. It needs no model or
// network and is used for offline runs and tests.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a hash embedder with the given dimension (default 256).
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 256
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns the normalized term-count vector of text.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: text is empty", models.ErrInvalidInput)
	}
	emb := make([]float32, e.dimensions)
	terms := Terms(trimmed)
	if len(terms) == 0 {
		// punctuation only
		terms = []string{trimmed}
	}
	for _, term := range terms {
		emb[e.bucket(term)]++
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, texts, e.Embed)
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for HashEmbedder.
func (e *HashEmbedder) Close() error {
	return nil
}

func (e *HashEmbedder) bucket(term string) int {
	return int(xxhash.Sum64String(term) % uint64(e.dimensions))
}
