package rag

import (
	"context"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
)

// DefaultTopK is the number of passages retrieved per question.
const DefaultTopK = 4

// Retriever embeds a query and looks it up in the vector index.
type Retriever struct {
	embedder embedding.Embedder
	index    vector.Searcher
	topK     int
}

// NewRetriever creates a retriever returning topK passages by default.
func NewRetriever(embedder embedding.Embedder, index vector.Searcher, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{embedder: embedder, index: index, topK: topK}
}

// Retrieve returns up to k passages most similar to query, best first.
// k <= 0 uses the retriever's default. Errors from the embedder and the index
// are returned unchanged.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]models.RetrievalResult, error) {
	if k <= 0 {
		k = r.topK
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.index.Search(ctx, vec, k)
}
