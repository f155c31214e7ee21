// Package embedding turns text into fixed-dimension vectors for similarity search.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
)

// Embedder produces vector embeddings for text. Every vector returned by one
// Embedder has length Dimensions().
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// New builds the embedder selected by cfg.Provider.
func New(cfg *config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case config.EmbeddingOpenAI:
		e, err := NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			CacheSize:  cfg.CacheSize,
		})
		if err != nil {
			return nil, err
		}
		return e, nil
	case config.EmbeddingLocal:
		e, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens, cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		return e, nil
	case config.EmbeddingHash:
		return NewHashEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", models.ErrInvalidInput, cfg.Provider)
	}
}

// embedEach calls embed for each text in order, stopping at the first error
// or when ctx is done.
func embedEach(ctx context.Context, texts []string, embed func(context.Context, string) ([]float32, error)) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// asModelLoad reports a local inference failure as ErrModelLoad, leaving
// errors that already carry ErrModelLoad or ErrInvalidInput untouched.
func asModelLoad(err error) error {
	if err == nil || errors.Is(err, models.ErrModelLoad) || errors.Is(err, models.ErrInvalidInput) {
		return err
	}
	return fmt.Errorf("%w: %w", models.ErrModelLoad, err)
}
