package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

var modelDimensions = map[string]int{
	"text-embedding-3-large": 3072,
	"text-embedding-3-small": 1536,
	"text-embedding-ada-002": 1536,
}

// OpenAIConfig configures an OpenAIEmbedder.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // empty uses the public API
	Model   string
	// Dimensions requests shortened vectors from text-embedding-3 models.
	// Zero uses the model's native dimension.
	Dimensions int
	BatchSize  int // texts per request, at most config.MaxEmbeddingBatchSize
	CacheSize  int
	HTTPClient *http.Client
}

// OpenAIEmbedder embeds text with the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	requestDim int
	batchSize  int
	cache      *EmbeddingCache
}

// NewOpenAIEmbedder creates an embedder for cfg.Model. An unknown model needs
// an explicit Dimensions.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai api key is required", models.ErrInvalidInput)
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.LargeEmbedding3)
	}
	dims := cfg.Dimensions
	if dims == 0 {
		dims = modelDimensions[cfg.Model]
	}
	if dims <= 0 {
		return nil, fmt.Errorf("%w: unknown dimensions for model %q", models.ErrInvalidInput, cfg.Model)
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 512
	}
	if batch > config.MaxEmbeddingBatchSize {
		batch = config.MaxEmbeddingBatchSize
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}

	e := &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      cfg.Model,
		dimensions: dims,
		batchSize:  batch,
		cache:      NewEmbeddingCache(cfg.CacheSize),
	}
	if cfg.Dimensions > 0 && strings.HasPrefix(cfg.Model, "text-embedding-3") {
		e.requestDim = cfg.Dimensions
	}
	return e, nil
}

// Embed returns the embedding for text, using cache when available.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, out[0])
	return out[0], nil
}

// EmbedBatch embeds texts in requests of at most BatchSize inputs.
// The result is in input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: text %d is empty", models.ErrInvalidInput, i)
		}
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vecs, err := e.request(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *OpenAIEmbedder) request(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          openai.EmbeddingModel(e.model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.requestDim > 0 {
		req.Dimensions = e.requestDim
	}
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: embeddings response has %d vectors for %d inputs",
			models.ErrProviderUnavailable, len(resp.Data), len(texts))
	}
	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) || vecs[d.Index] != nil {
			return nil, fmt.Errorf("%w: embeddings response has bad index %d", models.ErrProviderUnavailable, d.Index)
		}
		if len(d.Embedding) != e.dimensions {
			return nil, fmt.Errorf("%w: got %d, want %d", models.ErrDimensionMismatch, len(d.Embedding), e.dimensions)
		}
		vec := make([]float32, len(d.Embedding))
		copy(vec, d.Embedding)
		vecs[d.Index] = vec
	}
	return vecs, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (e *OpenAIEmbedder) Close() error {
	return nil
}

// classifyOpenAIError maps a client error onto the pipeline error taxonomy.
// Context cancellation passes through unchanged.
func classifyOpenAIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %w", models.ErrorForStatus(apiErr.HTTPStatusCode), err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("%w: %w", models.ErrorForStatus(reqErr.HTTPStatusCode), err)
	}
	return fmt.Errorf("%w: %w", models.ErrProviderUnavailable, err)
}
