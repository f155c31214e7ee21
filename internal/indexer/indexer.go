package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
	"go.uber.org/zap"
)

// Indexer builds the vector index for a document in one blocking pass:
// extract, normalize, chunk, embed, insert.
type Indexer struct {
	embedder  embedding.Embedder
	chunker   *Chunker
	extractor *extract.Extractor
	batchSize int
	logger    *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for ingestion progress.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithBatchSize sets how many passages are sent to the embedder per call.
func WithBatchSize(n int) IndexerOption {
	return func(idx *Indexer) {
		if n > 0 {
			idx.batchSize = n
		}
	}
}

// NewIndexer creates an indexer with the given dependencies.
// extractor may be nil; when nil, IngestFile treats all files as plain text.
func NewIndexer(embedder embedding.Embedder, chunker *Chunker, extractor *extract.Extractor, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		embedder:  embedder,
		chunker:   chunker,
		extractor: extractor,
		batchSize: 512,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IngestFile extracts the document at path and returns its populated index.
// Returns an error if the path is not a regular file, cannot be read, has no
// text, or any passage fails to embed. A partial index is never returned.
func (idx *Indexer) IngestFile(ctx context.Context, path string) (*vector.MemoryIndex, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}
	pages, err := idx.extractPages(absPath)
	if err != nil {
		return nil, fmt.Errorf("extract content: %w", err)
	}
	idx.logger.Debug("document extracted", zap.String("path", absPath), zap.Int("pages", len(pages)))
	return idx.IngestPages(ctx, filepath.Base(absPath), pages)
}

// IngestPages chunks, embeds, and indexes pages. source is recorded in each
// passage's metadata.
func (idx *Indexer) IngestPages(ctx context.Context, source string, pages []models.Page) (*vector.MemoryIndex, error) {
	start := time.Now()
	passages := idx.Chunk(source, pages)
	if len(passages) == 0 {
		return nil, fmt.Errorf("%w: document %q has no text", models.ErrInvalidInput, source)
	}

	index, err := vector.NewMemoryIndex(idx.embedder.Dimensions())
	if err != nil {
		return nil, err
	}
	entries := make([]vector.Entry, 0, len(passages))
	for from := 0; from < len(passages); from += idx.batchSize {
		to := min(from+idx.batchSize, len(passages))
		texts := make([]string, to-from)
		for i, p := range passages[from:to] {
			texts[i] = p.Text
		}
		vecs, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings for passages %d-%d: %w", from, to-1, err)
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("%w: embedder returned %d vectors for %d passages",
				models.ErrProviderUnavailable, len(vecs), len(texts))
		}
		for i, v := range vecs {
			entries = append(entries, vector.Entry{Vector: v, Passage: passages[from+i]})
		}
		idx.logger.Debug("passages embedded", zap.Int("done", to), zap.Int("total", len(passages)))
	}
	if err := index.InsertAll(ctx, entries); err != nil {
		return nil, fmt.Errorf("failed to index vectors: %w", err)
	}
	idx.logger.Info("document indexed",
		zap.String("source", source),
		zap.Int("pages", len(pages)),
		zap.Int("passages", index.Size()),
		zap.Int("dimensions", index.Dimensions()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return index, nil
}

// Chunk normalizes pages and splits them into passages tagged with source,
// without embedding. Page offsets are recomputed over the normalized text.
func (idx *Indexer) Chunk(source string, pages []models.Page) []models.Passage {
	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = Preprocess(p.Text)
	}
	normalized := extract.Pages(texts...)
	for i := range normalized {
		normalized[i].Index = pages[i].Index
	}
	passages := idx.chunker.SplitPages(normalized)
	for i := range passages {
		passages[i].Metadata[models.MetaSource] = source
	}
	return passages
}

func (idx *Indexer) extractPages(path string) ([]models.Page, error) {
	if idx.extractor != nil {
		return idx.extractor.ExtractPages(path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return extract.Pages(string(content)), nil
}
