package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/conversation"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
)

// Answer is the result of one question.
type Answer struct {
	Text    string                   `json:"text"`
	Query   string                   `json:"query"`
	Sources []models.RetrievalResult `json:"sources"`
}

// Engine runs the question pipeline against an ingested index. It is built once
// at startup and shared by all requests; Ask holds no shared mutable state.
type Engine struct {
	rewriter    *Rewriter
	retriever   *Retriever
	synthesizer *Synthesizer
	index       vector.Searcher
	model       llm.ChatModel
}

type engineOptions struct {
	topK                int
	systemTemplate      string
	rephraseInstruction string
}

// Option configures an Engine.
type Option func(*engineOptions)

// WithTopK sets how many passages are retrieved per question.
func WithTopK(k int) Option {
	return func(o *engineOptions) { o.topK = k }
}

// WithSystemTemplate overrides the answer prompt. It must contain {context}.
func WithSystemTemplate(s string) Option {
	return func(o *engineOptions) { o.systemTemplate = s }
}

// WithRephraseInstruction overrides the query rewriting instruction.
func WithRephraseInstruction(s string) Option {
	return func(o *engineOptions) { o.rephraseInstruction = s }
}

// NewEngine wires the pipeline stages around model, embedder and index.
func NewEngine(model llm.ChatModel, embedder embedding.Embedder, index vector.Searcher, opts ...Option) *Engine {
	var o engineOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine{
		rewriter:    NewRewriter(model, o.rephraseInstruction),
		retriever:   NewRetriever(embedder, index, o.topK),
		synthesizer: NewSynthesizer(model, o.systemTemplate),
		index:       index,
		model:       model,
	}
}

// Index returns the index the engine searches.
func (e *Engine) Index() vector.Searcher { return e.index }

// ModelName returns the chat model's name.
func (e *Engine) ModelName() string { return e.model.Name() }

// Ask answers the last message of messages, treating the rest as history.
// The stages run in sequence and any stage error is returned unchanged.
func (e *Engine) Ask(ctx context.Context, messages []models.ChatMessage) (*Answer, error) {
	past, latest, ok := conversation.Split(messages)
	if !ok || strings.TrimSpace(latest.Content) == "" {
		return nil, fmt.Errorf("%w: question is empty", models.ErrInvalidInput)
	}
	history := conversation.Format(past)

	query, err := e.rewriter.Rewrite(ctx, history, latest.Content)
	if err != nil {
		return nil, err
	}
	results, err := e.retriever.Retrieve(ctx, query, 0)
	if err != nil {
		return nil, err
	}
	text, err := Aggregate(e.synthesizer.Synthesize(ctx, results, history, latest.Content))
	if err != nil {
		return nil, err
	}
	return &Answer{Text: text, Query: query, Sources: results}, nil
}
