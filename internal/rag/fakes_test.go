package rag

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
)

// fakeModel replies with reply(messages), streamed in pieces of up to three
// runes, and records every call.
type fakeModel struct {
	mu    sync.Mutex
	calls [][]llm.Message
	reply func(msgs []llm.Message) (string, error)
}

func (m *fakeModel) Name() string { return "fake" }

func (m *fakeModel) Chat(ctx context.Context, msgs []llm.Message, onToken func(string) error) error {
	m.mu.Lock()
	m.calls = append(m.calls, append([]llm.Message(nil), msgs...))
	m.mu.Unlock()
	text, err := m.reply(msgs)
	if err != nil {
		return err
	}
	runes := []rune(text)
	for start := 0; start < len(runes); start += 3 {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+3, len(runes))
		if err := onToken(string(runes[start:end])); err != nil {
			return err
		}
	}
	return nil
}

func (m *fakeModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// answerFromTopDoc plays a grounded model: a rephrase request resolves
// "What about X?" into "What color is X?", and an answer request repeats the
// first passage of the system prompt.
func answerFromTopDoc(msgs []llm.Message) (string, error) {
	last := msgs[len(msgs)-1].Content
	if last == DefaultRephraseInstruction {
		q := msgs[len(msgs)-2].Content
		if rest, ok := strings.CutPrefix(q, "What about "); ok {
			return "What color is " + rest, nil
		}
		return q, nil
	}
	system := msgs[0].Content
	start := strings.Index(system, "<doc>\n")
	end := strings.Index(system, "</doc>")
	if start < 0 || end < start {
		return "I don't know.", nil
	}
	return "According to the document: " + system[start+len("<doc>\n"):end], nil
}

// vocabEmbedder counts occurrences of a fixed vocabulary, one dimension per word.
type vocabEmbedder struct {
	vocab []string
}

func (e *vocabEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, len(e.vocab))
	for _, term := range embedding.Terms(text) {
		for i, w := range e.vocab {
			if term == w {
				vec[i]++
			}
		}
	}
	return vec, nil
}

func (e *vocabEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *vocabEmbedder) Dimensions() int { return len(e.vocab) }
func (e *vocabEmbedder) Close() error    { return nil }

func colorEmbedder() *vocabEmbedder {
	return &vocabEmbedder{vocab: []string{"sky", "blue", "grass", "green", "color"}}
}

// buildIndex embeds texts with e and inserts them in order.
func buildIndex(t *testing.T, e embedding.Embedder, texts ...string) *vector.MemoryIndex {
	t.Helper()
	ctx := context.Background()
	idx, err := vector.NewMemoryIndex(e.Dimensions())
	if err != nil {
		t.Fatal(err)
	}
	vecs, err := e.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatal(err)
	}
	entries := make([]vector.Entry, len(texts))
	for i, text := range texts {
		entries[i] = vector.Entry{Vector: vecs[i], Passage: models.Passage{Text: text}}
	}
	if err := idx.InsertAll(ctx, entries); err != nil {
		t.Fatal(err)
	}
	return idx
}
