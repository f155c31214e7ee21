package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/conversation"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
)

func results(texts ...string) []models.RetrievalResult {
	out := make([]models.RetrievalResult, len(texts))
	for i, t := range texts {
		out[i] = models.RetrievalResult{Passage: models.Passage{Text: t}, Score: 1 - float64(i)/10}
	}
	return out
}

func TestSynthesizer_Messages(t *testing.T) {
	s := NewSynthesizer(&fakeModel{}, "Context:\n{context}\nEnd.")
	history := []conversation.Turn{
		{Kind: conversation.Human, Text: "What color is the sky?"},
		{Kind: conversation.Assistant, Text: "blue"},
	}
	msgs := s.Messages(results("The sky is blue.", "Grass is green."), history, "What about the grass?")
	if len(msgs) != 4 {
		t.Fatalf("len = %d, want 4", len(msgs))
	}
	wantSystem := "Context:\n<doc>\nThe sky is blue.</doc>\n\n<doc>\nGrass is green.</doc>\nEnd."
	if msgs[0].Role != llm.RoleSystem || msgs[0].Content != wantSystem {
		t.Errorf("system = %q", msgs[0].Content)
	}
	if msgs[1].Role != llm.RoleUser || msgs[2].Role != llm.RoleAssistant {
		t.Errorf("history roles = %s, %s", msgs[1].Role, msgs[2].Role)
	}
	if msgs[3].Role != llm.RoleUser || msgs[3].Content != "What about the grass?" {
		t.Errorf("last = %+v, want original question", msgs[3])
	}
}

func TestSynthesizer_defaultTemplate(t *testing.T) {
	s := NewSynthesizer(&fakeModel{}, "")
	msgs := s.Messages(results("only passage"), nil, "q")
	if !strings.Contains(msgs[0].Content, "<doc>\nonly passage</doc>") {
		t.Errorf("system prompt missing passage: %q", msgs[0].Content)
	}
	if strings.Contains(msgs[0].Content, ContextPlaceholder) {
		t.Error("placeholder not replaced")
	}
}

func TestSynthesizer_streamsInOrder(t *testing.T) {
	model := &fakeModel{reply: func([]llm.Message) (string, error) { return "The sky is blue.", nil }}
	s := NewSynthesizer(model, "")
	var pieces []string
	for f := range s.Synthesize(context.Background(), nil, nil, "q") {
		if f.Err != nil {
			t.Fatal(f.Err)
		}
		pieces = append(pieces, f.Text)
	}
	if len(pieces) < 2 {
		t.Errorf("expected several fragments, got %q", pieces)
	}
	if strings.Join(pieces, "") != "The sky is blue." {
		t.Errorf("fragments = %q", pieces)
	}
}

func TestSynthesizer_modelFailure(t *testing.T) {
	model := &fakeModel{reply: func([]llm.Message) (string, error) { return "", models.ErrProviderUnavailable }}
	s := NewSynthesizer(model, "")
	_, err := Aggregate(s.Synthesize(context.Background(), nil, nil, "q"))
	if !errors.Is(err, models.ErrSynthesisFailed) {
		t.Errorf("err = %v, want ErrSynthesisFailed", err)
	}
	if !errors.Is(err, models.ErrProviderUnavailable) {
		t.Errorf("err = %v, should keep the cause", err)
	}
}

func TestSynthesizer_canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	model := &fakeModel{reply: func([]llm.Message) (string, error) { return "never delivered", nil }}
	s := NewSynthesizer(model, "")
	_, err := Aggregate(s.Synthesize(ctx, nil, nil, "q"))
	if !errors.Is(err, models.ErrSynthesisFailed) || !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want ErrSynthesisFailed wrapping context.Canceled", err)
	}
}

// lateCancelModel streams its whole reply, then cancels the request context
// before returning success.
type lateCancelModel struct {
	reply  string
	cancel context.CancelFunc
}

func (m *lateCancelModel) Name() string { return "late-cancel" }

func (m *lateCancelModel) Chat(ctx context.Context, msgs []llm.Message, onToken func(string) error) error {
	for _, word := range strings.SplitAfter(m.reply, " ") {
		if err := onToken(word); err != nil {
			return err
		}
	}
	m.cancel()
	return nil
}

func TestSynthesizer_completedAnswerSurvivesLateCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	model := &lateCancelModel{reply: "The sky is blue.", cancel: cancel}
	s := NewSynthesizer(model, "")
	answer, err := Aggregate(s.Synthesize(ctx, nil, nil, "q"))
	if err != nil {
		t.Fatalf("completed answer reported as failure: %v", err)
	}
	if answer != "The sky is blue." {
		t.Errorf("answer = %q", answer)
	}
}
