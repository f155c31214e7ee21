package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/conversation"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
)

// Fragment is one piece of a streamed answer. A fragment with a non-nil Err
// is the last one on its stream.
type Fragment struct {
	Text string
	Err  error
}

// Synthesizer answers a question from retrieved passages with a chat model.
type Synthesizer struct {
	model    llm.ChatModel
	template string
}

// NewSynthesizer creates a synthesizer. An empty template uses DefaultSystemTemplate.
func NewSynthesizer(model llm.ChatModel, template string) *Synthesizer {
	if template == "" {
		template = DefaultSystemTemplate
	}
	return &Synthesizer{model: model, template: template}
}

// Messages builds the prompt: the system template with the passages in place
// of {context}, then the history in order, then question as the last user message.
func (s *Synthesizer) Messages(passages []models.RetrievalResult, history []conversation.Turn, question string) []llm.Message {
	system := strings.ReplaceAll(s.template, ContextPlaceholder, FormatContext(passages))
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: system})
	msgs = append(msgs, historyMessages(history)...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: question})
	return msgs
}

// Synthesize streams the model's answer. The channel is closed when the model
// finishes. A model failure, including cancellation of ctx, is delivered as a
// final Fragment whose Err wraps models.ErrSynthesisFailed. The caller must
// read until the channel is closed; Aggregate does.
func (s *Synthesizer) Synthesize(ctx context.Context, passages []models.RetrievalResult, history []conversation.Turn, question string) <-chan Fragment {
	out := make(chan Fragment, 1)
	msgs := s.Messages(passages, history, question)
	go func() {
		defer close(out)
		var dropped error
		err := s.model.Chat(ctx, msgs, func(tok string) error {
			select {
			case out <- Fragment{Text: tok}:
				return nil
			case <-ctx.Done():
				dropped = ctx.Err()
				return dropped
			}
		})
		// A model that ignores the callback's error still lost a token.
		if err == nil {
			err = dropped
		}
		if err != nil {
			out <- Fragment{Err: fmt.Errorf("%w: %s: %w", models.ErrSynthesisFailed, s.model.Name(), err)}
		}
	}()
	return out
}
