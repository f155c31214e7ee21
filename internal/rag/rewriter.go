package rag

import (
	"context"
	"strings"

	"github.com/hyperjump/kotae/internal/conversation"
	"github.com/hyperjump/kotae/internal/llm"
)

// Rewriter turns a context-dependent question into a standalone search query.
type Rewriter struct {
	model       llm.ChatModel
	instruction string
}

// NewRewriter creates a rewriter. An empty instruction uses DefaultRephraseInstruction.
func NewRewriter(model llm.ChatModel, instruction string) *Rewriter {
	if instruction == "" {
		instruction = DefaultRephraseInstruction
	}
	return &Rewriter{model: model, instruction: instruction}
}

// Rewrite returns latest unchanged when history is empty, without calling the
// model. Otherwise it asks the model for a search query given the history and
// latest, and returns the model output verbatim. Whitespace-only output falls
// back to latest. Model errors are returned unchanged.
func (r *Rewriter) Rewrite(ctx context.Context, history []conversation.Turn, latest string) (string, error) {
	if len(history) == 0 {
		return latest, nil
	}
	msgs := historyMessages(history)
	msgs = append(msgs,
		llm.Message{Role: llm.RoleUser, Content: latest},
		llm.Message{Role: llm.RoleUser, Content: r.instruction},
	)
	query, err := llm.Complete(ctx, r.model, msgs)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(query) == "" {
		return latest, nil
	}
	return query, nil
}
