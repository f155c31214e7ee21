// Package llm adapts chat model providers to a single streaming interface.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
)

// Role is the speaker of a chat model message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one message sent to a chat model.
type Message struct {
	Role    Role
	Content string
}

// ChatModel sends an ordered message list to a model and streams the reply.
// onToken is called with each non-empty text piece in order; an error from
// onToken aborts the call and is returned. Transport failures wrap
// models.ErrProviderUnavailable and HTTP 429 wraps models.ErrRateLimited.
type ChatModel interface {
	Chat(ctx context.Context, messages []Message, onToken func(string) error) error
	Name() string
}

// Complete runs a chat call and returns the whole reply.
func Complete(ctx context.Context, model ChatModel, messages []Message) (string, error) {
	var b strings.Builder
	err := model.Chat(ctx, messages, func(tok string) error {
		b.WriteString(tok)
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// New builds the chat model selected by cfg.Provider.
func New(cfg *config.LLMConfig) (ChatModel, error) {
	switch cfg.Provider {
	case config.LLMOllama:
		m, err := NewOllama(OllamaConfig{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.TemperatureOrDefault(),
			KeepAlive:   cfg.KeepAlive,
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.LLMOpenAI:
		m, err := NewOpenAI(OpenAIConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.TemperatureOrDefault(),
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", models.ErrInvalidInput, cfg.Provider)
	}
}
