package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/ollama/ollama/api"
)

// OllamaConfig configures an Ollama chat model.
type OllamaConfig struct {
	BaseURL     string
	Model       string
	Temperature float64
	KeepAlive   string // Go duration, e.g. "5m"; empty uses the server default
	HTTPClient  *http.Client
}

// Ollama streams chat completions from an Ollama server.
type Ollama struct {
	client      *api.Client
	model       string
	temperature float64
	keepAlive   *api.Duration
}

// NewOllama creates a client for the server at cfg.BaseURL.
func NewOllama(cfg OllamaConfig) (*Ollama, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: ollama model is required", models.ErrInvalidInput)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama url: %w", models.ErrInvalidInput, err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	o := &Ollama{
		client:      api.NewClient(u, httpClient),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}
	if cfg.KeepAlive != "" {
		d, err := time.ParseDuration(cfg.KeepAlive)
		if err != nil {
			return nil, fmt.Errorf("%w: keep_alive: %w", models.ErrInvalidInput, err)
		}
		o.keepAlive = &api.Duration{Duration: d}
	}
	return o, nil
}

// Name returns the provider and model name.
func (o *Ollama) Name() string {
	return "ollama/" + o.model
}

// Chat streams the reply to messages, calling onToken for each piece.
func (o *Ollama) Chat(ctx context.Context, messages []Message, onToken func(string) error) error {
	msgs := make([]api.Message, len(messages))
	for i, m := range messages {
		msgs[i] = api.Message{Role: string(m.Role), Content: m.Content}
	}
	stream := true
	req := &api.ChatRequest{
		Model:     o.model,
		Messages:  msgs,
		Stream:    &stream,
		KeepAlive: o.keepAlive,
		Options: map[string]any{
			"temperature": o.temperature,
		},
	}

	var callbackErr error
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		if resp.Message.Content == "" {
			return nil
		}
		if err := onToken(resp.Message.Content); err != nil {
			callbackErr = err
			return err
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if callbackErr != nil && errors.Is(err, callbackErr) {
		return callbackErr
	}
	return classifyOllamaError(err)
}

func classifyOllamaError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Errorf("%w: ollama: %w", models.ErrorForStatus(statusErr.StatusCode), err)
	}
	return fmt.Errorf("%w: ollama: %w", models.ErrProviderUnavailable, err)
}
