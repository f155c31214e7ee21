package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAI chat model.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	HTTPClient  *http.Client
}

// OpenAI streams chat completions from the OpenAI API or a compatible server.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAI creates a chat model client.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai api key is required", models.ErrInvalidInput)
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}
	return &OpenAI{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
	}, nil
}

// Name returns the provider and model name.
func (o *OpenAI) Name() string {
	return "openai/" + o.model
}

// Chat streams the reply to messages, calling onToken for each delta.
func (o *OpenAI) Chat(ctx context.Context, messages []Message, onToken func(string) error) error {
	msgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}
	stream, err := o.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    msgs,
		Temperature: o.temperature,
		Stream:      true,
	})
	if err != nil {
		return classifyOpenAIError(err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return classifyOpenAIError(err)
		}
		for _, choice := range resp.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if err := onToken(choice.Delta.Content); err != nil {
				return err
			}
		}
	}
}

func classifyOpenAIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: openai: %w", models.ErrorForStatus(apiErr.HTTPStatusCode), err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("%w: openai: %w", models.ErrorForStatus(reqErr.HTTPStatusCode), err)
	}
	return fmt.Errorf("%w: openai: %w", models.ErrProviderUnavailable, err)
}
