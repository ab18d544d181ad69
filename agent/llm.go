package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"vizchat/config"
)

// ModelCaller is the narrow surface the pipeline needs from a model provider:
// a prompt in, text that should be JSON out. Implemented by ChatClient and by
// test stubs.
type ModelCaller interface {
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const (
	// Transport failures are retried a fixed small number of times with a
	// short fixed delay. Deliberately blunt; no exponential backoff.
	transportRetries    = 3
	transportRetryDelay = 2 * time.Second
)

// ChatClient adapts a configured model provider behind ModelCaller. The
// OpenAI-compatible path goes through the eino openai component; Anthropic
// uses the hand-rolled eino ChatModel in llm_anthropic.go. Validation
// failures are never retried here, only transport failures.
type ChatClient struct {
	provider  string
	chatModel model.ChatModel
	logger    func(string)
}

// NewChatClient selects the provider adapter from config.
func NewChatClient(cfg config.Config, logger func(string)) (*ChatClient, error) {
	var chatModel model.ChatModel
	var err error

	switch cfg.LLMProvider {
	case "Anthropic", "Claude-Compatible":
		chatModel, err = NewAnthropicChatModel(context.Background(), &AnthropicConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.ModelName,
			MaxTokens: cfg.MaxTokens,
		})
	default:
		// OpenAI and OpenAI-compatible endpoints (local gateways included).
		chatModel, err = openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.ModelName,
			Timeout: 0,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	return &ChatClient{
		provider:  cfg.LLMProvider,
		chatModel: chatModel,
		logger:    logger,
	}, nil
}

func (c *ChatClient) log(msg string) {
	if c.logger != nil {
		c.logger(msg)
	}
}

// GenerateJSON sends a system+user prompt pair and returns the raw response
// text. The JSON contract is enforced by the system prompt and by the callers'
// defensive parsing; anything not coercible is the callers' ParseError, not a
// transport failure.
func (c *ChatClient) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
		{Role: schema.User, Content: userPrompt},
	}

	var lastErr error
	for attempt := 1; attempt <= transportRetries; attempt++ {
		resp, err := c.chatModel.Generate(ctx, messages)
		if err == nil {
			return resp.Content, nil
		}
		lastErr = err
		c.log(fmt.Sprintf("[LLM] Attempt %d/%d failed: %v", attempt, transportRetries, err))

		if ctx.Err() != nil {
			break
		}
		if attempt < transportRetries {
			time.Sleep(transportRetryDelay)
		}
	}
	return "", &TransportError{Provider: c.provider, Err: lastErr}
}
