package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// AnthropicChatModel implements the eino ChatModel interface over the raw
// Anthropic messages API. The eino ecosystem has no first-party Anthropic
// component, so the transport is hand-rolled.
type AnthropicChatModel struct {
	config *AnthropicConfig
	client *http.Client
	tools  []*schema.ToolInfo
}

// AnthropicConfig holds the provider connection settings.
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// NewAnthropicChatModel creates the adapter. ctx is accepted for interface
// symmetry with the eino component constructors.
func NewAnthropicChatModel(ctx context.Context, config *AnthropicConfig) (*AnthropicChatModel, error) {
	if config.MaxTokens <= 0 {
		config.MaxTokens = 4096
	}
	return &AnthropicChatModel{
		config: config,
		client: &http.Client{Timeout: 300 * time.Second},
	}, nil
}

// BindTools records tool infos. The analysis pipeline drives the model
// through structured JSON payloads rather than tool calls, so tools are kept
// only to satisfy the ChatModel contract.
func (m *AnthropicChatModel) BindTools(tools []*schema.ToolInfo) error {
	m.tools = tools
	return nil
}

// Generate sends the message history and returns the assistant reply.
func (m *AnthropicChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	reqBody := map[string]interface{}{
		"model":      m.config.Model,
		"max_tokens": m.config.MaxTokens,
	}

	var messages []map[string]interface{}
	var systemPrompt string
	for _, msg := range input {
		switch msg.Role {
		case schema.System:
			systemPrompt += msg.Content + "\n"
		case schema.User:
			messages = append(messages, map[string]interface{}{
				"role":    "user",
				"content": msg.Content,
			})
		case schema.Assistant:
			messages = append(messages, map[string]interface{}{
				"role":    "assistant",
				"content": msg.Content,
			})
		}
	}
	if systemPrompt != "" {
		reqBody["system"] = strings.TrimSpace(systemPrompt)
	}
	reqBody["messages"] = messages

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	fullURL := "https://api.anthropic.com/v1/messages"
	if m.config.BaseURL != "" {
		fullURL = strings.TrimSuffix(m.config.BaseURL, "/") + "/v1/messages"
	}

	req, err := http.NewRequestWithContext(ctx, "POST", fullURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", m.config.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Anthropic API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	responseMsg := &schema.Message{Role: schema.Assistant}
	for _, block := range result.Content {
		if block.Type == "text" {
			responseMsg.Content += block.Text
		}
	}
	return responseMsg, nil
}

// Stream is not used by the pipeline; responses are consumed whole.
func (m *AnthropicChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("streaming not supported")
}
