// Package openai implements chat.Completer over the OpenAI Chat Completions
// API; it also serves ollama and other OpenAI-dialect endpoints.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/arrg-project/arrg/chat"
)

const (
	OpenAIURL = "https://api.openai.com/v1"
	OllamaURL = "http://localhost:11434/v1"
)

// Client is a chat.Completer backed by the OpenAI SDK.
type Client struct {
	openaiClient openai.Client
	modelName    string
	maxTokens    int
	baseURL      string
}

var _ chat.Completer = (*Client)(nil)

type Option func(*Client)

func WithModel(modelName string) Option {
	return func(c *Client) {
		c.modelName = strings.TrimSpace(modelName)
	}
}

// WithMaxTokens sets the completion token limit. Non-positive values leave it
// to the API default.
func WithMaxTokens(maxTokens int) Option {
	return func(c *Client) {
		if maxTokens > 0 {
			c.maxTokens = maxTokens
		}
	}
}

// NewClient returns a completer for an OpenAI-compatible chat completions
// endpoint. An empty apiKey is allowed for local endpoints like ollama.
func NewClient(apiBase, apiKey string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: apiBase,
	}
	if c.baseURL == "" {
		c.baseURL = OpenAIURL
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.modelName == "" {
		return nil, fmt.Errorf("WithModel is a required option")
	}

	var clientOpts []option.RequestOption
	if apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	}
	if c.baseURL != OpenAIURL {
		clientOpts = append(clientOpts, option.WithBaseURL(c.baseURL))
	}

	c.openaiClient = openai.NewClient(clientOpts...)
	return c, nil
}

// Complete sends the conversation in a single non-streaming call and
// translates the first choice back into the neutral shape.
func (c *Client) Complete(ctx context.Context, req chat.Request) (chat.Response, error) {
	msgs, err := messagesToOpenAI(req.System, req.Messages)
	if err != nil {
		return chat.Response{}, fmt.Errorf("openai: %w", err)
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.modelName),
		Messages: msgs,
	}

	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if len(req.Tools) > 0 {
		tools, err := toolsToOpenAI(req.Tools)
		if err != nil {
			return chat.Response{}, fmt.Errorf("openai: %w", err)
		}
		params.Tools = tools
	}

	completion, err := c.openaiClient.Chat.Completions.New(ctx, params)
	if err != nil {
		return chat.Response{}, fmt.Errorf("openai: chat.completions.new: %w", err)
	}
	if len(completion.Choices) == 0 {
		return chat.Response{}, fmt.Errorf("openai: response has no choices")
	}

	choice := completion.Choices[0]
	resp := chat.Response{Text: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, chat.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return resp, nil
}
