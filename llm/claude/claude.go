// Package claude implements chat.Completer over Anthropic's Messages API.
package claude

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/arrg-project/arrg/chat"
)

const (
	AnthropicURL = "https://api.anthropic.com/v1"

	defaultMaxTokens = 8192
)

// Client is a chat.Completer backed by the Anthropic SDK.
type Client struct {
	anthropicClient anthropic.Client
	modelName       string
	maxTokens       int
	baseURL         string
}

var _ chat.Completer = (*Client)(nil)

type Option func(*Client)

func WithModel(modelName string) Option {
	return func(c *Client) {
		c.modelName = strings.TrimSpace(modelName)
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithMaxTokens sets the completion token limit. Non-positive values keep the
// default.
func WithMaxTokens(maxTokens int) Option {
	return func(c *Client) {
		if maxTokens > 0 {
			c.maxTokens = maxTokens
		}
	}
}

// NewClient returns a completer for Claude's Messages API.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	c := &Client{
		maxTokens: defaultMaxTokens,
		baseURL:   AnthropicURL,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.modelName == "" {
		return nil, fmt.Errorf("WithModel is a required option")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required for Claude API")
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if c.baseURL != "" && c.baseURL != AnthropicURL {
		clientOpts = append(clientOpts, option.WithBaseURL(c.baseURL))
	}

	c.anthropicClient = anthropic.NewClient(clientOpts...)
	return c, nil
}

// Complete sends the conversation to the Messages API in a single
// non-streaming call and translates the reply back into the neutral shape.
func (c *Client) Complete(ctx context.Context, req chat.Request) (chat.Response, error) {
	msgs, err := messagesToClaude(req.Messages)
	if err != nil {
		return chat.Response{}, fmt.Errorf("claude: %w", err)
	}

	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.modelName),
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System},
		}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if len(req.Tools) > 0 {
		tools, err := toolsToClaude(req.Tools)
		if err != nil {
			return chat.Response{}, fmt.Errorf("claude: %w", err)
		}
		params.Tools = tools
	}

	msg, err := c.anthropicClient.Messages.New(ctx, params)
	if err != nil {
		return chat.Response{}, fmt.Errorf("claude: messages.new: %w", err)
	}

	return responseFromClaude(msg), nil
}

// responseFromClaude flattens a Messages API reply: text blocks concatenated,
// tool_use blocks in the order the model emitted them.
func responseFromClaude(msg *anthropic.Message) chat.Response {
	var resp chat.Response
	var texts []string

	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				texts = append(texts, block.Text)
			}
		case "tool_use":
			resp.ToolCalls = append(resp.ToolCalls, chat.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: block.Input,
			})
		}
	}

	resp.Text = strings.Join(texts, "\n")
	return resp
}
