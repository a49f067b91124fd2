// Package gemini implements chat.Completer over Google's Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/arrg-project/arrg/chat"
)

// Client is a chat.Completer backed by the Google genai SDK.
type Client struct {
	genaiClient *genai.Client
	modelName   string
	maxTokens   int
	baseURL     string
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

// WithMaxTokens sets the completion token limit. Non-positive values leave it
// to the API default.
func WithMaxTokens(maxTokens int) Option {
	return func(c *Client) {
		if maxTokens > 0 {
			c.maxTokens = maxTokens
		}
	}
}

// NewClient returns a completer for the Gemini API.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	c := &Client{}

	for _, opt := range opts {
		opt(c)
	}

	if c.modelName == "" {
		return nil, fmt.Errorf("WithModel is a required option")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required for Gemini API")
	}

	ctx := context.Background()
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	c.genaiClient = genaiClient
	return c, nil
}

// Complete sends the conversation in a single non-streaming call and
// translates the first candidate back into the neutral shape.
func (c *Client) Complete(ctx context.Context, req chat.Request) (chat.Response, error) {
	contents, err := messagesToGemini(req.Messages)
	if err != nil {
		return chat.Response{}, fmt.Errorf("gemini: %w", err)
	}

	config := &genai.GenerateContentConfig{}
	if c.baseURL != "" {
		config.HTTPOptions = &genai.HTTPOptions{
			BaseURL: c.baseURL,
		}
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	if req.Temperature != nil {
		temp := float32(*req.Temperature)
		config.Temperature = &temp
	}

	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	if maxTokens > 0 {
		config.MaxOutputTokens = int32(maxTokens)
	}

	if len(req.Tools) > 0 {
		functionDeclarations := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, spec := range req.Tools {
			funcDecl, err := specToFunctionDeclaration(spec)
			if err != nil {
				return chat.Response{}, fmt.Errorf("gemini: failed to convert tool: %w", err)
			}
			functionDeclarations = append(functionDeclarations, funcDecl)
		}
		// A single Tool carries all function declarations.
		config.Tools = []*genai.Tool{{
			FunctionDeclarations: functionDeclarations,
		}}
	}

	result, err := c.genaiClient.Models.GenerateContent(ctx, c.modelName, contents, config)
	if err != nil {
		return chat.Response{}, fmt.Errorf("gemini: generate content: %w", err)
	}

	return responseFromGemini(result)
}

// responseFromGemini flattens the first candidate's parts into text and tool
// calls.
func responseFromGemini(result *genai.GenerateContentResponse) (chat.Response, error) {
	var resp chat.Response
	if result == nil || len(result.Candidates) == 0 {
		return resp, fmt.Errorf("gemini: response has no candidates")
	}

	candidate := result.Candidates[0]
	if candidate.Content == nil {
		return resp, nil
	}

	var texts []string
	for _, part := range candidate.Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
		if part.FunctionCall != nil {
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				return chat.Response{}, fmt.Errorf("gemini: encoding function call args: %w", err)
			}
			id := part.FunctionCall.ID
			if id == "" {
				id = generateFunctionCallID()
			}
			resp.ToolCalls = append(resp.ToolCalls, chat.ToolCall{
				ID:        id,
				Name:      part.FunctionCall.Name,
				Arguments: args,
			})
		}
	}

	resp.Text = strings.Join(texts, "\n")
	return resp, nil
}
