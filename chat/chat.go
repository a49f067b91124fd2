// Package chat defines the conversation message model shared by the MCP tool
// layer, the agentic loop, and the LLM provider bridges.
package chat

import (
	"context"
	"encoding/json"
	"strings"
)

// Role represents who a message came from.
type Role string

const (
	// UserRole identifies messages from the user.
	UserRole Role = "user"
	// AssistantRole identifies messages from the LLM.
	AssistantRole Role = "assistant"
	// ToolRole identifies messages originating from tool executions.
	ToolRole Role = "tool"
)

// ToolCall represents a request from the LLM to invoke a tool.
type ToolCall struct {
	// ID is a unique identifier for this tool call, echoed back on the
	// corresponding ToolResult.
	ID string `json:"id"`
	// Name is the name of the tool to invoke.
	Name string `json:"name"`
	// Arguments contains the JSON-encoded arguments for the tool.
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult represents the result of executing a tool.
type ToolResult struct {
	// ToolCallID matches the ID from the corresponding ToolCall.
	ToolCallID string `json:"tool_call_id"`
	// Name is the tool name associated with this result.
	Name string `json:"name"`
	// Content is the flattened text output of the tool execution.
	Content string `json:"content"`
	// Error holds the failure text if the tool execution failed.
	Error string `json:"error,omitzero"`
}

// Content represents a single piece of content within a message.
// It uses a union-like structure where only one field should be set.
type Content struct {
	// Text content (most common case)
	Text string `json:"text,omitzero"`

	// Tool-related content
	ToolCall   *ToolCall   `json:"tool_call,omitzero"`
	ToolResult *ToolResult `json:"tool_result,omitzero"`
}

// Message represents a message to or from an LLM. The conversation a loop
// builds is strictly append-only: messages are added, never edited in place.
type Message struct {
	Role     Role      `json:"role,omitzero"`
	Contents []Content `json:"contents,omitzero"`
}

// ToolSpec is a provider-neutral tool description handed to a Completer.
// It is the bridge shape between the MCP catalog and whatever function-calling
// dialect the active provider expects; each provider package converts it.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitzero"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Request is a single completion request: the full conversation so far plus
// the tools the model may call. A nil Tools slice disables tool use.
type Request struct {
	System      string
	Messages    []Message
	Tools       []ToolSpec
	MaxTokens   int
	Temperature *float64
}

// Response is what a Completer returns: the model's text, and any tool calls
// it requested this round (in the order the model listed them).
type Response struct {
	Text      string
	ToolCalls []ToolCall
}

// Completer is the narrow interface to an LLM completion service. Provider
// packages (llm/claude, llm/openai, llm/gemini) implement it over their
// vendor SDKs; tests implement it with scripted fakes.
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Helper functions for creating messages

// TextMessage creates a message with text content.
func TextMessage(role Role, text string) Message {
	return Message{
		Role: role,
		Contents: []Content{
			{Text: text},
		},
	}
}

// UserMessage creates a user message with text content.
func UserMessage(text string) Message {
	return TextMessage(UserRole, text)
}

// AssistantMessage creates an assistant message with text content.
func AssistantMessage(text string) Message {
	return TextMessage(AssistantRole, text)
}

// Builder pattern methods for complex messages

// AddText adds text content to the message.
func (m *Message) AddText(text string) *Message {
	m.Contents = append(m.Contents, Content{Text: text})
	return m
}

// AddToolCall adds a tool call to the message.
func (m *Message) AddToolCall(tc ToolCall) *Message {
	m.Contents = append(m.Contents, Content{ToolCall: &tc})
	return m
}

// AddToolResult adds a tool result to the message.
func (m *Message) AddToolResult(tr ToolResult) *Message {
	m.Contents = append(m.Contents, Content{ToolResult: &tr})
	return m
}

// GetText returns all text content concatenated with newlines.
func (m Message) GetText() string {
	var texts []string
	for _, c := range m.Contents {
		if c.Text != "" {
			texts = append(texts, c.Text)
		}
	}
	if len(texts) == 0 {
		return ""
	}
	if len(texts) == 1 {
		return texts[0]
	}
	return strings.Join(texts, "\n")
}

// GetToolCalls returns all tool calls in the message.
func (m Message) GetToolCalls() []ToolCall {
	var calls []ToolCall
	for _, c := range m.Contents {
		if c.ToolCall != nil {
			calls = append(calls, *c.ToolCall)
		}
	}
	return calls
}

// GetToolResults returns all tool results in the message.
func (m Message) GetToolResults() []ToolResult {
	var results []ToolResult
	for _, c := range m.Contents {
		if c.ToolResult != nil {
			results = append(results, *c.ToolResult)
		}
	}
	return results
}

// IsEmpty returns true if the message has no content.
func (m Message) IsEmpty() bool {
	return len(m.Contents) == 0
}

// HasToolCalls returns true if the message contains any tool calls.
func (m Message) HasToolCalls() bool {
	for _, c := range m.Contents {
		if c.ToolCall != nil {
			return true
		}
	}
	return false
}

// HasToolResults returns true if the message contains any tool results.
func (m Message) HasToolResults() bool {
	for _, c := range m.Contents {
		if c.ToolResult != nil {
			return true
		}
	}
	return false
}
