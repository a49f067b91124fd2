// Package agent implements the tool-calling loop that drives an LLM through
// rounds of completion and tool execution until it produces a final answer.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arrg-project/arrg/chat"
	"github.com/arrg-project/arrg/internal/logging"
	"github.com/arrg-project/arrg/mcp"
	"github.com/arrg-project/arrg/persistence"
)

// defaultMaxRounds bounds how many completion rounds may request tools before
// the loop forces a final, tool-free answer.
const defaultMaxRounds = 5

// ToolSource supplies the tool catalog and executes calls. Both a local
// *mcp.Registry and a remote *mcp.Client satisfy it, so a loop runs the same
// whether its tools live in-process or behind a spawned server.
type ToolSource interface {
	ListTools(ctx context.Context) ([]mcp.ToolDefinition, error)
	CallTool(ctx context.Context, call mcp.ToolCall) (mcp.ToolResult, error)
}

// Result is the outcome of a completed run.
type Result struct {
	// Text is the final assistant answer.
	Text string
	// Messages is the full transcript, including the initial user prompt,
	// every assistant turn, and every tool result.
	Messages []chat.Message
	// Rounds is the number of completion calls made.
	Rounds int
	// ToolCalls is the total number of tool executions across all rounds.
	ToolCalls int
}

// Option configures a Loop.
type Option func(*Loop)

// WithMaxRounds sets how many rounds may request tools before the loop stops
// offering them. Values below 1 are ignored.
func WithMaxRounds(n int) Option {
	return func(loop *Loop) {
		if n >= 1 {
			loop.maxRounds = n
		}
	}
}

// WithLogger sets the logger used by the loop.
func WithLogger(logger *slog.Logger) Option {
	return func(loop *Loop) {
		loop.logger = logger
	}
}

// WithStore records every transcript message into the given store as the run
// progresses. Store failures are logged and do not abort the run.
func WithStore(store persistence.Store) Option {
	return func(loop *Loop) {
		loop.store = store
	}
}

// WithSessionID sets the session id used for persisted records. Defaults to a
// random UUID per loop.
func WithSessionID(id string) Option {
	return func(loop *Loop) {
		if id != "" {
			loop.sessionID = id
		}
	}
}

// Loop drives a Completer through bounded rounds of tool use.
type Loop struct {
	completer chat.Completer
	tools     ToolSource
	maxRounds int
	logger    *slog.Logger
	store     persistence.Store
	sessionID string
}

// NewLoop creates a loop over a completion backend and a tool source.
// A nil tools source is allowed and yields a plain, tool-free conversation.
func NewLoop(completer chat.Completer, tools ToolSource, opts ...Option) (*Loop, error) {
	if completer == nil {
		return nil, fmt.Errorf("new loop: completer is required")
	}

	loop := &Loop{
		completer: completer,
		tools:     tools,
		maxRounds: defaultMaxRounds,
		logger:    logging.Logger(),
		sessionID: uuid.New().String(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(loop)
		}
	}

	return loop, nil
}

// SessionID returns the id under which this loop persists its transcript.
func (l *Loop) SessionID() string {
	return l.sessionID
}

// Run executes the agentic loop for one user prompt.
//
// Each round sends the conversation so far, with the bridged tool catalog, to
// the completer. A response without tool calls ends the run with its text.
// Otherwise the assistant turn is appended, every requested call is executed
// in the order the model listed them, and one tool message per result is
// appended before the next round. When the round budget is exhausted, one
// final completion runs with tools withheld and its text is returned
// verbatim.
//
// Completion and transport failures abort the run with an error. Tool
// failures never do: they flow back to the model as "Error: "-prefixed result
// text.
func (l *Loop) Run(ctx context.Context, systemPrompt, prompt string) (Result, error) {
	specs, err := l.toolSpecs(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("run: listing tools: %w", err)
	}

	result := Result{
		Messages: []chat.Message{chat.UserMessage(prompt)},
	}
	l.record(result.Messages[0])

	for round := 0; round < l.maxRounds; round++ {
		resp, err := l.completer.Complete(ctx, chat.Request{
			System:   systemPrompt,
			Messages: result.Messages,
			Tools:    specs,
		})
		if err != nil {
			return Result{}, fmt.Errorf("run: completion round %d: %w", round+1, err)
		}
		result.Rounds++

		if len(resp.ToolCalls) == 0 {
			final := chat.AssistantMessage(resp.Text)
			result.Messages = append(result.Messages, final)
			l.record(final)
			result.Text = resp.Text
			return result, nil
		}

		l.logger.Debug("model requested tools",
			"round", round+1, "count", len(resp.ToolCalls))

		assistant := chat.Message{Role: chat.AssistantRole}
		if resp.Text != "" {
			assistant.AddText(resp.Text)
		}
		for _, call := range resp.ToolCalls {
			assistant.AddToolCall(call)
		}
		result.Messages = append(result.Messages, assistant)
		l.record(assistant)

		for _, call := range resp.ToolCalls {
			toolMsg, err := l.executeCall(ctx, call)
			if err != nil {
				return Result{}, fmt.Errorf("run: tool %q: %w", call.Name, err)
			}
			result.Messages = append(result.Messages, toolMsg)
			l.record(toolMsg)
			result.ToolCalls++
		}
	}

	// Out of rounds: one last completion with tools withheld so the model
	// must answer with what it has.
	l.logger.Info("tool round budget exhausted, forcing final answer",
		"rounds", l.maxRounds)
	resp, err := l.completer.Complete(ctx, chat.Request{
		System:   systemPrompt,
		Messages: result.Messages,
	})
	if err != nil {
		return Result{}, fmt.Errorf("run: final completion: %w", err)
	}
	result.Rounds++

	final := chat.AssistantMessage(resp.Text)
	result.Messages = append(result.Messages, final)
	l.record(final)
	result.Text = resp.Text
	return result, nil
}

// executeCall runs one tool call and wraps its outcome in a tool message.
// Only transport failures return an error; a tool that ran and failed is
// reported back to the model as message content.
func (l *Loop) executeCall(ctx context.Context, call chat.ToolCall) (chat.Message, error) {
	if l.tools == nil {
		return chat.Message{}, fmt.Errorf("no tool source configured")
	}

	toolResult := chat.ToolResult{
		ToolCallID: call.ID,
		Name:       call.Name,
	}

	args, err := decodeArguments(call.Arguments)
	if err != nil {
		// The model produced unusable argument JSON; tell it so.
		toolResult.Error = fmt.Sprintf("invalid tool arguments: %s", err)
		toolResult.Content = "Error: " + toolResult.Error
	} else {
		res, err := l.tools.CallTool(ctx, mcp.ToolCall{
			Name:      call.Name,
			Arguments: args,
			CallID:    call.ID,
		})
		if err != nil {
			return chat.Message{}, err
		}

		toolResult.Content = res.Text()
		if res.IsError {
			toolResult.Error = res.Text()
			toolResult.Content = "Error: " + toolResult.Content
		}
	}

	msg := chat.Message{Role: chat.ToolRole}
	msg.AddToolResult(toolResult)
	return msg, nil
}

func (l *Loop) toolSpecs(ctx context.Context) ([]chat.ToolSpec, error) {
	if l.tools == nil {
		return nil, nil
	}
	defs, err := l.tools.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	return mcp.ToolSpecs(defs), nil
}

func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// record persists one transcript message if a store is configured.
func (l *Loop) record(msg chat.Message) {
	if l.store == nil {
		return
	}

	content := msg.GetText()
	if results := msg.GetToolResults(); len(results) > 0 {
		content = results[0].Content
	}

	_, err := l.store.AddRecord(l.sessionID, persistence.Record{
		Role:      msg.Role,
		Content:   content,
		Timestamp: time.Now(),
	})
	if err != nil {
		l.logger.Warn("failed to persist transcript record",
			"session", l.sessionID, "err", err)
	}
}
