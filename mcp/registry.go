package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/arrg-project/arrg/chat"
)

// Executor implements a tool. It receives the arguments named by the tool's
// inputSchema and returns content blocks, synchronously. An error return (or
// a panic) becomes an IsError tool result; it never crosses the registry
// boundary as a Go error.
type Executor interface {
	Execute(ctx context.Context, args map[string]any) ([]ContentBlock, error)
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, args map[string]any) ([]ContentBlock, error)

func (f ExecutorFunc) Execute(ctx context.Context, args map[string]any) ([]ContentBlock, error) {
	return f(ctx, args)
}

type registeredTool struct {
	definition ToolDefinition
	executor   Executor
	required   []string // required argument names from the inputSchema
}

// Registry holds a collection of tools that can be exposed via an MCP server,
// called in-process, or bridged to an LLM's function-calling schema.
// It is safe for concurrent use; tools can be registered while a server is
// running and the list output always reflects the latest registration state.
type Registry struct {
	mu    sync.Mutex
	tools map[string]registeredTool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]registeredTool),
		order: make([]string, 0),
	}
}

// Register adds a tool to the registry. The definition is validated here,
// at registration time: the name must be non-empty and the inputSchema must
// parse as a JSON Schema object. If a tool with the same name already exists
// it is replaced (last write wins).
func (r *Registry) Register(definition ToolDefinition, executor Executor) error {
	if definition.Name == "" {
		return fmt.Errorf("register tool: missing tool name")
	}
	if executor == nil {
		return fmt.Errorf("register tool %q: nil executor", definition.Name)
	}
	required, err := parseRequiredArgs(definition.InputSchema)
	if err != nil {
		return fmt.Errorf("register tool %q: %w", definition.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[definition.Name]; !exists {
		r.order = append(r.order, definition.Name)
	}

	r.tools[definition.Name] = registeredTool{
		definition: definition,
		executor:   executor,
		required:   required,
	}
	return nil
}

// Unregister removes a tool by name and reports whether one existed.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return false
	}
	delete(r.tools, name)
	for i, toolName := range r.order {
		if toolName == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get retrieves a tool definition by name.
func (r *Registry) Get(name string) (ToolDefinition, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tool, ok := r.tools[name]
	return tool.definition, ok
}

// Definitions returns the tool definitions for all registered tools in the
// order they were first registered. This is what tools/list serves.
func (r *Registry) Definitions() []ToolDefinition {
	r.mu.Lock()
	defer r.mu.Unlock()

	defs := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		if tool, ok := r.tools[name]; ok {
			defs = append(defs, tool.definition)
		}
	}
	return defs
}

// Call executes a tool call. It never returns a Go error: unknown tools,
// argument mismatches, executor failures, and executor panics all become
// IsError results carrying a diagnostic text block, because the calling LLM
// needs to see the failure text to decide whether to retry or change
// approach.
func (r *Registry) Call(ctx context.Context, call ToolCall) ToolResult {
	r.mu.Lock()
	tool, ok := r.tools[call.Name]
	r.mu.Unlock()

	if !ok {
		return errorResult(call, fmt.Sprintf("tool %q not found", call.Name))
	}

	if missing := missingArgs(tool.required, call.Arguments); len(missing) > 0 {
		return errorResult(call, fmt.Sprintf("invalid arguments for tool %q: missing required %v", call.Name, missing))
	}

	content, err := safeExecute(ctx, tool.executor, call.Arguments)
	if err != nil {
		return errorResult(call, fmt.Sprintf("execution error: %s", err))
	}
	if len(content) == 0 {
		content = []ContentBlock{TextBlock("(empty result)")}
	}

	return ToolResult{
		Content:  content,
		ToolName: call.Name,
		CallID:   call.CallID,
	}
}

// ListTools and CallTool adapt the registry to the same shape a remote
// Client exposes, so the agent loop can consume either interchangeably.
// The error is always nil for a local registry.

func (r *Registry) ListTools(_ context.Context) ([]ToolDefinition, error) {
	return r.Definitions(), nil
}

func (r *Registry) CallTool(ctx context.Context, call ToolCall) (ToolResult, error) {
	return r.Call(ctx, call), nil
}

// ToolSpecs projects the catalog into the provider-neutral bridge shape the
// LLM layer consumes. Provider packages convert these specs into their own
// function-calling dialect; swapping the target dialect never touches the
// catalog itself.
func (r *Registry) ToolSpecs() []chat.ToolSpec {
	return ToolSpecs(r.Definitions())
}

// ToolSpecs converts tool definitions to the provider-neutral bridge shape.
func ToolSpecs(defs []ToolDefinition) []chat.ToolSpec {
	specs := make([]chat.ToolSpec, len(defs))
	for i, def := range defs {
		specs[i] = chat.ToolSpec{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		}
	}
	return specs
}

func safeExecute(ctx context.Context, executor Executor, args map[string]any) (content []ContentBlock, err error) {
	defer func() {
		if r := recover(); r != nil {
			content = nil
			err = fmt.Errorf("tool panic: %v", r)
		}
	}()
	return executor.Execute(ctx, args)
}

func errorResult(call ToolCall, message string) ToolResult {
	return ToolResult{
		Content:  []ContentBlock{TextBlock(message)},
		IsError:  true,
		ToolName: call.Name,
		CallID:   call.CallID,
	}
}

func parseRequiredArgs(inputSchema json.RawMessage) ([]string, error) {
	if len(inputSchema) == 0 {
		return nil, fmt.Errorf("missing input schema")
	}
	var schema struct {
		Type     string   `json:"type"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(inputSchema, &schema); err != nil {
		return nil, fmt.Errorf("parse input schema: %w", err)
	}
	if schema.Type != "" && schema.Type != "object" {
		return nil, fmt.Errorf("input schema must describe an object, got %q", schema.Type)
	}
	return schema.Required, nil
}

func missingArgs(required []string, args map[string]any) []string {
	var missing []string
	for _, name := range required {
		if _, ok := args[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}
