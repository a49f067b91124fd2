// Package tools provides the built-in tool set: file access over an fs.FS
// carried in context, web search and fact checking behind an injectable
// backend, text analysis, and host system info.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"

	"github.com/iancoleman/strcase"

	"github.com/arrg-project/arrg/mcp"
	"github.com/arrg-project/arrg/schema"
)

// contextKey is a private type for context keys
type contextKey struct{}

// WithFS adds an fs.FS to the context for downstream tool calls.
func WithFS(ctx context.Context, f fs.FS) context.Context {
	return context.WithValue(ctx, contextKey{}, f)
}

// GetFS retrieves the filesystem from the context.
func GetFS(ctx context.Context) (fs.FS, error) {
	fileSystem, ok := ctx.Value(contextKey{}).(fs.FS)
	if !ok {
		return nil, fmt.Errorf("no filesystem found in context")
	}
	return fileSystem, nil
}

// toolName derives the wire name for a tool from its Go identifier, so the
// catalog stays consistently snake_cased.
func toolName(ident string) string {
	return strcase.ToSnake(ident)
}

// inputSchema serializes a schema value for a tool definition, defaulting the
// top level to an object as every tool takes named arguments.
func inputSchema(s *schema.JSON) json.RawMessage {
	if s.Type == nil {
		s.Type = schema.Object
	}
	data, err := json.Marshal(s)
	if err != nil {
		// Schemas are built from literals below; failing to marshal one is a
		// programming error.
		panic(fmt.Sprintf("marshaling tool schema: %v", err))
	}
	return data
}

type config struct {
	searcher Searcher
}

// Option configures the built-in tool set.
type Option func(*config)

// WithSearcher replaces the search backend used by web_search and fact_check.
func WithSearcher(searcher Searcher) Option {
	return func(c *config) {
		if searcher != nil {
			c.searcher = searcher
		}
	}
}

// RegisterBuiltins registers the full built-in tool set on a registry.
func RegisterBuiltins(registry *mcp.Registry, opts ...Option) error {
	cfg := config{
		searcher: cannedSearcher{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	type tool struct {
		definition mcp.ToolDefinition
		executor   mcp.Executor
	}

	builtins := []tool{}
	add := func(definition mcp.ToolDefinition, executor mcp.Executor) {
		builtins = append(builtins, tool{definition, executor})
	}

	add(WebSearch(cfg.searcher))
	add(FileRead())
	add(FileWrite())
	add(AnalyzeData())
	add(FactCheck(cfg.searcher))
	add(SystemInfo())

	for _, t := range builtins {
		if err := registry.Register(t.definition, t.executor); err != nil {
			return fmt.Errorf("registering builtin %q: %w", t.definition.Name, err)
		}
	}
	return nil
}

// stringArg extracts a string argument, tolerating absence.
func stringArg(args map[string]any, name string) string {
	value, _ := args[name].(string)
	return value
}

// intArg extracts an integer argument; JSON numbers arrive as float64.
func intArg(args map[string]any, name string, fallback int) int {
	switch v := args[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

func textResult(format string, a ...any) []mcp.ContentBlock {
	return []mcp.ContentBlock{mcp.TextBlock(fmt.Sprintf(format, a...))}
}
