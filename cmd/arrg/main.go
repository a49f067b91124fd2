// Command arrg runs a tool-using agent over the built-in tool set (or a
// remote MCP server) and prints the final answer.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/arrg-project/arrg/agent"
	"github.com/arrg-project/arrg/llm"
	"github.com/arrg-project/arrg/mcp"
	"github.com/arrg-project/arrg/persistence"
	"github.com/arrg-project/arrg/persistence/sqlitestore"
	"github.com/arrg-project/arrg/tools"
)

func main() {
	if err := run(parseFlags(os.Args[1:]), os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// Config holds the application configuration
type Config struct {
	Model        string
	APIKey       string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
	MaxRounds    int
	Server       string
	DBPath       string
	Prompt       string
}

func parseFlags(args []string) *Config {
	var config Config
	fs := flag.NewFlagSet("arrg", flag.ContinueOnError)

	fs.StringVar(&config.Model, "model", "claude-sonnet-4-5", "Model to use (e.g., gpt-4o, claude-sonnet-4-5, gemini-2.5-pro)")
	fs.StringVar(&config.APIKey, "api-key", "", "API key (defaults to environment variable based on provider)")
	fs.Float64Var(&config.Temperature, "temperature", -1, "Temperature for response generation (0.0-1.0)")
	fs.IntVar(&config.MaxTokens, "max-tokens", 0, "Maximum tokens in response (0 for default)")
	fs.StringVar(&config.SystemPrompt, "system", "You are a research assistant that uses tools to ground its answers.", "System prompt")
	fs.IntVar(&config.MaxRounds, "max-rounds", 5, "Maximum tool-calling rounds before forcing an answer")
	fs.StringVar(&config.Server, "server", "", "Run tools via an external MCP server command instead of in-process (e.g. 'arrg-mcp-server -root .')")
	fs.StringVar(&config.DBPath, "db", "", "SQLite path for transcript persistence (empty for none)")
	_ = fs.Parse(args)

	config.Prompt = strings.Join(fs.Args(), " ")
	return &config
}

func run(config *Config, output io.Writer) error {
	if strings.TrimSpace(config.Prompt) == "" {
		return fmt.Errorf("usage: arrg [flags] <prompt>")
	}

	llmConfig := &llm.Config{
		Model:     config.Model,
		APIKey:    config.APIKey,
		MaxTokens: config.MaxTokens,
	}
	if config.Temperature >= 0 {
		llmConfig.Temperature = &config.Temperature
	}

	completer, err := llm.NewCompleter(llmConfig)
	if err != nil {
		return fmt.Errorf("failed to create completer: %w", err)
	}

	ctx := context.Background()

	var source agent.ToolSource
	if config.Server != "" {
		client, err := mcp.NewClient(strings.Fields(config.Server))
		if err != nil {
			return fmt.Errorf("failed to create MCP client: %w", err)
		}
		if _, err := client.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to MCP server: %w", err)
		}
		defer client.Close()
		source = client
	} else {
		registry := mcp.NewRegistry()
		if err := tools.RegisterBuiltins(registry); err != nil {
			return fmt.Errorf("failed to register builtin tools: %w", err)
		}

		root, err := os.OpenRoot(".")
		if err != nil {
			return fmt.Errorf("failed to open root directory: %w", err)
		}
		defer root.Close()
		ctx = tools.WithFS(ctx, tools.NewRootFS(root))

		source = registry
	}

	opts := []agent.Option{agent.WithMaxRounds(config.MaxRounds)}
	if config.DBPath != "" {
		var store persistence.Store
		store, err := sqlitestore.New(config.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open transcript store: %w", err)
		}
		defer store.Close()
		opts = append(opts, agent.WithStore(store))
	}

	loop, err := agent.NewLoop(completer, source, opts...)
	if err != nil {
		return fmt.Errorf("failed to create loop: %w", err)
	}

	result, err := loop.Run(ctx, config.SystemPrompt, config.Prompt)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	fmt.Fprintln(output, result.Text)
	fmt.Fprintf(os.Stderr, "(%d rounds, %d tool calls, session %s)\n",
		result.Rounds, result.ToolCalls, loop.SessionID())
	return nil
}
