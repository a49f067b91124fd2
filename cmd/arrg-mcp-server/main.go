// Command arrg-mcp-server serves the built-in tool set over stdio as an MCP
// server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/arrg-project/arrg/mcp"
	"github.com/arrg-project/arrg/tools"
)

const serverVersion = "1.0.0"

func main() {
	if err := run(parseFlags(os.Args[1:])); err != nil {
		log.Fatal(err)
	}
}

// Config holds the server configuration
type Config struct {
	Name        string
	Root        string
	ToolTimeout time.Duration
}

func parseFlags(args []string) *Config {
	var config Config
	fs := flag.NewFlagSet("arrg-mcp-server", flag.ContinueOnError)

	fs.StringVar(&config.Name, "name", "arrg-mcp-server", "Server name reported during the handshake")
	fs.StringVar(&config.Root, "root", ".", "Directory the file tools operate on")
	fs.DurationVar(&config.ToolTimeout, "tool-timeout", 0, "Per-tool execution deadline (0 for none)")
	_ = fs.Parse(args)

	return &config
}

func run(config *Config) error {
	registry := mcp.NewRegistry()
	if err := tools.RegisterBuiltins(registry); err != nil {
		return fmt.Errorf("failed to register builtin tools: %w", err)
	}

	opts := []mcp.ServerOption{
		mcp.WithInstructions("Tools for research and report generation: search, files, analysis, and host info."),
	}
	if config.ToolTimeout > 0 {
		opts = append(opts, mcp.WithToolTimeout(config.ToolTimeout))
	}

	server, err := mcp.NewServer(registry, mcp.Implementation{
		Name:    config.Name,
		Version: serverVersion,
	}, opts...)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	root, err := os.OpenRoot(config.Root)
	if err != nil {
		return fmt.Errorf("failed to open root directory: %w", err)
	}
	defer root.Close()

	ctx := tools.WithFS(context.Background(), tools.NewRootFS(root))
	return server.Serve(ctx, os.Stdin, os.Stdout)
}
