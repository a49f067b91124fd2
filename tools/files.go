package tools

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/arrg-project/arrg/mcp"
	"github.com/arrg-project/arrg/schema"
)

// cleanPath normalizes a tool-supplied path relative to the context
// filesystem's root. Traversal is ultimately prevented by the fs.FS the
// caller installs, but paths are still cleaned here.
func cleanPath(p string) string {
	cleaned := path.Clean(p)
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "."
	}
	return cleaned
}

// FileRead returns the file_read tool, which reads a file from the
// filesystem carried in the call context.
func FileRead() (mcp.ToolDefinition, mcp.Executor) {
	definition := mcp.ToolDefinition{
		Name:        toolName("FileRead"),
		Description: "Read the contents of a file",
		InputSchema: inputSchema(&schema.JSON{
			Properties: map[string]*schema.JSON{
				"file_path": {
					Type:        schema.String,
					Description: "Path of the file to read",
				},
			},
			Required: []string{"file_path"},
		}),
	}

	executor := mcp.ExecutorFunc(func(ctx context.Context, args map[string]any) ([]mcp.ContentBlock, error) {
		fileSystem, err := GetFS(ctx)
		if err != nil {
			return nil, err
		}

		filePath := cleanPath(stringArg(args, "file_path"))
		file, err := fileSystem.Open(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open file %s: %w", filePath, err)
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
		}

		return []mcp.ContentBlock{mcp.TextBlock(string(content))}, nil
	})

	return definition, executor
}

// FileWrite returns the file_write tool, which writes a file to the
// filesystem carried in the call context. The filesystem must support
// writing; github.com/psanford/memfs.FS does.
func FileWrite() (mcp.ToolDefinition, mcp.Executor) {
	definition := mcp.ToolDefinition{
		Name:        toolName("FileWrite"),
		Description: "Write content to a file",
		InputSchema: inputSchema(&schema.JSON{
			Properties: map[string]*schema.JSON{
				"file_path": {
					Type:        schema.String,
					Description: "Path of the file to write",
				},
				"content": {
					Type:        schema.String,
					Description: "Content to write",
				},
			},
			Required: []string{"file_path", "content"},
		}),
	}

	executor := mcp.ExecutorFunc(func(ctx context.Context, args map[string]any) ([]mcp.ContentBlock, error) {
		fileSystem, err := GetFS(ctx)
		if err != nil {
			return nil, err
		}

		filePath := cleanPath(stringArg(args, "file_path"))
		content := stringArg(args, "content")

		if dir := path.Dir(filePath); dir != "." && dir != "/" {
			type mkdirAller interface {
				MkdirAll(path string, perm os.FileMode) error
			}
			if f, ok := fileSystem.(mkdirAller); ok {
				if err := f.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
				}
			}
		}

		type writer interface {
			WriteFile(path string, data []byte, perm os.FileMode) error
		}
		f, ok := fileSystem.(writer)
		if !ok {
			return nil, fmt.Errorf("read-only filesystem")
		}
		if err := f.WriteFile(filePath, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write file %s: %w", filePath, err)
		}

		return textResult("wrote %d bytes to %s", len(content), filePath), nil
	})

	return definition, executor
}
