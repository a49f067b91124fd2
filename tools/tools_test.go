package tools

import (
	"context"
	"io/fs"
	"testing"

	"github.com/psanford/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrg-project/arrg/mcp"
)

func execute(t *testing.T, executor mcp.Executor, ctx context.Context, args map[string]any) string {
	t.Helper()

	content, err := executor.Execute(ctx, args)
	require.NoError(t, err)
	result := mcp.ToolResult{Content: content}
	return result.Text()
}

func fsContext(t *testing.T) (context.Context, *memfs.FS) {
	t.Helper()

	rootFS := memfs.New()
	return WithFS(t.Context(), rootFS), rootFS
}

func TestRegisterBuiltins(t *testing.T) {
	registry := mcp.NewRegistry()
	require.NoError(t, RegisterBuiltins(registry))

	defs := registry.Definitions()
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	assert.Equal(t, []string{
		"web_search", "file_read", "file_write", "analyze_data", "fact_check", "system_info",
	}, names)

	for _, def := range defs {
		assert.NotEmpty(t, def.Description, def.Name)
		assert.NotEmpty(t, def.InputSchema, def.Name)
	}
}

func TestFileReadAndWrite(t *testing.T) {
	ctx, _ := fsContext(t)

	_, write := FileWrite()
	out := execute(t, write, ctx, map[string]any{
		"file_path": "reports/draft.md",
		"content":   "# Draft",
	})
	assert.Contains(t, out, "reports/draft.md")

	_, read := FileRead()
	out = execute(t, read, ctx, map[string]any{"file_path": "reports/draft.md"})
	assert.Equal(t, "# Draft", out)
}

func TestFileReadMissingFile(t *testing.T) {
	ctx, _ := fsContext(t)

	_, read := FileRead()
	_, err := read.Execute(ctx, map[string]any{"file_path": "nope.txt"})
	require.Error(t, err)
}

func TestFileToolsRequireContextFS(t *testing.T) {
	_, read := FileRead()
	_, err := read.Execute(t.Context(), map[string]any{"file_path": "a.txt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no filesystem")

	_, write := FileWrite()
	_, err = write.Execute(t.Context(), map[string]any{"file_path": "a.txt", "content": "x"})
	require.Error(t, err)
}

func TestFileWritePathIsCleaned(t *testing.T) {
	ctx, rootFS := fsContext(t)

	_, write := FileWrite()
	execute(t, write, ctx, map[string]any{
		"file_path": "/notes/../notes/today.txt",
		"content":   "clean",
	})

	data, err := fs.ReadFile(rootFS, "notes/today.txt")
	require.NoError(t, err)
	assert.Equal(t, "clean", string(data))
}

func TestWebSearchCannedResults(t *testing.T) {
	_, search := WebSearch(cannedSearcher{})

	out := execute(t, search, t.Context(), map[string]any{
		"query":       "quarterly revenue",
		"max_results": float64(2),
	})
	assert.Contains(t, out, `Search results for "quarterly revenue"`)
	assert.Contains(t, out, "Result 1")
	assert.Contains(t, out, "Result 2")
	assert.NotContains(t, out, "Result 3")
}

func TestWebSearchDefaultsMaxResults(t *testing.T) {
	_, search := WebSearch(cannedSearcher{})

	out := execute(t, search, t.Context(), map[string]any{"query": "go"})
	assert.Contains(t, out, "Result 5")
}

func TestWebSearchInjectedBackend(t *testing.T) {
	backend := SearcherFunc(func(_ context.Context, query string, _ int) ([]SearchResult, error) {
		return []SearchResult{{Title: "hit for " + query, URL: "https://real.example"}}, nil
	})
	_, search := WebSearch(backend)

	out := execute(t, search, t.Context(), map[string]any{"query": "abc"})
	assert.Contains(t, out, "hit for abc")
}

func TestFactCheck(t *testing.T) {
	_, check := FactCheck(cannedSearcher{})

	out := execute(t, check, t.Context(), map[string]any{
		"claim":   "revenue grew 10%",
		"sources": []any{"10-K filing", "press release"},
	})
	assert.Contains(t, out, "Claim: revenue grew 10%")
	assert.Contains(t, out, "10-K filing, press release")
	assert.Contains(t, out, "result(s) reference this claim")
}

func TestAnalyzeDataSummary(t *testing.T) {
	_, analyze := AnalyzeData()

	out := execute(t, analyze, t.Context(), map[string]any{
		"data": "One two three. Four five!",
	})
	assert.Contains(t, out, "5 words")
	assert.Contains(t, out, "2 sentences")
}

func TestAnalyzeDataStatistics(t *testing.T) {
	_, analyze := AnalyzeData()

	out := execute(t, analyze, t.Context(), map[string]any{
		"data":          "the cat and the dog and the bird",
		"analysis_type": "statistics",
	})
	assert.Contains(t, out, "8 words, 5 unique")
	assert.Contains(t, out, "the(3)")
	assert.Contains(t, out, "and(2)")
}

func TestAnalyzeDataPatterns(t *testing.T) {
	_, analyze := AnalyzeData()

	out := execute(t, analyze, t.Context(), map[string]any{
		"data":          "alpha beta alpha milestones",
		"analysis_type": "patterns",
	})
	assert.Contains(t, out, "1 repeated words (alpha)")
	assert.Contains(t, out, `longest word "milestones"`)
}

func TestAnalyzeDataSentiment(t *testing.T) {
	_, analyze := AnalyzeData()

	out := execute(t, analyze, t.Context(), map[string]any{
		"data":          "great growth and strong gains despite one problem",
		"analysis_type": "sentiment",
	})
	assert.Contains(t, out, "positive")

	out = execute(t, analyze, t.Context(), map[string]any{
		"data":          "terrible decline and heavy loss",
		"analysis_type": "sentiment",
	})
	assert.Contains(t, out, "negative")
}

func TestAnalyzeDataUnknownType(t *testing.T) {
	_, analyze := AnalyzeData()

	_, err := analyze.Execute(t.Context(), map[string]any{
		"data":          "x",
		"analysis_type": "vibes",
	})
	require.Error(t, err)
}

func TestSystemInfo(t *testing.T) {
	_, info := SystemInfo()

	out := execute(t, info, t.Context(), map[string]any{})
	assert.Contains(t, out, "OS: ")
	assert.Contains(t, out, "Logical CPUs")
	assert.Contains(t, out, "Memory:")
}
