package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/arrg-project/arrg/mcp"
	"github.com/arrg-project/arrg/schema"
)

const defaultMaxResults = 5

// SearchResult is one hit from a search backend.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// Searcher is the backend behind web_search and fact_check. The default is a
// deterministic canned backend; production deployments inject a real one.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// SearcherFunc adapts a plain function to the Searcher interface.
type SearcherFunc func(ctx context.Context, query string, maxResults int) ([]SearchResult, error)

func (f SearcherFunc) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	return f(ctx, query, maxResults)
}

// cannedSearcher fabricates stable placeholder results so the tool pipeline
// can run end to end without network access.
type cannedSearcher struct{}

func (cannedSearcher) Search(_ context.Context, query string, maxResults int) ([]SearchResult, error) {
	if maxResults <= 0 || maxResults > defaultMaxResults {
		maxResults = defaultMaxResults
	}

	results := make([]SearchResult, 0, maxResults)
	for i := 1; i <= maxResults; i++ {
		results = append(results, SearchResult{
			Title:   fmt.Sprintf("Result %d for %q", i, query),
			URL:     fmt.Sprintf("https://example.com/search/%s/%d", url.PathEscape(query), i),
			Snippet: fmt.Sprintf("Placeholder summary %d covering %q.", i, query),
		})
	}
	return results, nil
}

// WebSearch returns the web_search tool.
func WebSearch(searcher Searcher) (mcp.ToolDefinition, mcp.Executor) {
	definition := mcp.ToolDefinition{
		Name:        toolName("WebSearch"),
		Description: "Search the web for information",
		InputSchema: inputSchema(&schema.JSON{
			Properties: map[string]*schema.JSON{
				"query": {
					Type:        schema.String,
					Description: "Search query",
				},
				"max_results": {
					Type:        schema.Integer,
					Description: "Maximum number of results",
					Default:     defaultMaxResults,
				},
			},
			Required: []string{"query"},
		}),
	}

	executor := mcp.ExecutorFunc(func(ctx context.Context, args map[string]any) ([]mcp.ContentBlock, error) {
		query := stringArg(args, "query")
		maxResults := intArg(args, "max_results", defaultMaxResults)

		results, err := searcher.Search(ctx, query, maxResults)
		if err != nil {
			return nil, fmt.Errorf("search failed: %w", err)
		}
		if len(results) == 0 {
			return textResult("no results for %q", query), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Search results for %q:\n", query)
		for i, result := range results {
			fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n", i+1, result.Title, result.URL, result.Snippet)
		}
		return []mcp.ContentBlock{mcp.TextBlock(strings.TrimRight(b.String(), "\n"))}, nil
	})

	return definition, executor
}

// FactCheck returns the fact_check tool. It searches for the claim and
// reports what the backend and any caller-provided sources say about it.
func FactCheck(searcher Searcher) (mcp.ToolDefinition, mcp.Executor) {
	definition := mcp.ToolDefinition{
		Name:        toolName("FactCheck"),
		Description: "Verify a claim against available sources",
		InputSchema: inputSchema(&schema.JSON{
			Properties: map[string]*schema.JSON{
				"claim": {
					Type:        schema.String,
					Description: "Claim to verify",
				},
				"sources": {
					Type:        schema.Array,
					Description: "Optional sources to check against",
					Items:       &schema.JSON{Type: schema.String},
				},
			},
			Required: []string{"claim"},
		}),
	}

	executor := mcp.ExecutorFunc(func(ctx context.Context, args map[string]any) ([]mcp.ContentBlock, error) {
		claim := stringArg(args, "claim")

		var sources []string
		if raw, ok := args["sources"].([]any); ok {
			for _, entry := range raw {
				if source, ok := entry.(string); ok {
					sources = append(sources, source)
				}
			}
		}

		results, err := searcher.Search(ctx, claim, defaultMaxResults)
		if err != nil {
			return nil, fmt.Errorf("verification search failed: %w", err)
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Claim: %s\n", claim)
		if len(sources) > 0 {
			fmt.Fprintf(&b, "Provided sources: %s\n", strings.Join(sources, ", "))
		}
		if len(results) == 0 {
			b.WriteString("Assessment: no corroborating results found")
		} else {
			fmt.Fprintf(&b, "Assessment: %d result(s) reference this claim\n", len(results))
			for i, result := range results {
				fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, result.Title, result.URL)
			}
		}
		return []mcp.ContentBlock{mcp.TextBlock(strings.TrimRight(b.String(), "\n"))}, nil
	})

	return definition, executor
}
