package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/arrg-project/arrg/mcp"
	"github.com/arrg-project/arrg/schema"
)

// AnalyzeData returns the analyze_data tool, which computes text statistics
// over the supplied data.
func AnalyzeData() (mcp.ToolDefinition, mcp.Executor) {
	definition := mcp.ToolDefinition{
		Name:        toolName("AnalyzeData"),
		Description: "Analyze text data and extract insights",
		InputSchema: inputSchema(&schema.JSON{
			Properties: map[string]*schema.JSON{
				"data": {
					Type:        schema.String,
					Description: "Text data to analyze",
				},
				"analysis_type": {
					Type:        schema.String,
					Description: "Kind of analysis to perform",
					Enum:        []string{"summary", "patterns", "statistics", "sentiment"},
					Default:     "summary",
				},
			},
			Required: []string{"data"},
		}),
	}

	executor := mcp.ExecutorFunc(func(_ context.Context, args map[string]any) ([]mcp.ContentBlock, error) {
		data := stringArg(args, "data")
		analysisType := stringArg(args, "analysis_type")
		if analysisType == "" {
			analysisType = "summary"
		}

		var report string
		switch analysisType {
		case "summary":
			report = summarize(data)
		case "statistics":
			report = statistics(data)
		case "patterns":
			report = patterns(data)
		case "sentiment":
			report = sentiment(data)
		default:
			return nil, fmt.Errorf("unsupported analysis type %q", analysisType)
		}

		return []mcp.ContentBlock{mcp.TextBlock(report)}, nil
	})

	return definition, executor
}

func words(data string) []string {
	return strings.FieldsFunc(strings.ToLower(data), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func sentenceCount(data string) int {
	count := 0
	for _, r := range data {
		if r == '.' || r == '!' || r == '?' {
			count++
		}
	}
	if count == 0 && strings.TrimSpace(data) != "" {
		count = 1
	}
	return count
}

func summarize(data string) string {
	tokens := words(data)
	totalLen := 0
	for _, w := range tokens {
		totalLen += len(w)
	}
	avg := 0.0
	if len(tokens) > 0 {
		avg = float64(totalLen) / float64(len(tokens))
	}
	return fmt.Sprintf("Summary: %d characters, %d words, %d sentences, average word length %.1f",
		len(data), len(tokens), sentenceCount(data), avg)
}

func statistics(data string) string {
	tokens := words(data)
	freq := make(map[string]int)
	for _, w := range tokens {
		freq[w]++
	}

	type wordCount struct {
		word  string
		count int
	}
	counts := make([]wordCount, 0, len(freq))
	for w, c := range freq {
		counts = append(counts, wordCount{w, c})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].word < counts[j].word
	})

	var b strings.Builder
	fmt.Fprintf(&b, "Statistics: %d words, %d unique\n", len(tokens), len(freq))
	b.WriteString("Most frequent:")
	for i, wc := range counts {
		if i >= 5 {
			break
		}
		fmt.Fprintf(&b, " %s(%d)", wc.word, wc.count)
	}
	return b.String()
}

func patterns(data string) string {
	tokens := words(data)
	freq := make(map[string]int)
	longest := ""
	for _, w := range tokens {
		freq[w]++
		if len(w) > len(longest) {
			longest = w
		}
	}

	var repeated []string
	for w, c := range freq {
		if c > 1 {
			repeated = append(repeated, w)
		}
	}
	sort.Strings(repeated)

	return fmt.Sprintf("Patterns: %d repeated words (%s), longest word %q",
		len(repeated), strings.Join(repeated, ", "), longest)
}

// Small fixed lexicons keep sentiment deterministic and dependency-free.
var (
	positiveWords = map[string]bool{
		"good": true, "great": true, "excellent": true, "positive": true,
		"success": true, "successful": true, "improve": true, "improved": true,
		"strong": true, "growth": true, "gain": true, "win": true, "best": true,
	}
	negativeWords = map[string]bool{
		"bad": true, "poor": true, "terrible": true, "negative": true,
		"failure": true, "failed": true, "decline": true, "declined": true,
		"weak": true, "loss": true, "lose": true, "worst": true, "problem": true,
	}
)

func sentiment(data string) string {
	positive, negative := 0, 0
	for _, w := range words(data) {
		if positiveWords[w] {
			positive++
		}
		if negativeWords[w] {
			negative++
		}
	}

	verdict := "neutral"
	if positive > negative {
		verdict = "positive"
	} else if negative > positive {
		verdict = "negative"
	}
	return fmt.Sprintf("Sentiment: %s (%d positive, %d negative signals)", verdict, positive, negative)
}
