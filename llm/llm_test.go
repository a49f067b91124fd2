package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		model string
		want  ModelProvider
	}{
		{"gpt-4o", ProviderOpenAI},
		{"GPT-4o-mini", ProviderOpenAI},
		{"o1-preview", ProviderOpenAI},
		{"o3", ProviderOpenAI},
		{"claude-sonnet-4-5", ProviderClaude},
		{"Claude-3-haiku", ProviderClaude},
		{"gemini-2.5-pro", ProviderGemini},
		{"llama3.2", ProviderOllama},
		{"mistral-small", ProviderOllama},
		{"qwen2.5-coder", ProviderOllama},
		{"deepseek-r1", ProviderOllama},
		{"palm-2", ProviderUnknown},
		{"", ProviderUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, detectProvider(tt.model))
		})
	}
}

func TestNewCompleterRequiresModel(t *testing.T) {
	_, err := NewCompleter(nil)
	require.Error(t, err)

	_, err = NewCompleter(&Config{})
	require.Error(t, err)
}

func TestNewCompleterUnknownProvider(t *testing.T) {
	_, err := NewCompleter(&Config{Model: "palm-2", APIKey: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown model provider")
}

func TestNewCompleterRequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := NewCompleter(&Config{Model: "claude-sonnet-4-5"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key required")
}

func TestNewCompleterOllamaNeedsNoKey(t *testing.T) {
	completer, err := NewCompleter(&Config{Model: "llama3.2"})
	require.NoError(t, err)
	assert.NotNil(t, completer)
}
