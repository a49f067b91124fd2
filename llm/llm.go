// Package llm selects and constructs a chat.Completer for a model name.
package llm

import (
	"fmt"
	"os"
	"strings"

	"github.com/arrg-project/arrg/chat"
	"github.com/arrg-project/arrg/internal/logging"
	"github.com/arrg-project/arrg/llm/claude"
	"github.com/arrg-project/arrg/llm/gemini"
	"github.com/arrg-project/arrg/llm/openai"
)

// Config holds the LLM client configuration
type Config struct {
	Model       string
	APIKey      string
	BaseURL     string // Optional base URL override for the API endpoint
	Temperature *float64
	MaxTokens   int
	Debug       bool
}

// ModelProvider represents the different LLM providers
type ModelProvider int

const (
	ProviderOpenAI ModelProvider = iota
	ProviderClaude
	ProviderGemini
	ProviderOllama
	ProviderUnknown
)

// NewCompleter creates a completion backend based on the configuration,
// picking the provider from the model name.
func NewCompleter(config *Config) (chat.Completer, error) {
	if config == nil || config.Model == "" {
		return nil, fmt.Errorf("new completer: model name is required")
	}

	provider := detectProvider(config.Model)
	apiKey := config.APIKey
	logger := logging.Logger()

	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("openAI API key required (set -api-key or OPENAI_API_KEY)")
		}

		baseURL := config.BaseURL
		if baseURL == "" {
			baseURL = openai.OpenAIURL
		}
		logger.Info("using OpenAI completer", "model", config.Model)
		return openai.NewClient(baseURL, apiKey,
			openai.WithModel(config.Model),
			openai.WithMaxTokens(config.MaxTokens))

	case ProviderClaude:
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("anthropic API key required (set -api-key or ANTHROPIC_API_KEY)")
		}

		opts := []claude.Option{
			claude.WithModel(config.Model),
			claude.WithMaxTokens(config.MaxTokens),
		}
		if config.BaseURL != "" {
			opts = append(opts, claude.WithBaseURL(config.BaseURL))
		}
		logger.Info("using Claude completer", "model", config.Model)
		return claude.NewClient(apiKey, opts...)

	case ProviderGemini:
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
			if apiKey == "" {
				apiKey = os.Getenv("GOOGLE_API_KEY")
			}
		}
		if apiKey == "" {
			return nil, fmt.Errorf("gemini API key required (set -api-key, GEMINI_API_KEY, or GOOGLE_API_KEY)")
		}

		opts := []gemini.Option{
			gemini.WithModel(config.Model),
			gemini.WithMaxTokens(config.MaxTokens),
		}
		if config.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(config.BaseURL))
		}
		logger.Info("using Gemini completer", "model", config.Model)
		return gemini.NewClient(apiKey, opts...)

	case ProviderOllama:
		// Ollama speaks the OpenAI dialect and needs no API key.
		baseURL := config.BaseURL
		if baseURL == "" {
			baseURL = openai.OllamaURL
		}
		logger.Info("using OpenAI completer against ollama", "model", config.Model)
		return openai.NewClient(baseURL, "",
			openai.WithModel(config.Model),
			openai.WithMaxTokens(config.MaxTokens))

	default:
		return nil, fmt.Errorf("unknown model provider for model: %s", config.Model)
	}
}

// detectProvider detects the provider from the model name
func detectProvider(model string) ModelProvider {
	modelLower := strings.ToLower(model)

	// OpenAI models
	if strings.HasPrefix(modelLower, "gpt-") ||
		strings.HasPrefix(modelLower, "o1-") ||
		strings.HasPrefix(modelLower, "o3") { // o3 doesn't have a dash
		return ProviderOpenAI
	}

	// Claude models
	if strings.HasPrefix(modelLower, "claude-") {
		return ProviderClaude
	}

	// Gemini models
	if strings.HasPrefix(modelLower, "gemini-") {
		return ProviderGemini
	}

	// Ollama models (common ones)
	if strings.HasPrefix(modelLower, "llama") ||
		strings.HasPrefix(modelLower, "mistral") ||
		strings.HasPrefix(modelLower, "mixtral") ||
		strings.HasPrefix(modelLower, "qwen") ||
		strings.HasPrefix(modelLower, "phi") ||
		strings.HasPrefix(modelLower, "deepseek") ||
		strings.HasPrefix(modelLower, "codellama") {
		return ProviderOllama
	}

	return ProviderUnknown
}
