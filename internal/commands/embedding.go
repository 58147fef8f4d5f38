package commands

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/radicalcardists/card-recommender/internal/embeddings"
)

// EmbeddingConfig contains common flag definitions for embedding configuration
type EmbeddingConfig struct {
	// EmbeddingProvider selects the embedding backend
	EmbeddingProvider string `help:"Embedding provider to use" default:"openai" enum:"openai,gemini,compatible" env:"EMBEDDING_PROVIDER"`
	// OpenAIAPIKey is the API key for OpenAI embeddings
	OpenAIAPIKey string `help:"OpenAI API key" env:"OPENAI_API_KEY"`
	// OpenAIEmbeddingModel is the OpenAI embedding model name
	OpenAIEmbeddingModel string `help:"OpenAI embedding model name" default:"text-embedding-3-small" env:"OPENAI_EMBEDDING_MODEL"`
	// GeminiAPIKey is the API key for Gemini
	GeminiAPIKey string `help:"Google Gemini API key" env:"GEMINI_API_KEY"`
	// GeminiEmbeddingModel is the Gemini embedding model name
	GeminiEmbeddingModel string `help:"Gemini embedding model name" default:"text-embedding-004" env:"GEMINI_EMBEDDING_MODEL"`
	// CompatibleEndpoint is the base URL of an OpenAI-compatible embedding API (LMStudio, Ollama, etc)
	CompatibleEndpoint string `help:"OpenAI-compatible embedding endpoint" env:"EMBEDDING_ENDPOINT"`
	// CompatibleModel is the model name for the OpenAI-compatible endpoint
	CompatibleModel string `help:"Model name for the OpenAI-compatible endpoint" env:"EMBEDDING_MODEL"`
}

// SetupEmbeddingProvider initializes and returns an embedding provider based on the config
func SetupEmbeddingProvider(ctx context.Context, config EmbeddingConfig, logger *log.Logger) (embeddings.Provider, error) {
	switch config.EmbeddingProvider {
	case "openai":
		if config.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai api key is required when using OpenAI embeddings")
		}
		openaiConfig := embeddings.NewOpenAIConfig().
			WithAPIKey(config.OpenAIAPIKey).
			WithModelName(config.OpenAIEmbeddingModel).
			WithLogger(logger)
		provider, err := embeddings.NewOpenAIProvider(openaiConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI embedding provider: %w", err)
		}
		logger.Info("Using OpenAI API for embeddings", "model", openaiConfig.ModelName)
		return provider, nil

	case "gemini":
		if config.GeminiAPIKey == "" {
			return nil, fmt.Errorf("gemini api key is required when using Gemini embeddings")
		}
		geminiConfig := embeddings.NewGeminiConfig().
			WithAPIKey(config.GeminiAPIKey).
			WithModelName(config.GeminiEmbeddingModel).
			WithLogger(logger)
		provider, err := embeddings.NewGeminiProvider(ctx, geminiConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini embedding provider: %w", err)
		}
		logger.Info("Using Gemini API for embeddings", "model", geminiConfig.ModelName)
		return provider, nil

	case "compatible":
		// LMStudio, Ollama and friends expose an OpenAI-compatible API
		if config.CompatibleEndpoint == "" {
			return nil, fmt.Errorf("endpoint is required when using an OpenAI-compatible embedding provider")
		}
		if config.CompatibleModel == "" {
			return nil, fmt.Errorf("model name is required when using an OpenAI-compatible embedding provider")
		}
		openaiConfig := embeddings.NewOpenAIConfig().
			WithAPIKey("dummy").
			WithEndpoint(config.CompatibleEndpoint).
			WithModelName(config.CompatibleModel).
			WithLogger(logger)
		provider, err := embeddings.NewOpenAIProvider(openaiConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI-compatible embedding provider: %w", err)
		}
		logger.Info("Using OpenAI-compatible endpoint for embeddings",
			"model", openaiConfig.ModelName, "endpoint", openaiConfig.Endpoint)
		return provider, nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", config.EmbeddingProvider)
	}
}

// CloseEmbeddingProvider attempts to close the embedding provider if it implements Close
func CloseEmbeddingProvider(provider embeddings.Provider, logger *log.Logger) {
	if closer, ok := provider.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("Failed to close embedding provider", "error", err)
		}
	}
}
