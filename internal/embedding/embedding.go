package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"docqa/internal/config"
	"docqa/internal/models"
)

// probeText is embedded once at load time to check the provider answers and
// to learn its dimensionality.
const probeText = "dimension probe"

// NewEmbedder creates the embedding provider selected by cfg.Provider.
func NewEmbedder(cfg *config.LLMConfig) (embeddings.Embedder, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        cfg.Provider,
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.Model,
	}).Msg("Loading embedder")

	var (
		client embeddings.EmbedderClient
		err    error
	)
	switch cfg.Provider {
	case config.ProviderOllama:
		client, err = ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithEmbeddingModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		client, err = openai.New(opts...)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", models.ErrProviderLoad, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialise %s client: %w", models.ErrProviderLoad, cfg.Provider, err)
	}

	var embedOpts []embeddings.Option
	if cfg.BatchSize > 0 {
		embedOpts = append(embedOpts, embeddings.WithBatchSize(cfg.BatchSize))
	}
	embedder, err := embeddings.NewEmbedder(client, embedOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create embedder: %w", models.ErrProviderLoad, err)
	}
	return embedder, nil
}

// Probe embeds a fixed text and returns the vector dimensionality.
func Probe(ctx context.Context, e embeddings.Embedder) (int, error) {
	vec, err := e.EmbedQuery(ctx, probeText)
	if err != nil {
		return 0, fmt.Errorf("%w: embedder probe failed: %w", models.ErrProviderLoad, err)
	}
	if len(vec) == 0 {
		return 0, fmt.Errorf("%w: embedder returned an empty vector", models.ErrProviderLoad)
	}
	return len(vec), nil
}
