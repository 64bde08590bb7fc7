package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"docqa/internal/config"
	"docqa/internal/models"
)

// NewModel creates the generation provider selected by llmConfig.Provider.
func NewModel(llmConfig *config.LLMConfig) (llms.Model, error) {
	log.Debug().Str("provider", llmConfig.Provider).Str("model", llmConfig.Model).Msg("Loading generation model")

	var (
		llm llms.Model
		err error
	)
	switch llmConfig.Provider {
	case config.ProviderOllama:
		llm, err = ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
		}
		if llmConfig.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
		}
		llm, err = openai.New(opts...)
	default:
		return nil, fmt.Errorf("%w: unknown generation provider %q", models.ErrProviderLoad, llmConfig.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialise %s model: %w", models.ErrProviderLoad, llmConfig.Provider, err)
	}
	return llm, nil
}

// Client sends single prompts to a model with fixed sampling options.
type Client struct {
	llm llms.Model
	cfg config.GenerationConfig
}

func NewClient(llm llms.Model, cfg config.GenerationConfig) *Client {
	return &Client{llm: llm, cfg: cfg}
}

// Generate returns the raw completion for prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	opts := []llms.CallOption{
		llms.WithMaxTokens(c.cfg.MaxNewTokens),
		llms.WithTemperature(c.cfg.Temperature),
	}
	if c.cfg.RepetitionPenalty > 0 {
		opts = append(opts, llms.WithRepetitionPenalty(c.cfg.RepetitionPenalty))
	}

	log.Debug().Int("prompt_chars", len(prompt)).Msg("Generating content")
	completion, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, opts...)
	if err != nil {
		return "", err
	}
	return completion, nil
}
