package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalid         = errors.New("invalid configuration")
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	ThresholdPercentile        = "percentile"
	ThresholdStandardDeviation = "standard_deviation"
	ThresholdInterquartile     = "interquartile"
)

var defaultThresholdAmounts = map[string]float64{
	ThresholdPercentile:        95,
	ThresholdStandardDeviation: 3,
	ThresholdInterquartile:     1.5,
}

type Config struct {
	EmbedLLM     LLMConfig        `yaml:"embed_llm"`
	InferenceLLM LLMConfig        `yaml:"inference_llm"`
	Chunking     ChunkingConfig   `yaml:"chunking"`
	Generation   GenerationConfig `yaml:"generation"`
	Retrieval    RetrievalConfig  `yaml:"retrieval"`
	Archive      ArchiveConfig    `yaml:"archive"`
	Log          LogConfig        `yaml:"log"`
}

type LLMConfig struct {
	Provider  string `yaml:"provider"`
	BaseURL   string `yaml:"base_url"`
	Key       string `yaml:"key"`
	Model     string `yaml:"model"`
	BatchSize int    `yaml:"batch_size"`
}

type ChunkingConfig struct {
	BufferSize                int     `yaml:"buffer_size"`
	BreakpointThresholdType   string  `yaml:"breakpoint_threshold_type"`
	BreakpointThresholdAmount float64 `yaml:"breakpoint_threshold_amount"`
	MinChunkSize              int     `yaml:"min_chunk_size"`
}

type GenerationConfig struct {
	MaxNewTokens      int     `yaml:"max_new_tokens"`
	Temperature       float64 `yaml:"temperature"`
	RepetitionPenalty float64 `yaml:"repetition_penalty"`
}

type RetrievalConfig struct {
	K               int `yaml:"k"`
	ExcerptLength   int `yaml:"excerpt_length"`
	CacheTTLMinutes int `yaml:"cache_ttl_minutes"`
}

type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
	Debug   bool   `yaml:"debug"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// envOverrides lists the variables that take precedence over the YAML file.
type envOverrides struct {
	EmbeddingModelID   string `envconfig:"EMBEDDING_MODEL_ID"`
	GenerationModelID  string `envconfig:"GENERATION_MODEL_ID"`
	EmbeddingProvider  string `envconfig:"EMBEDDING_PROVIDER"`
	GenerationProvider string `envconfig:"GENERATION_PROVIDER"`
	EmbeddingBaseURL   string `envconfig:"EMBEDDING_BASE_URL"`
	GenerationBaseURL  string `envconfig:"GENERATION_BASE_URL"`
	APIKey             string `envconfig:"LLM_API_KEY"`
	ArchiveDSN         string `envconfig:"ARCHIVE_DSN"`
	LogLevel           string `envconfig:"LOG_LEVEL"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		EmbedLLM: LLMConfig{
			Provider:  ProviderOllama,
			BaseURL:   "http://localhost:11434",
			Model:     "nomic-embed-text",
			BatchSize: 32,
		},
		InferenceLLM: LLMConfig{
			Provider: ProviderOllama,
			BaseURL:  "http://localhost:11434",
			Model:    "llama3.1:8b",
		},
		Chunking: ChunkingConfig{
			BufferSize:                1,
			BreakpointThresholdType:   ThresholdPercentile,
			BreakpointThresholdAmount: 95,
			MinChunkSize:              500,
		},
		Generation: GenerationConfig{
			MaxNewTokens:      512,
			Temperature:       0.2,
			RepetitionPenalty: 1.1,
		},
		Retrieval: RetrievalConfig{
			K:               3,
			ExcerptLength:   150,
			CacheTTLMinutes: 30,
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadConfig reads the YAML file at path, applies environment overrides and
// validates the result. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := Default()
	// the amount default depends on the threshold type the file selects
	cfg.Chunking.BreakpointThresholdAmount = 0
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.EmbedLLM.Model, env.EmbeddingModelID)
	set(&cfg.InferenceLLM.Model, env.GenerationModelID)
	set(&cfg.EmbedLLM.Provider, env.EmbeddingProvider)
	set(&cfg.InferenceLLM.Provider, env.GenerationProvider)
	set(&cfg.EmbedLLM.BaseURL, env.EmbeddingBaseURL)
	set(&cfg.InferenceLLM.BaseURL, env.GenerationBaseURL)
	set(&cfg.EmbedLLM.Key, env.APIKey)
	set(&cfg.InferenceLLM.Key, env.APIKey)
	set(&cfg.Archive.DSN, env.ArchiveDSN)
	set(&cfg.Log.Level, env.LogLevel)
	return nil
}

// applyDefaults fills zero values a partial YAML file may leave behind.
func applyDefaults(cfg *Config) {
	if cfg.Chunking.BreakpointThresholdType == "" {
		cfg.Chunking.BreakpointThresholdType = ThresholdPercentile
	}
	if cfg.Chunking.BreakpointThresholdAmount == 0 {
		cfg.Chunking.BreakpointThresholdAmount = defaultThresholdAmounts[cfg.Chunking.BreakpointThresholdType]
	}
	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = 3
	}
	if cfg.Retrieval.ExcerptLength == 0 {
		cfg.Retrieval.ExcerptLength = 150
	}
	if cfg.Generation.MaxNewTokens == 0 {
		cfg.Generation.MaxNewTokens = 512
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func (c *Config) Validate() error {
	for name, llm := range map[string]LLMConfig{"embed_llm": c.EmbedLLM, "inference_llm": c.InferenceLLM} {
		if llm.Model == "" {
			return fmt.Errorf("%w: %s.model", ErrMissingRequired, name)
		}
		if llm.Provider != ProviderOllama && llm.Provider != ProviderOpenAI {
			return fmt.Errorf("%w: %s.provider %q", ErrInvalid, name, llm.Provider)
		}
	}

	ch := c.Chunking
	if _, ok := defaultThresholdAmounts[ch.BreakpointThresholdType]; !ok {
		return fmt.Errorf("%w: chunking.breakpoint_threshold_type %q", ErrInvalid, ch.BreakpointThresholdType)
	}
	if ch.BreakpointThresholdType == ThresholdPercentile && (ch.BreakpointThresholdAmount < 0 || ch.BreakpointThresholdAmount > 100) {
		return fmt.Errorf("%w: percentile must be within [0, 100], got %v", ErrInvalid, ch.BreakpointThresholdAmount)
	}
	if ch.BufferSize < 0 || ch.MinChunkSize < 0 {
		return fmt.Errorf("%w: chunking sizes must not be negative", ErrInvalid)
	}

	if c.Retrieval.K < 1 {
		return fmt.Errorf("%w: retrieval.k must be at least 1", ErrInvalid)
	}
	if c.Archive.Enabled && c.Archive.DSN == "" {
		return fmt.Errorf("%w: archive.dsn", ErrMissingRequired)
	}
	return nil
}
