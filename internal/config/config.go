// Package config provides application configuration with multi-source
// priority.
//
// Sources, highest to lowest:
//  1. Environment variables (runtime override)
//  2. Config file (~/.fixlore/config.yaml or ./config.yaml)
//  3. Default values
//
// Credential precedence for the embedding service follows the deployment
// convention this system has always used: EMBEDDING_API_KEY/EMBEDDING_BASE_URL
// (dedicated embedding endpoint) override OPENAI_API_KEY/OPENAI_BASE_URL
// (generic fallback). The database URL is read from `dns` first, then
// DATABASE_URL.
//
// Sensitive values are masked in MarshalJSON/String; validation is
// fail-fast with sentinel errors usable via errors.Is.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidDimension indicates an embedding dimension outside the
	// supported range.
	ErrInvalidDimension = errors.New("invalid embedding dimension")

	// ErrInvalidPool indicates inconsistent connection pool bounds.
	ErrInvalidPool = errors.New("invalid pool configuration")

	// ErrInvalidRetrieval indicates out-of-range retrieval knobs.
	ErrInvalidRetrieval = errors.New("invalid retrieval configuration")

	// ErrInvalidStrategy indicates an unknown retrieval strategy name.
	ErrInvalidStrategy = errors.New("invalid retrieval strategy")

	// ErrMissingEmbeddingKey indicates no embedding credentials at all.
	ErrMissingEmbeddingKey = errors.New("missing embedding API key")
)

// Retrieval strategy names. The two scoring formulas are independently
// selectable and never blended in a single run.
const (
	// StrategyVector ranks by cosine similarity from the persistent
	// vector store, with structural filters applied at query time.
	StrategyVector = "vector"

	// StrategyHeuristic uses deterministic signal matching and the
	// in-memory composite score; it needs no store and no embeddings.
	StrategyHeuristic = "heuristic"
)

// DefaultEmbeddingDimension matches the vector column declared by the
// schema migrations.
const DefaultEmbeddingDimension = 1536

// Config stores the application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON.
type Config struct {
	// Storage
	DatabaseURL        string        `mapstructure:"database_url" json:"database_url"` // SENSITIVE: masked in MarshalJSON
	PoolMinConns       int32         `mapstructure:"pool_min_conns" json:"pool_min_conns"`
	PoolMaxConns       int32         `mapstructure:"pool_max_conns" json:"pool_max_conns"`
	PoolAcquireTimeout time.Duration `mapstructure:"pool_acquire_timeout" json:"pool_acquire_timeout"`

	// Embedding service
	EmbeddingDimension int     `mapstructure:"embedding_dimension" json:"embedding_dimension"`
	EmbeddingModel     string  `mapstructure:"embedding_model" json:"embedding_model"`
	EmbeddingAPIKey    string  `mapstructure:"embedding_api_key" json:"embedding_api_key"` // SENSITIVE
	EmbeddingBaseURL   string  `mapstructure:"embedding_base_url" json:"embedding_base_url"`
	OpenAIAPIKey       string  `mapstructure:"openai_api_key" json:"openai_api_key"` // SENSITIVE fallback
	OpenAIBaseURL      string  `mapstructure:"openai_base_url" json:"openai_base_url"`
	EmbeddingRPS       float64 `mapstructure:"embedding_rps" json:"embedding_rps"`

	// Retrieval
	Strategy         string  `mapstructure:"retrieval_strategy" json:"retrieval_strategy"`
	TopK             int     `mapstructure:"retrieval_top_k" json:"retrieval_top_k"`
	MinSimilarity    float64 `mapstructure:"retrieval_min_similarity" json:"retrieval_min_similarity"`
	MaxSnippetChars  int     `mapstructure:"retrieval_max_snippet_chars" json:"retrieval_max_snippet_chars"`
	PreferRemediable bool    `mapstructure:"retrieval_prefer_remediable" json:"retrieval_prefer_remediable"`

	// Heuristic matcher entry file (NDJSON), optional.
	HintsFile string `mapstructure:"hints_file" json:"hints_file"`

	// Session feedback policy: credit every session-used entry with one
	// success when the whole task succeeds. Off by default to avoid
	// double counting against the per-turn feedback.
	CreditOnSuccess bool `mapstructure:"session_credit_on_success" json:"session_credit_on_success"`
}

// Load reads configuration with env > file > defaults priority.
func Load() (*Config, error) {
	v := viper.New()

	home, err := os.UserHomeDir()
	if err == nil {
		v.AddConfigPath(filepath.Join(home, ".fixlore"))
	}
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Storage
	v.SetDefault("pool_min_conns", 1)
	v.SetDefault("pool_max_conns", 5)
	v.SetDefault("pool_acquire_timeout", "10s")

	// Embedding
	v.SetDefault("embedding_dimension", DefaultEmbeddingDimension)
	v.SetDefault("embedding_model", "text-embedding-3-small")
	v.SetDefault("embedding_rps", 0.0)

	// Retrieval
	v.SetDefault("retrieval_strategy", StrategyVector)
	v.SetDefault("retrieval_top_k", 3)
	v.SetDefault("retrieval_min_similarity", 0.3)
	v.SetDefault("retrieval_max_snippet_chars", 4000)
	v.SetDefault("retrieval_prefer_remediable", true)

	// Session
	v.SetDefault("session_credit_on_success", false)
}

// bindEnvVariables binds the environment variables the deployment has
// always used. Binding order matters for database_url: the legacy `dns`
// variable wins over DATABASE_URL.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key string, envVars ...string) {
		if err := v.BindEnv(append([]string{key}, envVars...)...); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q: %v", key, err))
		}
	}

	mustBind("database_url", "dns", "DATABASE_URL")
	mustBind("embedding_dimension", "EMBEDDING_DIM")
	mustBind("embedding_model", "EMBEDDING_MODEL")
	mustBind("embedding_api_key", "EMBEDDING_API_KEY")
	mustBind("embedding_base_url", "EMBEDDING_BASE_URL")
	mustBind("openai_api_key", "OPENAI_API_KEY")
	mustBind("openai_base_url", "OPENAI_BASE_URL")
	mustBind("hints_file", "FIXLORE_HINTS_FILE")
	mustBind("retrieval_strategy", "FIXLORE_RETRIEVAL_STRATEGY")
}

// Validate performs fail-fast range and consistency checks.
func (c *Config) Validate() error {
	if c.EmbeddingDimension <= 0 || c.EmbeddingDimension > 16000 {
		return fmt.Errorf("%w: %d", ErrInvalidDimension, c.EmbeddingDimension)
	}
	if c.PoolMinConns < 1 {
		return fmt.Errorf("%w: pool_min_conns must be >= 1, got %d", ErrInvalidPool, c.PoolMinConns)
	}
	if c.PoolMaxConns < c.PoolMinConns {
		return fmt.Errorf("%w: pool_max_conns %d < pool_min_conns %d", ErrInvalidPool, c.PoolMaxConns, c.PoolMinConns)
	}
	if c.PoolAcquireTimeout <= 0 {
		return fmt.Errorf("%w: pool_acquire_timeout must be positive", ErrInvalidPool)
	}
	if c.TopK < 1 || c.TopK > 100 {
		return fmt.Errorf("%w: retrieval_top_k must be in [1,100], got %d", ErrInvalidRetrieval, c.TopK)
	}
	if c.MinSimilarity < 0 || c.MinSimilarity > 1 {
		return fmt.Errorf("%w: retrieval_min_similarity must be in [0,1], got %g", ErrInvalidRetrieval, c.MinSimilarity)
	}
	if c.MaxSnippetChars < 100 {
		return fmt.Errorf("%w: retrieval_max_snippet_chars must be >= 100, got %d", ErrInvalidRetrieval, c.MaxSnippetChars)
	}
	switch c.Strategy {
	case StrategyVector, StrategyHeuristic:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStrategy, c.Strategy)
	}
	return nil
}

// StoreConfigured reports whether a persistent store connection is set.
// Without one the core runs in heuristic-only mode.
func (c *Config) StoreConfigured() bool {
	return c.DatabaseURL != ""
}

// EmbeddingCredentials resolves the embedding credentials with dedicated
// settings taking precedence over the generic OpenAI fallback.
func (c *Config) EmbeddingCredentials() (apiKey, baseURL string, err error) {
	if c.EmbeddingAPIKey != "" {
		return c.EmbeddingAPIKey, c.EmbeddingBaseURL, nil
	}
	if c.OpenAIAPIKey != "" {
		return c.OpenAIAPIKey, c.OpenAIBaseURL, nil
	}
	return "", "", fmt.Errorf("%w: set EMBEDDING_API_KEY or OPENAI_API_KEY", ErrMissingEmbeddingKey)
}

// maskedValue replaces secrets in serialized output. Full-width blocks so
// no real secret substring can survive.
const maskedValue = "████████"

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON masks sensitive fields. Update when adding new secrets.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.DatabaseURL = maskSecret(a.DatabaseURL)
	a.EmbeddingAPIKey = maskSecret(a.EmbeddingAPIKey)
	a.OpenAIAPIKey = maskSecret(a.OpenAIAPIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer so accidental printing never leaks secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
