package embed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"
)

// DefaultModel is used when no embedding model is configured.
const DefaultModel = "text-embedding-3-small"

const (
	defaultMaxAttempts = 3
	retryBaseDelay     = 500 * time.Millisecond
)

// ClientConfig configures the OpenAI-compatible embedding client.
// Credentials follow the dedicated-over-generic precedence resolved by
// config.EmbeddingCredentials: a dedicated embedding key/base URL wins over
// the generic OpenAI fallback.
type ClientConfig struct {
	APIKey  string
	BaseURL string // empty = provider default endpoint
	Model   string // empty = DefaultModel

	// MaxAttempts bounds retries per Embed call. Zero means the default.
	MaxAttempts int

	// RequestsPerSecond throttles outbound calls. Zero disables throttling.
	RequestsPerSecond float64
}

// Client calls an OpenAI-compatible embeddings endpoint with bounded
// retries and optional rate limiting. Safe for concurrent use.
type Client struct {
	api         openai.Client
	model       string
	maxAttempts int
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// NewClient builds an embedding client. The API key is required; everything
// else has defaults.
func NewClient(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding API key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Retries are handled here with our own backoff; the SDK's built-in
	// retry layer would multiply the attempt budget.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		api:         openai.NewClient(opts...),
		model:       model,
		maxAttempts: maxAttempts,
		limiter:     limiter,
		logger:      logger,
	}, nil
}

// Embed returns the embedding vector for text. Transient failures are
// retried with exponential backoff up to the attempt budget; exhaustion
// surfaces as ErrUpstream.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
			}
		}

		vec, err := c.embedOnce(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		c.logger.Warn("embedding call failed",
			"attempt", attempt, "max_attempts", c.maxAttempts, "error", err)

		if attempt < c.maxAttempts {
			delay := retryBaseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrUpstream, ctx.Err())
			}
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrUpstream, lastErr)
}

func (c *Client) embedOnce(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}
