package cmd

import (
	"context"

	"github.com/fixlore/fixlore/internal/config"
	"github.com/fixlore/fixlore/internal/embed"
	"github.com/fixlore/fixlore/internal/log"
	"github.com/fixlore/fixlore/internal/store"
)

// newStore opens the experience store from configuration.
func newStore(ctx context.Context, cfg *config.Config, logger log.Logger) (*store.Store, error) {
	return store.New(ctx, store.Config{
		URL:            cfg.DatabaseURL,
		Dimension:      cfg.EmbeddingDimension,
		MinConns:       cfg.PoolMinConns,
		MaxConns:       cfg.PoolMaxConns,
		AcquireTimeout: cfg.PoolAcquireTimeout,
	}, logger.With("component", "store"))
}

// newEmbedder builds the embedding client with resolved credentials.
func newEmbedder(cfg *config.Config, logger log.Logger) (*embed.Client, error) {
	apiKey, baseURL, err := cfg.EmbeddingCredentials()
	if err != nil {
		return nil, err
	}
	return embed.NewClient(embed.ClientConfig{
		APIKey:            apiKey,
		BaseURL:           baseURL,
		Model:             cfg.EmbeddingModel,
		RequestsPerSecond: cfg.EmbeddingRPS,
	}, logger.With("component", "embed"))
}
