package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fixlore/fixlore/db"
	"github.com/fixlore/fixlore/internal/config"
	"github.com/fixlore/fixlore/internal/experience"
)

var indexCmd = &cobra.Command{
	Use:   "index <entries.ndjson>",
	Short: "Embed and upsert an NDJSON entry file into the vector store",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.StoreConfigured() {
		return fmt.Errorf("no database configured: set dns or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	entries, err := experience.LoadEntriesFile(args[0])
	if err != nil {
		return err
	}
	logger.Info("loaded entries", "file", args[0], "count", len(entries))

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		return err
	}

	st, err := newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	embedder, err := newEmbedder(cfg, logger)
	if err != nil {
		return err
	}

	indexed, skipped := 0, 0
	for i := range entries {
		e := &entries[i]
		if e.ID == "" {
			logger.Warn("skipping entry without id", "position", i)
			skipped++
			continue
		}

		vec, err := embedder.Embed(ctx, e.SearchText())
		if err != nil {
			logger.Warn("embedding failed, skipping entry", "id", e.ID, "error", err)
			skipped++
			continue
		}
		if err := st.Upsert(ctx, *e, vec); err != nil {
			logger.Warn("upsert failed, skipping entry", "id", e.ID, "error", err)
			skipped++
			continue
		}
		indexed++
	}

	logger.Info("indexing complete", "indexed", indexed, "skipped", skipped)
	if indexed == 0 && skipped > 0 {
		return fmt.Errorf("indexed 0 of %d entries", len(entries))
	}
	return nil
}
