package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fixlore/fixlore/internal/config"
	"github.com/fixlore/fixlore/internal/experience"
)

var (
	searchK       int
	searchMinSim  float64
	searchLang    string
	searchTools   []string
	searchVersion string
)

var searchCmd = &cobra.Command{
	Use:   "search <query text>",
	Short: "Run an ad-hoc similarity query against the store",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchK, "top-k", "k", 3, "maximum results")
	searchCmd.Flags().Float64Var(&searchMinSim, "min-similarity", 0.3, "minimum cosine similarity")
	searchCmd.Flags().StringVar(&searchLang, "lang", "", "filter: exact language match")
	searchCmd.Flags().StringSliceVar(&searchTools, "tool", nil, "filter: tool-set intersection (repeatable)")
	searchCmd.Flags().StringVar(&searchVersion, "version", "", "filter: version prefix")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
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

	st, err := newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	embedder, err := newEmbedder(cfg, logger)
	if err != nil {
		return err
	}

	query := strings.Join(args, " ")
	vec, err := embedder.Embed(ctx, query)
	if err != nil {
		return err
	}

	qc := experience.QueryContext{
		Lang:    searchLang,
		Tools:   searchTools,
		Version: searchVersion,
	}
	candidates, err := st.Search(ctx, vec, qc, searchK, searchMinSim)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		cmd.Println("no matching entries")
		return nil
	}

	for _, cand := range candidates {
		cmd.Printf("%s  similarity=%.4f  hits=%d successes=%d failures=%d\n",
			cand.Entry.ID, cand.Similarity,
			cand.Entry.Telemetry.Hits, cand.Entry.Telemetry.Successes, cand.Entry.Telemetry.Failures)
		for _, advice := range cand.Entry.Advice {
			cmd.Printf("    - %s\n", advice)
		}
	}
	return nil
}
