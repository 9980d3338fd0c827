package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fixlore/fixlore/internal/config"
	"github.com/fixlore/fixlore/internal/experience"
	"github.com/fixlore/fixlore/internal/log"
	"github.com/fixlore/fixlore/internal/session"
)

var (
	hintsLang    string
	hintsOS      string
	hintsVersion string
	hintsTools   []string
	hintsFiles   []string
)

var hintsCmd = &cobra.Command{
	Use:   "hints [observation]",
	Short: "Run one retrieval turn over an observation and print the hints",
	Long: `Runs a single retrieval turn the way an agent session would: the
observation is read from the argument or stdin, classified for an error
signal, and matched against the knowledge base using the configured
retrieval strategy (vector or heuristic).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHints,
}

func init() {
	hintsCmd.Flags().StringVar(&hintsLang, "lang", "", "query context: language")
	hintsCmd.Flags().StringVar(&hintsOS, "os", "", "query context: operating system")
	hintsCmd.Flags().StringVar(&hintsVersion, "version", "", "query context: version prefix")
	hintsCmd.Flags().StringSliceVar(&hintsTools, "tool", nil, "query context: tool (repeatable)")
	hintsCmd.Flags().StringSliceVar(&hintsFiles, "file", nil, "current file listing for predictive matching (repeatable)")
	rootCmd.AddCommand(hintsCmd)
}

func runHints(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	observation, err := readObservation(args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(observation) == "" {
		return fmt.Errorf("empty observation: pass it as an argument or on stdin")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	qc := experience.QueryContext{
		Lang:    hintsLang,
		OS:      hintsOS,
		Version: hintsVersion,
		Tools:   hintsTools,
	}

	switch cfg.Strategy {
	case config.StrategyVector:
		return runVectorHints(ctx, cmd, cfg, qc, observation, logger)
	case config.StrategyHeuristic:
		return runHeuristicHints(cmd, cfg, qc, observation, logger)
	default:
		return fmt.Errorf("unknown retrieval strategy %q", cfg.Strategy)
	}
}

func runVectorHints(ctx context.Context, cmd *cobra.Command, cfg *config.Config, qc experience.QueryContext, observation string, logger log.Logger) error {
	if !cfg.StoreConfigured() {
		return fmt.Errorf("vector strategy needs a database: set dns or DATABASE_URL")
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

	tracker := session.NewTracker(st, cfg.CreditOnSuccess, logger)
	coord := session.NewCoordinator(st, embedder, tracker, session.Options{
		QueryContext:    qc,
		TopK:            cfg.TopK,
		MinSimilarity:   cfg.MinSimilarity,
		MaxSnippetChars: cfg.MaxSnippetChars,
	}, logger)
	defer coord.Close()

	block, ids := coord.RetrieveHints(ctx, observation)
	if block == "" {
		cmd.Println("no hints for this observation")
		return nil
	}
	cmd.Println(block)
	logger.Debug("hints rendered", "ids", ids)
	return nil
}

func readObservation(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading observation from stdin: %w", err)
	}
	return string(data), nil
}

func runHeuristicHints(cmd *cobra.Command, cfg *config.Config, qc experience.QueryContext, observation string, logger log.Logger) error {
	if cfg.HintsFile == "" {
		return fmt.Errorf("heuristic strategy needs an entry file: set hints_file or FIXLORE_HINTS_FILE")
	}

	entries, err := experience.LoadEntriesFile(cfg.HintsFile)
	if err != nil {
		return err
	}

	matcher := experience.NewMatcher(entries, logger)
	for _, hint := range matcher.Retrieve(observation, hintsFiles) {
		cmd.Println(hint)
	}

	snippet := session.Truncate(strings.TrimSpace(observation), cfg.MaxSnippetChars)
	ranked := experience.Rank(entries, snippet, qc, cfg.TopK, cfg.PreferRemediable)
	if block := experience.RenderCandidatesBlock(ranked); block != "" {
		cmd.Println(block)
	}
	return nil
}
