// Package cmd implements the fixlore command line interface: operator
// utilities for indexing, querying, and inspecting the experience store.
// The retrieval core itself is a library; agents embed it directly.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fixlore/fixlore/internal/log"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "fixlore",
	Short: "fixlore - remediation knowledge store for build-repair agents",
	Long: `fixlore stores experience entries mined from past build-repair runs and
retrieves the most relevant ones for an observed failure. This CLI covers
the operator side: bulk-indexing entry files into the vector store and
inspecting what is stored.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func newLogger() log.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level})
}
