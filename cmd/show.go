package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fixlore/fixlore/internal/config"
	"github.com/fixlore/fixlore/internal/experience"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a stored entry, its rendered commands, and telemetry",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
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

	entry, err := st.GetByID(ctx, args[0])
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding entry: %w", err)
	}
	cmd.Println(string(data))

	if cmds := experience.RenderEntry(&entry); len(cmds) > 0 {
		cmd.Println("\nRendered commands:")
		for _, c := range cmds {
			cmd.Printf("  %s\n", c)
		}
	}
	return nil
}
