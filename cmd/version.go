package cmd

import (
	"github.com/spf13/cobra"
)

// version is set via -ldflags at release time.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the fixlore version",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Println("fixlore " + version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
