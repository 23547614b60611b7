package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd creates the root command
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "vidgen",
		Short:         "Submit, track and download video-generation jobs",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newGenerateCommand(),
		newStatusCommand(),
		newDownloadCommand(),
	)

	return rootCmd
}
