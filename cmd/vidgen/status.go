package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"vidgen/internal/api"
	"vidgen/internal/infra"
)

// newStatusCommand creates the status command: a one-shot read of a job's
// current status document.
func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the current status of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := infra.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger := infra.NewLogger(cfg.AppEnv)

			client, err := api.NewClient(api.Options{
				BaseURL: cfg.APIBaseURL,
				Timeout: cfg.HTTPTimeout,
				Logger:  &logger,
			})
			if err != nil {
				return err
			}

			update, err := client.JobStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(update, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
