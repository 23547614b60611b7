package main

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/spf13/cobra"

	"vidgen/internal/api"
	"vidgen/internal/download"
	"vidgen/internal/infra"
	"vidgen/internal/job"
)

// newDownloadCommand creates the download command: fetch the video of an
// already completed job.
func newDownloadCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <job-id>",
		Short: "Download the video of a completed job",
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

			id := args[0]
			update, err := client.JobStatus(cmd.Context(), id)
			if err != nil {
				return err
			}
			if update.Status == nil || *update.Status != job.StatusCompleted {
				return errors.New("job is not completed yet")
			}
			if update.Result == nil || update.Result.VideoURL == "" {
				return errors.New("completed job carries no video url")
			}

			name := update.Result.Filename
			if name == "" {
				name = id + ".mp4"
			}
			dir := output
			if dir == "" {
				dir = cfg.DownloadDir
			}
			dest := filepath.Join(dir, name)
			if err := download.Save(cmd.Context(), &http.Client{}, update.Result.VideoURL, dest); err != nil {
				return fmt.Errorf("%w (the video can still be fetched manually from %s)", err, update.Result.VideoURL)
			}
			logger.Info().Str("path", dest).Msg("video saved")
			fmt.Fprintln(cmd.OutOrStdout(), dest)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "directory for the downloaded video (default: DOWNLOAD_DIR)")
	return cmd
}
