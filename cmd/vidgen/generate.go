package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"vidgen/internal/api"
	"vidgen/internal/download"
	"vidgen/internal/generation"
	"vidgen/internal/infra"
	"vidgen/internal/job"
)

// newGenerateCommand creates the generate command: submit a prompt, poll the
// job to a terminal state and download the resulting video.
func newGenerateCommand() *cobra.Command {
	var (
		prompt     string
		duration   int
		resolution string
		output     string
		noDownload bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a video from a text prompt",
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
			ctrl, err := generation.New(generation.Options{
				Backend:            client,
				Logger:             &logger,
				PollInterval:       cfg.PollInterval,
				SlowPollInterval:   cfg.SlowPollInterval,
				NotFoundRetryDelay: cfg.NotFoundRetryDelay,
				NotFoundThreshold:  cfg.NotFoundThreshold,
				MinDuration:        cfg.MinDurationSeconds,
				MaxDuration:        cfg.MaxDurationSeconds,
				Resolutions:        cfg.Resolutions,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			defer ctrl.Cancel()

			if err := ctrl.Submit(ctx, job.Parameters{
				Prompt:     prompt,
				Seconds:    duration,
				Resolution: resolution,
			}); err != nil {
				return err
			}

			final, err := ctrl.Wait(ctx)
			if err != nil {
				return err
			}

			if ctrl.State() != generation.StateCompleted {
				if final.Error != "" {
					return fmt.Errorf("generation failed: %s", final.Error)
				}
				return errors.New("generation did not complete")
			}
			if final.Result == nil || final.Result.VideoURL == "" {
				return errors.New("completed job carries no video url")
			}
			logger.Info().
				Str("job_id", final.ID).
				Str("video_url", final.Result.VideoURL).
				Msg("generation completed")

			if noDownload {
				fmt.Fprintln(cmd.OutOrStdout(), final.Result.VideoURL)
				return nil
			}

			dir := output
			if dir == "" {
				dir = cfg.DownloadDir
			}
			dest := filepath.Join(dir, download.DeriveFilename(final.Params.Prompt))
			// No client timeout here: large videos may take longer than any
			// sensible request deadline, so cancellation rides on ctx.
			if err := download.Save(ctx, &http.Client{}, final.Result.VideoURL, dest); err != nil {
				logger.Error().Err(err).Msg("download failed")
				return fmt.Errorf("%w (the video can still be fetched manually from %s)", err, final.Result.VideoURL)
			}
			logger.Info().Str("path", dest).Msg("video saved")
			fmt.Fprintln(cmd.OutOrStdout(), dest)
			return nil
		},
	}

	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "text prompt describing the video")
	cmd.Flags().IntVarP(&duration, "duration", "d", 5, "video duration in seconds")
	cmd.Flags().StringVarP(&resolution, "resolution", "r", "1280x720", "video resolution (WIDTHxHEIGHT)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "directory for the downloaded video (default: DOWNLOAD_DIR)")
	cmd.Flags().BoolVar(&noDownload, "no-download", false, "print the video url instead of downloading it")
	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}
