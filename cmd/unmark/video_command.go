package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"unmark/internal/api"
	"unmark/internal/progress"
)

func newVideoCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	var watermarkType string
	var noWait bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "video <file>",
		Short: "Submit a video to the daemon and wait for the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := existingFile(args[0])
			if err != nil {
				return err
			}
			dest := outputPath
			if dest == "" {
				dest = defaultOutputPath(input, ".mp4")
			}

			client := ctx.client(30 * time.Minute)
			accepted, err := client.RemoveWatermarkVideo(cmd.Context(), input, watermarkType)
			if err != nil {
				return ctx.wrapClientError(err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Task %s queued\n", accepted.TaskID)
			if noWait {
				fmt.Fprintf(out, "Check progress with: unmark status %s\n", accepted.TaskID)
				return nil
			}

			if err := waitForVideo(cmd.Context(), client, accepted.TaskID, interval, out); err != nil {
				return err
			}
			if err := client.Download(cmd.Context(), accepted.DownloadURL, dest); err != nil {
				return fmt.Errorf("download result for task %s: %w", accepted.TaskID, ctx.wrapClientError(err))
			}
			fmt.Fprintf(out, "Saved %s\n", dest)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Where to save the restored video")
	cmd.Flags().StringVarP(&watermarkType, "type", "t", "", "Watermark type (defaults to model.default_watermark_type)")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Return once the video is queued")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Progress poll interval")
	return cmd
}

// waitForVideo polls progress until the task reaches a terminal state,
// printing each ten-point step.
func waitForVideo(ctx context.Context, client *api.Client, taskID string, interval time.Duration, out io.Writer) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastBucket := -1
	for {
		rec, err := client.Progress(ctx, taskID)
		if err != nil {
			return err
		}
		switch progress.Status(rec.Status) {
		case progress.StatusCompleted:
			fmt.Fprintln(out, "Progress: 100%")
			return nil
		case progress.StatusFailed:
			return fmt.Errorf("video task %s failed; see the daemon log for details", taskID)
		case progress.StatusNotFound:
			return fmt.Errorf("video task %s not found", taskID)
		}
		if bucket := int(rec.Progress * 10); bucket > lastBucket {
			lastBucket = bucket
			fmt.Fprintf(out, "Progress: %d%% (%s)\n", bucket*10, rec.Status)
		}

		select {
		case <-ctx.Done():
			return errors.Join(ctx.Err(), fmt.Errorf("stopped waiting; task %s keeps running in the daemon", taskID))
		case <-ticker.C:
		}
	}
}
