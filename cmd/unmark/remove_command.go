package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	var watermarkType string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "remove <image>",
		Short: "Remove the watermark from an image via the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := existingFile(args[0])
			if err != nil {
				return err
			}
			dest := outputPath
			if dest == "" {
				dest = defaultOutputPath(input, ".png")
			}

			client := ctx.client(timeout)
			resp, err := client.RemoveWatermark(cmd.Context(), input, watermarkType)
			if err != nil {
				return ctx.wrapClientError(err)
			}
			if err := client.Download(cmd.Context(), resp.DownloadURL, dest); err != nil {
				return fmt.Errorf("download result for task %s: %w", resp.TaskID, ctx.wrapClientError(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %s completed\nSaved %s\n", resp.TaskID, dest)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Where to save the restored image")
	cmd.Flags().StringVarP(&watermarkType, "type", "t", "", "Watermark type (defaults to model.default_watermark_type)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Request timeout")
	return cmd
}

func existingFile(arg string) (string, error) {
	path, err := filepath.Abs(strings.TrimSpace(arg))
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("inspect %q: %w", arg, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	return path, nil
}

// defaultOutputPath places the result next to the input as <stem>_unmarked<ext>.
func defaultOutputPath(input, ext string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(input), stem+"_unmarked"+ext)
}
