package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"unmark/internal/config"
	"unmark/internal/daemonrun"
)

// configEnv overrides the config file location for service managers that
// cannot pass flags.
const configEnv = "UNMARK_CONFIG"

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevel string

	cmd := &cobra.Command{
		Use:           "unmarkd",
		Short:         "unmark watermark removal daemon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(configPath(configFlag))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !exists {
				fmt.Fprintf(cmd.ErrOrStderr(), "config %s not found; using defaults\n", path)
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: logLevel})
		},
	}
	cmd.Flags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (or $"+configEnv+")")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	return cmd
}

func configPath(flagValue string) string {
	if trimmed := strings.TrimSpace(flagValue); trimmed != "" {
		return trimmed
	}
	return strings.TrimSpace(os.Getenv(configEnv))
}
