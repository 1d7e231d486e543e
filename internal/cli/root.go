// Package cli wires the thesisflow commands.
package cli

import (
	"github.com/pmitsakas/thesisflow/internal/config"
	"github.com/pmitsakas/thesisflow/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// RootCmd returns the thesisflow command tree. Without a sub-command it
// serves the API.
func RootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "thesisflow",
		Short:         "Dissertation assignment workflow service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, configPath)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default ./config/config.yaml)")

	rootCmd.AddCommand(ServeCmd(&configPath))
	rootCmd.AddCommand(MigrateCmd(&configPath))

	return rootCmd
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func serverLogger(cfg *config.Config) zerolog.Logger {
	return logger.NewWithConfig(cfg.Logging.Level, cfg.Logging.Pretty, cfg.Logging.NoColor)
}
