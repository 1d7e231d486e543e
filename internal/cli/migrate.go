package cli

import (
	"fmt"
	"strconv"

	"github.com/pmitsakas/thesisflow/internal/database"
	"github.com/pmitsakas/thesisflow/pkg/logger"
	"github.com/spf13/cobra"
)

func MigrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, *configPath, func(m *database.Migrator) error {
				return m.Up()
			}, "Migrations applied successfully")
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, *configPath, func(m *database.Migrator) error {
				return m.Down()
			}, "Migrations rolled back successfully")
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			return withMigrator(cmd, *configPath, func(m *database.Migrator) error {
				return m.Force(version)
			}, "Migration version forced")
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, *configPath, func(m *database.Migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
				return nil
			}, "")
		},
	})

	return cmd
}

func withMigrator(cmd *cobra.Command, configPath string, fn func(*database.Migrator) error, done string) error {
	log := logger.New()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.NewPostgres(cmd.Context(), cfg.Database, log)
	if err != nil {
		return err
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, cfg.Migrations.Path)
	if err != nil {
		return err
	}
	defer migrator.Close()

	if err := fn(migrator); err != nil {
		return err
	}

	if done != "" {
		log.Info().Str("source", cfg.Migrations.Path).Msg(done)
	}
	return nil
}
