package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sydlexius/milkcrate/internal/config"
	"github.com/sydlexius/milkcrate/internal/database"
)

const defaultConfigPath = "/data/config.yaml"

func newRootCommand() *cobra.Command {
	var configFlag string

	ctx := &commandContext{configPath: &configFlag}

	rootCmd := &cobra.Command{
		Use:           "milkcrate",
		Short:         "Unified digital and physical music collection catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newSyncCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newBackupCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// commandContext resolves the global flags shared by all subcommands.
type commandContext struct {
	configPath *string
}

// loadConfig resolves the config path (flag, then MC_CONFIG_PATH, then
// the default) and loads it. A missing file falls back to defaults.
func (c *commandContext) loadConfig() (*config.Config, error) {
	path := strings.TrimSpace(*c.configPath)
	if path == "" {
		path = os.Getenv("MC_CONFIG_PATH")
	}
	if path == "" {
		path = defaultConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// openCatalog opens the configured database and applies pending
// migrations.
func openCatalog(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// cliLogger keeps one-shot command output clean: only warnings and
// errors reach stderr.
func cliLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
