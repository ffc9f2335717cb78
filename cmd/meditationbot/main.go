package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/m3rciful/meditationbot/core/buildinfo"
	corecmd "github.com/m3rciful/meditationbot/core/cmd"
	coredatabase "github.com/m3rciful/meditationbot/core/database"
	"github.com/m3rciful/meditationbot/core/logger"
	"github.com/m3rciful/meditationbot/internal/app"
)

const defaultConfigPath = "config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "meditationbot",
		Short:         "Telegram bot for guided meditation",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runBot(configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default $CONFIG_PATH or ./config.yaml)")

	root.AddCommand(newRunCmd(&configPath))
	root.AddCommand(newMigrateCmd(&configPath))
	root.AddCommand(newVersionCmd())
	return root
}

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot until interrupted",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runBot(*configPath)
		},
	}
}

func runBot(configPath string) error {
	return corecmd.Run(corecmd.Options{
		ConfigPath:        configPath,
		DefaultConfigPath: defaultConfigPath,
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			cfg, err := app.LoadConfig(path)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			a, err := app.Bootstrap(cfg.(*app.Config))
			if err != nil {
				return nil, err
			}
			return a, nil
		},
	})
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations for the postgres or sqlite storage driver",
		RunE: func(_ *cobra.Command, _ []string) error {
			path, err := corecmd.ResolveConfigPath(corecmd.Options{
				ConfigPath:        *configPath,
				DefaultConfigPath: defaultConfigPath,
			})
			if err != nil {
				return err
			}
			cfg, err := app.LoadConfig(path)
			if err != nil {
				return err
			}
			db := cfg.DatabaseConfig()
			if db == nil {
				return fmt.Errorf("storage.driver %q does not use a database", cfg.Storage.Driver)
			}
			if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
				return err
			}
			defer func() { _ = logger.Shutdown() }()
			return coredatabase.RunMigrations(*db)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			date := buildinfo.Date
			if date == "" {
				date = "unknown"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "meditationbot %s (%s, built %s)\n", buildinfo.Version, buildinfo.Commit, date)
		},
	}
}
