package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrison/sessionwal/internal/config"
	"github.com/harrison/sessionwal/internal/walog"
	"github.com/harrison/sessionwal/internal/walstore"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

var (
	flagDBPath string
	flagStrict bool
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "walctl",
		Short:   "Inspect and administer a sessionwal database",
		Version: Version,
		// Silence usage on errors to avoid duplicate help text.
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "path to the sessionwal database (default: from config / $SESSIONWAL_HOME)")
	cmd.PersistentFlags().BoolVar(&flagStrict, "strict", false, "require AppendEvent's session to already exist")

	cmd.AddCommand(newNewSessionCommand())
	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newStatsCommand())
	cmd.AddCommand(newArchiveCommand())
	cmd.AddCommand(newBulkArchiveCommand())
	cmd.AddCommand(newDiscoverCommand())
	cmd.AddCommand(newVacuumCommand())

	return cmd
}

// resolveDBPath returns --db if set, else the configured/default path.
func resolveDBPath() (string, error) {
	if flagDBPath != "" {
		return flagDBPath, nil
	}
	cfg, err := config.LoadConfig(".sessionwal/config.yaml")
	if err != nil {
		return "", err
	}
	if cfg.Store.DBPath != "" {
		if _, statErr := os.Stat(cfg.Store.DBPath); statErr == nil {
			return cfg.Store.DBPath, nil
		}
	}
	return config.DefaultDBPath()
}

// openStore opens the resolved database with a console logger wired in.
func openStore(ctx context.Context) (*walstore.Store, error) {
	path, err := resolveDBPath()
	if err != nil {
		return nil, err
	}
	logger := walog.New(os.Stderr, "warn")
	return walstore.Open(ctx, path, walstore.Options{
		Strict: flagStrict,
		Logger: logger,
	})
}
