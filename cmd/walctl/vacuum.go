package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/sessionwal/internal/snapshot"
)

func newVacuumCommand() *cobra.Command {
	var destPath string

	cmd := &cobra.Command{
		Use:   "vacuum",
		Short: "Write a defragmented backup copy of the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			srcPath, err := resolveDBPath()
			if err != nil {
				return fmt.Errorf("resolve database path: %w", err)
			}

			store, err := openStore(ctx)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer store.Close()

			if destPath == "" {
				destPath = srcPath + ".vacuum"
			}

			result, err := snapshot.Backup(ctx, store, srcPath, destPath)
			if err != nil {
				return fmt.Errorf("vacuum: %w", err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "wrote %s\n", result.Path)
			fmt.Fprintf(w, "  before: %d bytes\n", result.BeforeSize)
			fmt.Fprintf(w, "  after:  %d bytes\n", result.AfterSize)
			return nil
		},
	}

	cmd.Flags().StringVar(&destPath, "out", "", "destination path (default: <db>.vacuum)")
	return cmd
}
