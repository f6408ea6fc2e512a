package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newNewSessionCommand() *cobra.Command {
	var machineID, backendID, cwd, title string

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Generate a session id and register it with EnsureSession",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			store, err := openStore(ctx)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer store.Close()

			sessionID := uuid.NewString()
			if _, err := store.EnsureSession(ctx, sessionID, machineID, backendID, cwd, title); err != nil {
				return fmt.Errorf("ensure session: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), sessionID)
			return nil
		},
	}

	cmd.Flags().StringVar(&machineID, "machine", "", "machine id to register the session under")
	cmd.Flags().StringVar(&backendID, "backend", "", "backend id to register the session under")
	cmd.Flags().StringVar(&cwd, "cwd", "", "working directory to record for the session")
	cmd.Flags().StringVar(&title, "title", "", "human-readable title for the session")
	return cmd
}
