package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newDiscoverCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Inspect and maintain the discovered-session catalogue",
	}
	cmd.AddCommand(newDiscoverListCommand())
	cmd.AddCommand(newDiscoverGCCommand())
	return cmd
}

func newDiscoverListCommand() *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List non-stale discovered sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			store, err := openStore(ctx)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer store.Close()

			sessions, err := store.GetDiscoveredSessions(ctx, backend)
			if err != nil {
				return fmt.Errorf("get discovered sessions: %w", err)
			}

			w := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(w, "no discovered sessions")
				return nil
			}
			for _, d := range sessions {
				fmt.Fprintf(w, "%-36s  %-12s  %s\n", d.SessionID, d.BackendID, d.Title)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "", "restrict to this backend id")
	return cmd
}

func newDiscoverGCCommand() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Mark-and-sweep discovered sessions not verified since a cutoff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			store, err := openStore(ctx)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer store.Close()

			cutoff := time.Now().Add(-olderThan).UTC().Format(time.RFC3339Nano)

			// Mark-then-sweep: GetDiscoveredSessions only returns
			// non-stale, non-archived rows, so this is safe to call on
			// every gc run without re-marking already-deleted entries.
			candidates, err := store.GetDiscoveredSessions(ctx, "")
			if err != nil {
				return fmt.Errorf("get discovered sessions: %w", err)
			}
			for _, d := range candidates {
				if d.LastVerifiedAt < cutoff {
					if err := store.MarkDiscoveredSessionStale(ctx, d.SessionID); err != nil {
						return fmt.Errorf("mark %s stale: %w", d.SessionID, err)
					}
				}
			}

			n, err := store.DeleteStaleDiscoveredSessions(ctx, cutoff)
			if err != nil {
				return fmt.Errorf("delete stale discovered sessions: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d stale discovered sessions older than %s\n", n, olderThan)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 720*time.Hour, "sweep rows not verified since this long ago")
	return cmd
}
