package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newStatsCommand() *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print summary counts for the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			store, err := openStore(ctx)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer store.Close()

			stats, err := store.Stats(ctx)
			if err != nil {
				return fmt.Errorf("get stats: %w", err)
			}

			w := cmd.OutOrStdout()
			bold := color.New(color.Bold)
			bold.Fprintln(w, "Database summary")
			fmt.Fprintf(w, "  Sessions:        %d\n", stats.Sessions)
			fmt.Fprintf(w, "  Events:          %d\n", stats.Events)
			fmt.Fprintf(w, "  Unacked events:  %d\n", stats.UnackedEvents)
			fmt.Fprintf(w, "  Archived:        %d\n", stats.ArchivedCount)
			fmt.Fprintf(w, "  Compaction runs: %d\n", stats.CompactionRuns)

			discovered, err := store.GetDiscoveredSessions(ctx, backend)
			if err != nil {
				return fmt.Errorf("get discovered sessions: %w", err)
			}
			label := "Discovered (all backends)"
			if backend != "" {
				label = fmt.Sprintf("Discovered (backend %s)", backend)
			}
			fmt.Fprintf(w, "  %s: %d\n", label, len(discovered))
			return nil
		},
	}

	cmd.Flags().StringVar(&backend, "backend", "", "restrict the discovered-session count to this backend id")
	return cmd
}
