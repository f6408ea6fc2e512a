package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newArchiveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive <session-id>",
		Short: "Archive a single session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			sessionID := args[0]

			store, err := openStore(ctx)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer store.Close()

			if err := store.ArchiveSession(ctx, sessionID); err != nil {
				return fmt.Errorf("archive session: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived %s\n", sessionID)
			return nil
		},
	}
	return cmd
}

func newBulkArchiveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulk-archive <file-of-ids>",
		Short: "Archive every session id listed in a file, one per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			ids, err := readLines(args[0])
			if err != nil {
				return fmt.Errorf("read session id file: %w", err)
			}
			if len(ids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no session ids to archive")
				return nil
			}

			store, err := openStore(ctx)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer store.Close()

			n, err := store.BulkArchiveSessions(ctx, ids)
			if err != nil {
				return fmt.Errorf("bulk archive: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived %d of %d listed sessions (rest already archived)\n", n, len(ids))
			return nil
		},
	}
	return cmd
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
