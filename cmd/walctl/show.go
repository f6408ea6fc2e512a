package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/sessionwal/internal/consolidate"
	"github.com/harrison/sessionwal/internal/walstore"
)

func newShowCommand() *cobra.Command {
	var revision int
	var afterSeq int

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print an event timeline for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			sessionID := args[0]

			store, err := openStore(ctx)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer store.Close()

			sess, err := store.GetSession(ctx, sessionID)
			if err != nil {
				return fmt.Errorf("get session: %w", err)
			}
			if sess == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "session %s not found\n", sessionID)
				return nil
			}
			if revision == 0 {
				revision = sess.CurrentRevision
			}

			events, err := store.QueryEvents(ctx, sessionID, revision, afterSeq, 0)
			if err != nil {
				return fmt.Errorf("query events: %w", err)
			}

			view := consolidate.ConsolidateEventsForRead(events)
			printTimeline(cmd.OutOrStdout(), sessionID, revision, view)
			return nil
		},
	}

	cmd.Flags().IntVar(&revision, "revision", 0, "revision to show (default: session's current revision)")
	cmd.Flags().IntVar(&afterSeq, "after-seq", 0, "only show events with seq greater than this")
	return cmd
}

func printTimeline(w io.Writer, sessionID string, revision int, events []*walstore.Event) {
	cyan := color.New(color.FgCyan, color.Bold)
	gray := color.New(color.FgHiBlack)

	cyan.Fprintf(w, "\n=== %s (revision %d) ===\n\n", sessionID, revision)
	if len(events) == 0 {
		fmt.Fprintln(w, "(no events)")
		return
	}

	for _, e := range events {
		label := kindColor(e.Kind).Sprint(string(e.Kind))
		fmt.Fprintf(w, "[seq %d] %s\n", e.Seq, label)
		gray.Fprintf(w, "  %s\n", truncatePayload(e.Payload))
	}
}

func kindColor(kind walstore.Kind) *color.Color {
	switch kind {
	case walstore.KindToolCall, walstore.KindToolCallUpdate:
		return color.New(color.FgYellow)
	case walstore.KindTerminalOutput:
		return color.New(color.FgMagenta)
	case walstore.KindUsageUpdate:
		return color.New(color.FgBlue)
	default:
		return color.New(color.FgGreen)
	}
}

func truncatePayload(payload []byte) string {
	const maxLen = 160
	s := string(payload)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "…"
}
