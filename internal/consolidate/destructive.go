package consolidate

import (
	"context"
	"fmt"

	"github.com/harrison/sessionwal/internal/walstore"
)

// store is the subset of *walstore.Store the writer path needs. A
// narrow interface keeps this package testable against a fake without
// pulling in sqlite.
type store interface {
	UpdateEventPayload(ctx context.Context, eventID int64, newPayload []byte) error
	StubEventPayloads(ctx context.Context, eventIDs []int64) error
	RecordCompaction(ctx context.Context, sessionID string, revision *int, operation string, eventsAffected int) error
}

var _ store = (*walstore.Store)(nil)

// ConsolidateToolCall merges a terminal tool_call_update sequence into
// its anchor tool_call event, then stubs the updates. A no-op if
// updateIDs is empty. anchorPayload and updatePayloads must be in the
// same order as updateIDs.
func ConsolidateToolCall(ctx context.Context, s store, sessionID string, anchorID int64, updateIDs []int64, anchorPayload []byte, updatePayloads [][]byte) error {
	if len(updateIDs) == 0 {
		return nil
	}
	if len(updateIDs) != len(updatePayloads) {
		return fmt.Errorf("consolidate: %d update ids but %d payloads", len(updateIDs), len(updatePayloads))
	}

	merged, err := mergeToolCallPayloads(anchorPayload, updatePayloads)
	if err != nil {
		return fmt.Errorf("consolidate tool call: %w", err)
	}
	if err := s.UpdateEventPayload(ctx, anchorID, merged); err != nil {
		return err
	}
	if err := s.StubEventPayloads(ctx, updateIDs); err != nil {
		return err
	}
	return s.RecordCompaction(ctx, sessionID, nil, "consolidate_tool_call", 1+len(updateIDs))
}

// ConsolidateChunks merges a run of same-kind chunk events into the
// first event id, concatenating their text in order, then stubs the
// rest. kind must be one of agent_message_chunk, agent_thought_chunk,
// or user_message_chunk. A no-op for fewer than two events.
func ConsolidateChunks(ctx context.Context, s store, sessionID string, eventIDs []int64, payloads [][]byte, kind walstore.Kind) error {
	if len(eventIDs) < 2 {
		return nil
	}
	if len(eventIDs) != len(payloads) {
		return fmt.Errorf("consolidate: %d event ids but %d payloads", len(eventIDs), len(payloads))
	}

	merged, err := mergeChunkPayloads(payloads, string(kind))
	if err != nil {
		return fmt.Errorf("consolidate chunks: %w", err)
	}
	if err := s.UpdateEventPayload(ctx, eventIDs[0], merged); err != nil {
		return err
	}
	if err := s.StubEventPayloads(ctx, eventIDs[1:]); err != nil {
		return err
	}
	return s.RecordCompaction(ctx, sessionID, nil, "consolidate_chunks", len(eventIDs))
}

// ConsolidateTerminalOutput merges a run of terminal_output events
// sharing a terminalId into the first event id. A no-op for fewer than
// two events.
func ConsolidateTerminalOutput(ctx context.Context, s store, sessionID string, eventIDs []int64, payloads [][]byte) error {
	if len(eventIDs) < 2 {
		return nil
	}
	if len(eventIDs) != len(payloads) {
		return fmt.Errorf("consolidate: %d event ids but %d payloads", len(eventIDs), len(payloads))
	}

	merged, err := mergeTerminalOutputPayloads(payloads)
	if err != nil {
		return fmt.Errorf("consolidate terminal output: %w", err)
	}
	if err := s.UpdateEventPayload(ctx, eventIDs[0], merged); err != nil {
		return err
	}
	if err := s.StubEventPayloads(ctx, eventIDs[1:]); err != nil {
		return err
	}
	return s.RecordCompaction(ctx, sessionID, nil, "consolidate_terminal_output", len(eventIDs))
}

// DeduplicateUsageUpdates stubs every usage_update event except the
// last, which already carries the most recent totals and is preserved
// verbatim. A no-op for fewer than two events.
func DeduplicateUsageUpdates(ctx context.Context, s store, sessionID string, eventIDs []int64) error {
	if len(eventIDs) < 2 {
		return nil
	}
	if err := s.StubEventPayloads(ctx, eventIDs[:len(eventIDs)-1]); err != nil {
		return err
	}
	return s.RecordCompaction(ctx, sessionID, nil, "deduplicate_usage_updates", len(eventIDs))
}
