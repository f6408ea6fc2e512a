package consolidate

import (
	"encoding/json"

	"github.com/harrison/sessionwal/internal/walstore"
)

// ConsolidateEventsForRead produces a filtered, merged view of events
// suitable for rendering, without mutating storage. It is the fallback
// path for legacy data written before destructive consolidation
// existed, and for sanity-merging late-arrived chunks the writer has
// not yet consolidated. Running it on its own output is a no-op.
func ConsolidateEventsForRead(events []*walstore.Event) []*walstore.Event {
	filtered := make([]*walstore.Event, 0, len(events))
	for _, e := range events {
		if walstore.IsStub(e.Payload) {
			continue
		}
		filtered = append(filtered, e)
	}
	if len(filtered) == 0 {
		return filtered
	}

	out := make([]*walstore.Event, 0, len(filtered))
	for i := 0; i < len(filtered); {
		r, next := extractRun(filtered, i)
		out = append(out, mergeRun(r)...)
		i = next
	}
	return out
}

type eventRun struct {
	events []*walstore.Event
	merge  bool
}

// extractRun opens a run at start following the grouping rules in
// spec.md §4.5 and returns it along with the index just past it.
func extractRun(events []*walstore.Event, start int) (eventRun, int) {
	first := events[start]
	switch first.Kind {
	case walstore.KindAgentMessageChunk, walstore.KindAgentThoughtChunk, walstore.KindUserMessageChunk:
		end := start + 1
		for end < len(events) && events[end].Kind == first.Kind {
			end++
		}
		return eventRun{events: events[start:end], merge: end-start > 1}, end

	case walstore.KindToolCall:
		anchorID, _ := toolCallIDOf(first)
		end := start + 1
		closed := false
		for end < len(events) && events[end].Kind == walstore.KindToolCallUpdate {
			id, _ := toolCallIDOf(events[end])
			if id != anchorID {
				break
			}
			terminal := isTerminalEvent(events[end])
			end++
			if terminal {
				closed = true
				break
			}
		}
		return eventRun{events: events[start:end], merge: closed}, end

	case walstore.KindTerminalOutput:
		id, _ := terminalIDOf(first)
		end := start + 1
		for end < len(events) && events[end].Kind == walstore.KindTerminalOutput {
			otherID, ok := terminalIDOf(events[end])
			if !ok || otherID != id {
				break
			}
			end++
		}
		return eventRun{events: events[start:end], merge: end-start > 1}, end

	case walstore.KindUsageUpdate:
		end := start + 1
		for end < len(events) && events[end].Kind == walstore.KindUsageUpdate {
			end++
		}
		return eventRun{events: events[start:end], merge: end-start > 1}, end

	default:
		return eventRun{events: events[start : start+1]}, start + 1
	}
}

func mergeRun(r eventRun) []*walstore.Event {
	if !r.merge || len(r.events) == 1 {
		return r.events
	}
	last := r.events[len(r.events)-1]

	switch r.events[0].Kind {
	case walstore.KindAgentMessageChunk, walstore.KindAgentThoughtChunk, walstore.KindUserMessageChunk:
		payloads := payloadsOf(r.events)
		merged, err := mergeChunkPayloads(payloads, string(r.events[0].Kind))
		if err != nil {
			return r.events
		}
		return []*walstore.Event{copyWithPayload(last, merged)}

	case walstore.KindToolCall:
		anchor := r.events[0]
		updates := payloadsOf(r.events[1:])
		merged, err := mergeToolCallPayloads(anchor.Payload, updates)
		if err != nil {
			return r.events
		}
		return []*walstore.Event{copyWithPayload(last, merged)}

	case walstore.KindTerminalOutput:
		payloads := payloadsOf(r.events)
		merged, err := mergeTerminalOutputPayloads(payloads)
		if err != nil {
			return r.events
		}
		return []*walstore.Event{copyWithPayload(last, merged)}

	case walstore.KindUsageUpdate:
		return []*walstore.Event{last}
	}
	return r.events
}

func payloadsOf(events []*walstore.Event) [][]byte {
	out := make([][]byte, len(events))
	for i, e := range events {
		out[i] = e.Payload
	}
	return out
}

// copyWithPayload returns a copy of src with Payload replaced, id/seq/
// created_at kept from src (the last event of the merged run) so
// pagination cursors stay correct.
func copyWithPayload(src *walstore.Event, payload []byte) *walstore.Event {
	cp := *src
	cp.Payload = payload
	return &cp
}

func toolCallIDOf(e *walstore.Event) (string, bool) {
	var envelope jsonObject
	if err := json.Unmarshal(e.Payload, &envelope); err != nil {
		return "", false
	}
	update, ok := envelopeUpdate(envelope)
	if !ok {
		return "", false
	}
	return rawString(update["toolCallId"])
}

// terminalIDOf reads terminalId directly off the envelope: terminal_output
// payloads are flat, with no "update" wrapper like tool_call payloads.
func terminalIDOf(e *walstore.Event) (string, bool) {
	var envelope jsonObject
	if err := json.Unmarshal(e.Payload, &envelope); err != nil {
		return "", false
	}
	return rawString(envelope["terminalId"])
}

func isTerminalEvent(e *walstore.Event) bool {
	var envelope jsonObject
	if err := json.Unmarshal(e.Payload, &envelope); err != nil {
		return false
	}
	update, ok := envelopeUpdate(envelope)
	if !ok {
		return false
	}
	status, ok := rawString(update["status"])
	return ok && isTerminalStatus(status)
}
