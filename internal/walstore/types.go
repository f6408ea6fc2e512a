// Package walstore implements the session write-ahead log: durable
// per-session event storage with revision-scoped sequence numbers, ack
// cursors, archive tombstones, and a discovered-session catalogue.
package walstore

import (
	"encoding/json"
	"time"
)

// Kind is the closed-set discriminant carried by every event. The store
// treats it as an opaque string; only internal/consolidate inspects it
// for merge grouping.
type Kind string

// Well-known event kinds. Hosts may append implementation-defined kinds;
// the store does not validate against this list.
const (
	KindUserMessage        Kind = "user_message"
	KindUserMessageChunk   Kind = "user_message_chunk"
	KindAgentMessageChunk  Kind = "agent_message_chunk"
	KindAgentThoughtChunk  Kind = "agent_thought_chunk"
	KindToolCall           Kind = "tool_call"
	KindToolCallUpdate     Kind = "tool_call_update"
	KindTerminalOutput     Kind = "terminal_output"
	KindUsageUpdate        Kind = "usage_update"
	KindTurnEnd            Kind = "turn_end"
)

// Session is one interactive conversation with an agent.
type Session struct {
	SessionID       string
	MachineID       string
	BackendID       string
	CurrentRevision int
	CWD             string
	Title           string
	AgentUpdatedAt  string
	CreatedAt       string
	UpdatedAt       string
}

// Event is one row in a session's write-ahead log.
type Event struct {
	ID          int64
	SessionID   string
	Revision    int
	Seq         int
	Kind        Kind
	Payload     []byte // raw JSON, as stored
	CreatedAt   string
	AckedAt     *string
	CompactedAt *string
}

// stubPayload is the canonical placeholder written over merged-away
// event slots. Its shape must never widen: readers detect a stub by
// checking it is exactly this one key.
const stubPayload = `{"_c":true}`

// IsStub reports whether payload is the canonical stub marker: a JSON
// object with exactly one key, "_c", set to true. Widening this check
// (e.g. accepting extra keys) would collide with future stub versions.
func IsStub(payload []byte) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return false
	}
	if len(m) != 1 {
		return false
	}
	c, ok := m["_c"]
	if !ok {
		return false
	}
	return string(c) == "true"
}

// DiscoveredSession is a cached catalogue entry for discovery UIs. The
// store never originates these rows; hosts push them via
// SaveDiscoveredSessions.
type DiscoveredSession struct {
	SessionID      string
	BackendID      string
	CWD            string
	Title          string
	AgentUpdatedAt string
	DiscoveredAt   string
	LastVerifiedAt string
	IsStale        bool
}

// ArchiveTombstone records that a session id is archived, independent
// of whether its Session row still exists.
type ArchiveTombstone struct {
	SessionID  string
	ArchivedAt string
}

// CompactionLogEntry is an audit-trail row for an operator-facing
// consolidation or archive operation. Informational only; no invariant
// depends on it.
type CompactionLogEntry struct {
	ID             int64
	SessionID      string
	Revision       *int
	Operation      string
	EventsAffected int
	StartedAt      string
	CompletedAt    *string
}

// nowString returns the current time formatted as the ISO-8601 string
// used for every timestamp column in this store.
func nowString(clock func() time.Time) string {
	return clock().UTC().Format(time.RFC3339Nano)
}
