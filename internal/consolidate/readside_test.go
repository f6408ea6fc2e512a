package consolidate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/sessionwal/internal/walstore"
)

func chunkEvent(id int64, seq int, kind walstore.Kind, text string) *walstore.Event {
	return &walstore.Event{
		ID:   id,
		Seq:  seq,
		Kind: kind,
		Payload: []byte(`{"update":{"sessionUpdate":"` + string(kind) + `","content":{"type":"text","text":"` + text + `"}}}`),
	}
}

func TestConsolidateEventsForRead_FiltersStubs(t *testing.T) {
	events := []*walstore.Event{
		{ID: 1, Seq: 1, Kind: walstore.KindUserMessage, Payload: []byte(`{"_c":true}`)},
		{ID: 2, Seq: 2, Kind: walstore.KindUserMessage, Payload: []byte(`{"text":"hi"}`)},
	}
	out := ConsolidateEventsForRead(events)
	require.Len(t, out, 1)
	assert.Equal(t, int64(2), out[0].ID)
}

func TestConsolidateEventsForRead_MergesChunkRun(t *testing.T) {
	events := []*walstore.Event{
		chunkEvent(1, 1, walstore.KindAgentMessageChunk, "Hello "),
		chunkEvent(2, 2, walstore.KindAgentMessageChunk, "world"),
		chunkEvent(3, 3, walstore.KindAgentMessageChunk, "!"),
	}
	out := ConsolidateEventsForRead(events)
	require.Len(t, out, 1)
	assert.Equal(t, int64(3), out[0].ID) // id/seq copied from last event
	assert.Equal(t, 3, out[0].Seq)
	assert.Contains(t, string(out[0].Payload), `"text":"Hello world!"`)
}

func TestConsolidateEventsForRead_DifferentChunkKindsSplitRuns(t *testing.T) {
	events := []*walstore.Event{
		chunkEvent(1, 1, walstore.KindAgentMessageChunk, "A"),
		chunkEvent(2, 2, walstore.KindAgentThoughtChunk, "B"),
		chunkEvent(3, 3, walstore.KindAgentMessageChunk, "C"),
	}
	out := ConsolidateEventsForRead(events)
	require.Len(t, out, 3) // each kind change breaks the run
}

func TestConsolidateEventsForRead_ToolCallClosedByTerminalStatus(t *testing.T) {
	events := []*walstore.Event{
		{ID: 1, Seq: 1, Kind: walstore.KindToolCall, Payload: []byte(`{"update":{"sessionUpdate":"tool_call","toolCallId":"tc-1","status":"pending","title":"Read"}}`)},
		{ID: 2, Seq: 2, Kind: walstore.KindToolCallUpdate, Payload: []byte(`{"update":{"sessionUpdate":"tool_call_update","toolCallId":"tc-1","status":"in_progress"}}`)},
		{ID: 3, Seq: 3, Kind: walstore.KindToolCallUpdate, Payload: []byte(`{"update":{"sessionUpdate":"tool_call_update","toolCallId":"tc-1","status":"completed","title":"Read done"}}`)},
	}
	out := ConsolidateEventsForRead(events)
	require.Len(t, out, 1)
	assert.Equal(t, int64(3), out[0].ID)
	assert.Contains(t, string(out[0].Payload), `"status":"completed"`)
	assert.Contains(t, string(out[0].Payload), `"title":"Read done"`)
	assert.Contains(t, string(out[0].Payload), `"sessionUpdate":"tool_call"`)
}

func TestConsolidateEventsForRead_ToolCallWithoutTerminalStatusEmittedUnmerged(t *testing.T) {
	events := []*walstore.Event{
		{ID: 1, Seq: 1, Kind: walstore.KindToolCall, Payload: []byte(`{"update":{"sessionUpdate":"tool_call","toolCallId":"tc-1","status":"pending"}}`)},
		{ID: 2, Seq: 2, Kind: walstore.KindToolCallUpdate, Payload: []byte(`{"update":{"sessionUpdate":"tool_call_update","toolCallId":"tc-1","status":"in_progress"}}`)},
	}
	out := ConsolidateEventsForRead(events)
	require.Len(t, out, 2)
	assert.Equal(t, int64(1), out[0].ID)
	assert.Equal(t, int64(2), out[1].ID)
}

func TestConsolidateEventsForRead_ToolCallDifferentIDsAreIndependent(t *testing.T) {
	events := []*walstore.Event{
		{ID: 1, Seq: 1, Kind: walstore.KindToolCall, Payload: []byte(`{"update":{"sessionUpdate":"tool_call","toolCallId":"tc-1","status":"pending"}}`)},
		{ID: 2, Seq: 2, Kind: walstore.KindToolCallUpdate, Payload: []byte(`{"update":{"sessionUpdate":"tool_call_update","toolCallId":"tc-2","status":"completed"}}`)},
	}
	out := ConsolidateEventsForRead(events)
	require.Len(t, out, 2) // mismatched toolCallId breaks the run immediately
}

func TestConsolidateEventsForRead_TerminalOutputRun(t *testing.T) {
	events := []*walstore.Event{
		{ID: 1, Seq: 1, Kind: walstore.KindTerminalOutput, Payload: []byte(`{"sessionId":"s1","terminalId":"t1","delta":"a"}`)},
		{ID: 2, Seq: 2, Kind: walstore.KindTerminalOutput, Payload: []byte(`{"sessionId":"s1","terminalId":"t1","delta":"b","exitStatus":1}`)},
	}
	out := ConsolidateEventsForRead(events)
	require.Len(t, out, 1)
	assert.Contains(t, string(out[0].Payload), `"output":"ab"`)
	assert.Contains(t, string(out[0].Payload), `"exitStatus":1`)
}

func TestConsolidateEventsForRead_UsageUpdateRunKeepsLastOnly(t *testing.T) {
	events := []*walstore.Event{
		{ID: 1, Seq: 1, Kind: walstore.KindUsageUpdate, Payload: []byte(`{"update":{"sessionUpdate":"usage_update","totalTokens":10}}`)},
		{ID: 2, Seq: 2, Kind: walstore.KindUsageUpdate, Payload: []byte(`{"update":{"sessionUpdate":"usage_update","totalTokens":25}}`)},
	}
	out := ConsolidateEventsForRead(events)
	require.Len(t, out, 1)
	assert.Equal(t, int64(2), out[0].ID)
	assert.Contains(t, string(out[0].Payload), `"totalTokens":25`)
}

func TestConsolidateEventsForRead_OtherKindBreaksRun(t *testing.T) {
	events := []*walstore.Event{
		chunkEvent(1, 1, walstore.KindAgentMessageChunk, "A"),
		{ID: 2, Seq: 2, Kind: walstore.KindTurnEnd, Payload: []byte(`{}`)},
		chunkEvent(3, 3, walstore.KindAgentMessageChunk, "B"),
	}
	out := ConsolidateEventsForRead(events)
	require.Len(t, out, 3)
}

func TestConsolidateEventsForRead_Idempotent(t *testing.T) {
	events := []*walstore.Event{
		chunkEvent(1, 1, walstore.KindAgentMessageChunk, "Hello "),
		chunkEvent(2, 2, walstore.KindAgentMessageChunk, "world"),
	}
	first := ConsolidateEventsForRead(events)
	second := ConsolidateEventsForRead(first)
	require.Len(t, second, 1)
	assert.Equal(t, string(first[0].Payload), string(second[0].Payload))
}

func TestConsolidateEventsForRead_UnicodeConcatenation(t *testing.T) {
	events := []*walstore.Event{
		chunkEvent(1, 1, walstore.KindAgentMessageChunk, "café "),
		chunkEvent(2, 2, walstore.KindAgentMessageChunk, "😀"),
	}
	out := ConsolidateEventsForRead(events)
	require.Len(t, out, 1)
	assert.Contains(t, string(out[0].Payload), `"text":"café 😀"`)
}
