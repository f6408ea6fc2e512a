package consolidate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type compactionCall struct {
	sessionID string
	operation string
	affected  int
}

type fakeStore struct {
	payloads    map[int64][]byte
	stubbed     map[int64]bool
	compactions []compactionCall
}

func newFakeStore(initial map[int64][]byte) *fakeStore {
	payloads := make(map[int64][]byte, len(initial))
	for k, v := range initial {
		payloads[k] = v
	}
	return &fakeStore{payloads: payloads, stubbed: map[int64]bool{}}
}

func (f *fakeStore) UpdateEventPayload(ctx context.Context, eventID int64, newPayload []byte) error {
	f.payloads[eventID] = newPayload
	return nil
}

func (f *fakeStore) StubEventPayloads(ctx context.Context, eventIDs []int64) error {
	for _, id := range eventIDs {
		f.stubbed[id] = true
		f.payloads[id] = []byte(`{"_c":true}`)
	}
	return nil
}

func (f *fakeStore) RecordCompaction(ctx context.Context, sessionID string, revision *int, operation string, eventsAffected int) error {
	f.compactions = append(f.compactions, compactionCall{sessionID, operation, eventsAffected})
	return nil
}

func TestConsolidateChunks_ScenarioOne(t *testing.T) {
	texts := []string{"Hello ", "world", "! ", "How ", "are you?"}
	payloads := make([][]byte, len(texts))
	ids := make([]int64, len(texts))
	for i, text := range texts {
		ids[i] = int64(i + 1)
		payloads[i] = []byte(`{"sessionId":"s1","update":{"sessionUpdate":"agent_message_chunk","content":{"type":"text","text":"` + text + `"}}}`)
	}

	fs := newFakeStore(nil)
	require.NoError(t, ConsolidateChunks(context.Background(), fs, "s1", ids, payloads, "agent_message_chunk"))

	merged := fs.payloads[1]
	assert.Contains(t, string(merged), `"text":"Hello world! How are you?"`)
	for _, id := range ids[1:] {
		assert.True(t, fs.stubbed[id])
	}
	require.Len(t, fs.compactions, 1)
	assert.Equal(t, "consolidate_chunks", fs.compactions[0].operation)
}

func TestConsolidateChunks_SingleEventNoOp(t *testing.T) {
	fs := newFakeStore(nil)
	err := ConsolidateChunks(context.Background(), fs, "s1", []int64{1}, [][]byte{[]byte(`{}`)}, "agent_message_chunk")
	require.NoError(t, err)
	assert.Empty(t, fs.payloads)
	assert.Empty(t, fs.compactions)
}

func TestConsolidateChunks_SkipsEmptyAndNonTextChunks(t *testing.T) {
	payloads := [][]byte{
		[]byte(`{"update":{"sessionUpdate":"agent_message_chunk","content":{"type":"text","text":"A"}}}`),
		[]byte(`{"update":{"sessionUpdate":"agent_message_chunk","content":{"type":"text","text":""}}}`),
		[]byte(`{"update":{"sessionUpdate":"agent_message_chunk","content":{"type":"image","text":"ignored"}}}`),
		[]byte(`{"update":{"sessionUpdate":"agent_message_chunk","content":{"type":"text","text":"B"}}}`),
	}
	ids := []int64{1, 2, 3, 4}
	fs := newFakeStore(nil)
	require.NoError(t, ConsolidateChunks(context.Background(), fs, "s1", ids, payloads, "agent_message_chunk"))
	assert.Contains(t, string(fs.payloads[1]), `"text":"AB"`)
}

func TestConsolidateToolCall_Lifecycle(t *testing.T) {
	anchor := []byte(`{"sessionId":"s1","update":{"sessionUpdate":"tool_call","toolCallId":"tc-1","status":"pending","title":"Read"}}`)
	updates := [][]byte{
		[]byte(`{"update":{"sessionUpdate":"tool_call_update","toolCallId":"tc-1","status":"in_progress"}}`),
		[]byte(`{"update":{"sessionUpdate":"tool_call_update","toolCallId":"tc-1","status":"in_progress"}}`),
		[]byte(`{"update":{"sessionUpdate":"tool_call_update","toolCallId":"tc-1","status":"in_progress"}}`),
		[]byte(`{"update":{"sessionUpdate":"tool_call_update","toolCallId":"tc-1","status":"completed","title":"Read done","rawOutput":{"content":"ok"}}}`),
	}
	ids := []int64{2, 3, 4, 5}

	fs := newFakeStore(map[int64][]byte{1: anchor})
	require.NoError(t, ConsolidateToolCall(context.Background(), fs, "s1", 1, ids, anchor, updates))

	merged := fs.payloads[1]
	assert.Contains(t, string(merged), `"sessionUpdate":"tool_call"`)
	assert.Contains(t, string(merged), `"status":"completed"`)
	assert.Contains(t, string(merged), `"title":"Read done"`)
	assert.Contains(t, string(merged), `"rawOutput":{"content":"ok"}`)
	for _, id := range ids {
		assert.True(t, fs.stubbed[id])
	}
}

func TestConsolidateToolCall_NullPreservingMerge(t *testing.T) {
	anchor := []byte(`{"update":{"sessionUpdate":"tool_call","toolCallId":"tc-1","title":"Original","rawInput":{"command":"cat"}}}`)
	update := []byte(`{"update":{"sessionUpdate":"tool_call_update","toolCallId":"tc-1","status":"completed","title":null,"rawInput":null,"rawOutput":{"content":"ok"}}}`)

	fs := newFakeStore(map[int64][]byte{1: anchor})
	require.NoError(t, ConsolidateToolCall(context.Background(), fs, "s1", 1, []int64{2}, anchor, [][]byte{update}))

	merged := fs.payloads[1]
	assert.Contains(t, string(merged), `"status":"completed"`)
	assert.Contains(t, string(merged), `"title":"Original"`)
	assert.Contains(t, string(merged), `"rawInput":{"command":"cat"}`)
	assert.Contains(t, string(merged), `"rawOutput":{"content":"ok"}`)
}

func TestConsolidateToolCall_EmptyUpdateIDsNoOp(t *testing.T) {
	fs := newFakeStore(nil)
	require.NoError(t, ConsolidateToolCall(context.Background(), fs, "s1", 1, nil, []byte(`{}`), nil))
	assert.Empty(t, fs.payloads)
}

func TestConsolidateTerminalOutput(t *testing.T) {
	payloads := [][]byte{
		[]byte(`{"sessionId":"s1","terminalId":"t1","delta":"line1\n"}`),
		[]byte(`{"sessionId":"s1","terminalId":"t1","delta":"line2\n"}`),
		[]byte(`{"sessionId":"s1","terminalId":"t1","delta":"","exitStatus":0}`),
	}
	ids := []int64{1, 2, 3}
	fs := newFakeStore(nil)
	require.NoError(t, ConsolidateTerminalOutput(context.Background(), fs, "s1", ids, payloads))

	merged := fs.payloads[1]
	assert.Contains(t, string(merged), `"output":"line1\nline2\n"`)
	assert.Contains(t, string(merged), `"truncated":true`)
	assert.Contains(t, string(merged), `"exitStatus":0`)
}

func TestDeduplicateUsageUpdates(t *testing.T) {
	fs := newFakeStore(nil)
	require.NoError(t, DeduplicateUsageUpdates(context.Background(), fs, "s1", []int64{1, 2, 3}))
	assert.True(t, fs.stubbed[1])
	assert.True(t, fs.stubbed[2])
	assert.False(t, fs.stubbed[3])

	fs2 := newFakeStore(nil)
	require.NoError(t, DeduplicateUsageUpdates(context.Background(), fs2, "s1", []int64{1}))
	assert.Empty(t, fs2.stubbed)
}

func TestConsolidateChunks_Idempotent(t *testing.T) {
	payloads := [][]byte{
		[]byte(`{"update":{"sessionUpdate":"agent_message_chunk","content":{"type":"text","text":"Hi "}}}`),
		[]byte(`{"update":{"sessionUpdate":"agent_message_chunk","content":{"type":"text","text":"there"}}}`),
	}
	fs := newFakeStore(nil)
	ids := []int64{1, 2}
	require.NoError(t, ConsolidateChunks(context.Background(), fs, "s1", ids, payloads, "agent_message_chunk"))
	firstRun := append([]byte(nil), fs.payloads[1]...)

	// Re-running against the post-merge state: stub payloads contribute
	// no text, so the merged result is unchanged.
	secondPayloads := [][]byte{fs.payloads[1], fs.payloads[2]}
	require.NoError(t, ConsolidateChunks(context.Background(), fs, "s1", ids, secondPayloads, "agent_message_chunk"))
	assert.Equal(t, string(firstRun), string(fs.payloads[1]))
}
