package openai_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmrb/llm"
	"github.com/llmrb/llm/mock"
	"github.com/llmrb/llm/openai"
)

func merge(m llm.Merger, chunks ...string) {
	for _, c := range chunks {
		m.Merge(json.RawMessage(c))
	}
}

func TestChunkMerger_TextDeltasConcatenate(t *testing.T) {
	t.Parallel()
	m := openai.NewChunkMerger(nil)

	merge(m,
		`{"id":"chatcmpl-1","model":"gpt-4o-mini","choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"}}]}`,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"content":"lo"}}]}`,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
	)

	assert.True(t, m.Done())
	msgs := m.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, llm.RoleAssistant, msgs[0].Role)
	assert.Equal(t, "Hello", msgs[0].Text())
}

func TestChunkMerger_SinkReceivesExactIncrements(t *testing.T) {
	t.Parallel()
	sink := &mock.Sink{}
	m := openai.NewChunkMerger(sink)

	merge(m,
		`{"choices":[{"index":0,"delta":{"content":"Hel"}}]}`,
		`{"choices":[{"index":0,"delta":{"content":"lo"}}]}`,
		`{"choices":[{"index":0,"delta":{"content":" there"}}]}`,
	)

	assert.Equal(t, []string{"Hel", "lo", " there"}, sink.Appends)
}

func TestChunkMerger_FirstOccurrenceInitializesChoice(t *testing.T) {
	t.Parallel()
	m := openai.NewChunkMerger(nil)

	// The first chunk for a choice index carries the role; later chunks
	// only carry deltas.
	merge(m,
		`{"choices":[{"index":0,"delta":{"role":"assistant","content":"a"}}]}`,
		`{"choices":[{"index":1,"delta":{"role":"assistant","content":"x"}}]}`,
		`{"choices":[{"index":0,"delta":{"content":"b"},"finish_reason":"stop"}]}`,
		`{"choices":[{"index":1,"delta":{"content":"y"},"finish_reason":"stop"}]}`,
	)

	msgs := m.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "ab", msgs[0].Text())
	assert.Equal(t, "xy", msgs[1].Text())
}

func TestChunkMerger_ToolCallFragmentsBufferedUntilEnd(t *testing.T) {
	t.Parallel()
	m := openai.NewChunkMerger(nil)

	// Argument fragments arrive as invalid partial JSON; they must be
	// buffered raw and only parsed at the end.
	merge(m,
		`{"choices":[{"index":0,"delta":{"role":"assistant","tool_calls":[{"index":0,"id":"call_1","function":{"name":"get_weather","arguments":""}}]}}]}`,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"city\":"}}]}}]}`,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"Oslo\"}"}}]}}]}`,
		`{"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
	)

	assert.True(t, m.Done())
	msgs := m.Messages()
	require.Len(t, msgs, 1)
	calls := msgs[0].ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "get_weather", calls[0].Name)
	assert.JSONEq(t, `{"city":"Oslo"}`, string(calls[0].Arguments))
}

func TestChunkMerger_EmptyToolArgumentsFinalizeAsEmptyObject(t *testing.T) {
	t.Parallel()
	m := openai.NewChunkMerger(nil)

	merge(m,
		`{"choices":[{"index":0,"delta":{"role":"assistant","tool_calls":[{"index":0,"id":"call_1","function":{"name":"ping"}}]}}]}`,
		`{"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
	)

	calls := m.Messages()[0].ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, json.RawMessage("{}"), calls[0].Arguments)
}

func TestChunkMerger_NotDoneUntilAllChoicesFinish(t *testing.T) {
	t.Parallel()
	m := openai.NewChunkMerger(nil)

	merge(m, `{"choices":[{"index":0,"delta":{"content":"a"}}]}`)
	assert.False(t, m.Done())

	merge(m,
		`{"choices":[{"index":1,"delta":{"content":"b"}}]}`,
		`{"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
	)
	assert.False(t, m.Done())

	merge(m, `{"choices":[{"index":1,"delta":{},"finish_reason":"stop"}]}`)
	assert.True(t, m.Done())
}

func TestChunkMerger_UsageAndIdentity(t *testing.T) {
	t.Parallel()
	m := openai.NewChunkMerger(nil)

	merge(m,
		`{"id":"chatcmpl-9","model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":"hi"},"finish_reason":"stop"}]}`,
		`{"id":"chatcmpl-9","choices":[],"usage":{"prompt_tokens":30,"completion_tokens":8,"total_tokens":38,"prompt_tokens_details":{"cached_tokens":10}}}`,
	)

	assert.Equal(t, "chatcmpl-9", m.ID())
	assert.Equal(t, "gpt-4o-mini", m.Model())
	usage := m.Usage()
	assert.Equal(t, 20, usage.InputTokens)
	assert.Equal(t, 8, usage.OutputTokens)
	assert.Equal(t, 10, usage.CacheReadTokens)

	msg := m.Messages()[0]
	gotUsage, ok := msg.Extra.Usage()
	require.True(t, ok)
	assert.Equal(t, usage, gotUsage)
	id, ok := msg.Extra.ResponseID()
	require.True(t, ok)
	assert.Equal(t, "chatcmpl-9", id)
}

func TestChunkMerger_MalformedChunkDropped(t *testing.T) {
	t.Parallel()
	m := openai.NewChunkMerger(nil)

	merge(m,
		`{"choices":[{"index":0,"delta":{"content":"keep"}}]}`,
		`{"choices":"not-an-array"}`,
		`{"choices":[{"index":-1,"delta":{"content":"ignored"}}]}`,
		`{"choices":[{"index":0,"delta":{"content":" going"},"finish_reason":"stop"}]}`,
	)

	assert.Equal(t, "keep going", m.Messages()[0].Text())
}

func TestChunkMerger_BodyMirrorsAccumulation(t *testing.T) {
	t.Parallel()
	m := openai.NewChunkMerger(nil)

	merge(m,
		`{"id":"chatcmpl-2","choices":[{"index":0,"delta":{"role":"assistant","content":"par"}}]}`,
		`{"choices":[{"index":0,"delta":{"content":"tial"}}]}`,
	)

	body := m.Body()
	assert.Equal(t, "chatcmpl-2", body["id"])
	choices, ok := body["choices"].([]any)
	require.True(t, ok)
	require.Len(t, choices, 1)
	doc, ok := choices[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "partial", doc["content"])
	assert.Equal(t, "assistant", doc["role"])
}
