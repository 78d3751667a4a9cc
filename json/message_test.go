package json_test

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmrb/llm"
	llmjson "github.com/llmrb/llm/json"
)

func sampleLog() []llm.Message {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	return []llm.Message{
		{
			ID:        "m1",
			Role:      llm.RoleUser,
			Content:   []llm.ContentBlock{llm.TextBlock{Text: "what's in a.go?"}},
			Timestamp: ts,
		},
		{
			ID:   "m2",
			Role: llm.RoleAssistant,
			Content: []llm.ContentBlock{
				llm.TextBlock{Text: "Let me read it."},
				llm.ToolCallBlock{ID: "tc_1", Name: "read", Arguments: json.RawMessage(`{"path":"a.go"}`)},
			},
			Extra: llm.Extra{}.
				WithUsage(llm.Usage{InputTokens: 12, OutputTokens: 7, CacheReadTokens: 3}).
				WithResponseID("resp_1").
				WithModel("gpt-4o-mini"),
			Timestamp: ts.Add(time.Second),
		},
		{
			ID:   "m3",
			Role: llm.RoleTool,
			Content: []llm.ContentBlock{
				llm.ToolResultBlock{
					ToolCallID: "tc_1",
					Content:    []llm.ContentBlock{llm.TextBlock{Text: "package main"}},
					IsError:    false,
				},
			},
			Timestamp: ts.Add(2 * time.Second),
		},
		{
			ID:   "m4",
			Role: llm.RoleUser,
			Content: []llm.ContentBlock{
				llm.FileBlock{Data: []byte{0x89, 0x50, 0x4e, 0x47}, MimeType: "image/png"},
			},
			Timestamp: ts.Add(3 * time.Second),
		},
	}
}

func TestMarshalUnmarshalMessages_RoundTrip(t *testing.T) {
	t.Parallel()
	original := sampleLog()

	data, err := llmjson.MarshalMessages(original)
	require.NoError(t, err)

	restored, err := llmjson.UnmarshalMessages(data)
	require.NoError(t, err)

	require.Len(t, restored, len(original))
	for i := range original {
		assert.Equal(t, original[i].ID, restored[i].ID)
		assert.Equal(t, original[i].Role, restored[i].Role)
		assert.True(t, original[i].Timestamp.Equal(restored[i].Timestamp))
	}

	// Tool call arguments survive byte-for-byte meaningful.
	calls := restored[1].ToolCalls()
	require.Len(t, calls, 1)
	assert.JSONEq(t, `{"path":"a.go"}`, string(calls[0].Arguments))

	// Extra metadata survives with types intact.
	usage, ok := restored[1].Extra.Usage()
	require.True(t, ok)
	assert.Equal(t, llm.Usage{InputTokens: 12, OutputTokens: 7, CacheReadTokens: 3}, usage)
	id, ok := restored[1].Extra.ResponseID()
	require.True(t, ok)
	assert.Equal(t, "resp_1", id)

	// Tool result nesting and file bytes survive.
	tr, ok := restored[2].Content[0].(llm.ToolResultBlock)
	require.True(t, ok)
	assert.Equal(t, "tc_1", tr.ToolCallID)
	require.Len(t, tr.Content, 1)
	assert.Equal(t, llm.TextBlock{Text: "package main"}, tr.Content[0])

	fb, ok := restored[3].Content[0].(llm.FileBlock)
	require.True(t, ok)
	assert.Equal(t, []byte{0x89, 0x50, 0x4e, 0x47}, fb.Data)
	assert.Equal(t, "image/png", fb.MimeType)
}

func TestUnmarshalMessages_RejectsUnknownVersion(t *testing.T) {
	t.Parallel()
	_, err := llmjson.UnmarshalMessages([]byte(`{"version":99,"messages":[]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "log.json")
	original := sampleLog()

	require.NoError(t, llmjson.Save(path, original))

	restored, err := llmjson.Load(path)
	require.NoError(t, err)
	require.Len(t, restored, len(original))
	assert.Equal(t, original[0].Text(), restored[0].Text())
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := llmjson.Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestSave_Overwrite(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "log.json")

	require.NoError(t, llmjson.Save(path, sampleLog()))
	require.NoError(t, llmjson.Save(path, sampleLog()[:1]))

	restored, err := llmjson.Load(path)
	require.NoError(t, err)
	assert.Len(t, restored, 1)
}
