package openai

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/llmrb/llm"
)

// ChunkMerger merges chat completions stream chunks into assistant
// messages. It is the reference [llm.Merger] implementation: choices are
// routed by index, content deltas are string-appended, and tool call
// argument fragments are buffered as raw text until the stream's terminal
// marker, since partial JSON must not be parsed early.
type ChunkMerger struct {
	sink llm.Sink

	id      string
	model   string
	usage   llm.Usage
	choices map[int]*choiceState
	body    map[string]any
	done    bool
}

type choiceState struct {
	role      string
	text      strings.Builder
	toolCalls map[int]*toolCallState
	finish    string

	doc map[string]any // this choice's node in the live body document
}

type toolCallState struct {
	id   string
	name string
	args strings.Builder

	doc map[string]any
}

// Interface compliance check.
var _ llm.Merger = (*ChunkMerger)(nil)

// NewChunkMerger creates a merger for one streamed chat completions call.
// sink may be nil to disable live echo.
func NewChunkMerger(sink llm.Sink) *ChunkMerger {
	return &ChunkMerger{
		sink:    sink,
		choices: make(map[int]*choiceState),
		body:    map[string]any{"choices": []any{}},
	}
}

// Merge applies one parsed chunk. Malformed chunks and deltas referencing
// positions that make no sense are dropped, never fatal.
func (m *ChunkMerger) Merge(chunk json.RawMessage) {
	var c apiChatChunk
	if err := json.Unmarshal(chunk, &c); err != nil {
		return
	}

	if c.ID != "" {
		m.id = c.ID
		m.body["id"] = c.ID
	}
	if c.Model != "" {
		m.model = c.Model
		m.body["model"] = c.Model
	}
	if c.Usage != nil {
		m.applyUsage(c.Usage)
	}

	for _, ch := range c.Choices {
		if ch.Index < 0 {
			continue
		}
		st := m.choices[ch.Index]
		if st == nil {
			// First occurrence: initialize the position from this chunk.
			st = &choiceState{
				toolCalls: make(map[int]*toolCallState),
				doc:       map[string]any{"index": ch.Index},
			}
			m.choices[ch.Index] = st
			m.growChoices(ch.Index)
		}
		m.applyDelta(st, ch)
	}
}

func (m *ChunkMerger) applyUsage(u *apiUsage) {
	cached := 0
	if u.PromptTokensDetails != nil {
		cached = u.PromptTokensDetails.CachedTokens
	}
	input := u.PromptTokens - cached
	if input < 0 {
		input = 0
	}
	m.usage = llm.Usage{
		InputTokens:     input,
		OutputTokens:    u.CompletionTokens,
		CacheReadTokens: cached,
	}
	m.body["usage"] = map[string]any{
		"prompt_tokens":     u.PromptTokens,
		"completion_tokens": u.CompletionTokens,
		"total_tokens":      u.TotalTokens,
	}
}

func (m *ChunkMerger) applyDelta(st *choiceState, ch apiChunkChoice) {
	if ch.Delta.Role != "" {
		st.role = ch.Delta.Role
		st.doc["role"] = ch.Delta.Role
	}
	if ch.Delta.Content != "" {
		st.text.WriteString(ch.Delta.Content)
		st.doc["content"] = st.text.String()
		if m.sink != nil {
			m.sink.Append(ch.Delta.Content)
		}
	}
	for _, tc := range ch.Delta.ToolCalls {
		if tc.Index < 0 {
			continue
		}
		ts := st.toolCalls[tc.Index]
		if ts == nil {
			ts = &toolCallState{doc: map[string]any{"index": tc.Index}}
			st.toolCalls[tc.Index] = ts
			st.doc["tool_calls"] = append(toolCallDocs(st.doc), ts.doc)
		}
		if tc.ID != "" {
			ts.id = tc.ID
			ts.doc["id"] = tc.ID
		}
		if tc.Function.Name != "" {
			ts.name = tc.Function.Name
			ts.doc["name"] = tc.Function.Name
		}
		if tc.Function.Arguments != "" {
			ts.args.WriteString(tc.Function.Arguments)
			ts.doc["arguments"] = ts.args.String()
		}
	}
	if ch.FinishReason != nil && *ch.FinishReason != "" {
		st.finish = *ch.FinishReason
		st.doc["finish_reason"] = st.finish
	}
}

func toolCallDocs(doc map[string]any) []any {
	existing, _ := doc["tool_calls"].([]any)
	return existing
}

// growChoices keeps the body's choices array long enough to hold idx,
// pointing each slot at its choice's live node.
func (m *ChunkMerger) growChoices(idx int) {
	docs, _ := m.body["choices"].([]any)
	for len(docs) <= idx {
		docs = append(docs, nil)
	}
	docs[idx] = m.choices[idx].doc
	m.body["choices"] = docs
}

// Body returns the live accumulator, shaped like a chat completions
// response document.
func (m *ChunkMerger) Body() map[string]any {
	return m.body
}

// Done reports whether every initialized choice has received its finish
// reason. The usage chunk trails the last finish_reason on the wire, so
// stream readers drain to the sentinel rather than stopping here.
func (m *ChunkMerger) Done() bool {
	if m.done {
		return true
	}
	if len(m.choices) == 0 {
		return false
	}
	for _, st := range m.choices {
		if st.finish == "" {
			return false
		}
	}
	m.done = true
	return true
}

// Messages assembles one assistant message per choice, in index order. Tool
// call arguments, buffered raw across fragments, are finalized here.
func (m *ChunkMerger) Messages() []llm.Message {
	indexes := make([]int, 0, len(m.choices))
	for i := range m.choices {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	extra := llm.Extra{}.WithUsage(m.usage)
	if m.id != "" {
		extra = extra.WithResponseID(m.id)
	}
	if m.model != "" {
		extra = extra.WithModel(m.model)
	}

	msgs := make([]llm.Message, 0, len(indexes))
	for _, i := range indexes {
		st := m.choices[i]
		var content []llm.ContentBlock
		if st.text.Len() > 0 {
			content = append(content, llm.TextBlock{Text: st.text.String()})
		}
		tcIdx := make([]int, 0, len(st.toolCalls))
		for j := range st.toolCalls {
			tcIdx = append(tcIdx, j)
		}
		sort.Ints(tcIdx)
		for _, j := range tcIdx {
			ts := st.toolCalls[j]
			args := ts.args.String()
			if args == "" {
				args = "{}"
			}
			content = append(content, llm.ToolCallBlock{
				ID:        ts.id,
				Name:      ts.name,
				Arguments: json.RawMessage(args),
			})
		}
		msgs = append(msgs, llm.Message{
			Role:    llm.RoleAssistant,
			Content: content,
			Extra:   extra,
		})
	}
	return msgs
}

// ID returns the provider response identifier observed in the stream.
func (m *ChunkMerger) ID() string { return m.id }

// Usage returns the token accounting observed in the stream.
func (m *ChunkMerger) Usage() llm.Usage { return m.usage }

// Model returns the model reported by the stream.
func (m *ChunkMerger) Model() string { return m.model }
