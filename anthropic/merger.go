package anthropic

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/llmrb/llm"
)

// ChunkMerger merges Messages API stream chunks into one assistant message.
// Every data payload carries a type discriminator; content blocks are
// routed by index. Tool input arrives as fragmented partial JSON through
// input_json_delta and is buffered raw until the block's content_block_stop
// terminal marker, never parsed early.
type ChunkMerger struct {
	sink llm.Sink

	id         string
	model      string
	usage      llm.Usage
	stopReason string
	blocks     map[int]*blockState
	body       map[string]any
	done       bool
}

// blockState tracks one content block being assembled.
type blockState struct {
	blockType string
	toolID    string
	toolName  string
	text      strings.Builder
	input     strings.Builder
	stopped   bool

	doc map[string]any
}

// Interface compliance check.
var _ llm.Merger = (*ChunkMerger)(nil)

// NewChunkMerger creates a merger for one streamed Messages API call.
// sink may be nil to disable live echo.
func NewChunkMerger(sink llm.Sink) *ChunkMerger {
	return &ChunkMerger{
		sink:   sink,
		blocks: make(map[int]*blockState),
		body:   map[string]any{"content": []any{}},
	}
}

// Merge applies one parsed chunk by its type discriminator. Unknown types
// and deltas for uninitialized indexes are skipped.
func (m *ChunkMerger) Merge(chunk json.RawMessage) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(chunk, &head); err != nil {
		return
	}

	switch head.Type {
	case "message_start":
		m.handleMessageStart(chunk)
	case "content_block_start":
		m.handleBlockStart(chunk)
	case "content_block_delta":
		m.handleBlockDelta(chunk)
	case "content_block_stop":
		m.handleBlockStop(chunk)
	case "message_delta":
		m.handleMessageDelta(chunk)
	case "message_stop":
		m.done = true
	}
}

func (m *ChunkMerger) handleMessageStart(chunk json.RawMessage) {
	var ev sseMessageStart
	if err := json.Unmarshal(chunk, &ev); err != nil {
		return
	}
	m.id = ev.Message.ID
	m.model = ev.Message.Model
	m.usage.InputTokens = ev.Message.Usage.InputTokens
	if ev.Message.Usage.CacheReadInputTokens != nil {
		m.usage.CacheReadTokens = *ev.Message.Usage.CacheReadInputTokens
	}
	m.body["id"] = ev.Message.ID
	m.body["model"] = ev.Message.Model
}

func (m *ChunkMerger) handleBlockStart(chunk json.RawMessage) {
	var ev sseContentBlockStart
	if err := json.Unmarshal(chunk, &ev); err != nil || ev.Index < 0 {
		return
	}
	if m.blocks[ev.Index] != nil {
		// Position already initialized; a repeated start never clobbers.
		return
	}
	st := &blockState{
		blockType: ev.ContentBlock.Type,
		toolID:    ev.ContentBlock.ID,
		toolName:  ev.ContentBlock.Name,
		doc:       map[string]any{"type": ev.ContentBlock.Type},
	}
	if ev.ContentBlock.Text != "" {
		st.text.WriteString(ev.ContentBlock.Text)
		st.doc["text"] = st.text.String()
		if m.sink != nil {
			m.sink.Append(ev.ContentBlock.Text)
		}
	}
	if ev.ContentBlock.ID != "" {
		st.doc["id"] = ev.ContentBlock.ID
	}
	if ev.ContentBlock.Name != "" {
		st.doc["name"] = ev.ContentBlock.Name
	}
	m.blocks[ev.Index] = st

	docs, _ := m.body["content"].([]any)
	for len(docs) <= ev.Index {
		docs = append(docs, nil)
	}
	docs[ev.Index] = st.doc
	m.body["content"] = docs
}

func (m *ChunkMerger) handleBlockDelta(chunk json.RawMessage) {
	var ev sseContentBlockDelta
	if err := json.Unmarshal(chunk, &ev); err != nil {
		return
	}
	st := m.blocks[ev.Index]
	if st == nil {
		// Delta for a block that was never started: skip rather than
		// fail, vendor-bug chunks happen.
		return
	}
	switch ev.Delta.Type {
	case "text_delta":
		if ev.Delta.Text == "" {
			return
		}
		st.text.WriteString(ev.Delta.Text)
		st.doc["text"] = st.text.String()
		if m.sink != nil {
			m.sink.Append(ev.Delta.Text)
		}
	case "input_json_delta":
		st.input.WriteString(ev.Delta.PartialJSON)
		st.doc["partial_json"] = st.input.String()
	}
}

func (m *ChunkMerger) handleBlockStop(chunk json.RawMessage) {
	var ev sseContentBlockStop
	if err := json.Unmarshal(chunk, &ev); err != nil {
		return
	}
	if st := m.blocks[ev.Index]; st != nil {
		st.stopped = true
	}
}

func (m *ChunkMerger) handleMessageDelta(chunk json.RawMessage) {
	var ev sseMessageDelta
	if err := json.Unmarshal(chunk, &ev); err != nil {
		return
	}
	m.usage.OutputTokens = ev.Usage.OutputTokens
	if ev.Delta.StopReason != nil {
		m.stopReason = *ev.Delta.StopReason
		m.body["stop_reason"] = m.stopReason
	}
}

// Body returns the live accumulator, shaped like a Messages API document.
func (m *ChunkMerger) Body() map[string]any {
	return m.body
}

// Done reports whether message_stop has been observed.
func (m *ChunkMerger) Done() bool {
	return m.done
}

// Messages assembles the accumulated blocks into a single assistant
// message. Tool input buffered across input_json_delta fragments is parsed
// only for blocks whose terminal marker arrived.
func (m *ChunkMerger) Messages() []llm.Message {
	indexes := make([]int, 0, len(m.blocks))
	for i := range m.blocks {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	var content []llm.ContentBlock
	for _, i := range indexes {
		st := m.blocks[i]
		switch st.blockType {
		case "text":
			content = append(content, llm.TextBlock{Text: st.text.String()})
		case "tool_use":
			if !st.stopped {
				// Premature: the input fragments are not yet a whole
				// JSON document.
				continue
			}
			input := st.input.String()
			if input == "" {
				input = "{}"
			}
			content = append(content, llm.ToolCallBlock{
				ID:        st.toolID,
				Name:      st.toolName,
				Arguments: json.RawMessage(input),
			})
		}
	}

	extra := llm.Extra{}.WithUsage(m.usage)
	if m.id != "" {
		extra = extra.WithResponseID(m.id)
	}
	if m.model != "" {
		extra = extra.WithModel(m.model)
	}
	return []llm.Message{{Role: llm.RoleAssistant, Content: content, Extra: extra}}
}

// ID returns the provider message identifier observed in the stream.
func (m *ChunkMerger) ID() string { return m.id }

// Usage returns the token accounting observed in the stream.
func (m *ChunkMerger) Usage() llm.Usage { return m.usage }

// Model returns the model reported by the stream.
func (m *ChunkMerger) Model() string { return m.model }

// StopReason returns the raw stop reason reported by the stream.
func (m *ChunkMerger) StopReason() string { return m.stopReason }
