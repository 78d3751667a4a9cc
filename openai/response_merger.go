package openai

import (
	"encoding/json"
	"strings"

	"github.com/llmrb/llm"
)

// ResponseMerger merges Responses API stream events into messages. Output
// items are routed by output_index: response.output_item.added initializes
// a position verbatim, response.output_text.delta appends to it, and
// function call argument fragments are buffered until the item's
// response.output_item.done terminal marker.
type ResponseMerger struct {
	sink llm.Sink

	id    string
	model string
	usage llm.Usage
	items []*outputItemState
	body  map[string]any
	done  bool
}

type outputItemState struct {
	itemType string
	role     string
	callID   string
	name     string
	text     strings.Builder
	args     strings.Builder
	finished bool

	doc map[string]any
}

// Interface compliance check.
var _ llm.Merger = (*ResponseMerger)(nil)

// NewResponseMerger creates a merger for one streamed Responses API call.
// sink may be nil to disable live echo.
func NewResponseMerger(sink llm.Sink) *ResponseMerger {
	return &ResponseMerger{
		sink: sink,
		body: map[string]any{"output": []any{}},
	}
}

// Merge applies one parsed event. Events with unknown types, or deltas for
// positions that were never initialized, are skipped.
func (m *ResponseMerger) Merge(chunk json.RawMessage) {
	var ev apiResponseEvent
	if err := json.Unmarshal(chunk, &ev); err != nil {
		return
	}

	switch ev.Type {
	case "response.created":
		if ev.Response != nil {
			m.id = ev.Response.ID
			m.model = ev.Response.Model
			m.body["id"] = ev.Response.ID
			m.body["model"] = ev.Response.Model
		}
	case "response.output_item.added":
		if ev.Item == nil || ev.OutputIndex < 0 {
			return
		}
		m.addItem(ev.OutputIndex, ev.Item)
	case "response.output_text.delta":
		st := m.item(ev.OutputIndex)
		if st == nil || ev.Delta == "" {
			// Delta for a position that was never initialized: skip
			// rather than fail, out-of-order chunks happen.
			return
		}
		st.text.WriteString(ev.Delta)
		st.doc["text"] = st.text.String()
		if m.sink != nil {
			m.sink.Append(ev.Delta)
		}
	case "response.function_call_arguments.delta":
		st := m.item(ev.OutputIndex)
		if st == nil {
			return
		}
		st.args.WriteString(ev.Delta)
		st.doc["arguments"] = st.args.String()
	case "response.output_item.done":
		st := m.item(ev.OutputIndex)
		if st == nil {
			return
		}
		st.finished = true
		// The done event may carry the item's authoritative final form.
		if ev.Item != nil && ev.Item.Arguments != "" && st.args.Len() == 0 {
			st.args.WriteString(ev.Item.Arguments)
			st.doc["arguments"] = st.args.String()
		}
	case "response.completed":
		if ev.Response != nil {
			if ev.Response.ID != "" {
				m.id = ev.Response.ID
				m.body["id"] = ev.Response.ID
			}
			if ev.Response.Usage != nil {
				m.usage = llm.Usage{
					InputTokens:  ev.Response.Usage.InputTokens,
					OutputTokens: ev.Response.Usage.OutputTokens,
				}
				m.body["usage"] = map[string]any{
					"input_tokens":  ev.Response.Usage.InputTokens,
					"output_tokens": ev.Response.Usage.OutputTokens,
					"total_tokens":  ev.Response.Usage.TotalTokens,
				}
			}
		}
		m.done = true
	}
}

func (m *ResponseMerger) addItem(idx int, item *apiOutputItem) {
	for len(m.items) <= idx {
		m.items = append(m.items, nil)
	}
	if m.items[idx] != nil {
		// Position already initialized; later adds merge, never clobber.
		return
	}
	st := &outputItemState{
		itemType: item.Type,
		role:     item.Role,
		callID:   item.CallID,
		name:     item.Name,
		doc: map[string]any{
			"type": item.Type,
		},
	}
	if item.Role != "" {
		st.doc["role"] = item.Role
	}
	if item.Name != "" {
		st.doc["name"] = item.Name
	}
	if item.Arguments != "" {
		st.args.WriteString(item.Arguments)
		st.doc["arguments"] = item.Arguments
	}
	for _, c := range item.Content {
		if c.Type == "output_text" && c.Text != "" {
			st.text.WriteString(c.Text)
		}
	}
	if st.text.Len() > 0 {
		st.doc["text"] = st.text.String()
	}
	m.items[idx] = st

	docs, _ := m.body["output"].([]any)
	for len(docs) <= idx {
		docs = append(docs, nil)
	}
	docs[idx] = st.doc
	m.body["output"] = docs
}

func (m *ResponseMerger) item(idx int) *outputItemState {
	if idx < 0 || idx >= len(m.items) {
		return nil
	}
	return m.items[idx]
}

// Body returns the live accumulator, shaped like a Responses API document.
func (m *ResponseMerger) Body() map[string]any {
	return m.body
}

// Done reports whether response.completed has been observed.
func (m *ResponseMerger) Done() bool {
	return m.done
}

// Messages assembles the output items into messages: message items become
// one assistant message each; function_call items attach as tool call
// blocks on the preceding assistant message, or on one of their own.
func (m *ResponseMerger) Messages() []llm.Message {
	extra := llm.Extra{}.WithUsage(m.usage)
	if m.id != "" {
		extra = extra.WithResponseID(m.id)
	}
	if m.model != "" {
		extra = extra.WithModel(m.model)
	}

	var msgs []llm.Message
	for _, st := range m.items {
		if st == nil {
			continue
		}
		switch st.itemType {
		case "message":
			var content []llm.ContentBlock
			if st.text.Len() > 0 {
				content = append(content, llm.TextBlock{Text: st.text.String()})
			}
			msgs = append(msgs, llm.Message{
				Role:    llm.RoleAssistant,
				Content: content,
				Extra:   extra,
			})
		case "function_call":
			args := st.args.String()
			if args == "" {
				args = "{}"
			}
			call := llm.ToolCallBlock{
				ID:        st.callID,
				Name:      st.name,
				Arguments: json.RawMessage(args),
			}
			if n := len(msgs); n > 0 {
				msgs[n-1].Content = append(msgs[n-1].Content, call)
			} else {
				msgs = append(msgs, llm.Message{
					Role:    llm.RoleAssistant,
					Content: []llm.ContentBlock{call},
					Extra:   extra,
				})
			}
		}
	}
	return msgs
}

// ID returns the provider response identifier observed in the stream.
func (m *ResponseMerger) ID() string { return m.id }

// Usage returns the token accounting observed in the stream.
func (m *ResponseMerger) Usage() llm.Usage { return m.usage }
