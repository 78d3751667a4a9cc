// Package json persists conversation logs as versioned JSON envelopes.
// Only completed messages are persisted; a pending queue is transient by
// design and must be re-enqueued after a load.
package json

import (
	"encoding/json"
	"time"
)

// envelope is the v1 wire format for a persisted conversation.
type envelope struct {
	Version  int          `json:"version"`
	Messages []messageDTO `json:"messages"`
}

// messageDTO is the JSON representation of a Message.
type messageDTO struct {
	ID        string         `json:"id,omitempty"`
	Role      string         `json:"role"`
	Content   []contentBlock `json:"content"`
	Extra     *extraDTO      `json:"extra,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// contentBlock is the JSON representation of a ContentBlock with a type
// discriminator.
type contentBlock struct {
	Type       string           `json:"type"`
	Text       *string          `json:"text,omitempty"`
	Data       *string          `json:"data,omitempty"`
	MimeType   *string          `json:"mime_type,omitempty"`
	ID         *string          `json:"id,omitempty"`
	Name       *string          `json:"name,omitempty"`
	Arguments  *json.RawMessage `json:"arguments,omitempty"`
	ToolCallID *string          `json:"tool_call_id,omitempty"`
	Content    []contentBlock   `json:"content,omitempty"`
	IsError    *bool            `json:"is_error,omitempty"`
}

type extraDTO struct {
	Usage      *usageDTO `json:"usage,omitempty"`
	ResponseID *string   `json:"response_id,omitempty"`
	Model      *string   `json:"model,omitempty"`
}

type usageDTO struct {
	InputTokens     int `json:"input_tokens"`
	OutputTokens    int `json:"output_tokens"`
	CacheReadTokens int `json:"cache_read_tokens,omitempty"`
}
