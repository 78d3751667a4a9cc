package llm

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message represents one conversation turn: a role, a sequence of content
// blocks, and an open bag of provider metadata. Content is never mutated
// after construction except by a stream merger while the message is still
// being assembled from deltas.
type Message struct {
	ID        string
	Role      Role
	Content   []ContentBlock
	Extra     Extra
	Timestamp time.Time
}

// NewMessage creates a text message with the given role.
func NewMessage(role Role, text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   []ContentBlock{TextBlock{Text: text}},
		Timestamp: time.Now(),
	}
}

// Text returns the concatenation of all text blocks in the message.
func (m Message) Text() string {
	var b strings.Builder
	for _, block := range m.Content {
		if tb, ok := block.(TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	return b.String()
}

// ToolCalls returns all tool call blocks in the message.
func (m Message) ToolCalls() []ToolCallBlock {
	var calls []ToolCallBlock
	for _, block := range m.Content {
		if tc, ok := block.(ToolCallBlock); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}

// ContentBlock is a sealed interface representing a block of content.
// The unexported marker method prevents external implementations.
type ContentBlock interface {
	contentBlock()
}

// TextBlock contains text content.
type TextBlock struct {
	Text string
}

func (TextBlock) contentBlock() {}

// FileBlock references binary content by data and MIME type.
type FileBlock struct {
	Data     []byte
	MimeType string
}

func (FileBlock) contentBlock() {}

// ToolCallBlock represents a tool call requested by the assistant.
type ToolCallBlock struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

func (ToolCallBlock) contentBlock() {}

// ToolResultBlock carries the result of a tool execution back to the model.
type ToolResultBlock struct {
	ToolCallID string
	Content    []ContentBlock
	IsError    bool
}

func (ToolResultBlock) contentBlock() {}

// Interface compliance checks.
var (
	_ ContentBlock = TextBlock{}
	_ ContentBlock = FileBlock{}
	_ ContentBlock = ToolCallBlock{}
	_ ContentBlock = ToolResultBlock{}
)
