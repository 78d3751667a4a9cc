package llm

import (
	"context"
	"encoding/json"
)

// Provider is a strategy pattern interface for LLM providers.
//
// Complete is the stateless chat-completions operation: the full message
// history travels with every call. Respond is the stateful response-chaining
// operation: a provider-assigned identifier continues a prior exchange
// without resending history. Providers without a stateful API return an
// error wrapping [ErrUnsupported] from Respond.
//
// Both calls block until the HTTP exchange completes. When Request.Stream
// is set, the block is incremental: the calling goroutine reads wire chunks
// and drives them through the merge pipeline until the terminal event.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Respond(ctx context.Context, req Request) (*Response, error)
	DefaultModel() string
	AssistantRole() Role
}

// Response is the provider-parsed result of one Complete or Respond call.
type Response struct {
	ID       string // provider response identifier; used for response chaining
	Model    string
	Messages []Message
	Usage    Usage
	Raw      json.RawMessage // raw response document for non-streamed calls
}
