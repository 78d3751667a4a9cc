package llm

import (
	"encoding/json"
	"fmt"
)

// Request carries messages, model selection, and generation parameters for
// one provider call. The provider uses its own defaults for zero/nil fields.
type Request struct {
	Model       string // model ID, provider-specific; empty = provider default
	Messages    []Message
	MaxTokens   int      // 0 = provider default
	Temperature *float64 // nil = provider default
	Tools       []Tool
	Schema      json.RawMessage // response JSON schema, providers that support it

	// Stream requests incremental delivery. The provider drives the wire
	// stream through a Merger and echoes text increments to Sink.
	Stream bool
	Sink   Sink

	// PreviousResponseID threads a stateful call from an earlier response.
	// Only meaningful for Respond.
	PreviousResponseID string
}

// Validate checks universal constraints on Request.
// Provider implementations may apply additional provider-specific validation.
func (r Request) Validate() error {
	if r.Temperature != nil {
		if *r.Temperature < 0 || *r.Temperature > 2 {
			return fmt.Errorf("temperature must be in [0, 2], got %g: %w", *r.Temperature, ErrPrompt)
		}
	}
	if r.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative, got %d: %w", r.MaxTokens, ErrPrompt)
	}
	for i, msg := range r.Messages {
		if err := ValidateMessage(msg); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	return nil
}

// Params is the resolved parameter snapshot carried by a pending entry.
// It mirrors Request minus the message payload.
type Params struct {
	Model       string
	MaxTokens   int
	Temperature *float64
	Tools       []Tool
	Schema      json.RawMessage
	Stream      bool
	Sink        Sink

	// Role overrides the role a facade method would otherwise assign.
	Role Role
}

// merge overlays over onto p, shallowly: any non-zero field of over wins.
// Nested option objects are not deep-merged.
func (p Params) merge(over Params) Params {
	out := p
	if over.Model != "" {
		out.Model = over.Model
	}
	if over.MaxTokens != 0 {
		out.MaxTokens = over.MaxTokens
	}
	if over.Temperature != nil {
		out.Temperature = over.Temperature
	}
	if over.Tools != nil {
		out.Tools = over.Tools
	}
	if over.Schema != nil {
		out.Schema = over.Schema
	}
	if over.Stream {
		out.Stream = true
	}
	if over.Sink != nil {
		out.Sink = over.Sink
	}
	if over.Role != "" {
		out.Role = over.Role
	}
	return out
}

// request expands the snapshot into a Request for the given messages.
func (p Params) request(msgs []Message) Request {
	return Request{
		Model:       p.Model,
		Messages:    msgs,
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
		Tools:       p.Tools,
		Schema:      p.Schema,
		Stream:      p.Stream,
		Sink:        p.Sink,
	}
}
