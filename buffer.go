package llm

import (
	"context"
	"fmt"
)

// Mode tags a pending entry with the call shape its flush should use.
type Mode string

const (
	// ModeCompletion uses the stateless chat-completions operation; the
	// full completed log is resent as context.
	ModeCompletion Mode = "completion"

	// ModeResponse uses the stateful response-chaining operation; a
	// previous response identifier continues the exchange.
	ModeResponse Mode = "response"
)

func (m Mode) known() bool {
	return m == ModeCompletion || m == ModeResponse
}

// PendingEntry is one queued, not-yet-sent turn: the message, the resolved
// parameter snapshot taken at enqueue time, and the mode tag. Entries are
// consumed exactly once, when the buffer flushes.
type PendingEntry struct {
	Message Message
	Params  Params
	Mode    Mode
}

// Buffer decouples describing turns from performing network round-trips.
// Enqueued turns accumulate without I/O; any read access flushes the entire
// pending backlog in exactly one provider call and merges the result into
// an append-only completed log.
//
// A Buffer is not internally synchronized. At most one flush may be in
// flight at a time; callers sharing a Buffer across goroutines must
// serialize access themselves.
type Buffer struct {
	provider       Provider
	pending        []PendingEntry
	completed      []Message
	lastResponseID string
	readCursor     int
}

// NewBuffer creates a Buffer backed by the given provider.
func NewBuffer(provider Provider) *Buffer {
	return &Buffer{provider: provider}
}

// Enqueue appends a pending entry. It never performs network I/O.
func (b *Buffer) Enqueue(msg Message, params Params, mode Mode) {
	b.pending = append(b.pending, PendingEntry{Message: msg, Params: params, Mode: mode})
}

// PendingLen returns the number of queued, unsent entries.
func (b *Buffer) PendingLen() int { return len(b.pending) }

// LastResponseID returns the provider response identifier recorded by the
// most recent response-mode flush, if any.
func (b *Buffer) LastResponseID() string { return b.lastResponseID }

// Restore seeds the completed log with previously persisted messages and
// advances the read cursor past them. Call before enqueueing any turns.
func (b *Buffer) Restore(msgs []Message) {
	b.completed = append(b.completed, msgs...)
	b.readCursor = len(b.completed)
}

// Flush resolves the entire pending backlog in one provider call.
//
// The most recently enqueued entry is the driving turn; all earlier pending
// entries travel as additional context in the same request, and the driving
// entry's mode and params decide the call shape. On success the completed
// log grows by: the non-driving pending messages in enqueue order, the
// driving message, then the provider's result messages; the pending queue
// is cleared entirely.
//
// On failure the error propagates unmodified, the completed log is exactly
// as it was before the attempt, and the pending queue's state is undefined:
// callers must not assume retry-safety without re-enqueueing.
func (b *Buffer) Flush(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}

	driving := b.pending[len(b.pending)-1]
	rest := b.pending[:len(b.pending)-1]

	if !driving.Mode.known() {
		return fmt.Errorf("mode %q: %w", driving.Mode, ErrUnknownMode)
	}
	for _, e := range rest {
		if !e.Mode.known() {
			return fmt.Errorf("mode %q: %w", e.Mode, ErrUnknownMode)
		}
		if e.Mode != driving.Mode {
			return fmt.Errorf("%q alongside %q: %w", e.Mode, driving.Mode, ErrMixedBatch)
		}
	}

	backlog := make([]Message, 0, len(rest)+1)
	for _, e := range rest {
		backlog = append(backlog, e.Message)
	}
	backlog = append(backlog, driving.Message)

	var resp *Response
	var err error
	switch driving.Mode {
	case ModeCompletion:
		msgs := make([]Message, 0, len(b.completed)+len(backlog))
		msgs = append(msgs, b.completed...)
		msgs = append(msgs, backlog...)
		resp, err = b.provider.Complete(ctx, driving.Params.request(msgs))
	case ModeResponse:
		req := driving.Params.request(backlog)
		req.PreviousResponseID = b.lastResponseID
		resp, err = b.provider.Respond(ctx, req)
	}
	if err != nil {
		return err
	}

	b.completed = append(b.completed, backlog...)
	b.completed = append(b.completed, resp.Messages...)
	if driving.Mode == ModeResponse && resp.ID != "" {
		b.lastResponseID = resp.ID
	}
	b.pending = b.pending[:0]
	return nil
}

// Messages flushes any pending backlog and returns the completed log. The
// returned slice is the buffer's own; callers must treat it as read-only.
func (b *Buffer) Messages(ctx context.Context) ([]Message, error) {
	if err := b.Flush(ctx); err != nil {
		return nil, err
	}
	return b.completed, nil
}

// At returns the i-th completed message. If the index is not present in the
// completed log, the pending backlog is flushed and the index re-checked.
func (b *Buffer) At(ctx context.Context, i int) (Message, bool, error) {
	if i < 0 {
		return Message{}, false, nil
	}
	if i < len(b.completed) {
		return b.completed[i], true, nil
	}
	if err := b.Flush(ctx); err != nil {
		return Message{}, false, err
	}
	if i < len(b.completed) {
		return b.completed[i], true, nil
	}
	return Message{}, false, nil
}

// Find flushes and returns the first completed message satisfying pred.
func (b *Buffer) Find(ctx context.Context, pred func(Message) bool) (Message, bool, error) {
	if err := b.Flush(ctx); err != nil {
		return Message{}, false, err
	}
	for _, m := range b.completed {
		if pred(m) {
			return m, true, nil
		}
	}
	return Message{}, false, nil
}

// Last flushes and returns the most recent completed message with the given
// role, scanning from the end. An empty role matches any message.
func (b *Buffer) Last(ctx context.Context, role Role) (Message, bool, error) {
	if err := b.Flush(ctx); err != nil {
		return Message{}, false, err
	}
	for i := len(b.completed) - 1; i >= 0; i-- {
		if role == "" || b.completed[i].Role == role {
			return b.completed[i], true, nil
		}
	}
	return Message{}, false, nil
}

// Unread flushes and returns completed messages not yet returned by a
// previous Unread call, advancing the read cursor past them.
func (b *Buffer) Unread(ctx context.Context) ([]Message, error) {
	if err := b.Flush(ctx); err != nil {
		return nil, err
	}
	msgs := b.completed[b.readCursor:]
	b.readCursor = len(b.completed)
	return msgs, nil
}
