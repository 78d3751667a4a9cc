package llm

import "encoding/json"

// Sink is a caller-supplied destination for live text echo during streaming.
// A merger forwards each new text increment (never the cumulative total) to
// the sink as it arrives. Sinks are optional; a nil sink disables echo.
//
// The sink is written from whatever goroutine performs the flush. Callers
// needing synchronized output must supply a synchronized sink.
type Sink interface {
	Append(text string)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(text string)

// Append calls f.
func (f SinkFunc) Append(text string) { f(text) }

// Merger is a stateful accumulator for one in-progress streamed response.
// Implementations are provider-dialect specific but share these invariants:
//
//   - First occurrence: a chunk referencing an uninitialized structural
//     position becomes the initial value at that position verbatim.
//   - Delta merge: a delta for an already-initialized scalar text field is
//     string-appended, never replaced.
//   - Fragmented tool arguments are buffered as raw text and parsed only
//     once that element's terminal marker arrives.
//   - Fields absent from a chunk are left untouched; a delta for a position
//     that was never initialized is skipped rather than panicking.
//
// Merge never fails: malformed or unrecognized chunks are dropped so one
// bad chunk cannot abort an otherwise working stream.
type Merger interface {
	// Merge applies one parsed wire chunk to the accumulator.
	Merge(chunk json.RawMessage)

	// Body returns the live accumulator, shaped like the provider's
	// response document. It mutates as chunks arrive; callers must not
	// assume it is stable until Done reports true.
	Body() map[string]any

	// Messages returns the assembled messages. Meaningful once the
	// terminal event has been observed; before that it reflects the
	// deltas received so far.
	Messages() []Message

	// Done reports whether the dialect's terminal event has been observed.
	Done() bool
}
