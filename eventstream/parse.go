package eventstream

import (
	"encoding/json"
	"strings"

	"github.com/llmrb/llm"
)

// ParseResult classifies the outcome of interpreting a data event's value.
// Malformed payloads are a Skip, not an error: dropping one chunk of a live
// stream beats aborting an otherwise working session, and a named result
// lets tests assert on the skip path directly.
type ParseResult int

const (
	ParseOK   ParseResult = iota // valid JSON chunk
	ParseSkip                    // malformed payload, dropped by policy
	ParseDone                    // the terminal sentinel
)

// doneSentinel is the literal terminal marker some transports send in place
// of JSON. It must short-circuit before any JSON parsing.
const doneSentinel = "[DONE]"

// ParseData interprets a data event's value, applying the sentinel and
// malformed-chunk policies.
func ParseData(value string) (json.RawMessage, ParseResult) {
	trimmed := strings.TrimSpace(value)
	if trimmed == doneSentinel {
		return nil, ParseDone
	}
	if !json.Valid([]byte(trimmed)) {
		return nil, ParseSkip
	}
	return json.RawMessage(trimmed), ParseOK
}

// MergeVisitor bridges a Dispatcher to a Merger: each "data" event is
// parsed and forwarded as one chunk. The terminal sentinel produces no
// merge; malformed chunks are counted and dropped.
type MergeVisitor struct {
	Merger llm.Merger

	sentinel bool
	dropped  int
}

// Interface compliance check.
var _ DataHandler = (*MergeVisitor)(nil)

// OnData handles one "data" event.
func (v *MergeVisitor) OnData(ev Event) {
	if v.sentinel {
		return
	}
	chunk, result := ParseData(ev.Value)
	switch result {
	case ParseDone:
		v.sentinel = true
	case ParseSkip:
		v.dropped++
	case ParseOK:
		v.Merger.Merge(chunk)
	}
}

// Done reports whether the stream has reached a terminal marker, either the
// wire sentinel or the merger's own dialect-specific terminal event.
func (v *MergeVisitor) Done() bool {
	return v.sentinel || v.Merger.Done()
}

// Sentinel reports whether the wire's terminal sentinel has been observed.
// Dialects that deliver trailing chunks after the merger's own terminal
// condition (chat completions sends usage after every finish_reason) must
// gate draining on this, not on Done.
func (v *MergeVisitor) Sentinel() bool {
	return v.sentinel
}

// Dropped returns the number of malformed chunks discarded so far.
func (v *MergeVisitor) Dropped() int {
	return v.dropped
}
