// Package eventstream implements the line-oriented wire framing used by
// streaming LLM transports: each line is `<field>: <value>` in the common
// Server-Sent-Events convention. A Tokenizer splits arbitrarily fragmented
// byte appends into discrete events, and a Dispatcher routes each event to
// named-field subscribers and registered visitors.
package eventstream

import "strings"

// Event is one parsed wire event. It is derived per line and not retained
// after dispatch.
type Event struct {
	Field string // "data", "event", "id", "retry", or best-effort fallback
	Value string // substring after the field delimiter
	Raw   string // the original line, without the trailing newline
}

// parseLine best-effort parses a wire line. Tokenization never fails: a
// line with no recognizable field becomes an event whose Field is the whole
// trimmed line, leaving it to downstream consumers to ignore or reject.
func parseLine(line string) Event {
	raw := line
	line = strings.TrimSuffix(line, "\r")
	field, value, ok := strings.Cut(line, ":")
	if !ok {
		return Event{Field: strings.TrimSpace(line), Raw: raw}
	}
	// Per the SSE convention a single space after the colon is framing,
	// not payload.
	value = strings.TrimPrefix(value, " ")
	return Event{Field: strings.TrimSpace(field), Value: value, Raw: raw}
}
