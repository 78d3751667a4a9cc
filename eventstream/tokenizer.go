package eventstream

import "strings"

// Tokenizer converts appended raw fragments into newline-delimited events,
// correctly handling lines that span fragment boundaries. Feeding a stream
// in N arbitrary fragments yields the same events, in the same order, as
// feeding it whole.
type Tokenizer struct {
	buf    strings.Builder
	offset int // start of the first unconsumed line
}

// NewTokenizer creates an empty Tokenizer.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{}
}

// Append buffers fragment and returns one event per newly terminated line,
// in order. A fragment with no newline produces no events; the partial line
// stays buffered for the next call.
func (t *Tokenizer) Append(fragment string) []Event {
	t.buf.WriteString(fragment)
	s := t.buf.String()

	var events []Event
	for {
		i := strings.IndexByte(s[t.offset:], '\n')
		if i < 0 {
			break
		}
		line := s[t.offset : t.offset+i]
		t.offset += i + 1
		events = append(events, parseLine(line))
	}
	return events
}

// Body returns the full raw buffer accumulated so far, consumed or not.
func (t *Tokenizer) Body() string {
	return t.buf.String()
}

// Reset truncates the buffer and offset tracking, discarding consumed
// history to bound memory. Any unterminated partial line is dropped too.
func (t *Tokenizer) Reset() {
	t.buf.Reset()
	t.offset = 0
}
