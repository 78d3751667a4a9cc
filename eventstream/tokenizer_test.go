package eventstream_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmrb/llm/eventstream"
)

func TestTokenizer_SingleCompleteLine(t *testing.T) {
	t.Parallel()
	tok := eventstream.NewTokenizer()

	events := tok.Append("data: {\"a\":1}\n")

	require.Len(t, events, 1)
	assert.Equal(t, "data", events[0].Field)
	assert.Equal(t, `{"a":1}`, events[0].Value)
}

func TestTokenizer_FragmentSpansBoundary(t *testing.T) {
	t.Parallel()
	tok := eventstream.NewTokenizer()

	assert.Empty(t, tok.Append("dat"))
	assert.Empty(t, tok.Append("a: {\"a\":1"))
	events := tok.Append("}\n")

	require.Len(t, events, 1)
	assert.Equal(t, "data", events[0].Field)
	assert.Equal(t, `{"a":1}`, events[0].Value)
}

func TestTokenizer_MultipleLinesInOneFragment(t *testing.T) {
	t.Parallel()
	tok := eventstream.NewTokenizer()

	events := tok.Append("event: ping\ndata: {}\n\ndata: {\"b\":2}\n")

	require.Len(t, events, 4)
	assert.Equal(t, "event", events[0].Field)
	assert.Equal(t, "ping", events[0].Value)
	assert.Equal(t, "data", events[1].Field)
	assert.Equal(t, "{}", events[1].Value)
	assert.Equal(t, "", events[2].Field) // blank separator line
	assert.Equal(t, "data", events[3].Field)
}

// Feeding a stream in arbitrary fragments must yield the same events as
// feeding it whole.
func TestTokenizer_FragmentationInvariance(t *testing.T) {
	t.Parallel()
	stream := "event: message\ndata: {\"text\":\"hello, world\"}\nid: 42\nretry: 1000\n"

	whole := eventstream.NewTokenizer().Append(stream)

	for _, size := range []int{1, 2, 3, 5, 7} {
		tok := eventstream.NewTokenizer()
		var got []eventstream.Event
		for i := 0; i < len(stream); i += size {
			end := i + size
			if end > len(stream) {
				end = len(stream)
			}
			got = append(got, tok.Append(stream[i:end])...)
		}
		assert.Equal(t, whole, got, "fragment size %d", size)
	}
}

func TestTokenizer_PartialLineStaysBuffered(t *testing.T) {
	t.Parallel()
	tok := eventstream.NewTokenizer()

	events := tok.Append("data: incomplete")

	assert.Empty(t, events)
	assert.Equal(t, "data: incomplete", tok.Body())
}

func TestTokenizer_CRLF(t *testing.T) {
	t.Parallel()
	tok := eventstream.NewTokenizer()

	events := tok.Append("data: hi\r\n")

	require.Len(t, events, 1)
	assert.Equal(t, "data", events[0].Field)
	assert.Equal(t, "hi", events[0].Value)
}

func TestTokenizer_ValuePreservesInteriorSpaces(t *testing.T) {
	t.Parallel()
	tok := eventstream.NewTokenizer()

	// Exactly one leading space is framing; everything after is payload.
	events := tok.Append("data:  two spaces\n")

	require.Len(t, events, 1)
	assert.Equal(t, " two spaces", events[0].Value)
}

func TestTokenizer_LineWithoutColon(t *testing.T) {
	t.Parallel()
	tok := eventstream.NewTokenizer()

	events := tok.Append("not-a-field-line\n")

	require.Len(t, events, 1)
	assert.Equal(t, "not-a-field-line", events[0].Field)
	assert.Equal(t, "", events[0].Value)
}

func TestTokenizer_Body(t *testing.T) {
	t.Parallel()
	tok := eventstream.NewTokenizer()

	tok.Append("data: a\n")
	tok.Append("data: b")

	assert.Equal(t, "data: a\ndata: b", tok.Body())
}

func TestTokenizer_Reset(t *testing.T) {
	t.Parallel()
	tok := eventstream.NewTokenizer()

	tok.Append("data: partial")
	tok.Reset()

	assert.Equal(t, "", tok.Body())
	events := tok.Append("data: fresh\n")
	require.Len(t, events, 1)
	assert.Equal(t, "fresh", events[0].Value)
}

func TestTokenizer_LargeStreamInSmallFragments(t *testing.T) {
	t.Parallel()
	var sb strings.Builder
	for i := 0; i < 100; i++ {
		sb.WriteString("data: {\"n\":")
		sb.WriteString(strings.Repeat("9", 1+i%5))
		sb.WriteString("}\n")
	}
	stream := sb.String()

	tok := eventstream.NewTokenizer()
	var count int
	for i := 0; i < len(stream); i += 3 {
		end := i + 3
		if end > len(stream) {
			end = len(stream)
		}
		count += len(tok.Append(stream[i:end]))
	}
	assert.Equal(t, 100, count)
}
