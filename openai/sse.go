package openai

import (
	"io"

	"github.com/llmrb/llm"
	"github.com/llmrb/llm/eventstream"
	"github.com/llmrb/llm/metrics"
)

// drainStream reads the response body to its terminal event, driving each
// fragment through tokenizer, dispatcher, and merger in arrival order. The
// calling goroutine is occupied until the stream ends; there is no
// read-ahead buffering.
func drainStream(body io.ReadCloser, merger llm.Merger) error {
	defer body.Close()

	tok := eventstream.NewTokenizer()
	disp := eventstream.NewDispatcher()
	visitor := &eventstream.MergeVisitor{Merger: merger}
	disp.Register(visitor)

	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, ev := range tok.Append(string(buf[:n])) {
				disp.Dispatch(ev)
				metrics.StreamEventsTotal.WithLabelValues(providerName).Inc()
			}
		}
		// The usage chunk trails the last finish_reason, so the merger's
		// Done must not end the drain. Only the wire sentinel or EOF does.
		if err == io.EOF || visitor.Sentinel() {
			break
		}
		if err != nil {
			return err
		}
	}

	if dropped := visitor.Dropped(); dropped > 0 {
		metrics.DroppedChunksTotal.WithLabelValues(providerName).Add(float64(dropped))
	}
	return nil
}
