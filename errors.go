package llm

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	// ErrPrompt indicates message content a provider formatter cannot
	// represent. Surfaced before any network call is made.
	ErrPrompt = errors.New("prompt error")

	// ErrUnknownMode indicates a pending entry carried a queue mode the
	// buffer does not recognize. This is a programming-contract violation,
	// not a network failure.
	ErrUnknownMode = errors.New("unknown queue mode")

	// ErrMixedBatch indicates a pending batch mixed completion and response
	// mode entries. A flush resolves the whole backlog in one call, so the
	// batch must be uniform.
	ErrMixedBatch = errors.New("mixed queue modes in pending batch")

	// ErrUnsupported indicates an operation the provider does not offer,
	// such as response chaining on a stateless API.
	ErrUnsupported = errors.New("operation not supported by provider")
)

// TransportError is a non-success HTTP-equivalent response from a provider.
// It carries the raw body for inspection and is never retried by this
// library.
type TransportError struct {
	Provider   string
	StatusCode int
	Body       []byte
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, e.Body)
}
