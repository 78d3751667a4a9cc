// Package gemini implements [llm.Provider] for the Google Gemini API.
//
// It wraps the google.golang.org/genai SDK, translating between domain
// types and the Gemini API types. Streamed calls consume the SDK's
// iter.Seq2 iterator, echoing text increments to the request sink. The API
// is stateless, so only the completion operation is offered.
package gemini

const (
	defaultModel     = "gemini-2.5-flash"
	defaultMaxTokens = 8192

	providerName = "gemini"
)
