package llm

// Usage tracks token consumption.
//
// Invariant across all providers:
//
//	InputTokens     = non-cached input tokens
//	CacheReadTokens = input tokens served from a provider-side cache
//
// Providers normalize their API-specific fields to this shape. When a
// provider reports only combined input counts, CacheReadTokens stays zero.
type Usage struct {
	InputTokens     int
	OutputTokens    int
	CacheReadTokens int
}

// TotalTokens returns the combined input and output token count.
func (u Usage) TotalTokens() int {
	return u.InputTokens + u.CacheReadTokens + u.OutputTokens
}
