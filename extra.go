package llm

// Extra is an open key-value bag of provider metadata attached to a Message:
// token counts, the response that produced it, anything a vendor adds that
// the domain types do not model. Known fields have typed accessors; unknown
// fields are preserved but untyped, reachable through Get.
type Extra map[string]any

// Well-known Extra keys.
const (
	extraUsage      = "usage"
	extraResponseID = "response_id"
	extraModel      = "model"
)

// Get returns the value stored under key.
func (e Extra) Get(key string) (any, bool) {
	v, ok := e[key]
	return v, ok
}

// Usage returns the token accounting recorded for the message, if any.
func (e Extra) Usage() (Usage, bool) {
	u, ok := e[extraUsage].(Usage)
	return u, ok
}

// ResponseID returns the provider response identifier that produced the
// message, if any. Response-mode providers use it to chain calls.
func (e Extra) ResponseID() (string, bool) {
	id, ok := e[extraResponseID].(string)
	return id, ok
}

// Model returns the model that produced the message, if recorded.
func (e Extra) Model() (string, bool) {
	m, ok := e[extraModel].(string)
	return m, ok
}

// WithUsage returns a copy of e with the usage recorded. A nil receiver is
// treated as an empty bag.
func (e Extra) WithUsage(u Usage) Extra {
	out := e.clone()
	out[extraUsage] = u
	return out
}

// WithResponseID returns a copy of e with the response identifier recorded.
func (e Extra) WithResponseID(id string) Extra {
	out := e.clone()
	out[extraResponseID] = id
	return out
}

// WithModel returns a copy of e with the model recorded.
func (e Extra) WithModel(model string) Extra {
	out := e.clone()
	out[extraModel] = model
	return out
}

func (e Extra) clone() Extra {
	out := make(Extra, len(e)+1)
	for k, v := range e {
		out[k] = v
	}
	return out
}
