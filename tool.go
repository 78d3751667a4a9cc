package llm

import "encoding/json"

// Tool is the schema sent to the LLM describing a tool's capabilities.
// Parameters is a JSON Schema document.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}
