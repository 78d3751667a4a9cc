// Package openai implements [llm.Provider] for the OpenAI API.
//
// Complete targets the stateless chat completions endpoint; Respond targets
// the stateful Responses endpoint, chaining calls through
// previous_response_id. Streamed calls drive the SSE body through
// [eventstream] into a dialect-specific merger.
package openai

import "encoding/json"

const (
	defaultBaseURL      = "https://api.openai.com"
	defaultModel        = "gpt-4o-mini"
	chatCompletionsPath = "/v1/chat/completions"
	responsesPath       = "/v1/responses"

	providerName = "openai"
)

// Chat completions wire types.

type apiChatRequest struct {
	Model          string            `json:"model"`
	Messages       []apiChatMessage  `json:"messages"`
	MaxTokens      int               `json:"max_completion_tokens,omitempty"`
	Temperature    *float64          `json:"temperature,omitempty"`
	Tools          []apiTool         `json:"tools,omitempty"`
	Stream         bool              `json:"stream,omitempty"`
	StreamOptions  *apiStreamOptions `json:"stream_options,omitempty"`
	ResponseFormat *apiRespFormat    `json:"response_format,omitempty"`
}

type apiStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type apiRespFormat struct {
	Type       string          `json:"type"` // "json_schema"
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

type apiChatMessage struct {
	Role       string        `json:"role"`
	Content    string        `json:"content"`
	ToolCalls  []apiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

type apiToolCall struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"` // always "function"
	Function apiToolFunction `json:"function"`
}

type apiToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type apiTool struct {
	Type     string     `json:"type"` // always "function"
	Function apiToolDef `json:"function"`
}

type apiToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type apiChatResponse struct {
	ID      string      `json:"id"`
	Model   string      `json:"model"`
	Choices []apiChoice `json:"choices"`
	Usage   *apiUsage   `json:"usage"`
}

type apiChoice struct {
	Index        int            `json:"index"`
	Message      apiChatMessage `json:"message"`
	FinishReason string         `json:"finish_reason"`
}

type apiUsage struct {
	PromptTokens        int `json:"prompt_tokens"`
	CompletionTokens    int `json:"completion_tokens"`
	TotalTokens         int `json:"total_tokens"`
	PromptTokensDetails *struct {
		CachedTokens int `json:"cached_tokens"`
	} `json:"prompt_tokens_details,omitempty"`
}

// Chat completions streaming chunk types.

type apiChatChunk struct {
	ID      string           `json:"id"`
	Model   string           `json:"model"`
	Choices []apiChunkChoice `json:"choices"`
	Usage   *apiUsage        `json:"usage"`
}

type apiChunkChoice struct {
	Index        int           `json:"index"`
	Delta        apiChunkDelta `json:"delta"`
	FinishReason *string       `json:"finish_reason"`
}

type apiChunkDelta struct {
	Role      string             `json:"role,omitempty"`
	Content   string             `json:"content,omitempty"`
	ToolCalls []apiChunkToolCall `json:"tool_calls,omitempty"`
}

type apiChunkToolCall struct {
	Index    int             `json:"index"`
	ID       string          `json:"id,omitempty"`
	Function apiToolFunction `json:"function"`
}

// Responses API wire types.

type apiResponsesRequest struct {
	Model              string         `json:"model"`
	Input              []apiInputItem `json:"input"`
	PreviousResponseID string         `json:"previous_response_id,omitempty"`
	MaxOutputTokens    int            `json:"max_output_tokens,omitempty"`
	Temperature        *float64       `json:"temperature,omitempty"`
	Stream             bool           `json:"stream,omitempty"`
}

type apiInputItem struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiResponsesResponse struct {
	ID     string             `json:"id"`
	Model  string             `json:"model"`
	Output []apiOutputItem    `json:"output"`
	Usage  *apiResponsesUsage `json:"usage"`
}

type apiOutputItem struct {
	ID      string             `json:"id,omitempty"`
	Type    string             `json:"type"` // "message" or "function_call"
	Role    string             `json:"role,omitempty"`
	Content []apiOutputContent `json:"content,omitempty"`

	// function_call items
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type apiOutputContent struct {
	Type string `json:"type"` // "output_text"
	Text string `json:"text"`
}

type apiResponsesUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// apiResponseEvent is one Responses API stream event. The Type field
// discriminates; the remaining fields are populated per event type.
type apiResponseEvent struct {
	Type         string                `json:"type"`
	Response     *apiResponsesResponse `json:"response,omitempty"`
	OutputIndex  int                   `json:"output_index"`
	ContentIndex int                   `json:"content_index"`
	Item         *apiOutputItem        `json:"item,omitempty"`
	Delta        string                `json:"delta,omitempty"`
}
