package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/llmrb/llm"
	"github.com/llmrb/llm/metrics"
)

// Interface compliance check.
var _ llm.Provider = (*Client)(nil)

// Client implements [llm.Provider] for the OpenAI API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL sets the API base URL. Useful for testing with httptest.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithModel sets the default model ID.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// New creates a new OpenAI [Client] with the given API key and options.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// DefaultModel returns the model used when a request does not name one.
func (c *Client) DefaultModel() string { return c.model }

// AssistantRole returns the role string this provider uses for assistant
// messages.
func (c *Client) AssistantRole() llm.Role { return llm.RoleAssistant }

// Complete sends a chat completions request. With req.Stream set, the SSE
// body is driven through a [ChunkMerger] and text increments are echoed to
// req.Sink as they arrive.
func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	apiReq, err := c.buildChatRequest(req)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	start := time.Now()
	resp, err := c.post(ctx, chatCompletionsPath, apiReq)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(providerName, "completion", "error").Inc()
		return nil, err
	}

	var out *llm.Response
	if req.Stream {
		out, err = c.streamChat(resp.Body, req.Sink)
	} else {
		out, err = parseChatResponse(resp.Body)
	}
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(providerName, "completion", "error").Inc()
		return nil, err
	}

	metrics.RequestsTotal.WithLabelValues(providerName, "completion", "ok").Inc()
	metrics.RequestDuration.WithLabelValues(providerName, "completion").Observe(time.Since(start).Seconds())
	metrics.ObserveUsage(providerName, out.Model, out.Usage.InputTokens, out.Usage.OutputTokens)
	return out, nil
}

// Respond sends a Responses API request, threading req.PreviousResponseID
// when set. With req.Stream set, events are driven through a
// [ResponseMerger].
func (c *Client) Respond(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	apiReq, err := c.buildResponsesRequest(req)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	start := time.Now()
	resp, err := c.post(ctx, responsesPath, apiReq)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(providerName, "response", "error").Inc()
		return nil, err
	}

	var out *llm.Response
	if req.Stream {
		out, err = c.streamResponses(resp.Body, req.Sink)
	} else {
		out, err = parseResponsesResponse(resp.Body)
	}
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(providerName, "response", "error").Inc()
		return nil, err
	}

	metrics.RequestsTotal.WithLabelValues(providerName, "response", "ok").Inc()
	metrics.RequestDuration.WithLabelValues(providerName, "response").Observe(time.Since(start).Seconds())
	metrics.ObserveUsage(providerName, out.Model, out.Usage.InputTokens, out.Usage.OutputTokens)
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		return nil, &llm.TransportError{Provider: providerName, StatusCode: resp.StatusCode, Body: raw}
	}
	return resp, nil
}

func (c *Client) buildChatRequest(req llm.Request) (*apiChatRequest, error) {
	msgs, err := convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	apiReq := &apiChatRequest{
		Model:       c.resolveModel(req.Model),
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Tools:       convertTools(req.Tools),
		Stream:      req.Stream,
	}
	if req.Stream {
		apiReq.StreamOptions = &apiStreamOptions{IncludeUsage: true}
	}
	if req.Schema != nil {
		apiReq.ResponseFormat = &apiRespFormat{Type: "json_schema", JSONSchema: req.Schema}
	}
	return apiReq, nil
}

func (c *Client) buildResponsesRequest(req llm.Request) (*apiResponsesRequest, error) {
	input := make([]apiInputItem, 0, len(req.Messages))
	for _, msg := range req.Messages {
		text := msg.Text()
		if text == "" && len(msg.Content) > 0 {
			return nil, fmt.Errorf("responses input requires text content: %w", llm.ErrPrompt)
		}
		input = append(input, apiInputItem{Role: mapRole(msg.Role), Content: text})
	}
	return &apiResponsesRequest{
		Model:              c.resolveModel(req.Model),
		Input:              input,
		PreviousResponseID: req.PreviousResponseID,
		MaxOutputTokens:    req.MaxTokens,
		Temperature:        req.Temperature,
		Stream:             req.Stream,
	}, nil
}

func (c *Client) resolveModel(model string) string {
	if model == "" {
		return c.model
	}
	return model
}

func (c *Client) streamChat(body io.ReadCloser, sink llm.Sink) (*llm.Response, error) {
	merger := NewChunkMerger(sink)
	if err := drainStream(body, merger); err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	return &llm.Response{
		ID:       merger.ID(),
		Model:    merger.Model(),
		Messages: merger.Messages(),
		Usage:    merger.Usage(),
	}, nil
}

func (c *Client) streamResponses(body io.ReadCloser, sink llm.Sink) (*llm.Response, error) {
	merger := NewResponseMerger(sink)
	if err := drainStream(body, merger); err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	return &llm.Response{
		ID:       merger.ID(),
		Messages: merger.Messages(),
		Usage:    merger.Usage(),
	}, nil
}

func parseChatResponse(body io.ReadCloser) (*llm.Response, error) {
	defer body.Close()
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	var apiResp apiChatResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return nil, fmt.Errorf("openai: parse response: %w", err)
	}

	var usage llm.Usage
	if apiResp.Usage != nil {
		cached := 0
		if apiResp.Usage.PromptTokensDetails != nil {
			cached = apiResp.Usage.PromptTokensDetails.CachedTokens
		}
		input := apiResp.Usage.PromptTokens - cached
		if input < 0 {
			input = 0
		}
		usage = llm.Usage{InputTokens: input, OutputTokens: apiResp.Usage.CompletionTokens, CacheReadTokens: cached}
	}

	extra := llm.Extra{}.WithUsage(usage).WithResponseID(apiResp.ID).WithModel(apiResp.Model)
	msgs := make([]llm.Message, 0, len(apiResp.Choices))
	for _, choice := range apiResp.Choices {
		var content []llm.ContentBlock
		if choice.Message.Content != "" {
			content = append(content, llm.TextBlock{Text: choice.Message.Content})
		}
		for _, tc := range choice.Message.ToolCalls {
			args := tc.Function.Arguments
			if args == "" {
				args = "{}"
			}
			content = append(content, llm.ToolCallBlock{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(args),
			})
		}
		msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: content, Extra: extra})
	}

	return &llm.Response{
		ID:       apiResp.ID,
		Model:    apiResp.Model,
		Messages: msgs,
		Usage:    usage,
		Raw:      raw,
	}, nil
}

func parseResponsesResponse(body io.ReadCloser) (*llm.Response, error) {
	defer body.Close()
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	var apiResp apiResponsesResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return nil, fmt.Errorf("openai: parse response: %w", err)
	}

	var usage llm.Usage
	if apiResp.Usage != nil {
		usage = llm.Usage{InputTokens: apiResp.Usage.InputTokens, OutputTokens: apiResp.Usage.OutputTokens}
	}

	extra := llm.Extra{}.WithUsage(usage).WithResponseID(apiResp.ID).WithModel(apiResp.Model)
	var msgs []llm.Message
	for _, item := range apiResp.Output {
		switch item.Type {
		case "message":
			var b strings.Builder
			for _, c := range item.Content {
				if c.Type == "output_text" {
					b.WriteString(c.Text)
				}
			}
			msgs = append(msgs, llm.Message{
				Role:    llm.RoleAssistant,
				Content: []llm.ContentBlock{llm.TextBlock{Text: b.String()}},
				Extra:   extra,
			})
		case "function_call":
			args := item.Arguments
			if args == "" {
				args = "{}"
			}
			call := llm.ToolCallBlock{ID: item.CallID, Name: item.Name, Arguments: json.RawMessage(args)}
			if n := len(msgs); n > 0 {
				msgs[n-1].Content = append(msgs[n-1].Content, call)
			} else {
				msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: []llm.ContentBlock{call}, Extra: extra})
			}
		}
	}

	return &llm.Response{
		ID:       apiResp.ID,
		Model:    apiResp.Model,
		Messages: msgs,
		Usage:    usage,
		Raw:      raw,
	}, nil
}

// convertMessages translates domain messages into the chat wire shape.
func convertMessages(msgs []llm.Message) ([]apiChatMessage, error) {
	result := make([]apiChatMessage, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case llm.RoleSystem, llm.RoleUser, llm.RoleAssistant, llm.RoleDeveloper, llm.RoleModel:
			out := apiChatMessage{Role: mapRole(msg.Role)}
			var text strings.Builder
			for _, block := range msg.Content {
				switch bl := block.(type) {
				case llm.TextBlock:
					text.WriteString(bl.Text)
				case llm.ToolCallBlock:
					out.ToolCalls = append(out.ToolCalls, apiToolCall{
						ID:       bl.ID,
						Type:     "function",
						Function: apiToolFunction{Name: bl.Name, Arguments: string(bl.Arguments)},
					})
				case llm.FileBlock:
					return nil, fmt.Errorf("file content not representable on chat completions: %w", llm.ErrPrompt)
				case llm.ToolResultBlock:
					return nil, fmt.Errorf("tool result in %s message: %w", msg.Role, llm.ErrPrompt)
				}
			}
			out.Content = text.String()
			result = append(result, out)
		case llm.RoleTool:
			for _, block := range msg.Content {
				tr, ok := block.(llm.ToolResultBlock)
				if !ok {
					return nil, fmt.Errorf("tool message requires tool result content: %w", llm.ErrPrompt)
				}
				var text strings.Builder
				for _, inner := range tr.Content {
					if tb, ok := inner.(llm.TextBlock); ok {
						text.WriteString(tb.Text)
					}
				}
				result = append(result, apiChatMessage{
					Role:       "tool",
					Content:    text.String(),
					ToolCallID: tr.ToolCallID,
				})
			}
		default:
			return nil, fmt.Errorf("role %q not representable: %w", msg.Role, llm.ErrPrompt)
		}
	}
	return result, nil
}

// mapRole normalizes roles for the wire: "model" is this provider's
// "assistant".
func mapRole(role llm.Role) string {
	if role == llm.RoleModel {
		return string(llm.RoleAssistant)
	}
	return string(role)
}

func convertTools(tools []llm.Tool) []apiTool {
	if len(tools) == 0 {
		return nil
	}
	result := make([]apiTool, len(tools))
	for i, t := range tools {
		result[i] = apiTool{
			Type: "function",
			Function: apiToolDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return result
}
