package anthropic

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/llmrb/llm"
	"github.com/llmrb/llm/eventstream"
	"github.com/llmrb/llm/metrics"
)

// Interface compliance check.
var _ llm.Provider = (*Client)(nil)

// Client implements [llm.Provider] for the Anthropic Messages API.
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

// New creates a new Anthropic [Client] with the given API key and options.
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

// Respond reports that the Messages API has no stateful response-chaining
// operation.
func (c *Client) Respond(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return nil, fmt.Errorf("anthropic: response chaining: %w", llm.ErrUnsupported)
}

// Complete sends a Messages API request. With req.Stream set, the SSE body
// is driven through a [ChunkMerger] and text increments are echoed to
// req.Sink as they arrive.
func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	body, err := c.buildRequestBody(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)
	httpReq.Header.Set("Anthropic-Version", apiVersion)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(providerName, "completion", "error").Inc()
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		metrics.RequestsTotal.WithLabelValues(providerName, "completion", "error").Inc()
		return nil, &llm.TransportError{Provider: providerName, StatusCode: resp.StatusCode, Body: raw}
	}

	var out *llm.Response
	if req.Stream {
		out, err = c.stream(resp.Body, req.Sink)
	} else {
		out, err = parseResponse(resp.Body)
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

// stream drives the SSE body through the merge pipeline to its terminal
// event, one fragment at a time in arrival order.
func (c *Client) stream(body io.ReadCloser, sink llm.Sink) (*llm.Response, error) {
	defer body.Close()

	merger := NewChunkMerger(sink)
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
		if err == io.EOF || visitor.Done() {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("anthropic: %w", err)
		}
	}
	if dropped := visitor.Dropped(); dropped > 0 {
		metrics.DroppedChunksTotal.WithLabelValues(providerName).Add(float64(dropped))
	}

	return &llm.Response{
		ID:       merger.ID(),
		Model:    merger.Model(),
		Messages: merger.Messages(),
		Usage:    merger.Usage(),
	}, nil
}

func parseResponse(body io.ReadCloser) (*llm.Response, error) {
	defer body.Close()
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	var apiResp apiResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return nil, fmt.Errorf("anthropic: parse response: %w", err)
	}

	usage := llm.Usage{
		InputTokens:  apiResp.Usage.InputTokens,
		OutputTokens: apiResp.Usage.OutputTokens,
	}
	if apiResp.Usage.CacheReadInputTokens != nil {
		usage.CacheReadTokens = *apiResp.Usage.CacheReadInputTokens
	}

	var content []llm.ContentBlock
	for _, block := range apiResp.Content {
		switch block.Type {
		case "text":
			content = append(content, llm.TextBlock{Text: block.Text})
		case "tool_use":
			input := block.Input
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			content = append(content, llm.ToolCallBlock{ID: block.ID, Name: block.Name, Arguments: input})
		}
	}

	extra := llm.Extra{}.WithUsage(usage).WithResponseID(apiResp.ID).WithModel(apiResp.Model)
	return &llm.Response{
		ID:       apiResp.ID,
		Model:    apiResp.Model,
		Messages: []llm.Message{{Role: llm.RoleAssistant, Content: content, Extra: extra}},
		Usage:    usage,
		Raw:      raw,
	}, nil
}

func (c *Client) buildRequestBody(req llm.Request) ([]byte, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	system, msgs, err := convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	apiReq := apiRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Stream:      req.Stream,
		System:      system,
		Messages:    msgs,
		Tools:       convertTools(req.Tools),
		Temperature: req.Temperature,
	}
	return json.Marshal(apiReq)
}

// convertMessages translates domain messages into the Messages API shape.
// System and developer turns are lifted into the request's system field;
// tool results travel as user-role content blocks.
func convertMessages(msgs []llm.Message) ([]apiContentBlock, []apiMessage, error) {
	var system []apiContentBlock
	var result []apiMessage
	for _, msg := range msgs {
		switch msg.Role {
		case llm.RoleSystem, llm.RoleDeveloper:
			text := msg.Text()
			if text == "" {
				return nil, nil, fmt.Errorf("%s message requires text content: %w", msg.Role, llm.ErrPrompt)
			}
			system = append(system, apiContentBlock{Type: "text", Text: text})
		case llm.RoleUser:
			blocks, err := convertContentBlocks(msg.Content)
			if err != nil {
				return nil, nil, err
			}
			result = append(result, apiMessage{Role: "user", Content: blocks})
		case llm.RoleAssistant, llm.RoleModel:
			blocks, err := convertContentBlocks(msg.Content)
			if err != nil {
				return nil, nil, err
			}
			result = append(result, apiMessage{Role: "assistant", Content: blocks})
		case llm.RoleTool:
			for _, block := range msg.Content {
				tr, ok := block.(llm.ToolResultBlock)
				if !ok {
					return nil, nil, fmt.Errorf("tool message requires tool result content: %w", llm.ErrPrompt)
				}
				inner, err := convertContentBlocks(tr.Content)
				if err != nil {
					return nil, nil, err
				}
				out := apiContentBlock{
					Type:      "tool_result",
					ToolUseID: tr.ToolCallID,
					Content:   inner,
					IsError:   tr.IsError,
				}
				// Merge consecutive tool results into the same user message.
				if n := len(result); n > 0 && result[n-1].Role == "user" && isToolResultMessage(result[n-1]) {
					result[n-1].Content = append(result[n-1].Content, out)
				} else {
					result = append(result, apiMessage{Role: "user", Content: []apiContentBlock{out}})
				}
			}
		default:
			return nil, nil, fmt.Errorf("role %q not representable: %w", msg.Role, llm.ErrPrompt)
		}
	}
	return system, result, nil
}

func isToolResultMessage(msg apiMessage) bool {
	return len(msg.Content) > 0 && msg.Content[0].Type == "tool_result"
}

func convertContentBlocks(blocks []llm.ContentBlock) ([]apiContentBlock, error) {
	result := make([]apiContentBlock, 0, len(blocks))
	for _, b := range blocks {
		switch bl := b.(type) {
		case llm.TextBlock:
			result = append(result, apiContentBlock{Type: "text", Text: bl.Text})
		case llm.ToolCallBlock:
			result = append(result, apiContentBlock{Type: "tool_use", ID: bl.ID, Name: bl.Name, Input: bl.Arguments})
		case llm.FileBlock:
			if !strings.HasPrefix(bl.MimeType, "image/") {
				return nil, fmt.Errorf("file type %q not representable: %w", bl.MimeType, llm.ErrPrompt)
			}
			result = append(result, apiContentBlock{
				Type: "image",
				Source: &apiImageSource{
					Type:      "base64",
					MediaType: bl.MimeType,
					Data:      base64.StdEncoding.EncodeToString(bl.Data),
				},
			})
		default:
			return nil, fmt.Errorf("content block %T not representable: %w", b, llm.ErrPrompt)
		}
	}
	return result, nil
}

func convertTools(tools []llm.Tool) []apiTool {
	if len(tools) == 0 {
		return nil
	}
	result := make([]apiTool, len(tools))
	for i, t := range tools {
		result[i] = apiTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		}
	}
	return result
}
