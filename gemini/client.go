package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/llmrb/llm"
	"github.com/llmrb/llm/metrics"
)

// Interface compliance check.
var _ llm.Provider = (*Client)(nil)

// Client implements [llm.Provider] for the Google Gemini API.
type Client struct {
	client *genai.Client
	model  string
}

// Option configures a [Client].
type Option func(*Client)

// WithModel sets the default model ID.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// New creates a new Gemini [Client] with the given API key and options.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	c := &Client{
		client: gc,
		model:  defaultModel,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// DefaultModel returns the model used when a request does not name one.
func (c *Client) DefaultModel() string { return c.model }

// AssistantRole returns the role string this provider uses for assistant
// messages. Gemini calls it "model".
func (c *Client) AssistantRole() llm.Role { return llm.RoleModel }

// Respond reports that the Gemini API has no stateful response-chaining
// operation.
func (c *Client) Respond(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return nil, fmt.Errorf("gemini: response chaining: %w", llm.ErrUnsupported)
}

// Complete sends a generate-content request. With req.Stream set, the
// SDK's streaming iterator is consumed on the calling goroutine, echoing
// text increments to req.Sink as they arrive.
func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	model := req.Model
	if model == "" {
		model = c.model
	}
	contents, config, err := ConvertRequest(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	start := time.Now()
	var out *llm.Response
	if req.Stream {
		out, err = c.streamContent(ctx, model, contents, config, req.Sink)
	} else {
		out, err = c.generateContent(ctx, model, contents, config)
	}
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(providerName, "completion", "error").Inc()
		return nil, err
	}

	metrics.RequestsTotal.WithLabelValues(providerName, "completion", "ok").Inc()
	metrics.RequestDuration.WithLabelValues(providerName, "completion").Observe(time.Since(start).Seconds())
	metrics.ObserveUsage(providerName, model, out.Usage.InputTokens, out.Usage.OutputTokens)
	return out, nil
}

func (c *Client) generateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*llm.Response, error) {
	resp, err := c.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return buildResponse(resp, model), nil
}

func (c *Client) streamContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig, sink llm.Sink) (*llm.Response, error) {
	var (
		text  strings.Builder
		calls []llm.ToolCallBlock
		usage llm.Usage
	)
	for resp, err := range c.client.Models.GenerateContentStream(ctx, model, contents, config) {
		if err != nil {
			return nil, fmt.Errorf("gemini: %w", err)
		}
		if resp.UsageMetadata != nil {
			usage = convertUsage(resp.UsageMetadata)
		}
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part.Text != "" && !part.Thought {
					text.WriteString(part.Text)
					if sink != nil {
						sink.Append(part.Text)
					}
				}
				if part.FunctionCall != nil {
					calls = append(calls, convertFunctionCall(part.FunctionCall))
				}
			}
		}
	}

	var content []llm.ContentBlock
	if text.Len() > 0 {
		content = append(content, llm.TextBlock{Text: text.String()})
	}
	for _, call := range calls {
		content = append(content, call)
	}
	extra := llm.Extra{}.WithUsage(usage).WithModel(model)
	return &llm.Response{
		Model:    model,
		Messages: []llm.Message{{Role: llm.RoleModel, Content: content, Extra: extra}},
		Usage:    usage,
	}, nil
}

func buildResponse(resp *genai.GenerateContentResponse, model string) *llm.Response {
	var usage llm.Usage
	if resp.UsageMetadata != nil {
		usage = convertUsage(resp.UsageMetadata)
	}
	extra := llm.Extra{}.WithUsage(usage).WithModel(model)

	var msgs []llm.Message
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		var content []llm.ContentBlock
		for _, part := range cand.Content.Parts {
			if part.Text != "" && !part.Thought {
				content = append(content, llm.TextBlock{Text: part.Text})
			}
			if part.FunctionCall != nil {
				content = append(content, convertFunctionCall(part.FunctionCall))
			}
		}
		msgs = append(msgs, llm.Message{Role: llm.RoleModel, Content: content, Extra: extra})
	}

	return &llm.Response{
		Model:    model,
		Messages: msgs,
		Usage:    usage,
	}
}

func convertUsage(u *genai.GenerateContentResponseUsageMetadata) llm.Usage {
	return llm.Usage{
		InputTokens:     int(u.PromptTokenCount),
		OutputTokens:    int(u.CandidatesTokenCount),
		CacheReadTokens: int(u.CachedContentTokenCount),
	}
}

func convertFunctionCall(fc *genai.FunctionCall) llm.ToolCallBlock {
	args, err := json.Marshal(fc.Args)
	if err != nil {
		args = json.RawMessage("{}")
	}
	return llm.ToolCallBlock{ID: fc.ID, Name: fc.Name, Arguments: args}
}

// ConvertRequest translates a domain request into genai contents and
// config. System and developer turns become the system instruction; tool
// results become function responses.
func ConvertRequest(req llm.Request) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
		Tools:           ConvertTools(req.Tools),
	}
	if req.Temperature != nil {
		temp := float32(*req.Temperature)
		config.Temperature = &temp
	}

	var contents []*genai.Content
	for _, msg := range req.Messages {
		switch msg.Role {
		case llm.RoleSystem, llm.RoleDeveloper:
			text := msg.Text()
			if text == "" {
				return nil, nil, fmt.Errorf("%s message requires text content: %w", msg.Role, llm.ErrPrompt)
			}
			if config.SystemInstruction == nil {
				config.SystemInstruction = &genai.Content{}
			}
			config.SystemInstruction.Parts = append(config.SystemInstruction.Parts, &genai.Part{Text: text})
		case llm.RoleUser:
			parts, err := convertParts(msg.Content)
			if err != nil {
				return nil, nil, err
			}
			contents = append(contents, &genai.Content{Role: "user", Parts: parts})
		case llm.RoleAssistant, llm.RoleModel:
			parts, err := convertParts(msg.Content)
			if err != nil {
				return nil, nil, err
			}
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})
		case llm.RoleTool:
			for _, block := range msg.Content {
				tr, ok := block.(llm.ToolResultBlock)
				if !ok {
					return nil, nil, fmt.Errorf("tool message requires tool result content: %w", llm.ErrPrompt)
				}
				text := extractText(tr.Content)
				responseMap := map[string]any{"output": text}
				if tr.IsError {
					responseMap = map[string]any{"error": text}
				}
				contents = append(contents, &genai.Content{
					Role: "user",
					Parts: []*genai.Part{{
						FunctionResponse: &genai.FunctionResponse{
							ID:       tr.ToolCallID,
							Response: responseMap,
						},
					}},
				})
			}
		default:
			return nil, nil, fmt.Errorf("role %q not representable: %w", msg.Role, llm.ErrPrompt)
		}
	}
	return contents, config, nil
}

func convertParts(blocks []llm.ContentBlock) ([]*genai.Part, error) {
	var parts []*genai.Part
	for _, b := range blocks {
		switch bl := b.(type) {
		case llm.TextBlock:
			parts = append(parts, &genai.Part{Text: bl.Text})
		case llm.ToolCallBlock:
			// Arguments is json.RawMessage, valid JSON from domain types.
			var args map[string]any
			_ = json.Unmarshal(bl.Arguments, &args)
			parts = append(parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{ID: bl.ID, Name: bl.Name, Args: args},
			})
		case llm.FileBlock:
			parts = append(parts, &genai.Part{
				InlineData: &genai.Blob{MIMEType: bl.MimeType, Data: bl.Data},
			})
		default:
			return nil, fmt.Errorf("content block %T not representable: %w", b, llm.ErrPrompt)
		}
	}
	return parts, nil
}

// extractText returns the text of the first TextBlock, or empty string if none.
func extractText(blocks []llm.ContentBlock) string {
	for _, b := range blocks {
		if tb, ok := b.(llm.TextBlock); ok {
			return tb.Text
		}
	}
	return ""
}

// ConvertTools translates domain tools into one genai Tool carrying all
// function declarations.
func ConvertTools(tools []llm.Tool) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		// Parameters is json.RawMessage, valid JSON from domain types.
		var schema map[string]any
		_ = json.Unmarshal(t.Parameters, &schema)
		decls[i] = &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: schema,
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}
