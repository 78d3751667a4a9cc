package llm

import "context"

// Option adjusts request parameters. The same options configure a Bot's
// defaults at construction and override them per call; per-call values win.
type Option func(*Params)

// WithModel sets the model ID. Empty means the provider default.
func WithModel(model string) Option {
	return func(p *Params) { p.Model = model }
}

// WithMaxTokens caps output length. Zero means the provider default.
func WithMaxTokens(n int) Option {
	return func(p *Params) { p.MaxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(p *Params) { p.Temperature = &t }
}

// WithTools sets the tool list sent with each request.
func WithTools(tools ...Tool) Option {
	return func(p *Params) { p.Tools = tools }
}

// WithSchema sets a response JSON schema for providers that support one.
func WithSchema(schema []byte) Option {
	return func(p *Params) { p.Schema = schema }
}

// WithStream requests incremental delivery, echoing text to the sink.
func WithStream(sink Sink) Option {
	return func(p *Params) {
		p.Stream = true
		p.Sink = sink
	}
}

// WithRole overrides the role a facade method would assign to the message.
// The explicit per-message role is the most specific setting and wins over
// both defaults and per-call params.
func WithRole(role Role) Option {
	return func(p *Params) { p.Role = role }
}

// Bot is the user-facing conversation facade. It composes a Buffer with
// default parameters and role-qualified convenience methods, and
// orchestrates completion mode (stateless, full history resent) versus
// response mode (stateful, chained by response identifier).
//
// Like the Buffer it wraps, a Bot is confined to one logical owner at a
// time.
type Bot struct {
	provider Provider
	buffer   *Buffer
	defaults Params
}

// NewBot creates a Bot for the given provider. Options set parameter
// defaults merged into every enqueued turn.
func NewBot(provider Provider, opts ...Option) *Bot {
	b := &Bot{
		provider: provider,
		buffer:   NewBuffer(provider),
	}
	for _, o := range opts {
		o(&b.defaults)
	}
	if b.defaults.Model == "" {
		b.defaults.Model = provider.DefaultModel()
	}
	return b
}

// Messages exposes the underlying buffer for reads.
func (b *Bot) Messages() *Buffer { return b.buffer }

// resolve merges defaults with per-call options; per-call values win.
func (b *Bot) resolve(opts []Option) Params {
	var over Params
	for _, o := range opts {
		o(&over)
	}
	return b.defaults.merge(over)
}

func (b *Bot) enqueue(role Role, text string, mode Mode, opts []Option) {
	params := b.resolve(opts)
	if params.Role != "" {
		role = params.Role
	}
	b.buffer.Enqueue(NewMessage(role, text), params, mode)
}

// Chat queues a user turn in completion mode. No network I/O happens until
// the conversation is read.
func (b *Bot) Chat(text string, opts ...Option) {
	b.enqueue(RoleUser, text, ModeCompletion, opts)
}

// Respond queues a user turn in response mode, chaining from the previous
// response identifier recorded by an earlier flush.
func (b *Bot) Respond(text string, opts ...Option) {
	b.enqueue(RoleUser, text, ModeResponse, opts)
}

// System queues a system turn in completion mode.
func (b *Bot) System(text string, opts ...Option) {
	b.enqueue(RoleSystem, text, ModeCompletion, opts)
}

// User queues a user turn in completion mode.
func (b *Bot) User(text string, opts ...Option) {
	b.enqueue(RoleUser, text, ModeCompletion, opts)
}

// Assistant queues an assistant turn in completion mode. Useful for seeding
// a conversation with prior assistant output.
func (b *Bot) Assistant(text string, opts ...Option) {
	b.enqueue(b.provider.AssistantRole(), text, ModeCompletion, opts)
}

// Developer queues a developer turn in completion mode.
func (b *Bot) Developer(text string, opts ...Option) {
	b.enqueue(RoleDeveloper, text, ModeCompletion, opts)
}

// Functions flushes and returns tool calls from assistant messages that no
// later tool-result turn has answered yet.
func (b *Bot) Functions(ctx context.Context) ([]ToolCallBlock, error) {
	msgs, err := b.buffer.Messages(ctx)
	if err != nil {
		return nil, err
	}
	answered := make(map[string]bool)
	for _, m := range msgs {
		for _, block := range m.Content {
			if tr, ok := block.(ToolResultBlock); ok {
				answered[tr.ToolCallID] = true
			}
		}
	}
	assistant := b.provider.AssistantRole()
	var calls []ToolCallBlock
	for _, m := range msgs {
		if m.Role != assistant && m.Role != RoleAssistant {
			continue
		}
		for _, call := range m.ToolCalls() {
			if !answered[call.ID] {
				calls = append(calls, call)
			}
		}
	}
	return calls, nil
}

// Usage flushes and returns the token accounting of the most recent
// assistant message.
func (b *Bot) Usage(ctx context.Context) (Usage, bool, error) {
	msg, ok, err := b.buffer.Last(ctx, b.provider.AssistantRole())
	if err != nil || !ok {
		return Usage{}, false, err
	}
	u, ok := msg.Extra.Usage()
	return u, ok, nil
}

// Drain forces resolution of the pending backlog and returns all messages.
func (b *Bot) Drain(ctx context.Context) ([]Message, error) {
	return b.buffer.Messages(ctx)
}
