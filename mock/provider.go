// Package mock provides test doubles for llm interfaces using function
// fields.
package mock

import (
	"context"

	"github.com/llmrb/llm"
)

// Interface compliance check.
var _ llm.Provider = (*Provider)(nil)

// Provider is a test double for llm.Provider. Set CompleteFn or RespondFn
// for the calls you expect; they panic when nil to catch missing setup.
// DefaultModelFn and AssistantRoleFn are nil-safe because most tests only
// care about the call path.
type Provider struct {
	CompleteFn      func(ctx context.Context, req llm.Request) (*llm.Response, error)
	RespondFn       func(ctx context.Context, req llm.Request) (*llm.Response, error)
	DefaultModelFn  func() string
	AssistantRoleFn func() llm.Role

	// Call counters, incremented on every invocation.
	CompleteCalls int
	RespondCalls  int
}

// Complete delegates to CompleteFn.
func (p *Provider) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	p.CompleteCalls++
	return p.CompleteFn(ctx, req)
}

// Respond delegates to RespondFn.
func (p *Provider) Respond(ctx context.Context, req llm.Request) (*llm.Response, error) {
	p.RespondCalls++
	return p.RespondFn(ctx, req)
}

// DefaultModel delegates to DefaultModelFn. Returns "mock-model" when nil.
func (p *Provider) DefaultModel() string {
	if p.DefaultModelFn == nil {
		return "mock-model"
	}
	return p.DefaultModelFn()
}

// AssistantRole delegates to AssistantRoleFn. Returns RoleAssistant when
// nil.
func (p *Provider) AssistantRole() llm.Role {
	if p.AssistantRoleFn == nil {
		return llm.RoleAssistant
	}
	return p.AssistantRoleFn()
}

// Sink is a test double for llm.Sink recording every appended increment.
type Sink struct {
	Appends []string
}

// Append records text.
func (s *Sink) Append(text string) {
	s.Appends = append(s.Appends, text)
}
