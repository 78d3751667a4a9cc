package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/llmrb/llm"
)

var (
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	toolStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	faintStyle     = lipgloss.NewStyle().Faint(true)
)

func roleLabel(role llm.Role) string {
	switch role {
	case llm.RoleUser:
		return userStyle.Render("you")
	case llm.RoleAssistant, llm.RoleModel:
		return assistantStyle.Render("assistant")
	case llm.RoleTool:
		return toolStyle.Render("tool")
	default:
		return faintStyle.Render(string(role))
	}
}

// renderer formats assistant replies for the terminal. When markdown is
// enabled replies go through glamour; otherwise they print verbatim.
type renderer struct {
	out      io.Writer
	markdown *glamour.TermRenderer
}

func newRenderer(out io.Writer, markdown bool) (*renderer, error) {
	r := &renderer{out: out}
	if markdown {
		tr, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err != nil {
			return nil, fmt.Errorf("markdown renderer: %w", err)
		}
		r.markdown = tr
	}
	return r, nil
}

func (r *renderer) message(msg llm.Message) error {
	text := msg.Text()
	if text == "" && len(msg.ToolCalls()) == 0 {
		return nil
	}
	fmt.Fprintf(r.out, "%s\n", roleLabel(msg.Role))
	if r.markdown != nil {
		rendered, err := r.markdown.Render(text)
		if err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		fmt.Fprint(r.out, rendered)
	} else if text != "" {
		fmt.Fprintln(r.out, text)
	}
	for _, tc := range msg.ToolCalls() {
		fmt.Fprintf(r.out, "%s %s(%s)\n", toolStyle.Render("call"), tc.Name, strings.TrimSpace(string(tc.Arguments)))
	}
	return nil
}

func (r *renderer) usage(u llm.Usage) {
	if u == (llm.Usage{}) {
		return
	}
	fmt.Fprintln(r.out, faintStyle.Render(
		fmt.Sprintf("tokens: %d in, %d out", u.InputTokens, u.OutputTokens)))
}
