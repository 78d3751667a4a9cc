package llm

// Role represents the role of a message sender. Provider APIs disagree on
// the name of the assistant-equivalent role ("assistant" vs "model"); a
// Provider reports the one it uses via AssistantRole().
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleDeveloper Role = "developer"
	RoleModel     Role = "model"
	RoleTool      Role = "tool"
)

// Known reports whether r is one of the canonical roles.
func (r Role) Known() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleDeveloper, RoleModel, RoleTool:
		return true
	}
	return false
}
