package llm

import "fmt"

// ValidateMessage checks that a message has a canonical role and content
// blocks consistent with it. Violations surface as [ErrPrompt]-wrapped
// errors before any network call is made.
func ValidateMessage(msg Message) error {
	if !msg.Role.Known() {
		return fmt.Errorf("unknown role %q: %w", msg.Role, ErrPrompt)
	}
	for _, b := range msg.Content {
		switch bl := b.(type) {
		case TextBlock:
		case FileBlock:
			if bl.MimeType == "" {
				return fmt.Errorf("file block missing MIME type: %w", ErrPrompt)
			}
		case ToolCallBlock:
			if msg.Role != RoleAssistant && msg.Role != RoleModel {
				return fmt.Errorf("tool call block not allowed in %s message: %w", msg.Role, ErrPrompt)
			}
		case ToolResultBlock:
			if msg.Role != RoleTool && msg.Role != RoleUser {
				return fmt.Errorf("tool result block not allowed in %s message: %w", msg.Role, ErrPrompt)
			}
		case nil:
			return fmt.Errorf("nil content block: %w", ErrPrompt)
		default:
			return fmt.Errorf("unknown content block type %T: %w", b, ErrPrompt)
		}
	}
	return nil
}
