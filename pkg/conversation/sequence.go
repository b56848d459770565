package conversation

import (
	"github.com/pkg/errors"
)

var (
	ErrOrphanToolResult   = errors.New("tool message without a matching preceding tool call")
	ErrUnansweredToolCall = errors.New("tool call without a tool message before the next model input")
	ErrInvalidRole        = errors.New("invalid message role")
)

// ValidateSequence checks the ordering contract of a model input sequence:
// every tool message must answer a tool call id issued by an earlier assistant
// message, and every issued tool call must be answered exactly once before the
// next non-tool message.
func ValidateSequence(ms Messages) error {
	pending := map[string]bool{}
	answered := map[string]bool{}

	for i, m := range ms {
		if !m.Role.Valid() {
			return errors.Wrapf(ErrInvalidRole, "message %d has role %q", i, m.Role)
		}

		if m.Role == RoleTool {
			if !pending[m.ToolCallID] {
				return errors.Wrapf(ErrOrphanToolResult, "message %d answers %q", i, m.ToolCallID)
			}
			delete(pending, m.ToolCallID)
			answered[m.ToolCallID] = true
			continue
		}

		if len(pending) > 0 {
			for id := range pending {
				return errors.Wrapf(ErrUnansweredToolCall, "call %q before message %d", id, i)
			}
		}

		if m.Role == RoleAssistant {
			for _, tc := range m.ToolCalls {
				if answered[tc.ID] {
					return errors.Wrapf(ErrOrphanToolResult, "tool call id %q reused at message %d", tc.ID, i)
				}
				pending[tc.ID] = true
			}
		}
	}

	for id := range pending {
		return errors.Wrapf(ErrUnansweredToolCall, "call %q at end of sequence", id)
	}

	return nil
}
