package conversation

import (
	"fmt"

	"github.com/huandu/go-clone"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

// ToolCall is a request issued by the generating model to run a named action.
// Arguments holds the raw JSON argument object exactly as the model sent it.
type ToolCall struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Arguments string `json:"arguments" yaml:"arguments"`
}

// Message is a single entry of the model input sequence.
//
// Only assistant messages carry ToolCalls and only tool messages carry a
// ToolCallID.
type Message struct {
	Role       Role       `json:"role" yaml:"role"`
	Content    string     `json:"content" yaml:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty" yaml:"tool_call_id,omitempty"`
}

func NewSystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

func NewAssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

func NewToolCallMessage(text string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: text, ToolCalls: calls}
}

func NewToolResultMessage(toolCallID string, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}

func (m Message) String() string {
	if len(m.ToolCalls) > 0 {
		return fmt.Sprintf("[%s] %s (%d tool calls)", m.Role, m.Content, len(m.ToolCalls))
	}
	if m.ToolCallID != "" {
		return fmt.Sprintf("[%s:%s] %s", m.Role, m.ToolCallID, m.Content)
	}
	return fmt.Sprintf("[%s] %s", m.Role, m.Content)
}

// Messages is an ordered model input sequence.
type Messages []Message

// Clone returns a deep copy so that a turn can own its buffer without
// aliasing the caller's history.
func (ms Messages) Clone() Messages {
	if ms == nil {
		return nil
	}
	return clone.Clone(ms).(Messages)
}
