package generator

import (
	"context"

	"github.com/go-go-golems/careertwin/pkg/conversation"
	"github.com/go-go-golems/careertwin/pkg/inference/tools"
)

type FinishReason string

const (
	FinishReasonStop      FinishReason = "stop"
	FinishReasonToolCalls FinishReason = "tool_calls"
	FinishReasonLength    FinishReason = "length"
)

// Completion is one response of the generating model.
type Completion struct {
	Content      string
	ToolCalls    []conversation.ToolCall
	FinishReason FinishReason
}

// WantsTools reports whether the model asked for tool calls instead of
// finishing with text.
func (c *Completion) WantsTools() bool {
	return c.FinishReason == FinishReasonToolCalls && len(c.ToolCalls) > 0
}

// ChatModel is the primary generating model.
type ChatModel interface {
	Complete(ctx context.Context, messages conversation.Messages, tools []*tools.ToolDefinition) (*Completion, error)
}

// ChatModelFunc adapts a function to ChatModel.
type ChatModelFunc func(ctx context.Context, messages conversation.Messages, tools []*tools.ToolDefinition) (*Completion, error)

func (f ChatModelFunc) Complete(ctx context.Context, messages conversation.Messages, tools []*tools.ToolDefinition) (*Completion, error) {
	return f(ctx, messages, tools)
}
