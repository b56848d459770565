package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-go-golems/careertwin/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ToolResult is the outcome of dispatching one tool call. Payload is JSON
// serializable and becomes the content of the answering tool message.
type ToolResult struct {
	ToolCallID string      `json:"tool_call_id"`
	Name       string      `json:"name"`
	Payload    interface{} `json:"payload"`
	Known      bool        `json:"known"`
}

// Content returns the JSON encoding of the payload.
func (r ToolResult) Content() (string, error) {
	b, err := json.Marshal(r.Payload)
	if err != nil {
		return "", errors.Wrapf(err, "encode result of tool %s", r.Name)
	}
	return string(b), nil
}

// Message returns the tool message answering the call.
func (r ToolResult) Message() (conversation.Message, error) {
	content, err := r.Content()
	if err != nil {
		return conversation.Message{}, err
	}
	return conversation.NewToolResultMessage(r.ToolCallID, content), nil
}

// Registry maps tool names to their definitions. It is built once at startup
// and passed explicitly to the components that dispatch tool calls.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*ToolDefinition
	order []string
}

func NewRegistry(defs ...*ToolDefinition) (*Registry, error) {
	r := &Registry{
		tools: make(map[string]*ToolDefinition),
	}
	for _, def := range defs {
		if err := r.RegisterTool(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// RegisterTool adds a tool. Names must be unique.
func (r *Registry) RegisterTool(def *ToolDefinition) error {
	if def == nil {
		return errors.New("tool definition cannot be nil")
	}
	if def.Name == "" {
		return errors.New("tool name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool already registered: %s", def.Name)
	}
	r.tools[def.Name] = def
	r.order = append(r.order, def.Name)
	return nil
}

// GetTool retrieves a tool by name.
func (r *Registry) GetTool(name string) (*ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.tools[name]
	return def, ok
}

// ListTools returns the tools in registration order.
func (r *Registry) ListTools() []*ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ret := make([]*ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		ret = append(ret, r.tools[name])
	}
	return ret
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Dispatch runs a single tool call.
//
// An unknown tool name yields an empty-object payload and no error so that a
// hallucinated tool does not end the turn. Malformed or schema-invalid
// arguments are returned as errors; the caller treats them as fatal.
func (r *Registry) Dispatch(ctx context.Context, call conversation.ToolCall) (ToolResult, error) {
	log.Debug().
		Str("tool", call.Name).
		Str("tool_call_id", call.ID).
		Str("args", call.Arguments).
		Msg("tools: dispatching tool call")

	def, ok := r.GetTool(call.Name)
	if !ok {
		log.Warn().
			Str("tool", call.Name).
			Str("tool_call_id", call.ID).
			Msg("tools: unknown tool requested, returning empty result")
		return ToolResult{
			ToolCallID: call.ID,
			Name:       call.Name,
			Payload:    map[string]interface{}{},
			Known:      false,
		}, nil
	}

	payload, err := def.Invoke(ctx, call.ID, call.Arguments)
	if err != nil {
		return ToolResult{}, err
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}

	return ToolResult{
		ToolCallID: call.ID,
		Name:       call.Name,
		Payload:    payload,
		Known:      true,
	}, nil
}

// DispatchAll runs calls in order and stops at the first error. before, if
// set, is called with each call right before it is dispatched.
func (r *Registry) DispatchAll(ctx context.Context, calls []conversation.ToolCall, before func(conversation.ToolCall)) ([]ToolResult, error) {
	results := make([]ToolResult, 0, len(calls))
	for _, call := range calls {
		if before != nil {
			before(call)
		}
		res, err := r.Dispatch(ctx, call)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}
