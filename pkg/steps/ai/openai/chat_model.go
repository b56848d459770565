package openai

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-go-golems/careertwin/pkg/conversation"
	"github.com/go-go-golems/careertwin/pkg/inference/generator"
	"github.com/go-go-golems/careertwin/pkg/inference/tools"
	"github.com/go-go-golems/careertwin/pkg/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

// ChatModel implements generator.ChatModel on top of the chat completions API.
type ChatModel struct {
	client *go_openai.Client
	model  string
}

var _ generator.ChatModel = (*ChatModel)(nil)

func NewChatModel(s settings.OpenAISettings) (*ChatModel, error) {
	client, err := MakeClient(s)
	if err != nil {
		return nil, err
	}
	return &ChatModel{client: client, model: s.Model}, nil
}

func MakeClient(s settings.OpenAISettings) (*go_openai.Client, error) {
	if s.APIKey == "" {
		return nil, errors.New("no API key for openai")
	}
	config := go_openai.DefaultConfig(s.APIKey)
	if s.BaseURL != "" {
		config.BaseURL = strings.TrimRight(s.BaseURL, "/")
	}
	return go_openai.NewClientWithConfig(config), nil
}

func (m *ChatModel) Complete(
	ctx context.Context,
	messages conversation.Messages,
	defs []*tools.ToolDefinition,
) (*generator.Completion, error) {
	req, err := MakeCompletionRequest(m.model, messages, defs)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("model", m.model).
		Int("messages", len(req.Messages)).
		Int("tools", len(req.Tools)).
		Msg("openai: creating chat completion")

	resp, err := m.client.CreateChatCompletion(ctx, *req)
	if err != nil {
		return nil, err
	}
	return CompletionFromResponse(resp)
}

// MakeCompletionRequest converts the message sequence and tool set into a
// chat completion request.
func MakeCompletionRequest(model string, messages conversation.Messages, defs []*tools.ToolDefinition) (*go_openai.ChatCompletionRequest, error) {
	if model == "" {
		return nil, errors.New("no model specified")
	}

	msgs := make([]go_openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := go_openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, go_openai.ToolCall{
				ID:   tc.ID,
				Type: go_openai.ToolTypeFunction,
				Function: go_openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		msgs = append(msgs, msg)
	}

	req := &go_openai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
	}

	for _, def := range defs {
		params, err := json.Marshal(def.Parameters)
		if err != nil {
			return nil, errors.Wrapf(err, "could not encode parameters of tool %s", def.Name)
		}
		req.Tools = append(req.Tools, go_openai.Tool{
			Type: go_openai.ToolTypeFunction,
			Function: &go_openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  json.RawMessage(params),
			},
		})
	}

	return req, nil
}

func CompletionFromResponse(resp go_openai.ChatCompletionResponse) (*generator.Completion, error) {
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai returned no choices")
	}
	choice := resp.Choices[0]

	ret := &generator.Completion{
		Content:      choice.Message.Content,
		FinishReason: generator.FinishReason(choice.FinishReason),
	}
	for _, tc := range choice.Message.ToolCalls {
		ret.ToolCalls = append(ret.ToolCalls, conversation.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	// Some compatible servers report "stop" alongside tool calls.
	if len(ret.ToolCalls) > 0 {
		ret.FinishReason = generator.FinishReasonToolCalls
	}

	log.Debug().
		Str("finish_reason", string(choice.FinishReason)).
		Int("tool_calls", len(ret.ToolCalls)).
		Str("tool_call_string", GetToolCallString(choice.Message.ToolCalls)).
		Msg("openai: chat completion received")

	return ret, nil
}

func GetToolCallString(toolCalls []go_openai.ToolCall) string {
	msg := ""
	for _, call := range toolCalls {
		msg += call.Function.Name
		msg += call.Function.Arguments
	}
	return msg
}
