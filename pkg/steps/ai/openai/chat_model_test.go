package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-go-golems/careertwin/pkg/conversation"
	"github.com/go-go-golems/careertwin/pkg/inference/generator"
	"github.com/go-go-golems/careertwin/pkg/inference/tools/persona"
	"github.com/go-go-golems/careertwin/pkg/notify"
	"github.com/go-go-golems/careertwin/pkg/settings"
	go_openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeCompletionRequest(t *testing.T) {
	reg, err := persona.NewRegistry(notify.NopNotifier{})
	require.NoError(t, err)

	msgs := conversation.Messages{
		conversation.NewSystemMessage("sys"),
		conversation.NewUserMessage("my email is a@b.com"),
		conversation.NewToolCallMessage("", conversation.ToolCall{ID: "c1", Name: persona.RecordUserDetailsName, Arguments: `{"email":"a@b.com"}`}),
		conversation.NewToolResultMessage("c1", `{"recorded":"ok"}`),
	}

	req, err := MakeCompletionRequest("gpt-4o-mini", msgs, reg.ListTools())
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", req.Model)
	require.Len(t, req.Messages, 4)
	assert.Equal(t, go_openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, go_openai.ChatMessageRoleAssistant, req.Messages[2].Role)
	require.Len(t, req.Messages[2].ToolCalls, 1)
	assert.Equal(t, "c1", req.Messages[2].ToolCalls[0].ID)
	assert.Equal(t, persona.RecordUserDetailsName, req.Messages[2].ToolCalls[0].Function.Name)
	assert.Equal(t, go_openai.ChatMessageRoleTool, req.Messages[3].Role)
	assert.Equal(t, "c1", req.Messages[3].ToolCallID)

	require.Len(t, req.Tools, 2)
	assert.Equal(t, persona.RecordUserDetailsName, req.Tools[0].Function.Name)
	params, ok := req.Tools[0].Function.Parameters.(json.RawMessage)
	require.True(t, ok)
	assert.Contains(t, string(params), `"required":["email"]`)

	_, err = MakeCompletionRequest("", msgs, nil)
	assert.Error(t, err)
}

func TestCompletionFromResponse(t *testing.T) {
	resp := go_openai.ChatCompletionResponse{
		Choices: []go_openai.ChatCompletionChoice{{
			FinishReason: go_openai.FinishReasonToolCalls,
			Message: go_openai.ChatCompletionMessage{
				Role: go_openai.ChatMessageRoleAssistant,
				ToolCalls: []go_openai.ToolCall{{
					ID:       "c1",
					Type:     go_openai.ToolTypeFunction,
					Function: go_openai.FunctionCall{Name: "record_unknown_question", Arguments: `{"question":"q"}`},
				}},
			},
		}},
	}
	c, err := CompletionFromResponse(resp)
	require.NoError(t, err)
	assert.True(t, c.WantsTools())
	assert.Equal(t, []conversation.ToolCall{{ID: "c1", Name: "record_unknown_question", Arguments: `{"question":"q"}`}}, c.ToolCalls)

	resp.Choices[0].FinishReason = go_openai.FinishReasonStop
	c, err = CompletionFromResponse(resp)
	require.NoError(t, err)
	assert.True(t, c.WantsTools())

	c, err = CompletionFromResponse(go_openai.ChatCompletionResponse{
		Choices: []go_openai.ChatCompletionChoice{{
			FinishReason: go_openai.FinishReasonStop,
			Message:      go_openai.ChatCompletionMessage{Content: "hello"},
		}},
	})
	require.NoError(t, err)
	assert.False(t, c.WantsTools())
	assert.Equal(t, "hello", c.Content)
	assert.Equal(t, generator.FinishReasonStop, c.FinishReason)

	_, err = CompletionFromResponse(go_openai.ChatCompletionResponse{})
	assert.Error(t, err)
}

func TestChatModelAgainstServer(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" || r.Header.Get("Authorization") != "Bearer sk-test" {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Hi there"}}]
		}`)
	}))
	defer srv.Close()

	m, err := NewChatModel(settings.OpenAISettings{APIKey: "sk-test", BaseURL: srv.URL + "/v1/", Model: "gpt-4o-mini"})
	require.NoError(t, err)

	c, err := m.Complete(context.Background(), conversation.Messages{conversation.NewUserMessage("hi")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi there", c.Content)
	assert.Equal(t, "gpt-4o-mini", got["model"])
}

func TestChatModelServerErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
	}))
	defer srv.Close()

	m, err := NewChatModel(settings.OpenAISettings{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-4o-mini"})
	require.NoError(t, err)

	_, err = m.Complete(context.Background(), conversation.Messages{conversation.NewUserMessage("hi")}, nil)
	assert.Error(t, err)
}

func TestNewChatModelRequiresKey(t *testing.T) {
	_, err := NewChatModel(settings.OpenAISettings{Model: "gpt-4o-mini"})
	assert.Error(t, err)
}
