package generator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-go-golems/careertwin/pkg/conversation"
	"github.com/go-go-golems/careertwin/pkg/events"
	"github.com/go-go-golems/careertwin/pkg/inference/tools"
	"github.com/go-go-golems/careertwin/pkg/inference/tools/persona"
	"github.com/go-go-golems/careertwin/pkg/notify"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedModel returns its completions in order and records every input.
type scriptedModel struct {
	mu          sync.Mutex
	completions []*Completion
	inputs      []conversation.Messages
	toolNames   [][]string
}

func (m *scriptedModel) Complete(ctx context.Context, messages conversation.Messages, defs []*tools.ToolDefinition) (*Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inputs = append(m.inputs, messages.Clone())
	var names []string
	for _, d := range defs {
		names = append(names, d.Name)
	}
	m.toolNames = append(m.toolNames, names)

	if len(m.completions) == 0 {
		return &Completion{Content: "out of script", FinishReason: FinishReasonStop}, nil
	}
	c := m.completions[0]
	m.completions = m.completions[1:]
	return c, nil
}

func text(s string) *Completion {
	return &Completion{Content: s, FinishReason: FinishReasonStop}
}

func calls(cs ...conversation.ToolCall) *Completion {
	return &Completion{ToolCalls: cs, FinishReason: FinishReasonToolCalls}
}

func newPersonaRegistry(t *testing.T) (*tools.Registry, *notify.Recorder) {
	t.Helper()
	rec := notify.NewRecorder()
	reg, err := persona.NewRegistry(rec)
	require.NoError(t, err)
	return reg, rec
}

func baseMessages() conversation.Messages {
	return conversation.Messages{
		conversation.NewSystemMessage("You are acting as Jane."),
		conversation.NewUserMessage("hi"),
	}
}

func TestGenerate_TextReplyWithoutTools(t *testing.T) {
	reg, rec := newPersonaRegistry(t)
	model := &scriptedModel{completions: []*Completion{text("Hello! How can I help?")}}
	g := New(model, reg)

	res, err := g.Generate(context.Background(), baseMessages())
	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help?", res.Reply)
	assert.Equal(t, 0, res.Rounds)
	assert.Len(t, res.Messages, 2)
	assert.Empty(t, rec.Messages())

	require.Len(t, model.toolNames, 1)
	assert.Equal(t, []string{persona.RecordUserDetailsName, persona.RecordUnknownQuestionName}, model.toolNames[0])
}

func TestGenerate_ResolvesToolCallsBeforeReplying(t *testing.T) {
	reg, rec := newPersonaRegistry(t)
	model := &scriptedModel{completions: []*Completion{
		calls(conversation.ToolCall{ID: "call-1", Name: persona.RecordUserDetailsName, Arguments: `{"email":"a@b.com"}`}),
		text("Thanks, I'll be in touch."),
	}}
	g := New(model, reg)

	input := baseMessages()
	res, err := g.Generate(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "Thanks, I'll be in touch.", res.Reply)
	assert.Equal(t, 1, res.Rounds)
	assert.Equal(t, []string{"New contact: Name not provided\nEmail: a@b.com\nNotes: not provided"}, rec.Messages())

	require.Len(t, res.Messages, 4)
	assert.Equal(t, conversation.RoleAssistant, res.Messages[2].Role)
	require.Len(t, res.Messages[2].ToolCalls, 1)
	assert.Equal(t, conversation.RoleTool, res.Messages[3].Role)
	assert.Equal(t, "call-1", res.Messages[3].ToolCallID)
	assert.JSONEq(t, `{"recorded":"ok"}`, res.Messages[3].Content)
	assert.NoError(t, conversation.ValidateSequence(res.Messages))

	// second model call saw the tool round
	require.Len(t, model.inputs, 2)
	assert.Len(t, model.inputs[1], 4)

	// caller's buffer untouched
	assert.Len(t, input, 2)
}

func TestGenerate_MultipleCallsAnsweredInOrder(t *testing.T) {
	reg, rec := newPersonaRegistry(t)
	model := &scriptedModel{completions: []*Completion{
		calls(
			conversation.ToolCall{ID: "a", Name: persona.RecordUnknownQuestionName, Arguments: `{"question":"q"}`},
			conversation.ToolCall{ID: "b", Name: persona.RecordUnknownQuestionName, Arguments: `{"question":"q"}`},
		),
		text("I don't know that one."),
	}}
	g := New(model, reg)

	res, err := g.Generate(context.Background(), baseMessages())
	require.NoError(t, err)
	assert.Equal(t, []string{"Unanswered question: q", "Unanswered question: q"}, rec.Messages())
	assert.Equal(t, "a", res.Messages[3].ToolCallID)
	assert.Equal(t, "b", res.Messages[4].ToolCallID)
}

func TestGenerate_UnknownToolContinuesLoop(t *testing.T) {
	reg, rec := newPersonaRegistry(t)
	model := &scriptedModel{completions: []*Completion{
		calls(conversation.ToolCall{ID: "x", Name: "delete_everything", Arguments: `{}`}),
		text("Sorry, I can't do that."),
	}}
	g := New(model, reg)

	res, err := g.Generate(context.Background(), baseMessages())
	require.NoError(t, err)
	assert.Equal(t, "Sorry, I can't do that.", res.Reply)
	assert.Equal(t, "{}", res.Messages[3].Content)
	assert.Empty(t, rec.Messages())
}

func TestGenerate_InvalidArgumentsFailTurn(t *testing.T) {
	reg, rec := newPersonaRegistry(t)

	for name, args := range map[string]string{
		"malformed":     `{email: nope`,
		"missing email": `{"name":"Ada"}`,
	} {
		t.Run(name, func(t *testing.T) {
			model := &scriptedModel{completions: []*Completion{
				calls(conversation.ToolCall{ID: "c", Name: persona.RecordUserDetailsName, Arguments: args}),
			}}
			_, err := New(model, reg).Generate(context.Background(), baseMessages())
			require.Error(t, err)
			var toolErr *tools.ToolError
			assert.True(t, errors.As(err, &toolErr), "got %v", err)
		})
	}
	assert.Empty(t, rec.Messages())
}

func TestGenerate_ToolLoopIsBounded(t *testing.T) {
	reg, _ := newPersonaRegistry(t)
	model := ChatModelFunc(func(ctx context.Context, messages conversation.Messages, defs []*tools.ToolDefinition) (*Completion, error) {
		return calls(conversation.ToolCall{
			ID:        uuid.NewString(),
			Name:      persona.RecordUnknownQuestionName,
			Arguments: `{"question":"again"}`,
		}), nil
	})

	_, err := New(model, reg, WithMaxToolRounds(3)).Generate(context.Background(), baseMessages())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrToolLoopExceeded))
}

func TestGenerate_ModelErrorIsFatal(t *testing.T) {
	reg, _ := newPersonaRegistry(t)
	boom := errors.New("connection refused")
	model := ChatModelFunc(func(ctx context.Context, messages conversation.Messages, defs []*tools.ToolDefinition) (*Completion, error) {
		return nil, boom
	})

	_, err := New(model, reg).Generate(context.Background(), baseMessages())
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "generator: model call failed")
}

func TestGenerate_ModelCallTimeout(t *testing.T) {
	model := ChatModelFunc(func(ctx context.Context, messages conversation.Messages, defs []*tools.ToolDefinition) (*Completion, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	_, err := New(model, nil, WithTimeout(20*time.Millisecond)).Generate(context.Background(), baseMessages())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestGenerate_RejectsBrokenSequence(t *testing.T) {
	model := &scriptedModel{}
	broken := conversation.Messages{
		conversation.NewSystemMessage("s"),
		conversation.NewToolResultMessage("nope", "{}"),
	}

	_, err := New(model, nil).Generate(context.Background(), broken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, conversation.ErrOrphanToolResult))
	assert.Empty(t, model.inputs)
}

func TestGenerate_PublishesToolDispatchedEvents(t *testing.T) {
	reg, _ := newPersonaRegistry(t)
	model := &scriptedModel{completions: []*Completion{
		calls(conversation.ToolCall{ID: "call-1", Name: persona.RecordUnknownQuestionName, Arguments: `{"question":"q"}`}),
		text("ok"),
	}}
	sink := events.NewRecordingSink()
	turnID := uuid.New()
	ctx := events.WithTurnID(events.WithEventSinks(context.Background(), sink), turnID)

	_, err := New(model, reg).Generate(ctx, baseMessages())
	require.NoError(t, err)

	evs := sink.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, events.EventTypeToolDispatched, evs[0].Type)
	assert.Equal(t, turnID, evs[0].TurnID)
	assert.Equal(t, "call-1", evs[0].ToolCallID)
}
