// Package generator runs the primary model over a message sequence and
// resolves tool calls until the model answers with text.
package generator

import (
	"context"
	"time"

	"github.com/go-go-golems/careertwin/pkg/conversation"
	"github.com/go-go-golems/careertwin/pkg/events"
	"github.com/go-go-golems/careertwin/pkg/inference/tools"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxToolRounds = 10
	DefaultTimeout       = 60 * time.Second
)

var ErrToolLoopExceeded = errors.New("tool loop exceeded maximum rounds")

// Result is the outcome of one generation. Messages is the full sequence the
// model saw, including every tool round.
type Result struct {
	Reply    string
	Messages conversation.Messages
	Rounds   int
}

type Generator struct {
	model         ChatModel
	registry      *tools.Registry
	maxToolRounds int
	timeout       time.Duration
}

type Option func(*Generator)

func WithMaxToolRounds(n int) Option {
	return func(g *Generator) { g.maxToolRounds = n }
}

// WithTimeout bounds each model call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) { g.timeout = d }
}

func New(model ChatModel, registry *tools.Registry, opts ...Option) *Generator {
	g := &Generator{
		model:         model,
		registry:      registry,
		maxToolRounds: DefaultMaxToolRounds,
		timeout:       DefaultTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	if g.maxToolRounds <= 0 {
		g.maxToolRounds = DefaultMaxToolRounds
	}
	return g
}

// Generate produces a reply for messages. The input is copied and never
// modified. Model errors and invalid tool arguments end the generation.
func (g *Generator) Generate(ctx context.Context, messages conversation.Messages) (*Result, error) {
	if g == nil || g.model == nil {
		return nil, errors.New("generator has no model")
	}
	if err := conversation.ValidateSequence(messages); err != nil {
		return nil, errors.Wrap(err, "generator: invalid input sequence")
	}

	buf := messages.Clone()
	var defs []*tools.ToolDefinition
	if g.registry != nil {
		defs = g.registry.ListTools()
	}

	rounds := 0
	for {
		log.Debug().Int("round", rounds).Int("messages", len(buf)).Msg("generator: calling model")

		completion, err := g.complete(ctx, buf, defs)
		if err != nil {
			return nil, errors.Wrap(err, "generator: model call failed")
		}

		if !completion.WantsTools() {
			return &Result{
				Reply:    completion.Content,
				Messages: buf,
				Rounds:   rounds,
			}, nil
		}

		if rounds >= g.maxToolRounds {
			log.Warn().Int("max_tool_rounds", g.maxToolRounds).Msg("generator: maximum tool rounds reached")
			return nil, errors.Wrapf(ErrToolLoopExceeded, "after %d rounds", rounds)
		}
		rounds++

		buf = append(buf, conversation.NewToolCallMessage(completion.Content, completion.ToolCalls...))
		results, err := g.dispatchAll(ctx, completion.ToolCalls)
		if err != nil {
			return nil, err
		}
		for _, res := range results {
			msg, err := res.Message()
			if err != nil {
				return nil, err
			}
			buf = append(buf, msg)
		}
	}
}

func (g *Generator) complete(ctx context.Context, buf conversation.Messages, defs []*tools.ToolDefinition) (*Completion, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	completion, err := g.model.Complete(ctx, buf, defs)
	if err != nil {
		return nil, err
	}
	if completion == nil {
		return nil, errors.New("model returned no completion")
	}
	return completion, nil
}

// dispatchAll announces and runs one round of tool calls in the order the
// model requested them.
func (g *Generator) dispatchAll(ctx context.Context, calls []conversation.ToolCall) ([]tools.ToolResult, error) {
	announce := func(call conversation.ToolCall) {
		events.PublishEventToContext(ctx, events.NewToolDispatchedEvent(
			events.TurnIDFromContext(ctx), call.Name, call.ID, call.Arguments,
		))
	}

	if g.registry == nil {
		ret := make([]tools.ToolResult, 0, len(calls))
		for _, call := range calls {
			announce(call)
			log.Warn().Str("tool", call.Name).Msg("generator: no registry, returning empty result")
			ret = append(ret, tools.ToolResult{ToolCallID: call.ID, Name: call.Name, Payload: map[string]interface{}{}})
		}
		return ret, nil
	}
	return g.registry.DispatchAll(ctx, calls, announce)
}
