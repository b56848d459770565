// Package controller runs one conversation turn: generate a reply, have it
// judged, and regenerate with the judge's feedback a bounded number of times.
package controller

import (
	"context"
	"time"

	"github.com/go-go-golems/careertwin/pkg/conversation"
	"github.com/go-go-golems/careertwin/pkg/events"
	"github.com/go-go-golems/careertwin/pkg/inference/evaluator"
	"github.com/go-go-golems/careertwin/pkg/inference/generator"
	"github.com/go-go-golems/careertwin/pkg/persona"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// MaxRetries is the hard cap on regenerations after a rejected reply.
const MaxRetries = 2

// ConversationTurn is the input of one turn. History is the conversation
// before UserMessage and is never modified.
type ConversationTurn struct {
	History     conversation.Messages
	UserMessage string
}

// TurnReport describes how a turn's reply was produced.
type TurnReport struct {
	TurnID uuid.UUID
	Reply  string
	// Attempts is the number of regenerations, 0 when the first reply was kept.
	Attempts    int
	Evaluations []evaluator.Evaluation
	// Messages is the sequence of the generation that produced Reply.
	Messages   conversation.Messages
	ToolRounds int
	Duration   time.Duration
}

// Accepted reports whether the last evaluation accepted the reply.
func (r *TurnReport) Accepted() bool {
	if len(r.Evaluations) == 0 {
		return true
	}
	return r.Evaluations[len(r.Evaluations)-1].IsAcceptable
}

// Generator produces a reply from a full message sequence.
type Generator interface {
	Generate(ctx context.Context, messages conversation.Messages) (*generator.Result, error)
}

type Controller struct {
	persona    *persona.Persona
	generator  Generator
	evaluator  evaluator.Evaluator
	maxRetries int
	sinks      []events.EventSink
}

type Option func(*Controller)

func WithEvaluator(e evaluator.Evaluator) Option {
	return func(c *Controller) { c.evaluator = e }
}

// WithMaxRetries lowers the regeneration cap. Values above MaxRetries are
// clamped.
func WithMaxRetries(n int) Option {
	return func(c *Controller) { c.maxRetries = n }
}

func WithEventSinks(sinks ...events.EventSink) Option {
	return func(c *Controller) { c.sinks = append(c.sinks, sinks...) }
}

func New(p *persona.Persona, g Generator, options ...Option) (*Controller, error) {
	if p == nil {
		return nil, errors.New("controller needs a persona")
	}
	if g == nil {
		return nil, errors.New("controller needs a generator")
	}
	c := &Controller{
		persona:    p,
		generator:  g,
		evaluator:  evaluator.Unavailable{},
		maxRetries: MaxRetries,
	}
	for _, o := range options {
		o(c)
	}
	if c.evaluator == nil {
		c.evaluator = evaluator.Unavailable{}
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	if c.maxRetries > MaxRetries {
		c.maxRetries = MaxRetries
	}
	return c, nil
}

// Chat returns the reply to message given the prior history.
func (c *Controller) Chat(ctx context.Context, message string, history conversation.Messages) (string, error) {
	report, err := c.Run(ctx, ConversationTurn{History: history, UserMessage: message})
	if err != nil {
		return "", err
	}
	return report.Reply, nil
}

// Run executes one turn. Generation errors end the turn; evaluation never
// does. After the retry cap the last reply is returned whatever its verdict.
func (c *Controller) Run(ctx context.Context, turn ConversationTurn) (*TurnReport, error) {
	start := time.Now()
	report := &TurnReport{TurnID: uuid.New()}

	ctx = events.WithTurnID(events.WithEventSinks(ctx, c.sinks...), report.TurnID)
	logger := log.With().Str("turn_id", report.TurnID.String()).Logger()

	events.PublishEventToContext(ctx, events.NewEvent(report.TurnID, events.EventTypeTurnStarted).WithText(turn.UserMessage))

	fail := func(err error) (*TurnReport, error) {
		logger.Error().Err(err).Int("attempt", report.Attempts).Msg("turn failed")
		events.PublishEventToContext(ctx, events.NewEvent(report.TurnID, events.EventTypeTurnFailed).
			WithAttempt(report.Attempts).
			WithError(err))
		return nil, err
	}

	history := turn.History.Clone()

	base, err := c.persona.SystemPrompt()
	if err != nil {
		return fail(err)
	}

	res, err := c.generate(ctx, base, history, turn.UserMessage)
	if err != nil {
		return fail(err)
	}
	report.ToolRounds += res.Rounds
	ev := c.evaluate(ctx, report, res, turn.UserMessage)

	for !ev.IsAcceptable && report.Attempts < c.maxRetries {
		report.Attempts++
		logger.Info().
			Int("attempt", report.Attempts).
			Str("feedback", ev.Feedback).
			Msg("reply rejected, regenerating")
		events.PublishEventToContext(ctx, events.NewEvent(report.TurnID, events.EventTypeRegenerating).
			WithAttempt(report.Attempts).
			WithText(ev.Feedback))

		system, err := persona.RejectionPrompt(base, res.Reply, ev.Feedback)
		if err != nil {
			return fail(err)
		}
		res, err = c.generate(ctx, system, history, turn.UserMessage)
		if err != nil {
			return fail(err)
		}
		report.ToolRounds += res.Rounds
		ev = c.evaluate(ctx, report, res, turn.UserMessage)
	}

	if !ev.IsAcceptable {
		logger.Warn().Int("attempts", report.Attempts).Msg("retry cap reached, returning last reply")
	}

	report.Reply = res.Reply
	report.Messages = res.Messages
	report.Duration = time.Since(start)

	events.PublishEventToContext(ctx, events.NewEvent(report.TurnID, events.EventTypeTurnCompleted).
		WithAttempt(report.Attempts).
		WithText(report.Reply))
	logger.Debug().
		Int("attempts", report.Attempts).
		Int("tool_rounds", report.ToolRounds).
		Dur("duration", report.Duration).
		Msg("turn completed")

	return report, nil
}

// BuildMessages assembles [system, ...history, user].
func BuildMessages(system string, history conversation.Messages, userMessage string) conversation.Messages {
	ms := make(conversation.Messages, 0, len(history)+2)
	ms = append(ms, conversation.NewSystemMessage(system))
	ms = append(ms, history...)
	ms = append(ms, conversation.NewUserMessage(userMessage))
	return ms
}

func (c *Controller) generate(ctx context.Context, system string, history conversation.Messages, userMessage string) (*generator.Result, error) {
	return c.generator.Generate(ctx, BuildMessages(system, history, userMessage))
}

func (c *Controller) evaluate(ctx context.Context, report *TurnReport, res *generator.Result, userMessage string) evaluator.Evaluation {
	ev := c.evaluator.Evaluate(ctx, evaluator.Candidate{
		Reply:       res.Reply,
		UserMessage: userMessage,
		History:     res.Messages,
	})
	report.Evaluations = append(report.Evaluations, ev)
	events.PublishEventToContext(ctx, events.NewEvaluationEvent(
		report.TurnID, report.Attempts, ev.IsAcceptable, ev.Feedback, string(ev.Status),
	))
	return ev
}
