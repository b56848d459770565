// Package evaluator judges candidate replies with an independent model.
// Evaluation never fails: every problem degrades to accepting the reply.
package evaluator

import (
	"context"

	"github.com/go-go-golems/careertwin/pkg/conversation"
	"github.com/rs/zerolog/log"
)

type Status string

const (
	// StatusJudged means the judge model returned a parseable verdict.
	StatusJudged Status = "judged"
	// StatusUnavailable means no judge model is configured.
	StatusUnavailable Status = "unavailable"
	// StatusDegraded means the judge was called but its verdict could not be
	// obtained or parsed; the reply is accepted.
	StatusDegraded Status = "degraded"
)

const UnavailableFeedback = "Evaluator unavailable"

// Evaluation is the verdict on one candidate reply.
type Evaluation struct {
	IsAcceptable bool   `json:"is_acceptable"`
	Feedback     string `json:"feedback"`
	Status       Status `json:"status"`
}

// Candidate is a reply to be judged together with its context. History is
// the full sequence of the generation that produced the reply, system and
// tool messages included.
type Candidate struct {
	Reply       string
	UserMessage string
	History     conversation.Messages
}

type Evaluator interface {
	Evaluate(ctx context.Context, c Candidate) Evaluation
}

// Unavailable accepts every reply without calling a model.
type Unavailable struct{}

var _ Evaluator = Unavailable{}

func (Unavailable) Evaluate(ctx context.Context, c Candidate) Evaluation {
	log.Debug().Msg("evaluator: no judge configured, accepting reply")
	return Evaluation{
		IsAcceptable: true,
		Feedback:     UnavailableFeedback,
		Status:       StatusUnavailable,
	}
}

// Func adapts a function to Evaluator.
type Func func(ctx context.Context, c Candidate) Evaluation

func (f Func) Evaluate(ctx context.Context, c Candidate) Evaluation {
	return f(ctx, c)
}
