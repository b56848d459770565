package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type EventType string

const (
	EventTypeTurnStarted    EventType = "turn-started"
	EventTypeToolDispatched EventType = "tool-dispatched"
	EventTypeEvaluation     EventType = "evaluation"
	EventTypeRegenerating   EventType = "regenerating"
	EventTypeTurnCompleted  EventType = "turn-completed"
	EventTypeTurnFailed     EventType = "turn-failed"
)

// Event describes one step in the lifecycle of a conversation turn. Fields
// that do not apply to a given type are left empty.
type Event struct {
	ID      uuid.UUID `json:"id" yaml:"id"`
	TurnID  uuid.UUID `json:"turn_id" yaml:"turn_id"`
	Type    EventType `json:"type" yaml:"type"`
	Time    time.Time `json:"time" yaml:"time"`
	Attempt int       `json:"attempt" yaml:"attempt"`

	// Text is the user message for turn-started, the reply for
	// turn-completed and the evaluator feedback for evaluation events.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	ToolName   string `json:"tool_name,omitempty" yaml:"tool_name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty" yaml:"tool_call_id,omitempty"`
	Arguments  string `json:"arguments,omitempty" yaml:"arguments,omitempty"`

	Acceptable *bool  `json:"acceptable,omitempty" yaml:"acceptable,omitempty"`
	Status     string `json:"status,omitempty" yaml:"status,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

func NewEvent(turnID uuid.UUID, t EventType) Event {
	return Event{
		ID:     uuid.New(),
		TurnID: turnID,
		Type:   t,
		Time:   time.Now(),
	}
}

func (e Event) WithAttempt(attempt int) Event {
	e.Attempt = attempt
	return e
}

func (e Event) WithText(text string) Event {
	e.Text = text
	return e
}

func (e Event) WithError(err error) Event {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

func NewToolDispatchedEvent(turnID uuid.UUID, name, callID, arguments string) Event {
	e := NewEvent(turnID, EventTypeToolDispatched)
	e.ToolName = name
	e.ToolCallID = callID
	e.Arguments = arguments
	return e
}

func NewEvaluationEvent(turnID uuid.UUID, attempt int, acceptable bool, feedback, status string) Event {
	e := NewEvent(turnID, EventTypeEvaluation).WithAttempt(attempt).WithText(feedback)
	e.Acceptable = &acceptable
	e.Status = status
	return e
}

func NewEventFromJson(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, errors.Wrap(err, "could not decode event")
	}
	if e.Type == "" {
		return Event{}, errors.New("event has no type")
	}
	return e, nil
}

// MarshalZerologObject lets events be logged with zerolog's Object().
func (e Event) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("event_id", e.ID.String())
	ev.Str("turn_id", e.TurnID.String())
	ev.Str("type", string(e.Type))
	ev.Int("attempt", e.Attempt)
	if e.ToolName != "" {
		ev.Str("tool", e.ToolName)
	}
	if e.Acceptable != nil {
		ev.Bool("acceptable", *e.Acceptable)
	}
	if e.Status != "" {
		ev.Str("status", e.Status)
	}
	if e.Error != "" {
		ev.Str("error", e.Error)
	}
}
