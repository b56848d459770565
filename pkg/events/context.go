package events

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type ctxKey int

const (
	ctxKeyEventSinks ctxKey = iota
	ctxKeyTurnID
)

// WithEventSinks attaches one or more EventSink instances to the context.
// Code deeper in the turn pipeline publishes through the context without
// being handed the sinks explicitly.
func WithEventSinks(ctx context.Context, sinks ...EventSink) context.Context {
	if len(sinks) == 0 {
		return ctx
	}
	existing := GetEventSinks(ctx)
	combined := append([]EventSink{}, existing...)
	for _, s := range sinks {
		if s != nil {
			combined = append(combined, s)
		}
	}
	return context.WithValue(ctx, ctxKeyEventSinks, combined)
}

func GetEventSinks(ctx context.Context) []EventSink {
	if v := ctx.Value(ctxKeyEventSinks); v != nil {
		if sinks, ok := v.([]EventSink); ok {
			return sinks
		}
	}
	return nil
}

func WithTurnID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxKeyTurnID, id)
}

// TurnIDFromContext returns the current turn id, or uuid.Nil.
func TurnIDFromContext(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(ctxKeyTurnID).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// PublishEventToContext publishes the event to all sinks stored in the
// context. Sink errors are logged and otherwise ignored.
func PublishEventToContext(ctx context.Context, event Event) {
	sinks := GetEventSinks(ctx)
	if len(sinks) == 0 {
		log.Trace().Str("event_type", string(event.Type)).Msg("events: no sinks in context")
		return
	}
	for _, sink := range sinks {
		if err := sink.PublishEvent(event); err != nil {
			log.Warn().Err(err).Str("event_type", string(event.Type)).Msg("events: failed to publish")
		}
	}
}
