package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog/log"
)

// EventRouter owns the in-process pub/sub carrying turn events and the
// watermill router running the handlers subscribed to them.
type EventRouter struct {
	logger     watermill.LoggerAdapter
	Publisher  message.Publisher
	Subscriber message.Subscriber
	router     *message.Router
	verbose    bool

	mu       sync.Mutex
	handlers map[string]int
	// pending counts deliveries of Sink events not yet handled.
	pending sync.WaitGroup
}

type EventRouterOption func(*EventRouter)

func WithLogger(logger watermill.LoggerAdapter) EventRouterOption {
	return func(r *EventRouter) {
		r.logger = logger
	}
}

func WithVerbose(verbose bool) EventRouterOption {
	return func(r *EventRouter) {
		r.verbose = verbose
		if verbose {
			r.logger = NewWatermillLogger(log.Logger)
		}
	}
}

func NewEventRouter(options ...EventRouterOption) (*EventRouter, error) {
	ret := &EventRouter{
		logger:   watermill.NopLogger{},
		handlers: map[string]int{},
	}

	for _, o := range options {
		o(ret)
	}

	// Turns must not block on slow subscribers.
	goPubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            64,
		BlockPublishUntilSubscriberAck: false,
	}, ret.logger)
	ret.Publisher = goPubSub
	ret.Subscriber = goPubSub

	router, err := message.NewRouter(message.RouterConfig{}, ret.logger)
	if err != nil {
		return nil, err
	}
	ret.router = router

	return ret, nil
}

// Sink returns an EventSink publishing on the router's turn topic. Events
// published through it are tracked by Drain.
func (e *EventRouter) Sink() EventSink {
	return NewWatermillSink(&trackingPublisher{router: e}, TopicTurns)
}

const trackedMetadataKey = "careertwin_tracked"

type trackingPublisher struct {
	router *EventRouter
}

func (p *trackingPublisher) Publish(topic string, msgs ...*message.Message) error {
	e := p.router
	e.mu.Lock()
	n := e.handlers[topic] * len(msgs)
	e.mu.Unlock()

	for _, msg := range msgs {
		msg.Metadata.Set(trackedMetadataKey, "1")
	}
	e.pending.Add(n)
	if err := e.Publisher.Publish(topic, msgs...); err != nil {
		e.pending.Add(-n)
		return err
	}
	return nil
}

func (p *trackingPublisher) Close() error {
	return nil
}

// Drain waits until every handler has seen every event published through
// Sink, or until ctx is done. Call it once publishing has stopped.
func (e *EventRouter) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *EventRouter) Close() error {
	log.Debug().Msg("Closing publisher")
	err := e.Publisher.Close()
	if err != nil {
		log.Error().Err(err).Msg("Failed to close pubsub")
	}

	log.Debug().Msg("Closing router")
	err = e.router.Close()
	if err != nil {
		log.Error().Err(err).Msg("Failed to close router")
	}
	log.Debug().Msg("Router closed")

	return nil
}

func (e *EventRouter) AddHandler(name string, topic string, f func(msg *message.Message) error) {
	e.mu.Lock()
	e.handlers[topic]++
	e.mu.Unlock()

	e.router.AddNoPublisherHandler(name, topic, e.Subscriber, func(msg *message.Message) error {
		err := f(msg)
		// a failed delivery that was never acked comes back
		if msg.Metadata.Get(trackedMetadataKey) != "" && (err == nil || acked(msg)) {
			e.pending.Done()
		}
		return err
	})
}

func acked(msg *message.Message) bool {
	select {
	case <-msg.Acked():
		return true
	default:
		return false
	}
}

// DumpRawEvents returns a handler printing each event as indented JSON.
func (e *EventRouter) DumpRawEvents(w io.Writer) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		defer msg.Ack()

		var s map[string]interface{}
		err := json.Unmarshal(msg.Payload, &s)
		if err != nil {
			return err
		}
		if !e.verbose {
			delete(s, "id")
			delete(s, "time")
		}
		s_, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(s_))
		return err
	}
}

func (e *EventRouter) Running() chan struct{} {
	return e.router.Running()
}

func (e *EventRouter) IsRunning() bool {
	return e.router.IsRunning()
}

func (e *EventRouter) Run(ctx context.Context) error {
	return e.router.Run(ctx)
}
