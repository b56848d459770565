// Package notify delivers short text alerts about conversation events to the
// persona owner. Delivery is best-effort: a Notifier never returns an error
// and never panics into the caller.
package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Notifier is the outbound alert capability used by tools.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// NopNotifier drops every message.
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, text string) {
	log.Debug().Str("notifier", "nop").Int("len", len(text)).Msg("notification dropped")
}

// Recorder keeps every notification in memory. It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	messages []string
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Notify(ctx context.Context, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, text)
}

func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

// Func adapts a plain function to the Notifier interface.
type Func func(ctx context.Context, text string)

func (f Func) Notify(ctx context.Context, text string) {
	f(ctx, text)
}

var _ Notifier = NopNotifier{}
var _ Notifier = (*Recorder)(nil)
var _ Notifier = Func(nil)
