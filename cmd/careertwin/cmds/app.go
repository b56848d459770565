package cmds

import (
	"context"
	"os"
	"time"

	"github.com/go-go-golems/careertwin/pkg/conversation/controller"
	"github.com/go-go-golems/careertwin/pkg/events"
	"github.com/go-go-golems/careertwin/pkg/inference/evaluator"
	"github.com/go-go-golems/careertwin/pkg/inference/generator"
	toolpersona "github.com/go-go-golems/careertwin/pkg/inference/tools/persona"
	"github.com/go-go-golems/careertwin/pkg/notify"
	"github.com/go-go-golems/careertwin/pkg/persona"
	"github.com/go-go-golems/careertwin/pkg/settings"
	"github.com/go-go-golems/careertwin/pkg/steps/ai/claude/api"
	"github.com/go-go-golems/careertwin/pkg/steps/ai/openai"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func loadSettings() (*settings.Settings, error) {
	return settings.FromViper(viper.GetViper())
}

// NewNotifier returns the Pushover notifier when both credentials are set and
// a no-op notifier otherwise.
func NewNotifier(s settings.NotifySettings) notify.Notifier {
	ps := s.Pushover()
	if !ps.Configured() {
		log.Warn().Msg("pushover token or user missing, owner notifications are disabled")
		return notify.NopNotifier{}
	}
	return notify.NewPushoverNotifier(ps)
}

// NewEvaluator returns the judge model when an Anthropic key is configured.
func NewEvaluator(s settings.EvaluatorSettings) (evaluator.Evaluator, error) {
	if !s.Enabled() {
		log.Warn().Msg("no anthropic key configured, replies are not evaluated")
		return evaluator.Unavailable{}, nil
	}
	opts := []api.ClientOption{api.WithTimeout(s.Timeout)}
	if s.AllowLocal {
		opts = append(opts, api.WithLocalNetworks())
	}
	client, err := api.NewClient(s.APIKey, s.BaseURL, opts...)
	if err != nil {
		return nil, err
	}
	return evaluator.NewJudge(client,
		evaluator.WithModel(s.Model),
		evaluator.WithMaxTokens(s.MaxTokens),
		evaluator.WithTimeout(s.Timeout),
	), nil
}

// NewController wires persona, tools, models and evaluator into a controller.
func NewController(ctx context.Context, s *settings.Settings, sinks ...events.EventSink) (*controller.Controller, error) {
	if err := s.RequireOpenAI(); err != nil {
		return nil, err
	}

	p, err := persona.Load(ctx, s.Persona.Path)
	if err != nil {
		return nil, errors.Wrap(err, "could not load persona")
	}
	log.Info().Str("persona", p.Name()).Msg("persona loaded")

	registry, err := toolpersona.NewRegistry(NewNotifier(s.Notify))
	if err != nil {
		return nil, err
	}
	log.Debug().Int("tools", registry.Count()).Msg("tool registry ready")

	model, err := openai.NewChatModel(s.OpenAI)
	if err != nil {
		return nil, err
	}
	gen := generator.New(model, registry,
		generator.WithMaxToolRounds(s.OpenAI.MaxToolRounds),
		generator.WithTimeout(s.OpenAI.Timeout),
	)

	ev, err := NewEvaluator(s.Evaluator)
	if err != nil {
		return nil, err
	}

	return controller.New(p, gen,
		controller.WithEvaluator(ev),
		controller.WithMaxRetries(s.Evaluator.MaxRetries),
		controller.WithEventSinks(sinks...),
	)
}

// eventOutput selects which event printers run on stderr.
type eventOutput struct {
	Turns bool
	Raw   bool
}

func eventOutputFromFlags(cmd *cobra.Command) eventOutput {
	turns, _ := cmd.Flags().GetBool("show-events")
	raw, _ := cmd.Flags().GetBool("raw-events")
	return eventOutput{Turns: turns, Raw: raw}
}

func addEventFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("show-events", false, "Print turn events to stderr")
	cmd.Flags().Bool("raw-events", false, "Print turn events to stderr as JSON")
}

const drainTimeout = 5 * time.Second

// runWithEvents runs f while an event router prints turn events to stderr.
// Without any output selected f runs with no sinks. Events still queued when
// f returns are printed before the router closes.
func runWithEvents(ctx context.Context, out eventOutput, f func(ctx context.Context, sinks ...events.EventSink) error) error {
	if !out.Turns && !out.Raw {
		return f(ctx)
	}

	router, err := events.NewEventRouter(events.WithVerbose(viper.GetBool("verbose")))
	if err != nil {
		return err
	}
	if out.Turns {
		router.AddHandler("turn-printer", events.TopicTurns, events.TurnPrinterFunc(os.Stderr))
	}
	if out.Raw {
		router.AddHandler("raw-events", events.TopicTurns, router.DumpRawEvents(os.Stderr))
	}

	eg, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	eg.Go(func() error {
		return router.Run(ctx)
	})
	eg.Go(func() error {
		defer cancel()
		defer func() {
			_ = router.Close()
		}()
		<-router.Running()
		err := f(ctx, router.Sink())
		if ctx.Err() != nil {
			// interrupted, the router is already stopping
			return err
		}

		drainCtx, drainCancel := context.WithTimeout(context.Background(), drainTimeout)
		defer drainCancel()
		if derr := router.Drain(drainCtx); derr != nil {
			log.Warn().Err(derr).Msg("some turn events were not printed")
		}
		return err
	})
	return eg.Wait()
}
