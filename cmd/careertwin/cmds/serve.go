package cmds

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-go-golems/careertwin/pkg/events"
	"github.com/go-go-golems/careertwin/pkg/server"
	"github.com/spf13/cobra"
)

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runWithEvents(ctx, eventOutputFromFlags(cmd), func(ctx context.Context, sinks ...events.EventSink) error {
				c, err := NewController(ctx, s, sinks...)
				if err != nil {
					return err
				}
				return server.New(s.Server.Addr, c).Start(ctx)
			})
		},
	}
	addEventFlags(cmd)
	return cmd
}
