package cmds

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-go-golems/careertwin/pkg/events"
	"github.com/spf13/cobra"
)

func NewAskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask a single question and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			question := strings.Join(args, " ")

			return runWithEvents(cmd.Context(), eventOutputFromFlags(cmd), func(ctx context.Context, sinks ...events.EventSink) error {
				c, err := NewController(ctx, s, sinks...)
				if err != nil {
					return err
				}
				reply, err := c.Chat(ctx, question, nil)
				if err != nil {
					return err
				}
				return printReply(os.Stdout, reply)
			})
		},
	}
	addEventFlags(cmd)
	return cmd
}

func printReply(w *os.File, reply string) error {
	out, err := renderReply(w, reply)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}
