package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-go-golems/careertwin/pkg/conversation"
	"github.com/go-go-golems/careertwin/pkg/events"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	input "github.com/tcnksm/go-input"
)

var exitCommands = map[string]bool{"/exit": true, "/quit": true}

func NewChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat interactively in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}

			return runWithEvents(cmd.Context(), eventOutputFromFlags(cmd), func(ctx context.Context, sinks ...events.EventSink) error {
				c, err := NewController(ctx, s, sinks...)
				if err != nil {
					return err
				}
				return chatLoop(ctx, os.Stdin, os.Stdout, c.Chat)
			})
		},
	}
	addEventFlags(cmd)
	return cmd
}

type chatFunc func(ctx context.Context, message string, history conversation.Messages) (string, error)

// chatLoop reads user lines until EOF or an exit command. A failed turn is
// reported and leaves the history unchanged.
func chatLoop(ctx context.Context, r io.Reader, w io.Writer, chat chatFunc) error {
	in := &eofReader{r: r}
	ui := &input.UI{Reader: in, Writer: w}
	var history conversation.Messages

	fmt.Fprintln(w, "Type /exit to leave.")
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := ui.Ask("you", &input.Options{HideOrder: true})
		if err != nil {
			if errors.Is(err, input.ErrInterrupted) || isEOF(err) {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			if in.eof {
				return nil
			}
			continue
		}
		if exitCommands[line] {
			return nil
		}

		reply, err := chat(ctx, line, history)
		if err != nil {
			log.Error().Err(err).Msg("turn failed")
			fmt.Fprintln(w, "Sorry, something went wrong. Please try again.")
			continue
		}

		out := reply
		if f, ok := w.(*os.File); ok {
			if styled, err := renderReply(f, reply); err == nil {
				out = styled
			}
		}
		fmt.Fprintln(w, out)

		history = append(history,
			conversation.NewUserMessage(line),
			conversation.NewAssistantMessage(reply),
		)
	}
}

// eofReader remembers whether the underlying reader is exhausted.
type eofReader struct {
	r   io.Reader
	eof bool
}

func (e *eofReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err == io.EOF {
		e.eof = true
	}
	return n, err
}

// go-input formats the reader error into its own message.
func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || strings.HasSuffix(err.Error(), io.EOF.Error())
}
