package events

import (
	"fmt"
	"io"

	"github.com/ThreeDotsLabs/watermill/message"
	"gopkg.in/yaml.v3"
)

// TurnPrinterFunc returns a handler that writes a one-line trace per turn
// event. Tool dispatches are followed by their arguments as YAML.
func TurnPrinterFunc(w io.Writer) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			return err
		}

		prefix := fmt.Sprintf("[%s #%d]", e.Type, e.Attempt)
		switch e.Type {
		case EventTypeTurnStarted:
			_, err = fmt.Fprintf(w, "%s %s\n", prefix, e.Text)
		case EventTypeToolDispatched:
			_, err = fmt.Fprintf(w, "%s %s (%s)\n", prefix, e.ToolName, e.ToolCallID)
			if err != nil {
				return err
			}
			var args interface{}
			if yaml.Unmarshal([]byte(e.Arguments), &args) == nil && args != nil {
				v_, err := yaml.Marshal(args)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(w, "%s", v_)
				return err
			}
		case EventTypeEvaluation:
			acceptable := true
			if e.Acceptable != nil {
				acceptable = *e.Acceptable
			}
			_, err = fmt.Fprintf(w, "%s acceptable=%t status=%s %s\n", prefix, acceptable, e.Status, e.Text)
		case EventTypeRegenerating:
			_, err = fmt.Fprintf(w, "%s\n", prefix)
		case EventTypeTurnCompleted:
			_, err = fmt.Fprintf(w, "%s done\n", prefix)
		case EventTypeTurnFailed:
			_, err = fmt.Fprintf(w, "%s %s\n", prefix, e.Error)
		}
		return err
	}
}
