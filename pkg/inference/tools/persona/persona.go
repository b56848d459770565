// Package persona defines the side-effecting tools the career agent exposes to
// the generating model: recording a contact and recording a question it could
// not answer. Both report to the persona owner through a notify.Notifier.
package persona

import (
	"context"
	"fmt"

	"github.com/go-go-golems/careertwin/pkg/inference/tools"
	"github.com/go-go-golems/careertwin/pkg/notify"
	"github.com/rs/zerolog/log"
)

const (
	RecordUserDetailsName     = "record_user_details"
	RecordUnknownQuestionName = "record_unknown_question"

	DefaultContactName  = "Name not provided"
	DefaultContactNotes = "not provided"
)

const recordUserDetailsDescription = "Use this tool to record that a user is interested in being in touch and provided an email address. " +
	"Extract the actual email address from the user's message - do not use placeholders like '[email]' or 'email@example.com'. " +
	"Use the exact email address the user provided."

const recordUnknownQuestionDescription = "Always use this tool to record any question that couldn't be answered as you didn't know the answer"

type RecordUserDetailsArgs struct {
	Email string `json:"email" jsonschema_description:"The actual email address provided by the user in their message. Extract it exactly as they wrote it. Must be a real email address, not a placeholder."`
	Name  string `json:"name,omitempty" jsonschema_description:"The user's name, if they provided it. Use 'Name not provided' if no name was given."`
	Notes string `json:"notes,omitempty" jsonschema_description:"Any additional information about the conversation that's worth recording to give context. Use 'not provided' if there's nothing notable."`
}

func (a *RecordUserDetailsArgs) ApplyDefaults() {
	if a.Name == "" {
		a.Name = DefaultContactName
	}
	if a.Notes == "" {
		a.Notes = DefaultContactNotes
	}
}

type RecordUnknownQuestionArgs struct {
	Question string `json:"question" jsonschema_description:"The question that couldn't be answered"`
}

// Recorded is the payload both tools return.
type Recorded struct {
	Recorded string `json:"recorded"`
}

var recordedOK = Recorded{Recorded: "ok"}

func FormatContact(a RecordUserDetailsArgs) string {
	return fmt.Sprintf("New contact: %s\nEmail: %s\nNotes: %s", a.Name, a.Email, a.Notes)
}

func FormatUnknownQuestion(a RecordUnknownQuestionArgs) string {
	return fmt.Sprintf("Unanswered question: %s", a.Question)
}

func NewRecordUserDetailsTool(n notify.Notifier) (*tools.ToolDefinition, error) {
	return tools.NewToolFromFunc(
		RecordUserDetailsName,
		recordUserDetailsDescription,
		func(ctx context.Context, in RecordUserDetailsArgs) (interface{}, error) {
			log.Info().
				Str("tool", RecordUserDetailsName).
				Str("email", in.Email).
				Str("name", in.Name).
				Msg("recording user details")
			n.Notify(ctx, FormatContact(in))
			return recordedOK, nil
		},
	)
}

func NewRecordUnknownQuestionTool(n notify.Notifier) (*tools.ToolDefinition, error) {
	return tools.NewToolFromFunc(
		RecordUnknownQuestionName,
		recordUnknownQuestionDescription,
		func(ctx context.Context, in RecordUnknownQuestionArgs) (interface{}, error) {
			log.Info().
				Str("tool", RecordUnknownQuestionName).
				Str("question", in.Question).
				Msg("recording unknown question")
			n.Notify(ctx, FormatUnknownQuestion(in))
			return recordedOK, nil
		},
	)
}

// NewRegistry builds the registry holding both persona tools.
func NewRegistry(n notify.Notifier) (*tools.Registry, error) {
	if n == nil {
		n = notify.NopNotifier{}
	}
	userDetails, err := NewRecordUserDetailsTool(n)
	if err != nil {
		return nil, err
	}
	unknownQuestion, err := NewRecordUnknownQuestionTool(n)
	if err != nil {
		return nil, err
	}
	return tools.NewRegistry(userDetails, unknownQuestion)
}
