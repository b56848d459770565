package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// ToolDefinition represents a tool that can be called by the generating model.
// Parameters is the JSON schema sent to the model as the calling contract and
// used to validate arguments before the handler runs.
type ToolDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`

	validator *gojsonschema.Schema
	execute   func(context.Context, []byte) (interface{}, error)
}

// Defaulter is implemented by argument structs whose optional fields have
// non-zero defaults. Defaults are applied after decoding, before the handler
// sees the arguments.
type Defaulter interface {
	ApplyDefaults()
}

// NewToolFromFunc creates a ToolDefinition from a typed handler. The JSON
// schema is reflected from In: fields without `omitempty` are required, and
// `jsonschema_description` tags become parameter descriptions.
func NewToolFromFunc[In any](
	name, description string,
	fn func(ctx context.Context, in In) (interface{}, error),
) (*ToolDefinition, error) {
	if name == "" {
		return nil, errors.New("tool name cannot be empty")
	}
	if fn == nil {
		return nil, errors.Errorf("tool %s: handler is nil", name)
	}

	var zero In
	inputType := reflect.TypeOf(zero)
	if inputType == nil || inputType.Kind() != reflect.Struct {
		return nil, errors.Errorf("tool %s: input must be a struct, got %v", name, inputType)
	}

	schema, err := generateSchema(zero)
	if err != nil {
		return nil, errors.Wrapf(err, "tool %s: failed to generate schema", name)
	}

	validator, err := compileValidator(schema)
	if err != nil {
		return nil, errors.Wrapf(err, "tool %s: failed to compile schema", name)
	}

	execute := func(ctx context.Context, args []byte) (interface{}, error) {
		var in In
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, err
		}
		if d, ok := any(&in).(Defaulter); ok {
			d.ApplyDefaults()
		}
		return fn(ctx, in)
	}

	return &ToolDefinition{
		Name:        name,
		Description: description,
		Parameters:  schema,
		validator:   validator,
		execute:     execute,
	}, nil
}

// MustNewToolFromFunc is NewToolFromFunc for package-level definitions.
func MustNewToolFromFunc[In any](
	name, description string,
	fn func(ctx context.Context, in In) (interface{}, error),
) *ToolDefinition {
	def, err := NewToolFromFunc(name, description, fn)
	if err != nil {
		panic(err)
	}
	return def
}

// Invoke decodes, validates and runs the tool with the raw argument string
// sent by the model.
func (td *ToolDefinition) Invoke(ctx context.Context, callID string, arguments string) (interface{}, error) {
	if td.execute == nil {
		return nil, &ToolError{ToolName: td.Name, ToolID: callID, Type: ToolErrorExecution, Message: "tool function not properly initialized"}
	}

	args := normalizeArguments(arguments)
	if !json.Valid(args) {
		log.Error().
			Str("tool", td.Name).
			Str("tool_call_id", callID).
			Str("args", arguments).
			Msg("tools: arguments are not valid JSON")
		return nil, &ToolError{
			ToolName: td.Name,
			ToolID:   callID,
			Type:     ToolErrorMalformed,
			Message:  "arguments are not valid JSON",
			Err:      ErrMalformedArguments,
		}
	}

	if err := td.validate(args); err != nil {
		log.Error().
			Err(err).
			Str("tool", td.Name).
			Str("tool_call_id", callID).
			Str("args", arguments).
			Msg("tools: arguments do not match schema")
		return nil, &ToolError{
			ToolName: td.Name,
			ToolID:   callID,
			Type:     ToolErrorValidation,
			Message:  err.Error(),
			Err:      ErrInvalidArguments,
		}
	}

	result, err := td.execute(ctx, args)
	if err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			return nil, &ToolError{ToolName: td.Name, ToolID: callID, Type: ToolErrorValidation, Message: err.Error(), Err: ErrInvalidArguments}
		}
		return nil, &ToolError{ToolName: td.Name, ToolID: callID, Type: ToolErrorExecution, Message: err.Error(), Err: err}
	}
	return result, nil
}

func (td *ToolDefinition) validate(args []byte) error {
	if td.validator == nil {
		return nil
	}
	res, err := td.validator.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return err
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.New(strings.Join(msgs, "; "))
}

// normalizeArguments maps an empty argument string to an empty object; some
// providers send "" for calls without parameters.
func normalizeArguments(arguments string) []byte {
	trimmed := bytes.TrimSpace([]byte(arguments))
	if len(trimmed) == 0 {
		return []byte("{}")
	}
	return trimmed
}

type ToolErrorType string

const (
	ToolErrorMalformed  ToolErrorType = "malformed"
	ToolErrorValidation ToolErrorType = "validation"
	ToolErrorExecution  ToolErrorType = "execution"
)

var (
	// ErrMalformedArguments means the model sent an argument string that is
	// not JSON at all.
	ErrMalformedArguments = errors.New("malformed tool arguments")
	// ErrInvalidArguments means the arguments are JSON but violate the tool schema.
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// ToolError represents an error that occurred during tool dispatch.
type ToolError struct {
	ToolName string        `json:"tool_name"`
	ToolID   string        `json:"tool_id,omitempty"`
	Type     ToolErrorType `json:"type"`
	Message  string        `json:"message"`
	Err      error         `json:"-"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool error [%s] %s: %s", e.Type, e.ToolName, e.Message)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// generateSchema creates a JSON schema from the input struct.
func generateSchema(input interface{}) (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		// Expand definitions inline instead of using $refs
		DoNotReference: true,
	}
	schema := reflector.Reflect(input)
	if schema == nil {
		return nil, errors.New("reflector returned no schema")
	}

	// The model contract is the bare parameters object.
	schema.Version = ""
	schema.ID = ""
	if schema.Type == "" {
		schema.Type = "object"
	}

	return schema, nil
}

func compileValidator(schema *jsonschema.Schema) (*gojsonschema.Schema, error) {
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(b))
}
