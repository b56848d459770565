package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testContextKey string

type testInput struct {
	Value int    `json:"value"`
	Label string `json:"label,omitempty"`
}

func (t *testInput) ApplyDefaults() {
	if t.Label == "" {
		t.Label = "none"
	}
}

func TestNewToolFromFunc_InvokesHandlerWithContextAndInput(t *testing.T) {
	def, err := NewToolFromFunc(
		"ctx_input_tool",
		"test",
		func(ctx context.Context, in testInput) (interface{}, error) {
			if ctx == nil {
				t.Fatalf("ctx should not be nil")
			}
			return in.Value + 1, nil
		},
	)
	if err != nil {
		t.Fatalf("NewToolFromFunc failed: %v", err)
	}

	out, err := def.Invoke(context.Background(), "call-1", `{"value":41}`)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	v, ok := out.(int)
	if !ok {
		t.Fatalf("expected int result, got %T", out)
	}
	if v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
}

func TestNewToolFromFunc_PropagatesContextValues(t *testing.T) {
	key := testContextKey("k")
	def := MustNewToolFromFunc("ctx_tool", "test", func(ctx context.Context, in testInput) (interface{}, error) {
		return ctx.Value(key), nil
	})

	ctx := context.WithValue(context.Background(), key, "v")
	out, err := def.Invoke(ctx, "call-1", `{"value":1}`)
	require.NoError(t, err)
	assert.Equal(t, "v", out)
}

func TestNewToolFromFunc_RejectsNonStructInput(t *testing.T) {
	_, err := NewToolFromFunc("bad", "test", func(ctx context.Context, in int) (interface{}, error) {
		return in, nil
	})
	require.Error(t, err)

	_, err = NewToolFromFunc[testInput]("", "test", func(ctx context.Context, in testInput) (interface{}, error) {
		return nil, nil
	})
	require.Error(t, err)
}

func TestInvoke_AppliesDefaults(t *testing.T) {
	def := MustNewToolFromFunc("defaults", "test", func(ctx context.Context, in testInput) (interface{}, error) {
		return in.Label, nil
	})

	out, err := def.Invoke(context.Background(), "call-1", `{"value":1}`)
	require.NoError(t, err)
	assert.Equal(t, "none", out)

	out, err = def.Invoke(context.Background(), "call-2", `{"value":1,"label":"x"}`)
	require.NoError(t, err)
	assert.Equal(t, "x", out)
}

func TestInvoke_ArgumentErrors(t *testing.T) {
	called := 0
	def := MustNewToolFromFunc("strict", "test", func(ctx context.Context, in testInput) (interface{}, error) {
		called++
		return nil, nil
	})

	tests := []struct {
		name     string
		args     string
		wantErr  error
		wantType ToolErrorType
	}{
		{name: "not json", args: `{value: 1`, wantErr: ErrMalformedArguments, wantType: ToolErrorMalformed},
		{name: "missing required", args: `{"label":"x"}`, wantErr: ErrInvalidArguments, wantType: ToolErrorValidation},
		{name: "wrong type", args: `{"value":"one"}`, wantErr: ErrInvalidArguments, wantType: ToolErrorValidation},
		{name: "unexpected property", args: `{"value":1,"extra":true}`, wantErr: ErrInvalidArguments, wantType: ToolErrorValidation},
		{name: "empty string is empty object", args: ``, wantErr: ErrInvalidArguments, wantType: ToolErrorValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := def.Invoke(context.Background(), "call-1", tt.args)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			var toolErr *ToolError
			require.True(t, errors.As(err, &toolErr))
			assert.Equal(t, tt.wantType, toolErr.Type)
			assert.Equal(t, "strict", toolErr.ToolName)
			assert.Equal(t, "call-1", toolErr.ToolID)
		})
	}
	assert.Equal(t, 0, called)
}

func TestInvoke_EmptyArgumentsForParameterlessTool(t *testing.T) {
	type noArgs struct{}
	def := MustNewToolFromFunc("noop", "test", func(ctx context.Context, in noArgs) (interface{}, error) {
		return "done", nil
	})

	out, err := def.Invoke(context.Background(), "call-1", "  ")
	require.NoError(t, err)
	assert.Equal(t, "done", out)
}

func TestInvoke_HandlerErrorIsExecutionError(t *testing.T) {
	boom := errors.New("boom")
	def := MustNewToolFromFunc("failing", "test", func(ctx context.Context, in testInput) (interface{}, error) {
		return nil, boom
	})

	_, err := def.Invoke(context.Background(), "call-1", `{"value":1}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, ToolErrorExecution, toolErr.Type)
}

func TestGeneratedSchemaIsBareParametersObject(t *testing.T) {
	def := MustNewToolFromFunc("schema", "test", func(ctx context.Context, in testInput) (interface{}, error) {
		return nil, nil
	})

	b, err := json.Marshal(def.Parameters)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, "object", raw["type"])
	assert.NotContains(t, raw, "$schema")
	assert.NotContains(t, raw, "$id")
	assert.NotContains(t, raw, "$ref")
	assert.Equal(t, []interface{}{"value"}, raw["required"])
}
