package tool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempoai/tempo/dispatch"
)

func echoTool() *FunctionTool {
	return NewFunctionTool(
		"echo",
		"Echoes a message.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{"type": "string"},
				"count":   map[string]any{"type": "integer"},
			},
			"required": []string{"message"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			return args["message"], nil
		},
	)
}

func TestFunctionToolCall(t *testing.T) {
	result, err := echoTool().Call(context.Background(), map[string]any{"message": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", result)
}

func TestFunctionToolValidation(t *testing.T) {
	_, err := echoTool().Call(context.Background(), map[string]any{})

	var terr *ToolError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, CodeValidation, terr.Code)
	assert.Equal(t, "echo", terr.Tool)

	_, err = echoTool().Call(context.Background(), map[string]any{"message": 42})
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, CodeValidation, terr.Code)
}

func TestFunctionToolWrapsExecutionErrors(t *testing.T) {
	failing := NewFunctionTool("boom", "always fails", map[string]any{"type": "object"},
		func(context.Context, map[string]any) (any, error) {
			return nil, errors.New("backend down")
		})

	_, err := failing.Call(context.Background(), map[string]any{})
	var terr *ToolError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, CodeExecution, terr.Code)

	preserved := NewFunctionTool("notfound", "typed failure", map[string]any{"type": "object"},
		func(context.Context, map[string]any) (any, error) {
			return nil, NewToolError("notfound", "no such thing", CodeNotFound)
		})
	_, err = preserved.Call(context.Background(), map[string]any{})
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, CodeNotFound, terr.Code, "typed tool errors pass through unchanged")
}

func TestAdaptRendersEnvelopes(t *testing.T) {
	h := Adapt(echoTool())
	env := h.Handle(context.Background(), dispatch.Request{Args: map[string]any{"message": "hi"}})
	assert.Equal(t, dispatch.StatusSuccess, env.Status)
	assert.Equal(t, "hi", env.Response)

	env = h.Handle(context.Background(), dispatch.Request{})
	assert.True(t, env.IsError(), "validation failure becomes an error envelope")

	structured := NewFunctionTool("obj", "returns a struct", map[string]any{"type": "object"},
		func(context.Context, map[string]any) (any, error) {
			return map[string]any{"n": 1}, nil
		})
	env = Adapt(structured).Handle(context.Background(), dispatch.Request{})
	assert.JSONEq(t, `{"n":1}`, env.Response)
}

func TestAdaptPassesEnvelopesThrough(t *testing.T) {
	withFindings := NewFunctionTool("verdicts", "attaches findings", map[string]any{"type": "object"},
		func(context.Context, map[string]any) (any, error) {
			env := dispatch.Success("committed")
			env.Findings = []any{"overlap"}
			return env, nil
		})

	env := Adapt(withFindings).Handle(context.Background(), dispatch.Request{})
	assert.Equal(t, "committed", env.Response)
	assert.Equal(t, []any{"overlap"}, env.Findings)
}

func TestParseTimeLayouts(t *testing.T) {
	for _, in := range []string{
		"2026-03-10T09:00:00Z",
		"2026-03-10T09:00:00",
		"2026-03-10 09:00",
	} {
		ts, err := ParseTime(in)
		require.NoError(t, err, in)
		assert.Equal(t, time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC), ts)
	}

	dateOnly, err := ParseTime("2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC), dateOnly)

	_, err = ParseTime("next tuesday")
	assert.Error(t, err)
}
