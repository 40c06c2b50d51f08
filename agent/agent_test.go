package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempoai/tempo/dispatch"
	"github.com/tempoai/tempo/oracle"
	"github.com/tempoai/tempo/tool"
)

func countingTool(calls *int) tool.Tool {
	return tool.NewFunctionTool("ping", "counts calls", map[string]any{"type": "object"},
		func(context.Context, map[string]any) (any, error) {
			*calls++
			return "pong", nil
		})
}

func TestLoopAnswersDirectly(t *testing.T) {
	scripted := oracle.NewScripted(answerStep("nothing to do"))
	loop, err := NewLoop("noop", "does nothing", "instructions", scripted, nil)
	require.NoError(t, err)

	env := loop.Handle(context.Background(), dispatch.Request{Instruction: "hello"})
	require.Equal(t, dispatch.StatusSuccess, env.Status)
	assert.Equal(t, "nothing to do", env.Response)
	assert.Equal(t, 1, scripted.Calls())
}

func TestLoopRoundBudget(t *testing.T) {
	var calls int
	scripted := oracle.NewScripted()
	scripted.Fallback = invokeStep("ping", nil)

	loop, err := NewLoop("busy", "never settles", "instructions", scripted,
		[]tool.Tool{countingTool(&calls)},
		func(o *Options) { o.MaxToolRounds = 3 })
	require.NoError(t, err)

	env := loop.Handle(context.Background(), dispatch.Request{Instruction: "go"})
	require.True(t, env.IsError(), "an exhausted budget is an error, not a truncated answer")
	assert.Contains(t, env.Error, "3 tool rounds")
	assert.Equal(t, 3, calls)
}

func TestLoopRecoversFromUnknownTool(t *testing.T) {
	var calls int
	scripted := oracle.NewScripted(
		invokeStep("bogus", nil),
		invokeStep("ping", nil),
		answerStep("done after correcting myself"),
	)

	loop, err := NewLoop("wobbly", "guesses wrong once", "instructions", scripted,
		[]tool.Tool{countingTool(&calls)})
	require.NoError(t, err)

	env := loop.Handle(context.Background(), dispatch.Request{Instruction: "go"})
	require.Equal(t, dispatch.StatusSuccess, env.Status)
	assert.Equal(t, 1, calls)

	// The unknown-tool observation names the available tools.
	secondReq := scripted.Requests[1].History
	assert.Contains(t, secondReq[len(secondReq)-1].Content, "ping")
}

func TestLoopRejectsEmptyInstruction(t *testing.T) {
	loop, err := NewLoop("strict", "", "instructions", oracle.NewScripted(), nil)
	require.NoError(t, err)

	env := loop.Handle(context.Background(), dispatch.Request{})
	assert.True(t, env.IsError())
}

func TestLoopParametersDeclareInstruction(t *testing.T) {
	loop, err := NewLoop("named", "desc", "instructions", oracle.NewScripted(), nil)
	require.NoError(t, err)

	params := loop.Parameters()
	props, ok := params["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "instruction")
	assert.Equal(t, []string{"instruction"}, params["required"])
}

func TestNewLoopValidation(t *testing.T) {
	_, err := NewLoop("", "", "", oracle.NewScripted(), nil)
	assert.Error(t, err, "name is required")

	_, err = NewLoop("x", "", "", nil, nil)
	assert.Error(t, err, "oracle is required")
}
