package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tempoai/tempo/dispatch"
)

// handlerAdapter exposes a Tool through the dispatch contract so local tools
// and sub-agents share one invocation surface. Results are rendered to JSON;
// tool errors become error-status envelopes, never panics or crashes.
type handlerAdapter struct {
	tool Tool
}

// Adapt wraps a Tool as a dispatch.Handler.
func Adapt(t Tool) dispatch.Handler {
	return &handlerAdapter{tool: t}
}

func (a *handlerAdapter) Name() string               { return a.tool.Name() }
func (a *handlerAdapter) Description() string        { return a.tool.Description() }
func (a *handlerAdapter) Parameters() map[string]any { return a.tool.Parameters() }

// Handle executes the tool with the request's structured arguments.
func (a *handlerAdapter) Handle(ctx context.Context, req dispatch.Request) dispatch.Envelope {
	args := req.Args
	if args == nil {
		args = map[string]any{}
	}

	result, err := a.tool.Call(ctx, args)
	if err != nil {
		return dispatch.Error(err.Error())
	}

	switch v := result.(type) {
	case nil:
		return dispatch.Success("")
	case dispatch.Envelope:
		// Tools that attach findings build their envelope themselves.
		return v
	case string:
		return dispatch.Success(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return dispatch.Errorf("tool %s: encode result: %v", a.tool.Name(), err)
		}
		return dispatch.Success(string(b))
	}
}

// String implements fmt.Stringer for debug logging.
func (a *handlerAdapter) String() string {
	return fmt.Sprintf("tool(%s)", a.tool.Name())
}
