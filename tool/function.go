package tool

import (
	"context"
	"time"

	"github.com/tempoai/tempo/internal/util"
	"github.com/tempoai/tempo/logging"
)

// FunctionTool is a generic adapter that exposes a plain Go function as a Tool.
//
// Responsibilities:
//   - Holds a lightweight JSON-Schema-like parameter specification
//   - Validates supplied arguments against that schema before execution
//   - Normalizes error handling so callers receive *ToolError with consistent
//     codes: VALIDATION_ERROR for schema mismatch, EXECUTION_ERROR for an
//     underlying function error (custom codes preserved if the function
//     returns *ToolError directly)
//
// A FunctionTool has no internal mutable state after construction and is safe
// for concurrent use by multiple goroutines.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(ctx context.Context, args map[string]any) (any, error)
	logger      logging.Logger
}

// NewFunctionTool constructs a FunctionTool from explicit schema and function.
//
// Example:
//
//	prefTool := NewFunctionTool(
//	  "get_preferences",
//	  "Look up stored user preferences",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "key": map[string]any{"type": "string"},
//	    },
//	  },
//	  func(ctx context.Context, args map[string]any) (any, error) { ... },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(ctx context.Context, args map[string]any) (any, error),
) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
		logger:      logging.NoOpLogger{},
	}
}

// WithLogger returns the tool configured to log through the given logger.
func (t *FunctionTool) WithLogger(logger logging.Logger) *FunctionTool {
	if logger != nil {
		t.logger = logger
	}
	return t
}

// Name returns the unique tool name used in invocation routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short natural language description exposed to the oracle.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the (minimal) JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates the provided args against the declared schema then invokes
// the underlying function. Validation or execution failures are wrapped (or
// passed through) as *ToolError for uniform downstream handling.
func (t *FunctionTool) Call(ctx context.Context, args map[string]any) (any, error) {
	start := time.Now()
	t.logger.Debug("tool.call.start", "tool", t.name)

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		t.logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())
		return nil, &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    CodeValidation,
			Details: err,
		}
	}

	result, err := t.fn(ctx, args)
	if err != nil {
		if toolErr, ok := err.(*ToolError); ok {
			t.logger.Error("tool.call.error", "tool", t.name, "error", toolErr.Message)
			return nil, toolErr
		}
		t.logger.Error("tool.call.error", "tool", t.name, "error", err.Error())
		return nil, &ToolError{Tool: t.name, Message: err.Error(), Code: CodeExecution}
	}

	t.logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())
	return result, nil
}
