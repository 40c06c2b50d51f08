package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/tempoai/tempo/logging"
)

// ErrTimeout reports that a dispatched call did not complete within the
// caller's deadline. It is a transport failure, distinct from an error-status
// envelope produced by the handler itself.
var ErrTimeout = errors.New("dispatch: call timed out")

// Caller executes handlers synchronously with a per-call timeout. A timeout
// or handler panic is returned as a transport error so the orchestrator can
// apply its retry-once policy; envelopes with error status pass through
// untouched because they already encode a handled failure.
type Caller struct {
	timeout time.Duration
	logger  logging.Logger
}

// NewCaller creates a caller with the given per-call timeout. A zero timeout
// disables the deadline.
func NewCaller(timeout time.Duration, logger logging.Logger) *Caller {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Caller{timeout: timeout, logger: logger}
}

// Call invokes the handler and waits for its envelope. The handler runs in
// its own goroutine; on timeout the goroutine's eventual result is discarded.
// No partial envelope is ever returned.
func (c *Caller) Call(ctx context.Context, h Handler, req Request) (Envelope, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	c.logger.Debug("dispatch.call.start", "handler", h.Name())

	done := make(chan Envelope, 1)
	panicked := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("dispatch.call.panic", "handler", h.Name(), "recover", r, "stack", string(debug.Stack()))
				panicked <- fmt.Errorf("dispatch: handler %q panicked: %v", h.Name(), r)
			}
		}()
		done <- h.Handle(ctx, req)
	}()

	select {
	case env := <-done:
		c.logger.Info("dispatch.call.done",
			"handler", h.Name(),
			"status", string(env.Status),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return env, nil
	case err := <-panicked:
		return Envelope{}, err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.logger.Warn("dispatch.call.timeout", "handler", h.Name(), "timeout", c.timeout)
			return Envelope{}, fmt.Errorf("%w: %s after %s", ErrTimeout, h.Name(), c.timeout)
		}
		return Envelope{}, ctx.Err()
	}
}
