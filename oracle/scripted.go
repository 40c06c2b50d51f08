package oracle

import (
	"context"
	"sync"
)

// Scripted is a deterministic Oracle that replays a fixed decision sequence.
// It backs tests and offline demos: each Decide call consumes the next step;
// once the script is exhausted every further call returns Fallback (or a
// bare "done" answer when Fallback is nil). Safe for concurrent use.
type Scripted struct {
	mu       sync.Mutex
	steps    []*Decision
	next     int
	Fallback *Decision

	// Requests records a copy of every request seen, for assertions.
	Requests []Request
}

// NewScripted creates a scripted oracle from the given decision sequence.
func NewScripted(steps ...*Decision) *Scripted {
	return &Scripted{steps: steps}
}

// Decide returns the next scripted decision.
func (s *Scripted) Decide(ctx context.Context, req Request) (*Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Requests = append(s.Requests, req)
	if s.next < len(s.steps) {
		d := s.steps[s.next]
		s.next++
		return d, nil
	}
	if s.Fallback != nil {
		return s.Fallback, nil
	}
	return &Decision{Content: "done"}, nil
}

// Calls reports how many decisions have been served.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Requests)
}

// Info returns metadata describing the scripted oracle.
func (s *Scripted) Info() Info {
	return Info{Name: "scripted", Provider: "scripted", SupportsTools: true}
}
