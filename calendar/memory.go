package calendar

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a volatile Store implementation keeping events in a
// process-local map. It is safe for concurrent access and best suited for
// tests or ephemeral demos. The checked writes run overlap detection and the
// commit under one exclusive lock, so concurrent overlapping writes
// serialize and the later one always sees the earlier. Each returned event
// is cloned to prevent external mutation of internal state.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string]*Event
	now    func() time.Time
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory event store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[string]*Event), now: time.Now}
}

// WithClock overrides the store's clock. Test hook.
func (s *InMemoryStore) WithClock(now func() time.Time) *InMemoryStore {
	s.now = now
	return s
}

// Create validates and stores the event, assigning id and timestamps.
func (s *InMemoryStore) Create(ctx context.Context, e Event) (string, error) {
	created, _, err := s.CreateChecked(ctx, e, true)
	return created.ID, err
}

// CreateChecked stores the event and reports the active events it overlaps,
// both under one exclusive lock.
func (s *InMemoryStore) CreateChecked(_ context.Context, e Event, allowOverlap bool) (Event, []Event, error) {
	if e.Status == "" {
		e.Status = StatusScheduled
	}
	if err := e.Validate(); err != nil {
		return Event{}, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	overlaps := s.overlappingLocked(e.Start, e.End, "")
	if len(overlaps) > 0 && !allowOverlap {
		return Event{}, overlaps, ErrOverlap
	}

	e.ID = uuid.NewString()
	now := s.now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	stored := e.Clone()
	s.events[e.ID] = &stored
	return stored.Clone(), overlaps, nil
}

// Update applies the patch to an existing event and revalidates it.
func (s *InMemoryStore) Update(ctx context.Context, id string, p Patch) (Event, error) {
	updated, _, err := s.UpdateChecked(ctx, id, p, true)
	return updated, err
}

// UpdateChecked patches the event and reports the active events the patched
// interval overlaps, excluding the event itself, under one exclusive lock.
func (s *InMemoryStore) UpdateChecked(_ context.Context, id string, p Patch, allowOverlap bool) (Event, []Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.events[id]
	if !ok {
		return Event{}, nil, ErrNotFound
	}

	updated := existing.Clone()
	p.Apply(&updated)
	if err := updated.Validate(); err != nil {
		return Event{}, nil, err
	}

	var overlaps []Event
	if updated.Active() {
		overlaps = s.overlappingLocked(updated.Start, updated.End, id)
	}
	if len(overlaps) > 0 && !allowOverlap {
		return Event{}, overlaps, ErrOverlap
	}

	updated.UpdatedAt = s.now().UTC()
	if updated.UpdatedAt.Before(updated.CreatedAt) {
		updated.UpdatedAt = updated.CreatedAt
	}
	stored := updated.Clone()
	s.events[id] = &stored
	return updated, overlaps, nil
}

// overlappingLocked returns clones of the active events intersecting
// [start, end) under half-open semantics, sorted by start time. Callers must
// hold at least the read lock.
func (s *InMemoryStore) overlappingLocked(start, end time.Time, excludeID string) []Event {
	var out []Event
	for _, e := range s.events {
		if excludeID != "" && e.ID == excludeID {
			continue
		}
		if !e.Active() {
			continue
		}
		if e.Start.Before(end) && start.Before(e.End) {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// Delete removes an event.
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return ErrNotFound
	}
	delete(s.events, id)
	return nil
}

// Get returns a clone of a single event.
func (s *InMemoryStore) Get(_ context.Context, id string) (Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return Event{}, ErrNotFound
	}
	return e.Clone(), nil
}

// List returns matching events sorted by start time.
func (s *InMemoryStore) List(_ context.Context, f Filter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Event, 0, len(s.events))
	for _, e := range s.events {
		if f.Matches(e) {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}
