// Package calendar owns the event data model and the Store capability
// interface the scheduling components consume. Events are mutated only
// through a Store's CRUD operations; all computation over events (conflicts,
// free slots, summaries) lives in the schedule and summary packages.
package calendar

import (
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of an event.
type Status string

const (
	// StatusScheduled marks an upcoming event occupying its interval.
	StatusScheduled Status = "scheduled"
	// StatusCancelled marks an event that no longer occupies its interval.
	StatusCancelled Status = "cancelled"
	// StatusCompleted marks a past event that took place.
	StatusCompleted Status = "completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// ErrNotFound is returned when an event id does not resolve.
var ErrNotFound = errors.New("calendar: event not found")

// ErrOverlap is returned by the checked write operations when the interval
// overlaps existing active events and the caller disallowed overlap. Nothing
// is written in that case.
var ErrOverlap = errors.New("calendar: interval overlaps existing events")

// Event is a single calendar entry. ID is assigned on create and immutable
// afterwards; Start/End form a half-open interval [Start, End).
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Location    string    `json:"location,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks the event's structural invariants.
func (e *Event) Validate() error {
	if e.Title == "" {
		return fmt.Errorf("calendar: event title is required")
	}
	if e.Start.IsZero() || e.End.IsZero() {
		return fmt.Errorf("calendar: event start and end are required")
	}
	if !e.End.After(e.Start) {
		return fmt.Errorf("calendar: event end must be after start")
	}
	if e.Status != "" && !e.Status.Valid() {
		return fmt.Errorf("calendar: unknown event status %q", e.Status)
	}
	return nil
}

// Active reports whether the event occupies its interval (i.e. is not cancelled).
func (e *Event) Active() bool { return e.Status != StatusCancelled }

// Duration returns the event length.
func (e *Event) Duration() time.Duration { return e.End.Sub(e.Start) }

// Clone returns a deep copy so stored events cannot be mutated externally.
func (e *Event) Clone() Event {
	out := *e
	if e.Tags != nil {
		out.Tags = append([]string(nil), e.Tags...)
	}
	return out
}

// Patch describes a partial event update. Nil fields are left untouched.
type Patch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Tags        *[]string  `json:"tags,omitempty"`
	Status      *Status    `json:"status,omitempty"`
}

// Apply copies the set fields of the patch onto the event.
func (p Patch) Apply(e *Event) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Start != nil {
		e.Start = *p.Start
	}
	if p.End != nil {
		e.End = *p.End
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.Tags != nil {
		e.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
}

// Filter selects events in List. Zero values mean "no constraint". From/To
// select events whose interval intersects [From, To) under half-open
// semantics.
type Filter struct {
	From   time.Time `json:"from,omitempty"`
	To     time.Time `json:"to,omitempty"`
	Status Status    `json:"status,omitempty"`
	Tag    string    `json:"tag,omitempty"`
}

// Matches reports whether the event satisfies the filter.
func (f Filter) Matches(e *Event) bool {
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && !e.End.After(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.Start.Before(f.To) {
		return false
	}
	if f.Tag != "" {
		found := false
		for _, t := range e.Tags {
			if t == f.Tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
