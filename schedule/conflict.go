package schedule

import (
	"context"

	"github.com/tempoai/tempo/calendar"
)

// Conflict pairs a candidate interval with an existing event it overlaps,
// carrying the exact overlapping interval. Conflicts are findings, not
// errors: a mutation that produced them still commits unless the caller
// asked otherwise.
type Conflict struct {
	EventID string   `json:"event_id"`
	Title   string   `json:"title"`
	Overlap Interval `json:"overlap"`
}

// Conflicts returns every non-cancelled event whose interval intersects the
// candidate under half-open semantics, skipping excludeID (used on update so
// an event does not conflict with itself). Results preserve the input order
// of events.
func Conflicts(candidate Interval, events []calendar.Event, excludeID string) []Conflict {
	var out []Conflict
	for _, e := range events {
		if excludeID != "" && e.ID == excludeID {
			continue
		}
		if !e.Active() {
			continue
		}
		overlap, ok := candidate.Intersect(Interval{Start: e.Start, End: e.End})
		if !ok {
			continue
		}
		out = append(out, Conflict{EventID: e.ID, Title: e.Title, Overlap: overlap})
	}
	return out
}

// Detect answers read-only conflict queries: it loads the events
// intersecting the candidate window from the store and runs conflict
// detection against them. Mutations do not use it; they get their overlap
// set atomically from the store's checked writes.
func Detect(ctx context.Context, store calendar.Store, candidate Interval, excludeID string) ([]Conflict, error) {
	if !candidate.Valid() {
		return nil, &ValidationError{Reason: "candidate end must be after start"}
	}
	events, err := store.List(ctx, calendar.Filter{From: candidate.Start, To: candidate.End})
	if err != nil {
		return nil, err
	}
	return Conflicts(candidate, events, excludeID), nil
}
