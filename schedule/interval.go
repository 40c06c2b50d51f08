// Package schedule implements the scheduling engine: conflict detection and
// free-slot search over calendar events. All computation uses half-open
// interval semantics [start, end): touching endpoints do not conflict.
// Verdicts are transient values, never persisted.
package schedule

import (
	"fmt"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewInterval builds an interval; callers should check Valid before use.
func NewInterval(start, end time.Time) Interval {
	return Interval{Start: start, End: end}
}

// Valid reports whether Start precedes End.
func (iv Interval) Valid() bool { return iv.Start.Before(iv.End) }

// Duration returns the interval length.
func (iv Interval) Duration() time.Duration { return iv.End.Sub(iv.Start) }

// Overlaps reports whether the two half-open intervals intersect.
// Classic check: max(starts) < min(ends).
func (iv Interval) Overlaps(o Interval) bool {
	latestStart := iv.Start
	if o.Start.After(latestStart) {
		latestStart = o.Start
	}
	earliestEnd := iv.End
	if o.End.Before(earliestEnd) {
		earliestEnd = o.End
	}
	return latestStart.Before(earliestEnd)
}

// Intersect returns the overlapping interval and whether it is non-empty.
func (iv Interval) Intersect(o Interval) (Interval, bool) {
	out := iv
	if o.Start.After(out.Start) {
		out.Start = o.Start
	}
	if o.End.Before(out.End) {
		out.End = o.End
	}
	if !out.Valid() {
		return Interval{}, false
	}
	return out, true
}

// String renders the interval for observation payloads and logs.
func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s)", iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339))
}

// ValidationError reports degenerate scheduling input (inverted bounds,
// non-positive duration). It is surfaced before any computation or mutation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "schedule: invalid input: " + e.Reason
}
