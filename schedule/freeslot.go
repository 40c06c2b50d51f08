package schedule

import (
	"sort"
	"time"

	"github.com/tempoai/tempo/calendar"
)

// FreeSlots computes the maximal gaps of at least minDuration within bounds
// that contain no non-cancelled event, in chronological order.
//
// Algorithm: clamp each active event interval to the bounds, sort by start,
// sweep once merging overlapping or adjacent intervals, and emit each gap
// that meets the minimum duration. Degenerate input is rejected with a
// ValidationError, never silently coerced.
func FreeSlots(events []calendar.Event, bounds Interval, minDuration time.Duration) ([]Interval, error) {
	if !bounds.Valid() {
		return nil, &ValidationError{Reason: "bounds end must be after start"}
	}
	if minDuration <= 0 {
		return nil, &ValidationError{Reason: "minimum duration must be positive"}
	}

	busy := make([]Interval, 0, len(events))
	for _, e := range events {
		if !e.Active() {
			continue
		}
		clamped, ok := bounds.Intersect(Interval{Start: e.Start, End: e.End})
		if !ok {
			continue
		}
		busy = append(busy, clamped)
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })

	var slots []Interval
	cursor := bounds.Start
	for _, iv := range busy {
		if iv.Start.After(cursor) {
			gap := Interval{Start: cursor, End: iv.Start}
			if gap.Duration() >= minDuration {
				slots = append(slots, gap)
			}
		}
		if iv.End.After(cursor) {
			cursor = iv.End
		}
	}
	if bounds.End.After(cursor) {
		gap := Interval{Start: cursor, End: bounds.End}
		if gap.Duration() >= minDuration {
			slots = append(slots, gap)
		}
	}
	return slots, nil
}

// DayBounds returns the working-hours interval for the day containing t.
// startHour/endHour are clock hours in t's location; a zero endHour pair
// falls back to the whole day.
func DayBounds(t time.Time, startHour, endHour int) Interval {
	year, month, day := t.Date()
	loc := t.Location()
	if startHour == 0 && endHour == 0 {
		endHour = 24
	}
	return Interval{
		Start: time.Date(year, month, day, startHour, 0, 0, 0, loc),
		End:   time.Date(year, month, day, 0, 0, 0, 0, loc).Add(time.Duration(endHour) * time.Hour),
	}
}
