// Package summary aggregates calendar events into reports: counts, time
// usage by day and by part of day, and advisory findings against the user's
// stored preferences.
package summary

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tempoai/tempo/calendar"
	"github.com/tempoai/tempo/preference"
	"github.com/tempoai/tempo/schedule"
)

// Report describes the events inside a reporting window.
type Report struct {
	Window        schedule.Interval        `json:"window"`
	TotalEvents   int                      `json:"total_events"`
	ByStatus      map[string]int           `json:"by_status"`
	ByTag         map[string]int           `json:"by_tag,omitempty"`
	TotalBusy     time.Duration            `json:"total_busy"`
	AverageLength time.Duration            `json:"average_length"`
	BusiestDay    string                   `json:"busiest_day,omitempty"`
	ByPartOfDay   map[string]time.Duration `json:"by_part_of_day"`
	Events        []calendar.Event         `json:"events,omitempty"`
}

// Finding is an advisory note produced when scheduled time diverges from a
// stored preference. Findings never block anything; they are surfaced to the
// caller for judgment.
type Finding struct {
	Kind       string  `json:"kind"`
	Preference string  `json:"preference,omitempty"`
	Detail     string  `json:"detail"`
	Weight     float64 `json:"weight,omitempty"`
}

// Parts of day used for bucketed time usage.
const (
	partNight     = "night"     // [00:00, 06:00)
	partMorning   = "morning"   // [06:00, 12:00)
	partAfternoon = "afternoon" // [12:00, 17:00)
	partEvening   = "evening"   // [17:00, 24:00)
)

// Build aggregates the events that intersect the window. Cancelled events
// count in ByStatus but contribute no busy time.
func Build(window schedule.Interval, events []calendar.Event) (*Report, error) {
	if !window.Valid() {
		return nil, &schedule.ValidationError{Reason: "report window must end after it starts"}
	}

	r := &Report{
		Window:      window,
		ByStatus:    map[string]int{},
		ByTag:       map[string]int{},
		ByPartOfDay: map[string]time.Duration{},
	}

	byDay := map[string]time.Duration{}
	var busyCount int
	for _, ev := range events {
		iv, ok := schedule.NewInterval(ev.Start, ev.End).Intersect(window)
		if !ok {
			continue
		}

		r.TotalEvents++
		r.ByStatus[string(ev.Status)]++
		for _, tag := range ev.Tags {
			r.ByTag[tag]++
		}
		if !ev.Active() {
			continue
		}

		busyCount++
		r.TotalBusy += iv.Duration()
		accumulateDays(byDay, iv)
		accumulateParts(r.ByPartOfDay, iv)
		r.Events = append(r.Events, ev)
	}

	if busyCount > 0 {
		r.AverageLength = r.TotalBusy / time.Duration(busyCount)
	}
	r.BusiestDay = busiestDay(byDay)
	sort.Slice(r.Events, func(i, j int) bool {
		if r.Events[i].Start.Equal(r.Events[j].Start) {
			return r.Events[i].ID < r.Events[j].ID
		}
		return r.Events[i].Start.Before(r.Events[j].Start)
	})
	return r, nil
}

// Analyze builds the report and, when a preference store is supplied, checks
// the schedule against the user's stored preferences.
func Analyze(ctx context.Context, window schedule.Interval, events []calendar.Event, prefs preference.Store, userID string) (*Report, []Finding, error) {
	report, err := Build(window, events)
	if err != nil {
		return nil, nil, err
	}

	var findings []Finding
	if prefs != nil && userID != "" {
		stored, err := prefs.Get(ctx, userID, "")
		if err != nil {
			return nil, nil, fmt.Errorf("summary: load preferences: %w", err)
		}
		findings = checkPreferences(report, stored)
	}
	return report, findings, nil
}

// checkPreferences compares aggregate time usage against each stored
// preference. Matching is by convention on the preference key: keys
// containing a part-of-day name are checked against that bucket.
func checkPreferences(r *Report, prefs []preference.Preference) []Finding {
	var findings []Finding
	for _, p := range prefs {
		part, avoid := partHint(p)
		if part == "" {
			continue
		}
		used := r.ByPartOfDay[part]
		if avoid && used > 0 {
			findings = append(findings, Finding{
				Kind:       "preference_mismatch",
				Preference: p.Key,
				Detail:     fmt.Sprintf("%s is marked to avoid but holds %s of scheduled time", part, used),
				Weight:     p.Weight,
			})
		}
		if !avoid && used == 0 && r.TotalBusy > 0 {
			findings = append(findings, Finding{
				Kind:       "preference_unused",
				Preference: p.Key,
				Detail:     fmt.Sprintf("%s is preferred but holds no scheduled time", part),
				Weight:     p.Weight,
			})
		}
	}
	return findings
}

// partHint extracts a part-of-day reference from a preference, and whether
// the preference expresses avoidance.
func partHint(p preference.Preference) (part string, avoid bool) {
	text := strings.ToLower(p.Key + " " + p.Description + " " + p.Value)
	for _, candidate := range []string{partNight, partMorning, partAfternoon, partEvening} {
		if strings.Contains(text, candidate) {
			part = candidate
			break
		}
	}
	if part == "" {
		return "", false
	}
	for _, term := range []string{"avoid", "no ", "not ", "never", "free"} {
		if strings.Contains(text, term) {
			return part, true
		}
	}
	return part, false
}

func accumulateDays(byDay map[string]time.Duration, iv schedule.Interval) {
	cursor := iv.Start
	for cursor.Before(iv.End) {
		dayEnd := time.Date(cursor.Year(), cursor.Month(), cursor.Day(), 0, 0, 0, 0, cursor.Location()).AddDate(0, 0, 1)
		if dayEnd.After(iv.End) {
			dayEnd = iv.End
		}
		byDay[cursor.Format("2006-01-02")] += dayEnd.Sub(cursor)
		cursor = dayEnd
	}
}

func accumulateParts(parts map[string]time.Duration, iv schedule.Interval) {
	cursor := iv.Start
	for cursor.Before(iv.End) {
		name, end := partAt(cursor)
		if end.After(iv.End) {
			end = iv.End
		}
		parts[name] += end.Sub(cursor)
		cursor = end
	}
}

// partAt returns the bucket holding t and the bucket's end instant.
func partAt(t time.Time) (string, time.Time) {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	switch {
	case t.Hour() < 6:
		return partNight, midnight.Add(6 * time.Hour)
	case t.Hour() < 12:
		return partMorning, midnight.Add(12 * time.Hour)
	case t.Hour() < 17:
		return partAfternoon, midnight.Add(17 * time.Hour)
	default:
		return partEvening, midnight.AddDate(0, 0, 1)
	}
}

func busiestDay(byDay map[string]time.Duration) string {
	var (
		best    string
		bestDur time.Duration
	)
	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)
	for _, day := range days {
		if byDay[day] > bestDur {
			best, bestDur = day, byDay[day]
		}
	}
	return best
}
