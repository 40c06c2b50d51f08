package summary

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempoai/tempo/calendar"
	"github.com/tempoai/tempo/preference"
	"github.com/tempoai/tempo/schedule"
)

func at(day, hour, min int) time.Time {
	return time.Date(2026, time.March, day, hour, min, 0, 0, time.UTC)
}

func ev(title string, start, end time.Time, tags ...string) calendar.Event {
	return calendar.Event{ID: title, Title: title, Start: start, End: end, Tags: tags, Status: calendar.StatusScheduled}
}

func TestBuildAggregates(t *testing.T) {
	window := schedule.NewInterval(at(10, 0, 0), at(12, 0, 0))
	cancelled := ev("Dropped", at(10, 15, 0), at(10, 16, 0))
	cancelled.Status = calendar.StatusCancelled

	events := []calendar.Event{
		ev("Standup", at(10, 9, 0), at(10, 9, 30), "team"),
		ev("Review", at(10, 14, 0), at(10, 15, 0), "team", "code"),
		ev("Planning", at(11, 9, 0), at(11, 11, 0)),
		cancelled,
		ev("Outside", at(20, 9, 0), at(20, 10, 0)),
	}

	r, err := Build(window, events)
	require.NoError(t, err)

	assert.Equal(t, 4, r.TotalEvents, "events outside the window are ignored")
	assert.Equal(t, 3, r.ByStatus[string(calendar.StatusScheduled)])
	assert.Equal(t, 1, r.ByStatus[string(calendar.StatusCancelled)])
	assert.Equal(t, 2, r.ByTag["team"])
	assert.Equal(t, 3*time.Hour+30*time.Minute, r.TotalBusy, "cancelled events add no busy time")
	assert.Equal(t, "2026-03-11", r.BusiestDay)
	assert.Equal(t, 2*time.Hour+30*time.Minute, r.ByPartOfDay["morning"])
	assert.Equal(t, time.Hour, r.ByPartOfDay["afternoon"])
	require.Len(t, r.Events, 3)
	assert.Equal(t, "Standup", r.Events[0].Title, "chronological order")
}

func TestBuildClampsToWindow(t *testing.T) {
	window := schedule.NewInterval(at(10, 9, 0), at(10, 10, 0))
	events := []calendar.Event{ev("Long", at(10, 8, 0), at(10, 12, 0))}

	r, err := Build(window, events)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, r.TotalBusy, "busy time is clamped to the window")
}

func TestBuildRejectsInvalidWindow(t *testing.T) {
	_, err := Build(schedule.NewInterval(at(10, 10, 0), at(10, 9, 0)), nil)
	var verr *schedule.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestBuildSplitsPartsOfDay(t *testing.T) {
	window := schedule.NewInterval(at(10, 0, 0), at(11, 0, 0))
	events := []calendar.Event{ev("Spanning", at(10, 11, 0), at(10, 18, 0))}

	r, err := Build(window, events)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, r.ByPartOfDay["morning"])
	assert.Equal(t, 5*time.Hour, r.ByPartOfDay["afternoon"])
	assert.Equal(t, time.Hour, r.ByPartOfDay["evening"])
}

func TestBuildNightBucketSpansMidnight(t *testing.T) {
	window := schedule.NewInterval(at(10, 0, 0), at(12, 0, 0))
	events := []calendar.Event{ev("Red-eye", at(10, 23, 0), at(11, 7, 0))}

	r, err := Build(window, events)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, r.ByPartOfDay["evening"])
	assert.Equal(t, 6*time.Hour, r.ByPartOfDay["night"])
	assert.Equal(t, time.Hour, r.ByPartOfDay["morning"])
}

// stubPrefs serves a fixed preference list; only Get is exercised here.
type stubPrefs struct {
	prefs []preference.Preference
}

func (s *stubPrefs) Put(context.Context, string, string, string, string, float64) (preference.Preference, error) {
	return preference.Preference{}, nil
}

func (s *stubPrefs) Get(_ context.Context, _, key string) ([]preference.Preference, error) {
	if key == "" {
		return s.prefs, nil
	}
	for _, p := range s.prefs {
		if p.Key == key {
			return []preference.Preference{p}, nil
		}
	}
	return nil, preference.ErrNotFound
}

func (s *stubPrefs) Similar(context.Context, string, string, int) ([]preference.Match, error) {
	return nil, nil
}

func (s *stubPrefs) Delete(context.Context, string, string) error { return nil }

func TestAnalyzeFlagsPreferenceMismatches(t *testing.T) {
	store := &stubPrefs{prefs: []preference.Preference{
		{UserID: "u1", Key: "no_evenings", Description: "avoid evening meetings", Weight: 0.9},
		{UserID: "u1", Key: "morning_focus", Description: "prefer morning focus blocks", Weight: 0.7},
	}}
	window := schedule.NewInterval(at(10, 0, 0), at(11, 0, 0))
	events := []calendar.Event{ev("Late sync", at(10, 18, 0), at(10, 19, 0))}

	report, findings, err := Analyze(context.Background(), window, events, store, "u1")
	require.NoError(t, err)
	require.NotNil(t, report)
	require.Len(t, findings, 2)

	kinds := map[string]string{}
	for _, f := range findings {
		kinds[f.Preference] = f.Kind
	}
	assert.Equal(t, "preference_mismatch", kinds["no_evenings"], "evening time despite avoidance")
	assert.Equal(t, "preference_unused", kinds["morning_focus"], "no morning time despite preference")
}

func TestAnalyzeWithoutPreferences(t *testing.T) {
	window := schedule.NewInterval(at(10, 0, 0), at(11, 0, 0))
	_, findings, err := Analyze(context.Background(), window, nil, nil, "")
	require.NoError(t, err)
	assert.Empty(t, findings)
}
