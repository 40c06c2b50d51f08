package tempo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempoai/tempo/calendar"
	"github.com/tempoai/tempo/oracle"
	"github.com/tempoai/tempo/preference"
)

// fakePrefs is an in-memory preference.Store double recording writes.
type fakePrefs struct {
	records map[string]preference.Preference
}

func newFakePrefs() *fakePrefs {
	return &fakePrefs{records: map[string]preference.Preference{}}
}

func (f *fakePrefs) Put(_ context.Context, userID, key, description, value string, weight float64) (preference.Preference, error) {
	p := preference.Preference{ID: key, UserID: userID, Key: key, Description: description, Value: value, Weight: weight}
	f.records[key] = p
	return p, nil
}

func (f *fakePrefs) Get(_ context.Context, _, key string) ([]preference.Preference, error) {
	if key == "" {
		out := make([]preference.Preference, 0, len(f.records))
		for _, p := range f.records {
			out = append(out, p)
		}
		return out, nil
	}
	p, ok := f.records[key]
	if !ok {
		return nil, preference.ErrNotFound
	}
	return []preference.Preference{p}, nil
}

func (f *fakePrefs) Similar(context.Context, string, string, int) ([]preference.Match, error) {
	return nil, nil
}

func (f *fakePrefs) Delete(context.Context, string, string) error { return nil }

func TestAssistantBooksAnEventEndToEnd(t *testing.T) {
	events := calendar.NewInMemoryStore()

	// One scripted oracle drives both the orchestrator and the scheduler
	// loop; decisions are consumed strictly in order.
	scripted := oracle.NewScripted(
		// Orchestrator: delegate to the scheduler.
		&oracle.Decision{Invocation: &oracle.Invocation{
			ID:   "c1",
			Name: "scheduler",
			Args: map[string]any{"instruction": "add Team sync tomorrow 09:00-09:30"},
		}},
		// Scheduler loop: create the event.
		&oracle.Decision{Invocation: &oracle.Invocation{
			ID:   "c2",
			Name: "add_event",
			Args: map[string]any{
				"title": "Team sync",
				"start": "2026-03-11T09:00:00Z",
				"end":   "2026-03-11T09:30:00Z",
			},
		}},
		&oracle.Decision{Content: "Created Team sync at 09:00."},
		// Orchestrator: final answer.
		&oracle.Decision{Content: "Your team sync is booked for 09:00 tomorrow."},
	)

	assistant, err := New(scripted, func(o *Options) {
		o.Events = events
	})
	require.NoError(t, err)

	response, err := assistant.Process(context.Background(), "book a team sync tomorrow morning")
	require.NoError(t, err)
	assert.Equal(t, "Your team sync is booked for 09:00 tomorrow.", response)

	stored, err := events.List(context.Background(), calendar.Filter{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "Team sync", stored[0].Title)
}

func TestAssistantStoresPreferences(t *testing.T) {
	prefs := newFakePrefs()
	scripted := oracle.NewScripted(
		&oracle.Decision{Invocation: &oracle.Invocation{
			ID:   "c1",
			Name: "store_preference",
			Args: map[string]any{
				"key":         "no_mondays",
				"description": "keep Monday mornings meeting free",
				"weight":      0.8,
			},
		}},
		&oracle.Decision{Content: "Noted, I'll keep Monday mornings clear."},
	)

	assistant, err := New(scripted, func(o *Options) {
		o.UserID = "frank"
		o.Preferences = prefs
	})
	require.NoError(t, err)

	response, err := assistant.Process(context.Background(), "keep my monday mornings free")
	require.NoError(t, err)
	assert.Contains(t, response, "Monday")

	stored, ok := prefs.records["no_mondays"]
	require.True(t, ok)
	assert.Equal(t, "frank", stored.UserID)
	assert.Equal(t, 0.8, stored.Weight)
}

func TestAssistantWithoutPreferencesOmitsPreferenceTools(t *testing.T) {
	assistant, err := New(oracle.NewScripted())
	require.NoError(t, err)

	names := assistant.Registry().Names()
	assert.Contains(t, names, "scheduler")
	assert.Contains(t, names, "summarizer")
	assert.NotContains(t, names, "store_preference")
	assert.NotContains(t, names, "delete_preference")
}

func TestAssistantRequiresOracle(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}
