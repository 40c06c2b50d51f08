package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent(title string, startHour int) Event {
	start := time.Date(2026, time.March, 10, startHour, 0, 0, 0, time.UTC)
	return Event{Title: title, Start: start, End: start.Add(time.Hour)}
}

func TestInMemoryStoreCreateAndGet(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	id, err := store.Create(ctx, testEvent("Standup", 9))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Standup", got.Title)
	assert.Equal(t, StatusScheduled, got.Status, "status defaults to scheduled")
	assert.False(t, got.CreatedAt.IsZero())
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)
}

func TestInMemoryStoreCreateValidates(t *testing.T) {
	store := NewInMemoryStore()

	_, err := store.Create(context.Background(), Event{Title: "Backwards",
		Start: time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)

	_, err = store.Create(context.Background(), Event{
		Start: time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC),
	})
	require.Error(t, err, "title is required")
}

func TestInMemoryStoreUpdate(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	id, err := store.Create(ctx, testEvent("Standup", 9))
	require.NoError(t, err)

	title := "Daily standup"
	status := StatusCompleted
	updated, err := store.Update(ctx, id, Patch{Title: &title, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "Daily standup", updated.Title)
	assert.Equal(t, StatusCompleted, updated.Status)
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))

	_, err = store.Update(ctx, "missing", Patch{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryStoreDelete(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	id, err := store.Create(ctx, testEvent("Standup", 9))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, id))
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, id), ErrNotFound)
}

func TestInMemoryStoreListFiltersAndSorts(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	later := testEvent("Review", 14)
	later.Tags = []string{"work"}
	_, err := store.Create(ctx, later)
	require.NoError(t, err)
	_, err = store.Create(ctx, testEvent("Standup", 9))
	require.NoError(t, err)

	all, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Standup", all[0].Title, "chronological order")

	tagged, err := store.List(ctx, Filter{Tag: "work"})
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, "Review", tagged[0].Title)

	windowed, err := store.List(ctx, Filter{
		From: time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC),
		To:   time.Date(2026, time.March, 10, 16, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, "Review", windowed[0].Title)
}

func TestInMemoryStoreReturnsClones(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	ev := testEvent("Standup", 9)
	ev.Tags = []string{"team"}
	id, err := store.Create(ctx, ev)
	require.NoError(t, err)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	got.Title = "mutated"
	got.Tags[0] = "mutated"

	fresh, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Standup", fresh.Title)
	assert.Equal(t, []string{"team"}, fresh.Tags)
}

func TestInMemoryStoreCreateCheckedReportsOverlaps(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	_, err := store.Create(ctx, testEvent("Sync", 9))
	require.NoError(t, err)

	created, overlaps, err := store.CreateChecked(ctx, testEvent("Vendor call", 9), true)
	require.NoError(t, err)
	require.Len(t, overlaps, 1)
	assert.Equal(t, "Sync", overlaps[0].Title)
	assert.NotEmpty(t, created.ID)
}

func TestInMemoryStoreCreateCheckedRejectsOverlap(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	_, err := store.Create(ctx, testEvent("Sync", 9))
	require.NoError(t, err)

	_, overlaps, err := store.CreateChecked(ctx, testEvent("Vendor call", 9), false)
	assert.ErrorIs(t, err, ErrOverlap)
	assert.Len(t, overlaps, 1)

	events, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, events, 1, "the rejected event was not written")
}

type checkedResult struct {
	overlaps []Event
	err      error
}

func TestInMemoryStoreConcurrentOverlappingCreates(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	start := make(chan struct{})
	results := make(chan checkedResult, 2)
	for i := 0; i < 2; i++ {
		go func() {
			<-start
			_, overlaps, err := store.CreateChecked(ctx, testEvent("Sync", 9), true)
			results <- checkedResult{overlaps: overlaps, err: err}
		}()
	}
	close(start)

	var clean int
	for i := 0; i < 2; i++ {
		r := <-results
		require.NoError(t, r.err)
		if len(r.overlaps) == 0 {
			clean++
		}
	}
	assert.Equal(t, 1, clean, "at most one of two overlapping adds may see an empty overlap set")

	events, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestInMemoryStoreConcurrentExclusiveCreates(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	start := make(chan struct{})
	results := make(chan checkedResult, 2)
	for i := 0; i < 2; i++ {
		go func() {
			<-start
			_, overlaps, err := store.CreateChecked(ctx, testEvent("Sync", 9), false)
			results <- checkedResult{overlaps: overlaps, err: err}
		}()
	}
	close(start)

	var committed, rejected int
	for i := 0; i < 2; i++ {
		r := <-results
		switch {
		case r.err == nil:
			committed++
		default:
			assert.ErrorIs(t, r.err, ErrOverlap)
			rejected++
		}
	}
	assert.Equal(t, 1, committed, "exactly one overlapping add commits")
	assert.Equal(t, 1, rejected)

	events, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestInMemoryStoreUpdateCheckedExcludesSelf(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	id, err := store.Create(ctx, testEvent("Sync", 9))
	require.NoError(t, err)

	newEnd := time.Date(2026, time.March, 10, 11, 0, 0, 0, time.UTC)
	_, overlaps, err := store.UpdateChecked(ctx, id, Patch{End: &newEnd}, true)
	require.NoError(t, err)
	assert.Empty(t, overlaps, "an event does not overlap itself")

	_, err = store.Create(ctx, testEvent("Vendor call", 10))
	require.NoError(t, err)

	cancelled := StatusCancelled
	_, overlaps, err = store.UpdateChecked(ctx, id, Patch{Status: &cancelled}, false)
	require.NoError(t, err)
	assert.Empty(t, overlaps, "a cancelled event frees its interval")
}

func TestFilterHalfOpenSemantics(t *testing.T) {
	e := testEvent("A", 9) // [9:00, 10:00)

	assert.False(t, Filter{From: e.End}.Matches(&e), "event ending at From is excluded")
	assert.False(t, Filter{To: e.Start}.Matches(&e), "event starting at To is excluded")
	assert.True(t, Filter{From: e.Start, To: e.End}.Matches(&e))
}
