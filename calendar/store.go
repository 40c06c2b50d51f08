package calendar

import "context"

// Store is the event persistence capability. The checked write operations
// pair overlap detection with the write in one atomic step: detection and
// commit happen under the same lock or transaction, so two concurrent writes
// for overlapping intervals can never both observe a clean overlap set.
// Returned events are copies; mutating them does not affect the store.
type Store interface {
	// Create validates the event, assigns an id and timestamps, and persists
	// it. Returns the assigned id.
	Create(ctx context.Context, e Event) (string, error)

	// CreateChecked persists the event like Create and atomically reports
	// the active events overlapping [e.Start, e.End) at commit time. When
	// allowOverlap is false and overlaps exist, nothing is written and
	// ErrOverlap is returned together with the overlapping events.
	CreateChecked(ctx context.Context, e Event, allowOverlap bool) (Event, []Event, error)

	// Update applies a partial patch to an existing event, revalidates and
	// persists it. Returns ErrNotFound for an unknown id.
	Update(ctx context.Context, id string, p Patch) (Event, error)

	// UpdateChecked applies the patch like Update and atomically reports the
	// active events overlapping the patched interval, excluding the event
	// itself. A cancelled result frees its interval, so it reports no
	// overlaps. ErrOverlap semantics match CreateChecked.
	UpdateChecked(ctx context.Context, id string, p Patch, allowOverlap bool) (Event, []Event, error)

	// Delete removes an event. Returns ErrNotFound for an unknown id.
	Delete(ctx context.Context, id string) error

	// Get returns a single event. Returns ErrNotFound for an unknown id.
	Get(ctx context.Context, id string) (Event, error)

	// List returns events matching the filter in chronological start order.
	List(ctx context.Context, f Filter) ([]Event, error)
}
