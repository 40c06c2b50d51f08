// Package sqlite provides a durable calendar.Store backed by SQLite via the
// pure-Go modernc driver (no CGO). The database is opened in WAL mode with a
// busy timeout and immediate transactions; the checked writes run overlap
// detection and the commit inside one transaction, so concurrent overlapping
// writes serialize and the later one always sees the earlier.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tempoai/tempo/calendar"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	start_at    TEXT NOT NULL,
	end_at      TEXT NOT NULL,
	location    TEXT NOT NULL DEFAULT '',
	tags        TEXT NOT NULL DEFAULT '[]',
	status      TEXT NOT NULL DEFAULT 'scheduled',
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_start ON events(start_at);
CREATE INDEX IF NOT EXISTS idx_events_status ON events(status);
`

// Store is a durable calendar.Store on a single SQLite database file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ calendar.Store = (*Store)(nil)

// Open opens or creates the event database at path, running migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}

	// _txlock=immediate makes BeginTx take the write lock up front, so a
	// read-then-write transaction cannot deadlock on lock upgrade.
	db, err := sql.Open("sqlite", path+"?_txlock=immediate&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Create validates and inserts the event, assigning id and timestamps.
func (s *Store) Create(ctx context.Context, e calendar.Event) (string, error) {
	created, _, err := s.CreateChecked(ctx, e, true)
	return created.ID, err
}

// CreateChecked inserts the event and reads back the active events it
// overlaps inside one transaction.
func (s *Store) CreateChecked(ctx context.Context, e calendar.Event, allowOverlap bool) (calendar.Event, []calendar.Event, error) {
	if e.Status == "" {
		e.Status = calendar.StatusScheduled
	}
	if err := e.Validate(); err != nil {
		return calendar.Event{}, nil, err
	}

	e.ID = uuid.NewString()
	now := s.now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return calendar.Event{}, nil, fmt.Errorf("encode tags: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return calendar.Event{}, nil, fmt.Errorf("begin create: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	overlaps, err := overlappingTx(ctx, tx, e.Start, e.End, "")
	if err != nil {
		return calendar.Event{}, nil, err
	}
	if len(overlaps) > 0 && !allowOverlap {
		return calendar.Event{}, overlaps, calendar.ErrOverlap
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (id, title, description, start_at, end_at, location, tags, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Title, e.Description,
		e.Start.UTC().Format(time.RFC3339Nano), e.End.UTC().Format(time.RFC3339Nano),
		e.Location, string(tags), string(e.Status),
		e.CreatedAt.Format(time.RFC3339Nano), e.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return calendar.Event{}, nil, fmt.Errorf("insert event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return calendar.Event{}, nil, fmt.Errorf("commit create: %w", err)
	}
	return e, overlaps, nil
}

// Update applies the patch inside a transaction so the read-modify-write is
// atomic with respect to concurrent writers.
func (s *Store) Update(ctx context.Context, id string, p calendar.Patch) (calendar.Event, error) {
	updated, _, err := s.UpdateChecked(ctx, id, p, true)
	return updated, err
}

// UpdateChecked patches the event and reads back the active events the
// patched interval overlaps, excluding the event itself, inside one
// transaction.
func (s *Store) UpdateChecked(ctx context.Context, id string, p calendar.Patch, allowOverlap bool) (calendar.Event, []calendar.Event, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return calendar.Event{}, nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	e, err := scanEvent(tx.QueryRowContext(ctx, selectByID, id))
	if err != nil {
		return calendar.Event{}, nil, err
	}

	p.Apply(&e)
	if err := e.Validate(); err != nil {
		return calendar.Event{}, nil, err
	}

	var overlaps []calendar.Event
	if e.Active() {
		overlaps, err = overlappingTx(ctx, tx, e.Start, e.End, id)
		if err != nil {
			return calendar.Event{}, nil, err
		}
	}
	if len(overlaps) > 0 && !allowOverlap {
		return calendar.Event{}, overlaps, calendar.ErrOverlap
	}

	e.UpdatedAt = s.now().UTC()
	if e.UpdatedAt.Before(e.CreatedAt) {
		e.UpdatedAt = e.CreatedAt
	}

	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return calendar.Event{}, nil, fmt.Errorf("encode tags: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE events SET title=?, description=?, start_at=?, end_at=?, location=?, tags=?, status=?, updated_at=?
		WHERE id=?`,
		e.Title, e.Description,
		e.Start.UTC().Format(time.RFC3339Nano), e.End.UTC().Format(time.RFC3339Nano),
		e.Location, string(tags), string(e.Status),
		e.UpdatedAt.Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return calendar.Event{}, nil, fmt.Errorf("update event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return calendar.Event{}, nil, fmt.Errorf("commit update: %w", err)
	}
	return e, overlaps, nil
}

// overlappingTx selects the active events intersecting [start, end) under
// half-open semantics, in chronological start order.
func overlappingTx(ctx context.Context, tx *sql.Tx, start, end time.Time, excludeID string) ([]calendar.Event, error) {
	query := `SELECT id, title, description, start_at, end_at, location, tags, status, created_at, updated_at
		FROM events WHERE status != ? AND start_at < ? AND end_at > ? AND id != ?
		ORDER BY start_at, id`
	rows, err := tx.QueryContext(ctx, query,
		string(calendar.StatusCancelled),
		end.UTC().Format(time.RFC3339Nano), start.UTC().Format(time.RFC3339Nano),
		excludeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list overlaps: %w", err)
	}
	defer rows.Close()

	var out []calendar.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes an event.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if n == 0 {
		return calendar.ErrNotFound
	}
	return nil
}

// Get returns a single event.
func (s *Store) Get(ctx context.Context, id string) (calendar.Event, error) {
	return scanEvent(s.db.QueryRowContext(ctx, selectByID, id))
}

// List returns matching events in chronological start order. Interval and
// status constraints are pushed into SQL; tag matching happens after decode.
func (s *Store) List(ctx context.Context, f calendar.Filter) ([]calendar.Event, error) {
	query := `SELECT id, title, description, start_at, end_at, location, tags, status, created_at, updated_at FROM events`
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if !f.From.IsZero() {
		where = append(where, "end_at > ?")
		args = append(args, f.From.UTC().Format(time.RFC3339Nano))
	}
	if !f.To.IsZero() {
		where = append(where, "start_at < ?")
		args = append(args, f.To.UTC().Format(time.RFC3339Nano))
	}
	for i, w := range where {
		if i == 0 {
			query += " WHERE " + w
		} else {
			query += " AND " + w
		}
	}
	query += " ORDER BY start_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []calendar.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		if f.Tag != "" && !hasTag(e.Tags, f.Tag) {
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const selectByID = `SELECT id, title, description, start_at, end_at, location, tags, status, created_at, updated_at FROM events WHERE id = ?`

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (calendar.Event, error) {
	var (
		e                                    calendar.Event
		startAt, endAt, createdAt, updatedAt string
		tags, status                         string
	)
	err := row.Scan(&e.ID, &e.Title, &e.Description, &startAt, &endAt, &e.Location, &tags, &status, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return calendar.Event{}, calendar.ErrNotFound
	}
	if err != nil {
		return calendar.Event{}, fmt.Errorf("scan event: %w", err)
	}

	for dst, src := range map[*time.Time]string{
		&e.Start: startAt, &e.End: endAt, &e.CreatedAt: createdAt, &e.UpdatedAt: updatedAt,
	} {
		ts, err := time.Parse(time.RFC3339Nano, src)
		if err != nil {
			return calendar.Event{}, fmt.Errorf("parse stored time %q: %w", src, err)
		}
		*dst = ts
	}
	if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
		return calendar.Event{}, fmt.Errorf("decode tags: %w", err)
	}
	e.Status = calendar.Status(status)
	return e, nil
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
