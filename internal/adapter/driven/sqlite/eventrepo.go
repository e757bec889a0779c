package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/organized-thot/brodev3-antidetect/internal/domain/model"
	"github.com/organized-thot/brodev3-antidetect/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.EventStore = (*EventRepo)(nil)

// defaultEventLimit applies when ListRecent is called with a non-positive limit.
const defaultEventLimit = 50

// EventRepo is the SQLite implementation of the EventStore port interface.
type EventRepo struct {
	db *DB
}

// NewEventRepo creates a new EventRepo backed by the given DB.
func NewEventRepo(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

// Record appends an event to the journal.
func (r *EventRepo) Record(ctx context.Context, event model.Event) error {
	const query = `INSERT INTO profile_events (profile_name, action, detail) VALUES (?, ?, ?)`
	_, err := r.db.Writer.ExecContext(ctx, query, event.ProfileName, string(event.Action), event.Detail)
	if err != nil {
		return fmt.Errorf("record %s event for %q: %w", event.Action, event.ProfileName, err)
	}
	return nil
}

// ListRecent returns up to limit events ordered newest first.
func (r *EventRepo) ListRecent(ctx context.Context, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = defaultEventLimit
	}

	const query = `
		SELECT id, profile_name, action, detail, created_at
		FROM profile_events
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListByProfile returns every event of one profile ordered newest first.
func (r *EventRepo) ListByProfile(ctx context.Context, name string) ([]model.Event, error) {
	const query = `
		SELECT id, profile_name, action, detail, created_at
		FROM profile_events
		WHERE profile_name = ?
		ORDER BY id DESC
	`
	rows, err := r.db.Reader.QueryContext(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("list events for %q: %w", name, err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]model.Event, error) {
	events := []model.Event{}
	for rows.Next() {
		var e model.Event
		var action, createdAt string
		if err := rows.Scan(&e.ID, &e.ProfileName, &action, &e.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Action = model.EventAction(action)

		var err error
		e.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at for event %d: %w", e.ID, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// parseTime attempts to parse a time string in common SQLite formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
