package driven

import (
	"context"

	"github.com/organized-thot/brodev3-antidetect/internal/domain/model"
)

// EventStore defines the driven port for the local profile journal.
type EventStore interface {
	// Record appends an event. CreatedAt is assigned by the store.
	Record(ctx context.Context, event model.Event) error
	// ListRecent returns up to limit events, newest first.
	ListRecent(ctx context.Context, limit int) ([]model.Event, error)
	// ListByProfile returns all events for one profile, newest first.
	ListByProfile(ctx context.Context, name string) ([]model.Event, error)
}
