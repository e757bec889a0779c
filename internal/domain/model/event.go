package model

import "time"

// EventAction names a lifecycle step recorded in the local profile journal.
type EventAction string

const (
	EventCreated    EventAction = "created"
	EventUpdated    EventAction = "updated"
	EventDeleted    EventAction = "deleted"
	EventOpened     EventAction = "opened"
	EventClosed     EventAction = "closed"
	EventSelected   EventAction = "selected"
	EventDeselected EventAction = "deselected"
)

// Event is one entry of the local profile journal.
type Event struct {
	ID          int64
	ProfileName string
	Action      EventAction
	Detail      string
	CreatedAt   time.Time
}
