package model

import "time"

type WaitlistStatus string

const (
	WaitlistWaiting   WaitlistStatus = "waiting"
	WaitlistNotified  WaitlistStatus = "notified"
	WaitlistConverted WaitlistStatus = "converted"
	WaitlistExpired   WaitlistStatus = "expired"
)

func (s WaitlistStatus) Valid() bool {
	switch s {
	case WaitlistWaiting, WaitlistNotified, WaitlistConverted, WaitlistExpired:
		return true
	}
	return false
}

// WaitlistEntry records a user waiting for an exact slot on a resource.
// It shadows an interval that currently has no room and stays distinct from
// a Booking until the user converts it through a fresh booking request.
type WaitlistEntry struct {
	ID          string         `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	ResourceID  string         `json:"resource_id" bson:"resource_id" validate:"required,mongodb"`
	RequesterID string         `json:"requester_id" bson:"requester_id" validate:"required"`
	SlotStart   time.Time      `json:"slot_start" bson:"slot_start" validate:"required"`
	SlotEnd     time.Time      `json:"slot_end" bson:"slot_end" validate:"required,gtfield=SlotStart"`
	Status      WaitlistStatus `json:"status" bson:"status" validate:"omitempty,oneof=waiting notified converted expired"`
	Priority    int            `json:"priority" bson:"priority"`
	CreatedAt   time.Time      `json:"created_at" bson:"created_at"`
	NotifiedAt  *time.Time     `json:"notified_at,omitempty" bson:"notified_at,omitempty"`
}

// SortsBefore reports whether e is served before other under the queue
// ordering key (priority DESC, created_at ASC).
func (e *WaitlistEntry) SortsBefore(other *WaitlistEntry) bool {
	if e.Priority != other.Priority {
		return e.Priority > other.Priority
	}
	return e.CreatedAt.Before(other.CreatedAt)
}
