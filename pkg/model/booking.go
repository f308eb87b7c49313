package model

import "time"

// BookingStatus is the closed set of lifecycle states for a booking.
// Transition legality is enforced centrally through CanTransitionTo.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusApproved  BookingStatus = "approved"
	StatusRejected  BookingStatus = "rejected"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
)

// bookingTransitions is the single source of truth for legal status moves.
// Rejected, cancelled and completed are terminal: they have no outgoing edges.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved: {StatusCancelled, StatusCompleted},
}

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// IsActive reports whether the booking counts toward conflict checks.
func (s BookingStatus) IsActive() bool {
	return s == StatusPending || s == StatusApproved
}

func (s BookingStatus) IsTerminal() bool {
	return s.Valid() && len(bookingTransitions[s]) == 0
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Booking struct {
	ID          string        `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	ResourceID  string        `json:"resource_id" bson:"resource_id" validate:"required,mongodb"`
	RequesterID string        `json:"requester_id" bson:"requester_id" validate:"required"`
	Start       time.Time     `json:"start_time" bson:"start_time" validate:"required"`
	End         time.Time     `json:"end_time" bson:"end_time" validate:"required,gtfield=Start"`
	Status      BookingStatus `json:"status" bson:"status" validate:"omitempty,oneof=pending approved rejected cancelled completed"`
	Note        string        `json:"note,omitempty" bson:"note,omitempty" validate:"omitempty,max=500"`
	CreatedAt   time.Time     `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt   time.Time     `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

// IsPast reports whether the booking's interval has fully elapsed.
// An approved booking that is past is eligible for completion.
func (b *Booking) IsPast(now time.Time) bool {
	return !now.Before(b.End)
}

// OverlapsInterval reports whether the booking's interval intersects [start, end).
func (b *Booking) OverlapsInterval(start, end time.Time) bool {
	return Overlaps(b.Start, b.End, start, end)
}
