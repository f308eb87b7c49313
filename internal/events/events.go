package events

import (
	"time"

	"resourcehub/pkg/model"
)

// Event types consumed by the notification gateway.
const (
	TypeBookingCreated      = "booking.created"
	TypeBookingApproved     = "booking.approved"
	TypeBookingRejected     = "booking.rejected"
	TypeBookingCancelled    = "booking.cancelled"
	TypeWaitlistSlotOffered = "waitlist.slot_offered"
)

// Event is a lifecycle fact emitted after a state mutation commits.
// Key is the partition key (the resource id) so events for one resource
// stay ordered.
type Event struct {
	Type    string
	Key     string
	Payload any
}

type BookingCreated struct {
	Booking *model.Booking      `json:"booking"`
	Status  model.BookingStatus `json:"status"`
}

type BookingApproved struct {
	Booking *model.Booking `json:"booking"`
}

type BookingRejected struct {
	Booking *model.Booking `json:"booking"`
	Reason  string         `json:"reason,omitempty"`
}

type BookingCancelled struct {
	Booking *model.Booking `json:"booking"`
}

type WaitlistSlotOffered struct {
	Entry     *model.WaitlistEntry `json:"entry"`
	SlotStart time.Time            `json:"slot_start"`
	SlotEnd   time.Time            `json:"slot_end"`
}

func NewBookingCreated(b *model.Booking) Event {
	return Event{
		Type:    TypeBookingCreated,
		Key:     b.ResourceID,
		Payload: BookingCreated{Booking: b, Status: b.Status},
	}
}

func NewBookingApproved(b *model.Booking) Event {
	return Event{
		Type:    TypeBookingApproved,
		Key:     b.ResourceID,
		Payload: BookingApproved{Booking: b},
	}
}

func NewBookingRejected(b *model.Booking, reason string) Event {
	return Event{
		Type:    TypeBookingRejected,
		Key:     b.ResourceID,
		Payload: BookingRejected{Booking: b, Reason: reason},
	}
}

func NewBookingCancelled(b *model.Booking) Event {
	return Event{
		Type:    TypeBookingCancelled,
		Key:     b.ResourceID,
		Payload: BookingCancelled{Booking: b},
	}
}

func NewWaitlistSlotOffered(e *model.WaitlistEntry) Event {
	return Event{
		Type:    TypeWaitlistSlotOffered,
		Key:     e.ResourceID,
		Payload: WaitlistSlotOffered{Entry: e, SlotStart: e.SlotStart, SlotEnd: e.SlotEnd},
	}
}
