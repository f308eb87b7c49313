package auth

import "resourcehub/pkg/model"

// Gate answers "may this actor act here". The engine consumes the decisions;
// how identity and roles are established is upstream's problem.
type Gate interface {
	// CanManageResource covers owner-level operations: approving and
	// rejecting bookings against the resource.
	CanManageResource(actor model.Actor, resource *model.Resource) bool

	// CanManageBooking covers booking-level operations: cancellation may
	// come from the requester as well as the owner.
	CanManageBooking(actor model.Actor, booking *model.Booking, resource *model.Resource) bool
}

type ownershipGate struct{}

func NewOwnershipGate() Gate {
	return ownershipGate{}
}

func (ownershipGate) CanManageResource(actor model.Actor, resource *model.Resource) bool {
	if actor.IsAdmin() {
		return true
	}
	return resource != nil && actor.ID != "" && actor.ID == resource.OwnerID
}

func (g ownershipGate) CanManageBooking(actor model.Actor, booking *model.Booking, resource *model.Resource) bool {
	if g.CanManageResource(actor, resource) {
		return true
	}
	return booking != nil && actor.ID != "" && actor.ID == booking.RequesterID
}
