package auth

import (
	"testing"

	"resourcehub/pkg/model"
)

func TestOwnershipGate(t *testing.T) {
	resource := &model.Resource{ID: "res1", OwnerID: "owner1"}
	booking := &model.Booking{ID: "bk1", ResourceID: "res1", RequesterID: "requester1"}

	admin := model.Actor{ID: "root", Role: model.RoleAdmin}
	owner := model.Actor{ID: "owner1", Role: model.RoleMember}
	requester := model.Actor{ID: "requester1", Role: model.RoleMember}
	stranger := model.Actor{ID: "someone", Role: model.RoleMember}
	anonymous := model.Actor{}

	gate := NewOwnershipGate()

	tests := []struct {
		name            string
		actor           model.Actor
		manageResource  bool
		manageBooking   bool
	}{
		{"admin can do everything", admin, true, true},
		{"owner manages own resource and its bookings", owner, true, true},
		{"requester cannot manage resource but can manage own booking", requester, false, true},
		{"stranger can do nothing", stranger, false, false},
		{"anonymous can do nothing", anonymous, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gate.CanManageResource(tt.actor, resource); got != tt.manageResource {
				t.Errorf("CanManageResource = %v, expected %v", got, tt.manageResource)
			}
			if got := gate.CanManageBooking(tt.actor, booking, resource); got != tt.manageBooking {
				t.Errorf("CanManageBooking = %v, expected %v", got, tt.manageBooking)
			}
		})
	}
}

func TestOwnershipGate_NilTargets(t *testing.T) {
	gate := NewOwnershipGate()
	member := model.Actor{ID: "m1", Role: model.RoleMember}

	if gate.CanManageResource(member, nil) {
		t.Error("member should not manage a nil resource")
	}
	if gate.CanManageBooking(member, nil, nil) {
		t.Error("member should not manage a nil booking")
	}
	if !gate.CanManageResource(model.Actor{ID: "a", Role: model.RoleAdmin}, nil) {
		t.Error("admin decisions do not depend on the target")
	}
}
