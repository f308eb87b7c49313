package model

import (
	"testing"
	"time"
)

func TestOverlaps(t *testing.T) {
	base := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	at := func(h int) time.Time { return base.Add(time.Duration(h) * time.Hour) }

	tests := []struct {
		name                           string
		startA, endA, startB, endB     time.Time
		expected                       bool
	}{
		{"identical intervals", at(0), at(2), at(0), at(2), true},
		{"partial overlap", at(0), at(2), at(1), at(3), true},
		{"contained interval", at(0), at(4), at(1), at(2), true},
		{"containing interval", at(1), at(2), at(0), at(4), true},
		{"adjacent, A ends when B starts", at(0), at(2), at(2), at(3), false},
		{"adjacent, B ends when A starts", at(2), at(3), at(0), at(2), false},
		{"disjoint", at(0), at(1), at(2), at(3), false},
		{"same start different end", at(0), at(1), at(0), at(3), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.startA, tt.endA, tt.startB, tt.endB); got != tt.expected {
				t.Errorf("Overlaps() = %v, expected %v", got, tt.expected)
			}
			// The predicate is symmetric in its two intervals.
			if got := Overlaps(tt.startB, tt.endB, tt.startA, tt.endA); got != tt.expected {
				t.Errorf("Overlaps() not symmetric for %s", tt.name)
			}
			b := &Booking{Start: tt.startA, End: tt.endA}
			if got := b.OverlapsInterval(tt.startB, tt.endB); got != tt.expected {
				t.Errorf("OverlapsInterval() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestBookingStatus_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		from    BookingStatus
		to      BookingStatus
		allowed bool
	}{
		{"pending to approved", StatusPending, StatusApproved, true},
		{"pending to rejected", StatusPending, StatusRejected, true},
		{"pending to cancelled", StatusPending, StatusCancelled, true},
		{"pending to completed", StatusPending, StatusCompleted, false},
		{"approved to cancelled", StatusApproved, StatusCancelled, true},
		{"approved to completed", StatusApproved, StatusCompleted, true},
		{"approved to rejected", StatusApproved, StatusRejected, false},
		{"approved to pending", StatusApproved, StatusPending, false},
		{"rejected is terminal", StatusRejected, StatusCancelled, false},
		{"cancelled is terminal", StatusCancelled, StatusApproved, false},
		{"cancelled cannot repeat", StatusCancelled, StatusCancelled, false},
		{"completed is terminal", StatusCompleted, StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, expected %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestBookingStatus_Classification(t *testing.T) {
	for _, s := range []BookingStatus{StatusPending, StatusApproved} {
		if !s.IsActive() {
			t.Errorf("%s should be active", s)
		}
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}

	for _, s := range []BookingStatus{StatusRejected, StatusCancelled, StatusCompleted} {
		if s.IsActive() {
			t.Errorf("%s should not be active", s)
		}
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	if BookingStatus("confirmed").Valid() {
		t.Error("unknown status should not be valid")
	}
}

func TestBooking_IsPast(t *testing.T) {
	end := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	b := &Booking{Start: end.Add(-2 * time.Hour), End: end}

	if b.IsPast(end.Add(-time.Minute)) {
		t.Error("booking still running should not be past")
	}
	if !b.IsPast(end) {
		t.Error("booking ending exactly now should be past (half-open interval)")
	}
	if !b.IsPast(end.Add(time.Hour)) {
		t.Error("booking ended an hour ago should be past")
	}
}
