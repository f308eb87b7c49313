package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_ErrorString(t *testing.T) {
	plain := Conflict("slot already booked")
	if plain.Error() != "CONFLICT: slot already booked" {
		t.Errorf("unexpected error string: %s", plain.Error())
	}

	cause := fmt.Errorf("write failed")
	wrapped := Internal("could not save booking", cause)
	if !errors.Is(wrapped, cause) {
		t.Error("wrapped error should unwrap to its cause")
	}
}

func TestConflictWithBooking_Details(t *testing.T) {
	err := ConflictWithBooking("requested interval overlaps an active booking", "abc123")

	if err.Code != CodeConflict {
		t.Errorf("expected code %s, got %s", CodeConflict, err.Code)
	}
	if err.StatusCode() != http.StatusConflict {
		t.Errorf("expected status 409, got %d", err.StatusCode())
	}
	if err.Details["blocking_booking_id"] != "abc123" {
		t.Errorf("blocking booking id missing from details: %v", err.Details)
	}
}

func TestStatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected int
	}{
		{"validation", Validation("bad interval", nil), http.StatusUnprocessableEntity},
		{"invalid input", InvalidInput("empty id"), http.StatusBadRequest},
		{"forbidden", Forbidden("not your booking"), http.StatusForbidden},
		{"conflict", Conflict("overlap"), http.StatusConflict},
		{"duplicate", Duplicate("already waiting"), http.StatusConflict},
		{"invalid state", InvalidState("booking already cancelled"), http.StatusConflict},
		{"not found", NotFoundWithID("Booking", "x"), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.StatusCode() != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, tt.err.StatusCode())
			}
		})
	}
}

func TestAsAppError_WrapsUnknown(t *testing.T) {
	err := fmt.Errorf("boom")
	appErr := AsAppError(err)

	if appErr.Code != CodeInternal {
		t.Errorf("expected internal code, got %s", appErr.Code)
	}
	if !errors.Is(appErr, err) {
		t.Error("expected original error to be preserved as cause")
	}
}
