package validator

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"resourcehub/pkg/logger"
	"resourcehub/pkg/model"
)

func newTestValidator() *BookingValidator {
	log := logger.New(logger.Config{Level: logger.ERROR, Format: logger.TEXT, Output: io.Discard})
	return NewBookingValidator(log)
}

func validBooking() *model.Booking {
	start := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	return &model.Booking{
		ResourceID:  primitive.NewObjectID().Hex(),
		RequesterID: "user-1",
		Start:       start,
		End:         start.Add(time.Hour),
		Status:      model.StatusPending,
		Note:        "projector needed",
	}
}

func TestValidateAcceptsWellFormedBooking(t *testing.T) {
	v := newTestValidator()
	assert.NoError(t, v.Validate(validBooking()))
}

func TestValidateRejectsBadBookings(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name   string
		mutate func(b *model.Booking)
	}{
		{"missing resource", func(b *model.Booking) { b.ResourceID = "" }},
		{"malformed resource id", func(b *model.Booking) { b.ResourceID = "not-an-object-id" }},
		{"missing requester", func(b *model.Booking) { b.RequesterID = "" }},
		{"zero start", func(b *model.Booking) { b.Start = time.Time{} }},
		{"end before start", func(b *model.Booking) { b.End = b.Start.Add(-time.Minute) }},
		{"end equals start", func(b *model.Booking) { b.End = b.Start }},
		{"unknown status", func(b *model.Booking) { b.Status = "postponed" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBooking()
			tt.mutate(b)
			assert.Error(t, v.Validate(b))
		})
	}
}

func TestValidateAllowsEmptyOptionalFields(t *testing.T) {
	v := newTestValidator()

	b := validBooking()
	b.Status = ""
	b.Note = ""
	assert.NoError(t, v.Validate(b))
}
