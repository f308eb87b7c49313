package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"resourcehub/internal/auth"
	bookingserrors "resourcehub/internal/bookings/errors"
	"resourcehub/internal/bookings/repository"
	"resourcehub/internal/bookings/validator"
	"resourcehub/internal/catalog"
	"resourcehub/internal/events"
	"resourcehub/pkg/config"
	mongodb "resourcehub/pkg/db/mongo"
	apperrors "resourcehub/pkg/errors"
	"resourcehub/pkg/model"
	"resourcehub/pkg/sanitizer"
)

// activeStatuses are the statuses that block a slot in availability views.
var activeStatuses = []model.BookingStatus{model.StatusPending, model.StatusApproved}

// approvedOnly is the conflict set for mutating operations. Pending requests
// may overlap each other; the owner arbitrates between them at approval time,
// and the approval re-check rejects whichever competitor comes second.
var approvedOnly = []model.BookingStatus{model.StatusApproved}

// WaitlistReleaser hands a freed slot to the waitlist queue. Implemented by
// the waitlist service; consulted after a cancellation commits.
type WaitlistReleaser interface {
	ReleaseSlot(ctx context.Context, resourceID string, slotStart, slotEnd time.Time) (*model.WaitlistEntry, error)
}

// WaitlistConverter finalizes a notified waitlist entry once its owner's
// follow-up booking succeeds.
type WaitlistConverter interface {
	MarkConverted(ctx context.Context, entryID, requesterID string) error
}

type BookingService interface {
	// Create books [start, end) on a resource, failing with a conflict error
	// that names the blocking booking when the slot is taken. A non-empty
	// waitlistEntryID marks that entry converted after the booking commits.
	Create(ctx context.Context, booking *model.Booking, waitlistEntryID string) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	ListByResource(ctx context.Context, resourceID string, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, int64, error)
	ListByRequester(ctx context.Context, requesterID string, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, int64, error)
	Approve(ctx context.Context, actor model.Actor, id string) (*model.Booking, error)
	Reject(ctx context.Context, actor model.Actor, id, reason string) (*model.Booking, error)
	Cancel(ctx context.Context, actor model.Actor, id string) (*model.Booking, error)
	// HasConflict reports whether any active booking overlaps [start, end)
	// on the resource, optionally excluding one booking by id.
	HasConflict(ctx context.Context, resourceID string, start, end time.Time, excludeID string) (bool, error)
	// CompletePast sweeps approved bookings whose end time has passed into
	// the completed status. Safe to call repeatedly.
	CompletePast(ctx context.Context) (int64, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	catalog   catalog.ResourceCatalog
	gate      auth.Gate
	locks     mongodb.LockManager
	validator *validator.BookingValidator
	emitter   events.Emitter
	releaser  WaitlistReleaser
	converter WaitlistConverter
	cfg       *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	resourceCatalog catalog.ResourceCatalog,
	gate auth.Gate,
	locks mongodb.LockManager,
	validator *validator.BookingValidator,
	emitter events.Emitter,
	releaser WaitlistReleaser,
	converter WaitlistConverter,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		catalog:   resourceCatalog,
		gate:      gate,
		locks:     locks,
		validator: validator,
		emitter:   emitter,
		releaser:  releaser,
		converter: converter,
		cfg:       cfg,
	}
}

func (s *bookingService) Create(ctx context.Context, booking *model.Booking, waitlistEntryID string) error {
	s.sanitize(booking)

	resource, err := s.getResource(ctx, booking.ResourceID)
	if err != nil {
		return err
	}

	booking.Status = initialStatus(resource)

	if err := s.validate(booking); err != nil {
		return err
	}

	if err := s.acquireResourceLock(ctx, booking.ResourceID); err != nil {
		return err
	}
	defer s.releaseResourceLock(ctx, booking.ResourceID)

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx context.Context) error {
		if err := s.verifyNoConflict(sessCtx, booking.ResourceID, booking.Start, booking.End, ""); err != nil {
			return err
		}
		if err := s.repo.Create(sessCtx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create booking",
			"resource_id", booking.ResourceID,
			"requester_id", booking.RequesterID,
			"error", err,
		)
		return err
	}

	if waitlistEntryID != "" && s.converter != nil {
		if convErr := s.converter.MarkConverted(ctx, waitlistEntryID, booking.RequesterID); convErr != nil {
			s.cfg.Log.Warn("Failed to mark waitlist entry converted",
				"entry_id", waitlistEntryID,
				"booking_id", booking.ID,
				"error", convErr,
			)
		}
	}

	s.emitter.Emit(events.NewBookingCreated(booking))

	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"resource_id", booking.ResourceID,
		"status", booking.Status,
		"start", booking.Start,
		"end", booking.End,
	)
	return nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	return s.findBooking(ctx, id)
}

func (s *bookingService) ListByResource(ctx context.Context, resourceID string, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, int64, error) {
	if resourceID == "" {
		return nil, 0, apperrors.InvalidInput("Resource ID cannot be empty")
	}
	if status != "" && !status.Valid() {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("Unknown booking status: %s", status))
	}

	return s.listParallel(ctx,
		func() ([]*model.Booking, error) {
			return s.repo.FindByResource(ctx, resourceID, status, limit, offset)
		},
		func() (int64, error) {
			return s.repo.CountByResource(ctx, resourceID, status)
		},
	)
}

func (s *bookingService) ListByRequester(ctx context.Context, requesterID string, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, int64, error) {
	if requesterID == "" {
		return nil, 0, apperrors.InvalidInput("Requester ID cannot be empty")
	}
	if status != "" && !status.Valid() {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("Unknown booking status: %s", status))
	}

	return s.listParallel(ctx,
		func() ([]*model.Booking, error) {
			return s.repo.FindByRequester(ctx, requesterID, status, limit, offset)
		},
		func() (int64, error) {
			return s.repo.CountByRequester(ctx, requesterID, status)
		},
	)
}

func (s *bookingService) Approve(ctx context.Context, actor model.Actor, id string) (*model.Booking, error) {
	booking, resource, err := s.loadBookingWithResource(ctx, id)
	if err != nil {
		return nil, err
	}

	if !s.gate.CanManageResource(actor, resource) {
		return nil, apperrors.Forbidden("Only the resource owner or an admin can approve bookings")
	}
	if !booking.Status.CanTransitionTo(model.StatusApproved) {
		return nil, apperrors.InvalidState(fmt.Sprintf("Cannot approve a booking in status %q", booking.Status))
	}

	if err := s.acquireResourceLock(ctx, booking.ResourceID); err != nil {
		return nil, err
	}
	defer s.releaseResourceLock(ctx, booking.ResourceID)

	var approved *model.Booking
	err = s.repo.ExecuteTransaction(ctx, func(sessCtx context.Context) error {
		// A competing pending request may have been approved since this
		// booking was created.
		if err := s.verifyNoConflict(sessCtx, booking.ResourceID, booking.Start, booking.End, id); err != nil {
			return err
		}
		updated, err := s.repo.UpdateStatus(sessCtx, id, model.StatusPending, model.StatusApproved)
		if err != nil {
			return s.mapTransitionError(err, id, "approve")
		}
		approved = updated
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to approve booking", "id", id, "error", err)
		return nil, err
	}

	s.emitter.Emit(events.NewBookingApproved(approved))

	s.cfg.Log.Info("Booking approved successfully", "id", id, "resource_id", approved.ResourceID)
	return approved, nil
}

func (s *bookingService) Reject(ctx context.Context, actor model.Actor, id, reason string) (*model.Booking, error) {
	booking, resource, err := s.loadBookingWithResource(ctx, id)
	if err != nil {
		return nil, err
	}

	if !s.gate.CanManageResource(actor, resource) {
		return nil, apperrors.Forbidden("Only the resource owner or an admin can reject bookings")
	}
	if !booking.Status.CanTransitionTo(model.StatusRejected) {
		return nil, apperrors.InvalidState(fmt.Sprintf("Cannot reject a booking in status %q", booking.Status))
	}

	if err := s.acquireResourceLock(ctx, booking.ResourceID); err != nil {
		return nil, err
	}
	defer s.releaseResourceLock(ctx, booking.ResourceID)

	rejected, err := s.repo.UpdateStatus(ctx, id, model.StatusPending, model.StatusRejected)
	if err != nil {
		mapped := s.mapTransitionError(err, id, "reject")
		s.cfg.Log.Error("Failed to reject booking", "id", id, "error", mapped)
		return nil, mapped
	}

	s.emitter.Emit(events.NewBookingRejected(rejected, sanitizer.NormalizeFreeText(reason)))

	s.cfg.Log.Info("Booking rejected successfully", "id", id, "resource_id", rejected.ResourceID)
	return rejected, nil
}

func (s *bookingService) Cancel(ctx context.Context, actor model.Actor, id string) (*model.Booking, error) {
	booking, resource, err := s.loadBookingWithResource(ctx, id)
	if err != nil {
		return nil, err
	}

	if !s.gate.CanManageBooking(actor, booking, resource) {
		return nil, apperrors.Forbidden("Only the requester, resource owner or an admin can cancel a booking")
	}
	if booking.Status == model.StatusCancelled {
		return nil, apperrors.InvalidState("Booking already cancelled")
	}
	if !booking.Status.CanTransitionTo(model.StatusCancelled) {
		return nil, apperrors.InvalidState(fmt.Sprintf("Cannot cancel a booking in status %q", booking.Status))
	}

	if err := s.acquireResourceLock(ctx, booking.ResourceID); err != nil {
		return nil, err
	}
	defer s.releaseResourceLock(ctx, booking.ResourceID)

	cancelled, err := s.repo.UpdateStatus(ctx, id, booking.Status, model.StatusCancelled)
	if err != nil {
		mapped := s.mapTransitionError(err, id, "cancel")
		s.cfg.Log.Error("Failed to cancel booking", "id", id, "error", mapped)
		return nil, mapped
	}

	s.emitter.Emit(events.NewBookingCancelled(cancelled))

	// The freed interval may unblock someone waiting for this exact slot.
	// Offer delivery is the waitlist queue's business; a failure here never
	// unwinds the cancellation.
	if s.releaser != nil {
		if _, relErr := s.releaser.ReleaseSlot(ctx, cancelled.ResourceID, cancelled.Start, cancelled.End); relErr != nil {
			s.cfg.Log.Warn("Failed to release freed slot to waitlist",
				"booking_id", id,
				"resource_id", cancelled.ResourceID,
				"error", relErr,
			)
		}
	}

	s.cfg.Log.Info("Booking cancelled successfully", "id", id, "resource_id", cancelled.ResourceID)
	return cancelled, nil
}

func (s *bookingService) HasConflict(ctx context.Context, resourceID string, start, end time.Time, excludeID string) (bool, error) {
	if resourceID == "" {
		return false, apperrors.InvalidInput("Resource ID cannot be empty")
	}
	if !end.After(start) {
		return false, apperrors.Validation("Invalid interval", map[string]any{
			"error": "end must be after start",
		})
	}

	overlapping, err := s.repo.FindOverlapping(ctx, resourceID, start, end, activeStatuses, excludeID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return false, apperrors.InvalidInput("Invalid booking ID format")
		}
		return false, apperrors.Internal("Failed to check availability", err)
	}
	return len(overlapping) > 0, nil
}

func (s *bookingService) CompletePast(ctx context.Context) (int64, error) {
	completed, err := s.repo.CompletePast(ctx, time.Now().UTC())
	if err != nil {
		s.cfg.Log.Error("Failed to complete past bookings", "error", err)
		return 0, apperrors.Internal("Failed to complete past bookings", err)
	}
	if completed > 0 {
		s.cfg.Log.Info("Completed past bookings", "count", completed)
	}
	return completed, nil
}

// --- Helpers ---

func initialStatus(resource *model.Resource) model.BookingStatus {
	if resource.RequiresApproval {
		return model.StatusPending
	}
	return model.StatusApproved
}

func (s *bookingService) sanitize(b *model.Booking) {
	b.Note = sanitizer.NormalizeFreeText(b.Note)
}

func (s *bookingService) validate(booking *model.Booking) error {
	if err := s.validator.Validate(booking); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

func (s *bookingService) getResource(ctx context.Context, resourceID string) (*model.Resource, error) {
	if resourceID == "" {
		return nil, apperrors.InvalidInput("Resource ID cannot be empty")
	}
	resource, err := s.catalog.GetResource(ctx, resourceID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Resource", resourceID)
		}
		if errors.Is(err, catalog.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid resource ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve resource", err)
	}
	return resource, nil
}

func (s *bookingService) findBooking(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	return booking, nil
}

func (s *bookingService) loadBookingWithResource(ctx context.Context, id string) (*model.Booking, *model.Resource, error) {
	if id == "" {
		return nil, nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	booking, err := s.findBooking(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	resource, err := s.getResource(ctx, booking.ResourceID)
	if err != nil {
		return nil, nil, err
	}
	return booking, resource, nil
}

// verifyNoConflict enforces the no-double-booking rule: the conflict set is
// the approved bookings overlapping [start, end), excluding excludeID. Must
// run inside the per-resource lock so the check cannot go stale before the
// accompanying write commits.
func (s *bookingService) verifyNoConflict(ctx context.Context, resourceID string, start, end time.Time, excludeID string) error {
	overlapping, err := s.repo.FindOverlapping(ctx, resourceID, start, end, approvedOnly, excludeID)
	if err != nil {
		return apperrors.Internal("Failed to check existing bookings", err)
	}
	if len(overlapping) == 0 {
		return nil
	}

	blocking := overlapping[0]
	return apperrors.ConflictWithBooking(fmt.Sprintf(
		"Requested time overlaps an existing booking (%s - %s)",
		blocking.Start.Format(time.RFC3339),
		blocking.End.Format(time.RFC3339),
	), blocking.ID)
}

func (s *bookingService) mapTransitionError(err error, id, action string) error {
	switch {
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid booking ID format")
	case errors.Is(err, bookingserrors.ErrStaleStatus):
		return apperrors.InvalidState(fmt.Sprintf("Booking status changed concurrently; cannot %s", action))
	case apperrors.IsAppError(err):
		return err
	default:
		return apperrors.Internal(fmt.Sprintf("Failed to %s booking", action), err)
	}
}

func resourceLockKey(resourceID string) string {
	return "resource_" + resourceID
}

func (s *bookingService) acquireResourceLock(ctx context.Context, resourceID string) error {
	err := s.locks.Acquire(ctx, resourceLockKey(resourceID), s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, mongodb.ErrLockHeld) {
			return apperrors.Conflict("This resource is currently being booked by another request. Please try again.")
		}
		return apperrors.Internal("Failed to acquire booking lock", err)
	}
	return nil
}

func (s *bookingService) releaseResourceLock(ctx context.Context, resourceID string) {
	if err := s.locks.Release(ctx, resourceLockKey(resourceID)); err != nil {
		s.cfg.Log.Warn("Failed to release booking lock", "resource_id", resourceID, "error", err)
	}
}

func (s *bookingService) listParallel(ctx context.Context, find func() ([]*model.Booking, error), count func() (int64, error)) ([]*model.Booking, int64, error) {
	var (
		bookings []*model.Booking
		total    int64
		errFind  error
		errCount error
		wg       sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		bookings, errFind = find()
	}()
	go func() {
		defer wg.Done()
		total, errCount = count()
	}()
	wg.Wait()

	if errFind != nil {
		s.cfg.Log.Error("Failed to list bookings", "error", errFind)
		return nil, 0, apperrors.Internal("Failed to retrieve bookings", errFind)
	}
	if errCount != nil {
		s.cfg.Log.Error("Failed to count bookings", "error", errCount)
		return nil, 0, apperrors.Internal("Failed to count bookings", errCount)
	}

	return bookings, total, nil
}
