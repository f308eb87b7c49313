package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"resourcehub/internal/catalog"
	"resourcehub/internal/events"
	waitlisterrors "resourcehub/internal/waitlist/errors"
	"resourcehub/internal/waitlist/repository"
	"resourcehub/internal/waitlist/validator"
	"resourcehub/pkg/config"
	mongodb "resourcehub/pkg/db/mongo"
	apperrors "resourcehub/pkg/errors"
	"resourcehub/pkg/model"
)

type WaitlistService interface {
	// Join enqueues the requester for an exact slot. At most one waiting
	// entry may exist per (resource, requester, slot); a second attempt
	// fails with a duplicate error.
	Join(ctx context.Context, entry *model.WaitlistEntry) error
	// Position returns the 1-indexed queue position of a waiting entry
	// under the (priority DESC, created_at ASC) ordering.
	Position(ctx context.Context, entryID string) (int, error)
	// CountWaiting reports how many entries are waiting for an exact slot.
	CountWaiting(ctx context.Context, resourceID string, slotStart, slotEnd time.Time) (int64, error)
	// Leave removes the requester's own waiting entry. Idempotent: returns
	// false when there is nothing to remove.
	Leave(ctx context.Context, entryID, requesterID string) (bool, error)
	// ReleaseSlot offers a freed slot to the best-ordered waiting entry:
	// the entry becomes notified and is returned. Returns nil when nobody
	// is waiting. Conversion to a booking stays with the notified user.
	ReleaseSlot(ctx context.Context, resourceID string, slotStart, slotEnd time.Time) (*model.WaitlistEntry, error)
	// MarkConverted finalizes the requester's entry after their follow-up
	// booking succeeded.
	MarkConverted(ctx context.Context, entryID, requesterID string) error
	ListByRequester(ctx context.Context, requesterID string, limit int, offset int64) ([]*model.WaitlistEntry, int64, error)
	// ExpireStale sweeps entries untouched for longer than the configured
	// expiry age. Idempotent.
	ExpireStale(ctx context.Context) (int64, error)
}

type waitlistService struct {
	repo      repository.WaitlistRepository
	catalog   catalog.ResourceCatalog
	locks     mongodb.LockManager
	validator *validator.WaitlistValidator
	emitter   events.Emitter
	cfg       *config.Config
}

func NewWaitlistService(
	repo repository.WaitlistRepository,
	resourceCatalog catalog.ResourceCatalog,
	locks mongodb.LockManager,
	validator *validator.WaitlistValidator,
	emitter events.Emitter,
	cfg *config.Config,
) WaitlistService {
	return &waitlistService{
		repo:      repo,
		catalog:   resourceCatalog,
		locks:     locks,
		validator: validator,
		emitter:   emitter,
		cfg:       cfg,
	}
}

func (s *waitlistService) Join(ctx context.Context, entry *model.WaitlistEntry) error {
	entry.Status = model.WaitlistWaiting
	entry.Priority = s.cfg.ClampPriority(entry.Priority)
	entry.NotifiedAt = nil

	if err := s.validator.Validate(entry); err != nil {
		s.cfg.Log.Warn("Waitlist entry validation failed", "error", err)
		return apperrors.Validation("Waitlist entry validation failed", map[string]any{"error": err.Error()})
	}

	if _, err := s.getResource(ctx, entry.ResourceID); err != nil {
		return err
	}

	if err := s.acquireSlotLock(ctx, entry.ResourceID, entry.SlotStart); err != nil {
		return err
	}
	defer s.releaseSlotLock(ctx, entry.ResourceID, entry.SlotStart)

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx context.Context) error {
		_, err := s.repo.FindWaitingByRequester(sessCtx, entry.ResourceID, entry.RequesterID, entry.SlotStart, entry.SlotEnd)
		if err == nil {
			return apperrors.Duplicate("Already on the waitlist for this slot")
		}
		if !errors.Is(err, waitlisterrors.ErrNotFound) {
			return apperrors.Internal("Failed to check existing waitlist entries", err)
		}

		if err := s.repo.Create(sessCtx, entry); err != nil {
			return apperrors.Internal("Failed to create waitlist entry", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to join waitlist",
			"resource_id", entry.ResourceID,
			"requester_id", entry.RequesterID,
			"error", err,
		)
		return err
	}

	s.cfg.Log.Info("Joined waitlist",
		"id", entry.ID,
		"resource_id", entry.ResourceID,
		"slot_start", entry.SlotStart,
		"priority", entry.Priority,
	)
	return nil
}

func (s *waitlistService) Position(ctx context.Context, entryID string) (int, error) {
	entry, err := s.findEntry(ctx, entryID)
	if err != nil {
		return 0, err
	}
	if entry.Status != model.WaitlistWaiting {
		return 0, apperrors.InvalidState(fmt.Sprintf("Waitlist entry is %s, not waiting", entry.Status))
	}

	ahead, err := s.repo.CountAhead(ctx, entry)
	if err != nil {
		return 0, apperrors.Internal("Failed to compute waitlist position", err)
	}
	return int(ahead) + 1, nil
}

func (s *waitlistService) CountWaiting(ctx context.Context, resourceID string, slotStart, slotEnd time.Time) (int64, error) {
	if resourceID == "" {
		return 0, apperrors.InvalidInput("Resource ID cannot be empty")
	}
	if !slotEnd.After(slotStart) {
		return 0, apperrors.Validation("Invalid slot", map[string]any{
			"error": "slot end must be after slot start",
		})
	}

	count, err := s.repo.CountWaiting(ctx, resourceID, slotStart, slotEnd)
	if err != nil {
		return 0, apperrors.Internal("Failed to count waiting entries", err)
	}
	return count, nil
}

func (s *waitlistService) Leave(ctx context.Context, entryID, requesterID string) (bool, error) {
	if entryID == "" || requesterID == "" {
		return false, apperrors.InvalidInput("Entry ID and requester ID cannot be empty")
	}

	removed, err := s.repo.DeleteWaiting(ctx, entryID, requesterID)
	if err != nil {
		if errors.Is(err, waitlisterrors.ErrInvalidID) {
			return false, apperrors.InvalidInput("Invalid waitlist entry ID format")
		}
		return false, apperrors.Internal("Failed to leave waitlist", err)
	}

	if removed {
		s.cfg.Log.Info("Left waitlist", "id", entryID, "requester_id", requesterID)
	}
	return removed, nil
}

func (s *waitlistService) ReleaseSlot(ctx context.Context, resourceID string, slotStart, slotEnd time.Time) (*model.WaitlistEntry, error) {
	if err := s.acquireSlotLock(ctx, resourceID, slotStart); err != nil {
		return nil, err
	}
	defer s.releaseSlotLock(ctx, resourceID, slotStart)

	entry, err := s.repo.FirstWaiting(ctx, resourceID, slotStart, slotEnd)
	if err != nil {
		if errors.Is(err, waitlisterrors.ErrNotFound) {
			return nil, nil
		}
		return nil, apperrors.Internal("Failed to find waiting entry", err)
	}

	notified, err := s.repo.UpdateStatus(ctx, entry.ID, model.WaitlistWaiting, model.WaitlistNotified)
	if err != nil {
		// The head left or was notified between the read and the update.
		if errors.Is(err, waitlisterrors.ErrStaleStatus) || errors.Is(err, waitlisterrors.ErrNotFound) {
			return nil, nil
		}
		return nil, apperrors.Internal("Failed to notify waitlist entry", err)
	}

	s.emitter.Emit(events.NewWaitlistSlotOffered(notified))

	s.cfg.Log.Info("Waitlist slot offered",
		"id", notified.ID,
		"resource_id", resourceID,
		"requester_id", notified.RequesterID,
		"slot_start", slotStart,
	)
	return notified, nil
}

func (s *waitlistService) MarkConverted(ctx context.Context, entryID, requesterID string) error {
	entry, err := s.findEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.RequesterID != requesterID {
		return apperrors.Forbidden("Waitlist entry belongs to another requester")
	}
	if entry.Status != model.WaitlistWaiting && entry.Status != model.WaitlistNotified {
		return apperrors.InvalidState(fmt.Sprintf("Cannot convert a waitlist entry in status %q", entry.Status))
	}

	if _, err := s.repo.UpdateStatus(ctx, entryID, entry.Status, model.WaitlistConverted); err != nil {
		if errors.Is(err, waitlisterrors.ErrStaleStatus) {
			return apperrors.InvalidState("Waitlist entry status changed concurrently")
		}
		return apperrors.Internal("Failed to convert waitlist entry", err)
	}

	s.cfg.Log.Info("Waitlist entry converted", "id", entryID, "requester_id", requesterID)
	return nil
}

func (s *waitlistService) ListByRequester(ctx context.Context, requesterID string, limit int, offset int64) ([]*model.WaitlistEntry, int64, error) {
	if requesterID == "" {
		return nil, 0, apperrors.InvalidInput("Requester ID cannot be empty")
	}

	var (
		entries  []*model.WaitlistEntry
		total    int64
		errFind  error
		errCount error
		wg       sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		entries, errFind = s.repo.FindByRequester(ctx, requesterID, limit, offset)
	}()
	go func() {
		defer wg.Done()
		total, errCount = s.repo.CountByRequester(ctx, requesterID)
	}()
	wg.Wait()

	if errFind != nil {
		s.cfg.Log.Error("Failed to list waitlist entries", "error", errFind)
		return nil, 0, apperrors.Internal("Failed to retrieve waitlist entries", errFind)
	}
	if errCount != nil {
		s.cfg.Log.Error("Failed to count waitlist entries", "error", errCount)
		return nil, 0, apperrors.Internal("Failed to count waitlist entries", errCount)
	}

	return entries, total, nil
}

func (s *waitlistService) ExpireStale(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.WaitlistExpiryAge)

	expired, err := s.repo.ExpireStale(ctx, cutoff)
	if err != nil {
		s.cfg.Log.Error("Failed to expire stale waitlist entries", "error", err)
		return 0, apperrors.Internal("Failed to expire stale waitlist entries", err)
	}
	if expired > 0 {
		s.cfg.Log.Info("Expired stale waitlist entries", "count", expired, "cutoff", cutoff)
	}
	return expired, nil
}

// --- Helpers ---

func (s *waitlistService) findEntry(ctx context.Context, id string) (*model.WaitlistEntry, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Waitlist entry ID cannot be empty")
	}
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, waitlisterrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Waitlist entry", id)
		}
		if errors.Is(err, waitlisterrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid waitlist entry ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve waitlist entry", err)
	}
	return entry, nil
}

func (s *waitlistService) getResource(ctx context.Context, resourceID string) (*model.Resource, error) {
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

func slotLockKey(resourceID string, slotStart time.Time) string {
	return fmt.Sprintf("waitlist_%s_%d", resourceID, slotStart.Unix())
}

func (s *waitlistService) acquireSlotLock(ctx context.Context, resourceID string, slotStart time.Time) error {
	err := s.locks.Acquire(ctx, slotLockKey(resourceID, slotStart), s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, mongodb.ErrLockHeld) {
			return apperrors.Conflict("This waitlist is currently being modified by another request. Please try again.")
		}
		return apperrors.Internal("Failed to acquire waitlist lock", err)
	}
	return nil
}

func (s *waitlistService) releaseSlotLock(ctx context.Context, resourceID string, slotStart time.Time) {
	if err := s.locks.Release(ctx, slotLockKey(resourceID, slotStart)); err != nil {
		s.cfg.Log.Warn("Failed to release waitlist lock", "resource_id", resourceID, "error", err)
	}
}
