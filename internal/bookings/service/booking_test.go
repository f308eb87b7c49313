package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"resourcehub/internal/auth"
	bookingserrors "resourcehub/internal/bookings/errors"
	"resourcehub/internal/bookings/validator"
	"resourcehub/internal/catalog"
	"resourcehub/internal/events"
	"resourcehub/pkg/config"
	mongodb "resourcehub/pkg/db/mongo"
	apperrors "resourcehub/pkg/errors"
	"resourcehub/pkg/logger"
	"resourcehub/pkg/model"
)

// --- In-memory fakes ---

type fakeBookingRepo struct {
	mu       sync.Mutex
	bookings map[string]*model.Booking
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[string]*model.Booking)}
}

func (r *fakeBookingRepo) Create(_ context.Context, booking *model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if booking.ID == "" {
		booking.ID = primitive.NewObjectID().Hex()
	}
	now := time.Now().UTC()
	booking.CreatedAt = now
	booking.UpdatedAt = now

	stored := *booking
	r.bookings[booking.ID] = &stored
	return nil
}

func (r *fakeBookingRepo) FindByID(_ context.Context, id string) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	booking, ok := r.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	clone := *booking
	return &clone, nil
}

func (r *fakeBookingRepo) FindOverlapping(_ context.Context, resourceID string, start, end time.Time, statuses []model.BookingStatus, excludeID string) ([]*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matches []*model.Booking
	for _, b := range r.bookings {
		if b.ResourceID != resourceID || b.ID == excludeID {
			continue
		}
		if !statusIn(b.Status, statuses) {
			continue
		}
		if b.OverlapsInterval(start, end) {
			clone := *b
			matches = append(matches, &clone)
		}
	}
	return matches, nil
}

func (r *fakeBookingRepo) FindByResource(_ context.Context, resourceID string, status model.BookingStatus, _ int, _ int64) ([]*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matches []*model.Booking
	for _, b := range r.bookings {
		if b.ResourceID == resourceID && (status == "" || b.Status == status) {
			clone := *b
			matches = append(matches, &clone)
		}
	}
	return matches, nil
}

func (r *fakeBookingRepo) FindByRequester(_ context.Context, requesterID string, status model.BookingStatus, _ int, _ int64) ([]*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matches []*model.Booking
	for _, b := range r.bookings {
		if b.RequesterID == requesterID && (status == "" || b.Status == status) {
			clone := *b
			matches = append(matches, &clone)
		}
	}
	return matches, nil
}

func (r *fakeBookingRepo) CountByResource(ctx context.Context, resourceID string, status model.BookingStatus) (int64, error) {
	matches, _ := r.FindByResource(ctx, resourceID, status, 0, 0)
	return int64(len(matches)), nil
}

func (r *fakeBookingRepo) CountByRequester(ctx context.Context, requesterID string, status model.BookingStatus) (int64, error) {
	matches, _ := r.FindByRequester(ctx, requesterID, status, 0, 0)
	return int64(len(matches)), nil
}

func (r *fakeBookingRepo) UpdateStatus(_ context.Context, id string, from, to model.BookingStatus) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	booking, ok := r.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	if booking.Status != from {
		return nil, bookingserrors.ErrStaleStatus
	}
	booking.Status = to
	booking.UpdatedAt = time.Now().UTC()
	clone := *booking
	return &clone, nil
}

func (r *fakeBookingRepo) CompletePast(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var completed int64
	for _, b := range r.bookings {
		if b.Status == model.StatusApproved && !now.Before(b.End) {
			b.Status = model.StatusCompleted
			b.UpdatedAt = now
			completed++
		}
	}
	return completed, nil
}

func (r *fakeBookingRepo) ExecuteTransaction(ctx context.Context, fn mongodb.TransactionFunc) error {
	return fn(ctx)
}

func statusIn(status model.BookingStatus, statuses []model.BookingStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

type fakeLockManager struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLockManager() *fakeLockManager {
	return &fakeLockManager{held: make(map[string]bool)}
}

func (m *fakeLockManager) Acquire(_ context.Context, key string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] {
		return mongodb.ErrLockHeld
	}
	m.held[key] = true
	return nil
}

func (m *fakeLockManager) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, key)
	return nil
}

func (m *fakeLockManager) EnsureIndexes(_ context.Context) error { return nil }

type fakeCatalog struct {
	resources map[string]*model.Resource
}

func (c *fakeCatalog) GetResource(_ context.Context, id string) (*model.Resource, error) {
	resource, ok := c.resources[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return resource, nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (e *recordingEmitter) Emit(evt events.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
}

func (e *recordingEmitter) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var types []string
	for _, evt := range e.events {
		types = append(types, evt.Type)
	}
	return types
}

type releasedSlot struct {
	resourceID string
	start      time.Time
	end        time.Time
}

type fakeReleaser struct {
	mu       sync.Mutex
	released []releasedSlot
}

func (f *fakeReleaser) ReleaseSlot(_ context.Context, resourceID string, start, end time.Time) (*model.WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, releasedSlot{resourceID: resourceID, start: start, end: end})
	return nil, nil
}

type fakeConverter struct {
	mu        sync.Mutex
	converted []string
}

func (f *fakeConverter) MarkConverted(_ context.Context, entryID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.converted = append(f.converted, entryID)
	return nil
}

// --- Harness ---

type testEnv struct {
	svc      BookingService
	repo     *fakeBookingRepo
	locks    *fakeLockManager
	emitter  *recordingEmitter
	releaser *fakeReleaser
	convert  *fakeConverter
}

func newTestEnv(resources ...*model.Resource) *testEnv {
	log := logger.New(logger.Config{Level: logger.ERROR, Format: logger.TEXT, Output: io.Discard})
	cfg := &config.Config{
		Log:     log,
		LockTTL: 10 * time.Second,
	}

	byID := make(map[string]*model.Resource)
	for _, r := range resources {
		byID[r.ID] = r
	}

	env := &testEnv{
		repo:     newFakeBookingRepo(),
		locks:    newFakeLockManager(),
		emitter:  &recordingEmitter{},
		releaser: &fakeReleaser{},
		convert:  &fakeConverter{},
	}
	env.svc = NewBookingService(
		env.repo,
		&fakeCatalog{resources: byID},
		auth.NewOwnershipGate(),
		env.locks,
		validator.NewBookingValidator(log),
		env.emitter,
		env.releaser,
		env.convert,
		cfg,
	)
	return env
}

func newResource(ownerID string, requiresApproval bool) *model.Resource {
	return &model.Resource{
		ID:               primitive.NewObjectID().Hex(),
		OwnerID:          ownerID,
		Title:            "Meeting Room",
		RequiresApproval: requiresApproval,
	}
}

func newBookingRequest(resourceID, requesterID string, start, end time.Time) *model.Booking {
	return &model.Booking{
		ResourceID:  resourceID,
		RequesterID: requesterID,
		Start:       start,
		End:         end,
	}
}

func assertAppErrorCode(t *testing.T, err error, code string) *apperrors.AppError {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok, "expected *AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

var baseTime = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return baseTime.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// --- Tests ---

func TestCreateAutoApprove(t *testing.T) {
	resource := newResource("owner-1", false)
	env := newTestEnv(resource)
	ctx := context.Background()

	first := newBookingRequest(resource.ID, "user-a", at(10, 0), at(12, 0))
	require.NoError(t, env.svc.Create(ctx, first, ""))
	assert.Equal(t, model.StatusApproved, first.Status)
	assert.NotEmpty(t, first.ID)

	// Overlapping request fails and names the blocking booking.
	overlapping := newBookingRequest(resource.ID, "user-b", at(11, 0), at(13, 0))
	err := env.svc.Create(ctx, overlapping, "")
	appErr := assertAppErrorCode(t, err, apperrors.CodeConflict)
	assert.Equal(t, first.ID, appErr.Details["blocking_booking_id"])

	// Adjacent slot shares only a boundary instant and is fine.
	adjacent := newBookingRequest(resource.ID, "user-b", at(12, 0), at(13, 0))
	require.NoError(t, env.svc.Create(ctx, adjacent, ""))
	assert.Equal(t, model.StatusApproved, adjacent.Status)

	assert.Equal(t, []string{events.TypeBookingCreated, events.TypeBookingCreated}, env.emitter.types())
}

func TestCreatePendingArbitration(t *testing.T) {
	owner := model.Actor{ID: "owner-1", Role: model.RoleMember}
	resource := newResource(owner.ID, true)
	env := newTestEnv(resource)
	ctx := context.Background()

	first := newBookingRequest(resource.ID, "user-a", at(9, 0), at(10, 0))
	second := newBookingRequest(resource.ID, "user-b", at(9, 30), at(10, 30))

	// Competing requests both land as pending; the owner arbitrates.
	require.NoError(t, env.svc.Create(ctx, first, ""))
	require.NoError(t, env.svc.Create(ctx, second, ""))
	assert.Equal(t, model.StatusPending, first.Status)
	assert.Equal(t, model.StatusPending, second.Status)

	approved, err := env.svc.Approve(ctx, owner, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, approved.Status)

	_, err = env.svc.Approve(ctx, owner, second.ID)
	appErr := assertAppErrorCode(t, err, apperrors.CodeConflict)
	assert.Equal(t, first.ID, appErr.Details["blocking_booking_id"])
}

func TestApproveAuthorization(t *testing.T) {
	resource := newResource("owner-1", true)
	env := newTestEnv(resource)
	ctx := context.Background()

	booking := newBookingRequest(resource.ID, "user-a", at(9, 0), at(10, 0))
	require.NoError(t, env.svc.Create(ctx, booking, ""))

	_, err := env.svc.Approve(ctx, model.Actor{ID: "stranger", Role: model.RoleMember}, booking.ID)
	assertAppErrorCode(t, err, apperrors.CodeForbidden)

	// The requester cannot approve their own request either.
	_, err = env.svc.Approve(ctx, model.Actor{ID: "user-a", Role: model.RoleMember}, booking.ID)
	assertAppErrorCode(t, err, apperrors.CodeForbidden)

	approved, err := env.svc.Approve(ctx, model.Actor{ID: "any", Role: model.RoleAdmin}, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, approved.Status)
}

func TestApproveInvalidState(t *testing.T) {
	owner := model.Actor{ID: "owner-1", Role: model.RoleMember}
	resource := newResource(owner.ID, true)
	env := newTestEnv(resource)
	ctx := context.Background()

	booking := newBookingRequest(resource.ID, "user-a", at(9, 0), at(10, 0))
	require.NoError(t, env.svc.Create(ctx, booking, ""))

	_, err := env.svc.Approve(ctx, owner, booking.ID)
	require.NoError(t, err)

	_, err = env.svc.Approve(ctx, owner, booking.ID)
	assertAppErrorCode(t, err, apperrors.CodeInvalidState)
}

func TestRejectOnlyPending(t *testing.T) {
	owner := model.Actor{ID: "owner-1", Role: model.RoleMember}
	resource := newResource(owner.ID, true)
	env := newTestEnv(resource)
	ctx := context.Background()

	booking := newBookingRequest(resource.ID, "user-a", at(9, 0), at(10, 0))
	require.NoError(t, env.svc.Create(ctx, booking, ""))

	rejected, err := env.svc.Reject(ctx, owner, booking.ID, "room closed for maintenance")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, rejected.Status)

	// Terminal: no further transitions.
	_, err = env.svc.Reject(ctx, owner, booking.ID, "")
	assertAppErrorCode(t, err, apperrors.CodeInvalidState)
	_, err = env.svc.Approve(ctx, owner, booking.ID)
	assertAppErrorCode(t, err, apperrors.CodeInvalidState)
}

func TestCancelReleasesSlotAndIsIdempotent(t *testing.T) {
	resource := newResource("owner-1", false)
	env := newTestEnv(resource)
	ctx := context.Background()
	requester := model.Actor{ID: "user-a", Role: model.RoleMember}

	booking := newBookingRequest(resource.ID, requester.ID, at(14, 0), at(15, 0))
	require.NoError(t, env.svc.Create(ctx, booking, ""))

	cancelled, err := env.svc.Cancel(ctx, requester, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)

	require.Len(t, env.releaser.released, 1)
	assert.Equal(t, resource.ID, env.releaser.released[0].resourceID)
	assert.True(t, env.releaser.released[0].start.Equal(at(14, 0)))
	assert.True(t, env.releaser.released[0].end.Equal(at(15, 0)))

	// Second cancel reports the state, nothing worse.
	_, err = env.svc.Cancel(ctx, requester, booking.ID)
	appErr := assertAppErrorCode(t, err, apperrors.CodeInvalidState)
	assert.Contains(t, appErr.Message, "already cancelled")
	assert.Len(t, env.releaser.released, 1)

	got, err := env.svc.GetByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
}

func TestCancelAuthorization(t *testing.T) {
	resource := newResource("owner-1", false)
	env := newTestEnv(resource)
	ctx := context.Background()

	booking := newBookingRequest(resource.ID, "user-a", at(14, 0), at(15, 0))
	require.NoError(t, env.svc.Create(ctx, booking, ""))

	_, err := env.svc.Cancel(ctx, model.Actor{ID: "stranger", Role: model.RoleMember}, booking.ID)
	assertAppErrorCode(t, err, apperrors.CodeForbidden)

	// The resource owner may cancel someone else's booking.
	cancelled, err := env.svc.Cancel(ctx, model.Actor{ID: "owner-1", Role: model.RoleMember}, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
}

func TestCancelFreesSlotForNewBooking(t *testing.T) {
	resource := newResource("owner-1", false)
	env := newTestEnv(resource)
	ctx := context.Background()

	booking := newBookingRequest(resource.ID, "user-a", at(14, 0), at(15, 0))
	require.NoError(t, env.svc.Create(ctx, booking, ""))

	blocked := newBookingRequest(resource.ID, "user-b", at(14, 0), at(15, 0))
	err := env.svc.Create(ctx, blocked, "")
	assertAppErrorCode(t, err, apperrors.CodeConflict)

	_, err = env.svc.Cancel(ctx, model.Actor{ID: "user-a", Role: model.RoleMember}, booking.ID)
	require.NoError(t, err)

	retry := newBookingRequest(resource.ID, "user-b", at(14, 0), at(15, 0))
	require.NoError(t, env.svc.Create(ctx, retry, ""))
	assert.Equal(t, model.StatusApproved, retry.Status)
}

func TestCreateValidation(t *testing.T) {
	resource := newResource("owner-1", false)
	env := newTestEnv(resource)
	ctx := context.Background()

	tests := []struct {
		name    string
		booking *model.Booking
	}{
		{"end before start", newBookingRequest(resource.ID, "user-a", at(12, 0), at(10, 0))},
		{"end equals start", newBookingRequest(resource.ID, "user-a", at(12, 0), at(12, 0))},
		{"missing requester", newBookingRequest(resource.ID, "", at(10, 0), at(12, 0))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.svc.Create(ctx, tt.booking, "")
			assertAppErrorCode(t, err, apperrors.CodeValidation)
		})
	}
}

func TestCreateResourceNotFound(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	booking := newBookingRequest(primitive.NewObjectID().Hex(), "user-a", at(10, 0), at(12, 0))
	err := env.svc.Create(ctx, booking, "")
	assertAppErrorCode(t, err, apperrors.CodeNotFound)
}

func TestCreateWhileResourceLocked(t *testing.T) {
	resource := newResource("owner-1", false)
	env := newTestEnv(resource)
	ctx := context.Background()

	require.NoError(t, env.locks.Acquire(ctx, "resource_"+resource.ID, time.Second))

	booking := newBookingRequest(resource.ID, "user-a", at(10, 0), at(12, 0))
	err := env.svc.Create(ctx, booking, "")
	assertAppErrorCode(t, err, apperrors.CodeConflict)
}

func TestCreateMarksWaitlistEntryConverted(t *testing.T) {
	resource := newResource("owner-1", false)
	env := newTestEnv(resource)
	ctx := context.Background()

	entryID := primitive.NewObjectID().Hex()
	booking := newBookingRequest(resource.ID, "user-b", at(14, 0), at(15, 0))
	require.NoError(t, env.svc.Create(ctx, booking, entryID))

	assert.Equal(t, []string{entryID}, env.convert.converted)
}

func TestHasConflict(t *testing.T) {
	owner := model.Actor{ID: "owner-1", Role: model.RoleMember}
	resource := newResource(owner.ID, true)
	env := newTestEnv(resource)
	ctx := context.Background()

	booking := newBookingRequest(resource.ID, "user-a", at(10, 0), at(12, 0))
	require.NoError(t, env.svc.Create(ctx, booking, ""))

	// A pending booking already blocks the slot in availability views.
	conflict, err := env.svc.HasConflict(ctx, resource.ID, at(11, 0), at(13, 0), "")
	require.NoError(t, err)
	assert.True(t, conflict)

	conflict, err = env.svc.HasConflict(ctx, resource.ID, at(12, 0), at(13, 0), "")
	require.NoError(t, err)
	assert.False(t, conflict)

	conflict, err = env.svc.HasConflict(ctx, resource.ID, at(11, 0), at(13, 0), booking.ID)
	require.NoError(t, err)
	assert.False(t, conflict)

	_, err = env.svc.HasConflict(ctx, resource.ID, at(13, 0), at(11, 0), "")
	assertAppErrorCode(t, err, apperrors.CodeValidation)
}

func TestCompletePast(t *testing.T) {
	resource := newResource("owner-1", false)
	env := newTestEnv(resource)
	ctx := context.Background()

	now := time.Now().UTC()
	past := newBookingRequest(resource.ID, "user-a", now.Add(-2*time.Hour), now.Add(-time.Hour))
	future := newBookingRequest(resource.ID, "user-a", now.Add(24*time.Hour), now.Add(25*time.Hour))
	require.NoError(t, env.svc.Create(ctx, past, ""))
	require.NoError(t, env.svc.Create(ctx, future, ""))

	completed, err := env.svc.CompletePast(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), completed)

	got, err := env.svc.GetByID(ctx, past.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)

	got, err = env.svc.GetByID(ctx, future.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, got.Status)
}

func TestListByResource(t *testing.T) {
	resource := newResource("owner-1", false)
	env := newTestEnv(resource)
	ctx := context.Background()

	first := newBookingRequest(resource.ID, "user-a", at(10, 0), at(11, 0))
	second := newBookingRequest(resource.ID, "user-b", at(11, 0), at(12, 0))
	require.NoError(t, env.svc.Create(ctx, first, ""))
	require.NoError(t, env.svc.Create(ctx, second, ""))

	bookings, total, err := env.svc.ListByResource(ctx, resource.ID, "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, bookings, 2)

	_, _, err = env.svc.ListByResource(ctx, resource.ID, "sideways", 10, 0)
	assertAppErrorCode(t, err, apperrors.CodeInvalidInput)
}
