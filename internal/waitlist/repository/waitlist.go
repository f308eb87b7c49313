package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	waitlisterrors "resourcehub/internal/waitlist/errors"
	"resourcehub/pkg/config"
	mongotx "resourcehub/pkg/db/mongo"
	"resourcehub/pkg/model"
)

const (
	CollectionName = "Waitlist"
)

// orderingKey sorts the queue: higher priority first, then first-come.
var orderingKey = bson.D{
	{Key: "priority", Value: -1},
	{Key: "created_at", Value: 1},
}

type WaitlistRepository interface {
	Create(ctx context.Context, entry *model.WaitlistEntry) error
	FindByID(ctx context.Context, id string) (*model.WaitlistEntry, error)
	// FindWaitingByRequester returns the waiting entry for the exact
	// (resource, requester, slot) triple, if one exists.
	FindWaitingByRequester(ctx context.Context, resourceID, requesterID string, slotStart, slotEnd time.Time) (*model.WaitlistEntry, error)
	// FirstWaiting returns the best-ordered waiting entry for (resource, slot).
	FirstWaiting(ctx context.Context, resourceID string, slotStart, slotEnd time.Time) (*model.WaitlistEntry, error)
	// CountAhead counts waiting entries for the same (resource, slot) that
	// sort strictly before the given entry under the ordering key.
	CountAhead(ctx context.Context, entry *model.WaitlistEntry) (int64, error)
	CountWaiting(ctx context.Context, resourceID string, slotStart, slotEnd time.Time) (int64, error)
	// UpdateStatus moves an entry between statuses atomically; moving to
	// notified also stamps notified_at.
	UpdateStatus(ctx context.Context, id string, from, to model.WaitlistStatus) (*model.WaitlistEntry, error)
	// DeleteWaiting removes a waiting entry owned by the requester. Returns
	// false when nothing matched, so callers stay idempotent.
	DeleteWaiting(ctx context.Context, id, requesterID string) (bool, error)
	FindByRequester(ctx context.Context, requesterID string, limit int, offset int64) ([]*model.WaitlistEntry, error)
	CountByRequester(ctx context.Context, requesterID string) (int64, error)
	// ExpireStale flips entries untouched since the cutoff to expired.
	ExpireStale(ctx context.Context, cutoff time.Time) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoWaitlistRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoWaitlistRepository(cfg *config.Config) WaitlistRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoWaitlistRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoWaitlistRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func slotFilter(resourceID string, slotStart, slotEnd time.Time) bson.M {
	return bson.M{
		"resource_id": resourceID,
		"slot_start":  slotStart,
		"slot_end":    slotEnd,
	}
}

func (r *mongoWaitlistRepository) Create(ctx context.Context, entry *model.WaitlistEntry) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	entry.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	result, err := r.collection.InsertOne(ctx, entry)
	if err != nil {
		return fmt.Errorf("failed to create waitlist entry: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		entry.ID = oid.Hex()
	}
	return nil
}

func (r *mongoWaitlistRepository) FindByID(ctx context.Context, id string) (*model.WaitlistEntry, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", waitlisterrors.ErrInvalidID, id)
	}

	var entry model.WaitlistEntry
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, waitlisterrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find waitlist entry: %w", err)
	}

	return &entry, nil
}

func (r *mongoWaitlistRepository) FindWaitingByRequester(ctx context.Context, resourceID, requesterID string, slotStart, slotEnd time.Time) (*model.WaitlistEntry, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := slotFilter(resourceID, slotStart, slotEnd)
	filter["requester_id"] = requesterID
	filter["status"] = model.WaitlistWaiting

	var entry model.WaitlistEntry
	err := r.collection.FindOne(ctx, filter).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, waitlisterrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find waitlist entry: %w", err)
	}

	return &entry, nil
}

func (r *mongoWaitlistRepository) FirstWaiting(ctx context.Context, resourceID string, slotStart, slotEnd time.Time) (*model.WaitlistEntry, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := slotFilter(resourceID, slotStart, slotEnd)
	filter["status"] = model.WaitlistWaiting

	opts := options.FindOne().SetSort(orderingKey)

	var entry model.WaitlistEntry
	err := r.collection.FindOne(ctx, filter, opts).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, waitlisterrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find first waiting entry: %w", err)
	}

	return &entry, nil
}

func (r *mongoWaitlistRepository) CountAhead(ctx context.Context, entry *model.WaitlistEntry) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := slotFilter(entry.ResourceID, entry.SlotStart, entry.SlotEnd)
	filter["status"] = model.WaitlistWaiting
	filter["$or"] = []bson.M{
		{"priority": bson.M{"$gt": entry.Priority}},
		{"priority": entry.Priority, "created_at": bson.M{"$lt": entry.CreatedAt}},
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries ahead: %w", err)
	}
	return count, nil
}

func (r *mongoWaitlistRepository) CountWaiting(ctx context.Context, resourceID string, slotStart, slotEnd time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := slotFilter(resourceID, slotStart, slotEnd)
	filter["status"] = model.WaitlistWaiting

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count waiting entries: %w", err)
	}
	return count, nil
}

func (r *mongoWaitlistRepository) UpdateStatus(ctx context.Context, id string, from, to model.WaitlistStatus) (*model.WaitlistEntry, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", waitlisterrors.ErrInvalidID, id)
	}

	set := bson.M{"status": to}
	if to == model.WaitlistNotified {
		set["notified_at"] = time.Now().UTC().Truncate(time.Millisecond)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var entry model.WaitlistEntry
	err = r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": objectID, "status": from},
		bson.M{"$set": set},
		opts,
	).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			if _, findErr := r.FindByID(ctx, id); findErr != nil {
				return nil, findErr
			}
			return nil, waitlisterrors.ErrStaleStatus
		}
		return nil, fmt.Errorf("failed to update waitlist entry status: %w", err)
	}

	return &entry, nil
}

func (r *mongoWaitlistRepository) DeleteWaiting(ctx context.Context, id, requesterID string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, fmt.Errorf("%w: %s", waitlisterrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{
		"_id":          objectID,
		"requester_id": requesterID,
		"status":       model.WaitlistWaiting,
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete waitlist entry: %w", err)
	}
	return result.DeletedCount > 0, nil
}

func (r *mongoWaitlistRepository) FindByRequester(ctx context.Context, requesterID string, limit int, offset int64) ([]*model.WaitlistEntry, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{"requester_id": requesterID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find waitlist entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*model.WaitlistEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode waitlist entries: %w", err)
	}

	return entries, nil
}

func (r *mongoWaitlistRepository) CountByRequester(ctx context.Context, requesterID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"requester_id": requesterID})
	if err != nil {
		return 0, fmt.Errorf("failed to count waitlist entries: %w", err)
	}
	return count, nil
}

func (r *mongoWaitlistRepository) ExpireStale(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"$or": []bson.M{
		{"status": model.WaitlistWaiting, "created_at": bson.M{"$lte": cutoff}},
		{"status": model.WaitlistNotified, "notified_at": bson.M{"$lte": cutoff}},
	}}

	result, err := r.collection.UpdateMany(ctx, filter, bson.M{
		"$set": bson.M{"status": model.WaitlistExpired},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale waitlist entries: %w", err)
	}
	return result.ModifiedCount, nil
}

func (r *mongoWaitlistRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
