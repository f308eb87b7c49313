package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"resourcehub/pkg/model"
)

const locksCollection = "Advisory_locks"

// ErrLockHeld means another request currently holds the key. Callers treat
// this as a retryable conflict, not a failure.
var ErrLockHeld = errors.New("advisory lock already held")

// LockManager serializes mutations on a key. Acquisition is a unique _id
// insert: the second writer gets a duplicate-key error and backs off instead
// of racing the first one's check-and-write.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
	EnsureIndexes(ctx context.Context) error
}

type mongoLockManager struct {
	collection *mongo.Collection
}

func NewLockManager(client *mongo.Client, databaseName string) LockManager {
	return &mongoLockManager{
		collection: client.Database(databaseName).Collection(locksCollection),
	}
}

func (m *mongoLockManager) Acquire(ctx context.Context, key string, ttl time.Duration) error {
	now := time.Now().UTC()
	lock := &model.AdvisoryLock{
		ID:        key,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	if _, err := m.collection.InsertOne(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrLockHeld
		}
		return fmt.Errorf("failed to acquire lock %q: %w", key, err)
	}
	return nil
}

func (m *mongoLockManager) Release(ctx context.Context, key string) error {
	if _, err := m.collection.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("failed to release lock %q: %w", key, err)
	}
	return nil
}

// EnsureIndexes creates the TTL index that reaps locks abandoned by crashed
// holders. expireAfterSeconds of 0 means mongod deletes the document as soon
// as expires_at passes.
func (m *mongoLockManager) EnsureIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return fmt.Errorf("failed to create lock TTL index: %w", err)
	}
	return nil
}
