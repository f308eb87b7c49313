package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"resourcehub/pkg/config"
	"resourcehub/pkg/model"
)

const CollectionName = "Resources"

var (
	ErrNotFound  = errors.New("resource not found")
	ErrInvalidID = errors.New("invalid resource ID format")
)

// ResourceCatalog is the engine's read-only view of the resource catalog.
// The engine consumes the owner and approval policy; the catalog's own
// lifecycle (publishing, editing, search) lives elsewhere.
type ResourceCatalog interface {
	GetResource(ctx context.Context, id string) (*model.Resource, error)
}

type mongoResourceCatalog struct {
	collection *mongo.Collection
}

func NewMongoResourceCatalog(cfg *config.Config) ResourceCatalog {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoResourceCatalog{
		collection: db.Collection(CollectionName),
	}
}

func (c *mongoResourceCatalog) GetResource(ctx context.Context, id string) (*model.Resource, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, id)
	}

	var resource model.Resource
	err = c.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&resource)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find resource: %w", err)
	}

	return &resource, nil
}
