// Package mongo provides the MongoDB read model of the wallet activity feed.
package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/carebridge-wallet-ledger/internal/domain/activity"
)

const (
	// ActivityCollectionName is the name of the activity feed collection in MongoDB
	ActivityCollectionName = "wallet_activity"
)

// ActivityRepository implements the activity.Repository interface for MongoDB
type ActivityRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewActivityRepository creates a new MongoDB activity repository
func NewActivityRepository(logger *slog.Logger, db *mongo.Database) activity.Repository {
	return &ActivityRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the unique event index and the owner timeline index
func (r *ActivityRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(ActivityCollectionName)

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "occurred_at", Value: -1}},
		},
	})
	if err != nil {
		r.logger.Error("Failed to create activity indexes", "error", err)
		return fmt.Errorf("failed to create activity indexes: %w", err)
	}
	return nil
}

// Append upserts by event id so a re-published outbox row never duplicates a feed item
func (r *ActivityRepository) Append(ctx context.Context, a *activity.Activity) error {
	collection := r.db.Collection(ActivityCollectionName)

	filter := bson.M{"event_id": a.EventID}
	update := bson.M{"$setOnInsert": a}
	opts := options.Update().SetUpsert(true)

	if _, err := collection.UpdateOne(ctx, filter, update, opts); err != nil {
		r.logger.Error("Failed to append activity",
			"event_id", a.EventID,
			"owner_id", a.OwnerID,
			"error", err)
		return fmt.Errorf("failed to append activity: %w", err)
	}

	return nil
}

// ListByOwner returns a page of the owner's feed, newest first
func (r *ActivityRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*activity.Activity, error) {
	collection := r.db.Collection(ActivityCollectionName)

	filter := bson.M{"owner_id": ownerID}
	opts := options.Find().
		SetSort(bson.D{{Key: "occurred_at", Value: -1}, {Key: "event_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to list activity",
			"owner_id", ownerID,
			"error", err)
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer cursor.Close(ctx)

	items := make([]*activity.Activity, 0)
	if err := cursor.All(ctx, &items); err != nil {
		r.logger.Error("Failed to decode activity",
			"owner_id", ownerID,
			"error", err)
		return nil, fmt.Errorf("failed to decode activity: %w", err)
	}

	return items, nil
}

// CountByOwner counts the owner's feed items
func (r *ActivityRepository) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	collection := r.db.Collection(ActivityCollectionName)

	count, err := collection.CountDocuments(ctx, bson.M{"owner_id": ownerID})
	if err != nil {
		r.logger.Error("Failed to count activity",
			"owner_id", ownerID,
			"error", err)
		return 0, fmt.Errorf("failed to count activity: %w", err)
	}

	return count, nil
}
