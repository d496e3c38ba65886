package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the dispatch engine depends on. Safe to
// call on every startup; Mongo treats existing identical indexes as no-ops.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		"rides": {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "requested_at", Value: 1}}},
			{Keys: bson.D{{Key: "rider_id", Value: 1}, {Key: "requested_at", Value: -1}}},
			{Keys: bson.D{{Key: "driver_id", Value: 1}, {Key: "requested_at", Value: -1}}},
		},
		"offers": {
			{
				Keys:    bson.D{{Key: "ride_id", Value: 1}, {Key: "driver_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}}},
			{Keys: bson.D{{Key: "driver_id", Value: 1}, {Key: "status", Value: 1}}},
		},
		"drivers": {
			{Keys: bson.D{{Key: "is_online", Value: 1}, {Key: "last_heartbeat_at", Value: 1}}},
			{Keys: bson.D{{Key: "is_online", Value: 1}, {Key: "is_busy", Value: 1}, {Key: "service_class", Value: 1}}},
		},
	}

	for collection, models := range indexes {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes for %s: %w", collection, err)
		}
	}

	return nil
}
