package mongodb

import (
	"context"
	"fmt"
	"time"

	"ridedispatch/internal/models"
	"ridedispatch/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type driverPresenceRepository struct {
	collection *mongo.Collection
}

func NewDriverPresenceRepository(db *mongo.Database) interfaces.DriverPresenceRepository {
	return &driverPresenceRepository{
		collection: db.Collection("drivers"),
	}
}

func (r *driverPresenceRepository) Get(ctx context.Context, driverID primitive.ObjectID) (*models.DriverPresence, error) {
	var presence models.DriverPresence
	err := r.collection.FindOne(ctx, bson.M{"_id": driverID}).Decode(&presence)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get driver presence: %w", err)
	}

	return &presence, nil
}

func (r *driverPresenceRepository) SetOnline(ctx context.Context, driverID primitive.ObjectID, class models.ServiceClass, location *models.Location) error {
	now := time.Now()
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": driverID},
		bson.M{
			"$set": bson.M{
				"is_online":         true,
				"service_class":     class,
				"location":          location,
				"last_heartbeat_at": now,
				"online_since":      now,
				"updated_at":        now,
			},
			"$setOnInsert": bson.M{
				"is_busy":    false,
				"created_at": now,
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to set driver online: %w", err)
	}

	return nil
}

func (r *driverPresenceRepository) SetOffline(ctx context.Context, driverID primitive.ObjectID) error {
	now := time.Now()
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": driverID},
		bson.M{"$set": bson.M{
			"is_online":    false,
			"online_since": nil,
			"updated_at":   now,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to set driver offline: %w", err)
	}

	return nil
}

func (r *driverPresenceRepository) Heartbeat(ctx context.Context, driverID primitive.ObjectID, location *models.Location) error {
	now := time.Now()
	updates := bson.M{
		"last_heartbeat_at": now,
		"updated_at":        now,
	}
	if location != nil {
		updates["location"] = location
	}

	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": driverID},
		bson.M{"$set": updates},
	)
	if err != nil {
		return fmt.Errorf("failed to record heartbeat: %w", err)
	}

	return nil
}

func (r *driverPresenceRepository) MarkBusy(ctx context.Context, driverID, rideID primitive.ObjectID, status models.RideStatus) (bool, error) {
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{
			"_id":       driverID,
			"is_online": true,
			"is_busy":   false,
		},
		bson.M{"$set": bson.M{
			"is_busy":             true,
			"current_ride_id":     rideID,
			"current_ride_status": status,
			"updated_at":          time.Now(),
		}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark driver busy: %w", err)
	}

	return result.ModifiedCount > 0, nil
}

func (r *driverPresenceRepository) ClearBusy(ctx context.Context, driverID, rideID primitive.ObjectID) (bool, error) {
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{
			"_id":             driverID,
			"current_ride_id": rideID,
		},
		bson.M{"$set": bson.M{
			"is_busy":             false,
			"current_ride_id":     nil,
			"current_ride_status": "",
			"updated_at":          time.Now(),
		}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to clear driver busy flag: %w", err)
	}

	return result.ModifiedCount > 0, nil
}

func (r *driverPresenceRepository) UpdateRideStatus(ctx context.Context, driverID, rideID primitive.ObjectID, status models.RideStatus) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{
			"_id":             driverID,
			"current_ride_id": rideID,
		},
		bson.M{"$set": bson.M{
			"current_ride_status": status,
			"updated_at":          time.Now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to mirror ride status: %w", err)
	}

	return nil
}

func (r *driverPresenceRepository) ListEligible(ctx context.Context, ids []primitive.ObjectID, class models.ServiceClass, heartbeatAfter time.Time) ([]*models.DriverPresence, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	return r.findPresences(ctx, bson.M{
		"_id":               bson.M{"$in": ids},
		"is_online":         true,
		"is_busy":           false,
		"service_class":     class,
		"last_heartbeat_at": bson.M{"$gte": heartbeatAfter},
	})
}

func (r *driverPresenceRepository) ListStaleOnline(ctx context.Context, cutoff time.Time) ([]*models.DriverPresence, error) {
	return r.findPresences(ctx, bson.M{
		"is_online": true,
		"$or": []bson.M{
			{"last_heartbeat_at": bson.M{"$lt": cutoff}},
			{"last_heartbeat_at": nil},
		},
	})
}

func (r *driverPresenceRepository) ForceOffline(ctx context.Context, driverID primitive.ObjectID, cutoff time.Time, clearBusy bool) (bool, error) {
	now := time.Now()
	updates := bson.M{
		"is_online":    false,
		"online_since": nil,
		"updated_at":   now,
	}
	if clearBusy {
		updates["is_busy"] = false
		updates["current_ride_id"] = nil
		updates["current_ride_status"] = ""
	}

	// Re-check the stale condition at write time so a fresh heartbeat that
	// raced the sweep wins.
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{
			"_id":       driverID,
			"is_online": true,
			"$or": []bson.M{
				{"last_heartbeat_at": bson.M{"$lt": cutoff}},
				{"last_heartbeat_at": nil},
			},
		},
		bson.M{"$set": updates},
	)
	if err != nil {
		return false, fmt.Errorf("failed to force driver offline: %w", err)
	}

	return result.ModifiedCount > 0, nil
}

func (r *driverPresenceRepository) CountOnline(ctx context.Context) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"is_online": true})
	if err != nil {
		return 0, fmt.Errorf("failed to count online drivers: %w", err)
	}

	return count, nil
}

func (r *driverPresenceRepository) findPresences(ctx context.Context, filter bson.M) ([]*models.DriverPresence, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find driver presences: %w", err)
	}
	defer cursor.Close(ctx)

	var presences []*models.DriverPresence
	for cursor.Next(ctx) {
		var presence models.DriverPresence
		if err := cursor.Decode(&presence); err != nil {
			return nil, fmt.Errorf("failed to decode driver presence: %w", err)
		}
		presences = append(presences, &presence)
	}

	return presences, nil
}
