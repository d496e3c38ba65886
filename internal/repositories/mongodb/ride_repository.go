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
)

type rideRepository struct {
	collection *mongo.Collection
}

func NewRideRepository(db *mongo.Database) interfaces.RideRepository {
	return &rideRepository{
		collection: db.Collection("rides"),
	}
}

func (r *rideRepository) Create(ctx context.Context, ride *models.Ride) error {
	now := time.Now()
	ride.ID = primitive.NewObjectID()
	ride.Status = models.RideStatusRequested
	ride.RequestedAt = now
	ride.CreatedAt = now
	ride.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, ride)
	if err != nil {
		return fmt.Errorf("failed to create ride: %w", err)
	}

	return nil
}

func (r *rideRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	var ride models.Ride
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&ride)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}

	return &ride, nil
}

// statusTimestamps maps each status to the transition timestamp it stamps.
var statusTimestamps = map[models.RideStatus]string{
	models.RideStatusDispatching: "dispatched_at",
	models.RideStatusAccepted:    "accepted_at",
	models.RideStatusStarted:     "started_at",
	models.RideStatusCompleted:   "completed_at",
	models.RideStatusCancelled:   "cancelled_at",
}

func (r *rideRepository) TransitionStatus(ctx context.Context, id primitive.ObjectID, from []models.RideStatus, to models.RideStatus) (bool, error) {
	updates := bson.M{
		"status":     to,
		"updated_at": time.Now(),
	}
	if field, ok := statusTimestamps[to]; ok {
		updates[field] = time.Now()
	}

	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id, "status": bson.M{"$in": from}},
		bson.M{"$set": updates},
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition ride status: %w", err)
	}

	return result.ModifiedCount > 0, nil
}

func (r *rideRepository) AssignDriver(ctx context.Context, id primitive.ObjectID, driverID primitive.ObjectID) (bool, error) {
	now := time.Now()
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{
			"_id":       id,
			"driver_id": nil,
			"status": bson.M{"$in": []models.RideStatus{
				models.RideStatusDispatching,
				models.RideStatusOffered,
			}},
		},
		bson.M{"$set": bson.M{
			"driver_id":   driverID,
			"status":      models.RideStatusAccepted,
			"accepted_at": now,
			"updated_at":  now,
		}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to assign driver: %w", err)
	}

	return result.ModifiedCount > 0, nil
}

func (r *rideRepository) Cancel(ctx context.Context, id primitive.ObjectID, reason, cancelledBy string, from []models.RideStatus) (bool, error) {
	now := time.Now()
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id, "status": bson.M{"$in": from}},
		bson.M{"$set": bson.M{
			"status":              models.RideStatusCancelled,
			"cancelled_at":        now,
			"cancellation_reason": reason,
			"cancelled_by":        cancelledBy,
			"updated_at":          now,
		}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to cancel ride: %w", err)
	}

	return result.ModifiedCount > 0, nil
}

func (r *rideRepository) CancelStuck(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now()
	result, err := r.collection.UpdateMany(
		ctx,
		bson.M{
			"status": bson.M{"$in": []models.RideStatus{
				models.RideStatusRequested,
				models.RideStatusDispatching,
				models.RideStatusOffered,
			}},
			"requested_at": bson.M{"$lt": cutoff},
		},
		bson.M{"$set": bson.M{
			"status":              models.RideStatusCancelled,
			"cancelled_at":        now,
			"cancellation_reason": models.CancelReasonSearchTimeout,
			"cancelled_by":        "sweeper",
			"updated_at":          now,
		}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel stuck rides: %w", err)
	}

	return result.ModifiedCount, nil
}
