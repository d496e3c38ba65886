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

type offerRepository struct {
	collection *mongo.Collection
}

func NewOfferRepository(db *mongo.Database) interfaces.OfferRepository {
	return &offerRepository{
		collection: db.Collection("offers"),
	}
}

func (r *offerRepository) CreatePending(ctx context.Context, rideID, driverID primitive.ObjectID, expiresAt time.Time) (bool, error) {
	now := time.Now()
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"ride_id": rideID, "driver_id": driverID},
		bson.M{
			"$setOnInsert": bson.M{
				"_id":        primitive.NewObjectID(),
				"ride_id":    rideID,
				"driver_id":  driverID,
				"status":     models.OfferStatusPending,
				"created_at": now,
				"expires_at": expiresAt,
				"updated_at": now,
			},
			"$inc": bson.M{"attempts": 1},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("failed to create offer: %w", err)
	}

	return result.UpsertedCount > 0, nil
}

func (r *offerRepository) Get(ctx context.Context, rideID, driverID primitive.ObjectID) (*models.Offer, error) {
	var offer models.Offer
	err := r.collection.FindOne(ctx, bson.M{"ride_id": rideID, "driver_id": driverID}).Decode(&offer)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}

	return &offer, nil
}

func (r *offerRepository) ListByRide(ctx context.Context, rideID primitive.ObjectID) ([]*models.Offer, error) {
	return r.findOffers(ctx, bson.M{"ride_id": rideID})
}

func (r *offerRepository) ListPendingByDriver(ctx context.Context, driverID primitive.ObjectID, now time.Time) ([]*models.Offer, error) {
	return r.findOffers(ctx, bson.M{
		"driver_id":  driverID,
		"status":     models.OfferStatusPending,
		"expires_at": bson.M{"$gt": now},
	})
}

func (r *offerRepository) ResolveIfPending(ctx context.Context, rideID, driverID primitive.ObjectID, to models.OfferStatus) (bool, error) {
	now := time.Now()
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{
			"ride_id":   rideID,
			"driver_id": driverID,
			"status":    models.OfferStatusPending,
		},
		bson.M{"$set": bson.M{
			"status":       to,
			"responded_at": now,
			"updated_at":   now,
		}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to resolve offer: %w", err)
	}

	return result.ModifiedCount > 0, nil
}

func (r *offerRepository) CancelPendingExcept(ctx context.Context, rideID primitive.ObjectID, winner primitive.ObjectID) (int64, error) {
	filter := bson.M{
		"ride_id": rideID,
		"status":  models.OfferStatusPending,
	}
	if !winner.IsZero() {
		filter["driver_id"] = bson.M{"$ne": winner}
	}

	result, err := r.collection.UpdateMany(
		ctx,
		filter,
		bson.M{"$set": bson.M{
			"status":     models.OfferStatusCancelled,
			"updated_at": time.Now(),
		}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel sibling offers: %w", err)
	}

	return result.ModifiedCount, nil
}

func (r *offerRepository) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.collection.UpdateMany(
		ctx,
		bson.M{
			"status":     models.OfferStatusPending,
			"expires_at": bson.M{"$lt": now},
		},
		bson.M{"$set": bson.M{
			"status":     models.OfferStatusExpired,
			"updated_at": now,
		}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire offers: %w", err)
	}

	return result.ModifiedCount, nil
}

func (r *offerRepository) findOffers(ctx context.Context, filter bson.M) ([]*models.Offer, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find offers: %w", err)
	}
	defer cursor.Close(ctx)

	var offers []*models.Offer
	for cursor.Next(ctx) {
		var offer models.Offer
		if err := cursor.Decode(&offer); err != nil {
			return nil, fmt.Errorf("failed to decode offer: %w", err)
		}
		offers = append(offers, &offer)
	}

	return offers, nil
}
