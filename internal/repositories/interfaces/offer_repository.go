package interfaces

import (
	"context"
	"time"

	"ridedispatch/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OfferRepository interface {
	// CreatePending upserts the offer for (rideID, driverID). When the pair
	// already exists nothing changes and created is false, which makes
	// duplicate dispatch attempts harmless.
	CreatePending(ctx context.Context, rideID, driverID primitive.ObjectID, expiresAt time.Time) (created bool, err error)

	Get(ctx context.Context, rideID, driverID primitive.ObjectID) (*models.Offer, error)
	ListByRide(ctx context.Context, rideID primitive.ObjectID) ([]*models.Offer, error)

	// ListPendingByDriver returns the driver's live offer queue: pending and
	// not yet past expires_at.
	ListPendingByDriver(ctx context.Context, driverID primitive.ObjectID, now time.Time) ([]*models.Offer, error)

	// ResolveIfPending moves a single pending offer to a terminal status.
	// Returns false when the offer was already resolved.
	ResolveIfPending(ctx context.Context, rideID, driverID primitive.ObjectID, to models.OfferStatus) (bool, error)

	// CancelPendingExcept marks every pending offer of the ride cancelled
	// except the winner's. A zero winner cancels all pending offers.
	CancelPendingExcept(ctx context.Context, rideID primitive.ObjectID, winner primitive.ObjectID) (int64, error)

	// ExpirePending marks every pending offer whose expires_at is before now
	// as expired. Returns the number of offers expired.
	ExpirePending(ctx context.Context, now time.Time) (int64, error)
}
