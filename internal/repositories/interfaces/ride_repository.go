package interfaces

import (
	"context"
	"time"

	"ridedispatch/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideRepository interface {
	Create(ctx context.Context, ride *models.Ride) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error)

	// TransitionStatus moves the ride from any of the given statuses to the
	// next one, stamping the matching timestamp. Returns false when the ride
	// no longer satisfies the precondition, which makes every transition
	// safe to retry.
	TransitionStatus(ctx context.Context, id primitive.ObjectID, from []models.RideStatus, to models.RideStatus) (bool, error)

	// AssignDriver atomically claims a still-dispatchable ride for a driver.
	// Returns false if the ride already has a driver or left the
	// dispatchable statuses.
	AssignDriver(ctx context.Context, id primitive.ObjectID, driverID primitive.ObjectID) (bool, error)

	// Cancel moves a ride in one of the from statuses to cancelled with the
	// given reason. Returns false when the precondition no longer holds.
	Cancel(ctx context.Context, id primitive.ObjectID, reason, cancelledBy string, from []models.RideStatus) (bool, error)

	// CancelStuck cancels every ride still waiting for a driver whose
	// request is older than cutoff, with reason search_timeout. Returns the
	// number of rides cancelled.
	CancelStuck(ctx context.Context, cutoff time.Time) (int64, error)
}
