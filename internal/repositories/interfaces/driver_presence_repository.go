package interfaces

import (
	"context"
	"time"

	"ridedispatch/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DriverPresenceRepository interface {
	Get(ctx context.Context, driverID primitive.ObjectID) (*models.DriverPresence, error)

	// SetOnline upserts the presence document with is_online=true and the
	// fresh location fix.
	SetOnline(ctx context.Context, driverID primitive.ObjectID, class models.ServiceClass, location *models.Location) error

	SetOffline(ctx context.Context, driverID primitive.ObjectID) error

	Heartbeat(ctx context.Context, driverID primitive.ObjectID, location *models.Location) error

	// MarkBusy flips is_busy from false to true for an online driver and
	// records the ride. Returns false when the driver is offline or already
	// busy; two concurrent acceptances can therefore never both claim the
	// same driver.
	MarkBusy(ctx context.Context, driverID, rideID primitive.ObjectID, status models.RideStatus) (bool, error)

	// ClearBusy releases the driver only if they are still bound to rideID.
	ClearBusy(ctx context.Context, driverID, rideID primitive.ObjectID) (bool, error)

	// UpdateRideStatus mirrors the ride's status onto the presence document
	// while the driver is bound to it.
	UpdateRideStatus(ctx context.Context, driverID, rideID primitive.ObjectID, status models.RideStatus) error

	// ListEligible filters candidate IDs down to drivers that are online,
	// not busy, of the requested class, and heartbeat-fresh.
	ListEligible(ctx context.Context, ids []primitive.ObjectID, class models.ServiceClass, heartbeatAfter time.Time) ([]*models.DriverPresence, error)

	// ListStaleOnline returns drivers marked online whose heartbeat is older
	// than cutoff.
	ListStaleOnline(ctx context.Context, cutoff time.Time) ([]*models.DriverPresence, error)

	// ForceOffline flips a ghost driver offline only while its heartbeat is
	// still older than cutoff, so a concurrent fresh ping wins. clearBusy
	// additionally releases the busy flag and current ride binding.
	ForceOffline(ctx context.Context, driverID primitive.ObjectID, cutoff time.Time, clearBusy bool) (bool, error)

	CountOnline(ctx context.Context) (int64, error)
}
