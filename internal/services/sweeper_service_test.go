package services

import (
	"context"
	"testing"
	"time"

	"ridedispatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type sweeperFixture struct {
	rides    *memRideRepo
	offers   *memOfferRepo
	presence *memPresenceRepo
	clock    *fakeClock
	service  SweeperService
}

func newSweeperFixture(t *testing.T) *sweeperFixture {
	t.Helper()

	f := &sweeperFixture{
		rides:    newMemRideRepo(),
		offers:   newMemOfferRepo(),
		presence: newMemPresenceRepo(),
		clock:    newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	}
	f.service = NewSweeperService(f.rides, f.offers, f.presence, testConfig(), f.clock, testLogger())
	return f
}

func TestSweepCancelsStuckRides(t *testing.T) {
	f := newSweeperFixture(t)

	stuck := &models.Ride{
		ID:          primitive.NewObjectID(),
		RiderID:     primitive.NewObjectID(),
		Status:      models.RideStatusDispatching,
		RequestedAt: f.clock.Now().Add(-10 * time.Minute),
	}
	fresh := &models.Ride{
		ID:          primitive.NewObjectID(),
		RiderID:     primitive.NewObjectID(),
		Status:      models.RideStatusDispatching,
		RequestedAt: f.clock.Now().Add(-1 * time.Minute),
	}
	f.rides.seed(stuck)
	f.rides.seed(fresh)

	report, err := f.service.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.CancelledRides)

	got, _ := f.rides.GetByID(context.Background(), stuck.ID)
	assert.Equal(t, models.RideStatusCancelled, got.Status)
	assert.Equal(t, models.CancelReasonSearchTimeout, got.CancellationReason)

	got, _ = f.rides.GetByID(context.Background(), fresh.ID)
	assert.Equal(t, models.RideStatusDispatching, got.Status)
}

func TestSweepExpiresOverdueOffers(t *testing.T) {
	f := newSweeperFixture(t)
	rideID := primitive.NewObjectID()

	overdue := primitive.NewObjectID()
	live := primitive.NewObjectID()
	_, _ = f.offers.CreatePending(context.Background(), rideID, overdue, f.clock.Now().Add(-time.Second))
	_, _ = f.offers.CreatePending(context.Background(), rideID, live, f.clock.Now().Add(time.Minute))

	report, err := f.service.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.ExpiredOffers)

	offer, _ := f.offers.Get(context.Background(), rideID, overdue)
	assert.Equal(t, models.OfferStatusExpired, offer.Status)
	offer, _ = f.offers.Get(context.Background(), rideID, live)
	assert.Equal(t, models.OfferStatusPending, offer.Status)
}

func TestSweepForcesGhostDriversOffline(t *testing.T) {
	f := newSweeperFixture(t)

	staleAt := f.clock.Now().Add(-5 * time.Minute)
	freshAt := f.clock.Now()

	ghost := primitive.NewObjectID()
	alive := primitive.NewObjectID()
	f.presence.seed(&models.DriverPresence{ID: ghost, IsOnline: true, LastHeartbeatAt: &staleAt})
	f.presence.seed(&models.DriverPresence{ID: alive, IsOnline: true, LastHeartbeatAt: &freshAt})

	report, err := f.service.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.OfflineDrivers)

	p, _ := f.presence.Get(context.Background(), ghost)
	assert.False(t, p.IsOnline)
	p, _ = f.presence.Get(context.Background(), alive)
	assert.True(t, p.IsOnline)
}

func TestSweepGhostDriverMidRideKeepsBinding(t *testing.T) {
	f := newSweeperFixture(t)

	ride := &models.Ride{
		ID:          primitive.NewObjectID(),
		RiderID:     primitive.NewObjectID(),
		Status:      models.RideStatusStarted,
		RequestedAt: f.clock.Now().Add(-time.Minute),
	}
	f.rides.seed(ride)

	staleAt := f.clock.Now().Add(-5 * time.Minute)
	ghost := primitive.NewObjectID()
	f.presence.seed(&models.DriverPresence{
		ID:              ghost,
		IsOnline:        true,
		IsBusy:          true,
		CurrentRideID:   &ride.ID,
		LastHeartbeatAt: &staleAt,
	})

	report, err := f.service.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.OfflineDrivers)

	// Offline, but the active ride binding survives.
	p, _ := f.presence.Get(context.Background(), ghost)
	assert.False(t, p.IsOnline)
	assert.True(t, p.IsBusy)
	require.NotNil(t, p.CurrentRideID)
	assert.Equal(t, ride.ID, *p.CurrentRideID)
}

func TestSweepGhostDriverWithTerminalRideReleasesBinding(t *testing.T) {
	f := newSweeperFixture(t)

	ride := &models.Ride{
		ID:          primitive.NewObjectID(),
		RiderID:     primitive.NewObjectID(),
		Status:      models.RideStatusCompleted,
		RequestedAt: f.clock.Now().Add(-time.Hour),
	}
	f.rides.seed(ride)

	staleAt := f.clock.Now().Add(-5 * time.Minute)
	ghost := primitive.NewObjectID()
	f.presence.seed(&models.DriverPresence{
		ID:              ghost,
		IsOnline:        true,
		IsBusy:          true,
		CurrentRideID:   &ride.ID,
		LastHeartbeatAt: &staleAt,
	})

	_, err := f.service.Sweep(context.Background())
	require.NoError(t, err)

	p, _ := f.presence.Get(context.Background(), ghost)
	assert.False(t, p.IsOnline)
	assert.False(t, p.IsBusy)
	assert.Nil(t, p.CurrentRideID)
}

func TestSweepIsIdempotent(t *testing.T) {
	f := newSweeperFixture(t)

	f.rides.seed(&models.Ride{
		ID:          primitive.NewObjectID(),
		RiderID:     primitive.NewObjectID(),
		Status:      models.RideStatusRequested,
		RequestedAt: f.clock.Now().Add(-10 * time.Minute),
	})
	_, _ = f.offers.CreatePending(context.Background(), primitive.NewObjectID(), primitive.NewObjectID(), f.clock.Now().Add(-time.Second))
	staleAt := f.clock.Now().Add(-5 * time.Minute)
	f.presence.seed(&models.DriverPresence{ID: primitive.NewObjectID(), IsOnline: true, LastHeartbeatAt: &staleAt})

	first, err := f.service.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.CancelledRides)
	assert.Equal(t, int64(1), first.ExpiredOffers)
	assert.Equal(t, int64(1), first.OfflineDrivers)

	// A second sweep finds nothing left to repair.
	second, err := f.service.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), second.CancelledRides)
	assert.Equal(t, int64(0), second.ExpiredOffers)
	assert.Equal(t, int64(0), second.OfflineDrivers)
}

func TestSweepEmptyStateReportsZero(t *testing.T) {
	f := newSweeperFixture(t)

	report, err := f.service.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &SweepReport{}, report)
}
