package services

import (
	"context"
	"testing"
	"time"

	"ridedispatch/internal/apperrors"
	"ridedispatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type presenceFixture struct {
	presence *memPresenceRepo
	geo      *fakeGeo
	locker   *fakeLocker
	clock    *fakeClock
	service  PresenceService
}

func newPresenceFixture(t *testing.T) *presenceFixture {
	t.Helper()

	f := &presenceFixture{
		presence: newMemPresenceRepo(),
		geo:      &fakeGeo{},
		locker:   newFakeLocker(),
		clock:    newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	}
	f.service = NewPresenceService(f.presence, f.geo, f.locker, testConfig(), f.clock, testLogger())
	return f
}

func TestGoOnlineIndexesDriver(t *testing.T) {
	f := newPresenceFixture(t)
	driverID := primitive.NewObjectID()
	point := models.NewPoint(-73.98, 40.75)

	presence, err := f.service.SetOnline(context.Background(), driverID, true, models.ServiceClassStandard, &point)
	require.NoError(t, err)
	require.NotNil(t, presence)
	assert.True(t, presence.IsOnline)
	assert.Equal(t, models.ServiceClassStandard, presence.ServiceClass)
	assert.True(t, f.geo.contains(driverID.Hex()))
}

func TestGoOnlineRequiresLocation(t *testing.T) {
	f := newPresenceFixture(t)
	driverID := primitive.NewObjectID()

	_, err := f.service.SetOnline(context.Background(), driverID, true, models.ServiceClassStandard, nil)
	assert.Equal(t, apperrors.KindInvalidArgument, apperrors.KindOf(err))

	bad := models.NewPoint(-200, 95)
	_, err = f.service.SetOnline(context.Background(), driverID, true, models.ServiceClassStandard, &bad)
	assert.Equal(t, apperrors.KindInvalidArgument, apperrors.KindOf(err))
}

func TestGoOnlineRejectsUnknownServiceClass(t *testing.T) {
	f := newPresenceFixture(t)
	point := models.NewPoint(-73.98, 40.75)

	_, err := f.service.SetOnline(context.Background(), primitive.NewObjectID(), true, "helicopter", &point)
	assert.Equal(t, apperrors.KindInvalidArgument, apperrors.KindOf(err))
}

func TestGoOfflineRemovesDriverFromIndex(t *testing.T) {
	f := newPresenceFixture(t)
	driverID := primitive.NewObjectID()
	point := models.NewPoint(-73.98, 40.75)

	_, err := f.service.SetOnline(context.Background(), driverID, true, models.ServiceClassStandard, &point)
	require.NoError(t, err)

	presence, err := f.service.SetOnline(context.Background(), driverID, false, "", nil)
	require.NoError(t, err)
	assert.False(t, presence.IsOnline)
	assert.False(t, f.geo.contains(driverID.Hex()))
}

func TestConcurrentTransitionIsNoOp(t *testing.T) {
	f := newPresenceFixture(t)
	driverID := primitive.NewObjectID()
	point := models.NewPoint(-73.98, 40.75)

	_, err := f.service.SetOnline(context.Background(), driverID, true, models.ServiceClassStandard, &point)
	require.NoError(t, err)

	// Simulate a transition already holding the lock.
	held, err := f.locker.AcquireLock(context.Background(), "presence_transition:"+driverID.Hex(), time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	// The call returns current backend state without flipping anything.
	presence, err := f.service.SetOnline(context.Background(), driverID, false, "", nil)
	require.NoError(t, err)
	assert.True(t, presence.IsOnline)
}

func TestHeartbeatRefreshesLocation(t *testing.T) {
	f := newPresenceFixture(t)
	driverID := primitive.NewObjectID()
	point := models.NewPoint(-73.98, 40.75)

	_, err := f.service.SetOnline(context.Background(), driverID, true, models.ServiceClassStandard, &point)
	require.NoError(t, err)

	moved := models.NewPoint(-73.90, 40.80)
	presence, err := f.service.Heartbeat(context.Background(), driverID, &moved)
	require.NoError(t, err)
	require.NotNil(t, presence.Location)
	assert.Equal(t, moved.Longitude(), presence.Location.Longitude())
	assert.NotNil(t, presence.LastHeartbeatAt)
}

func TestHeartbeatRejectsInvalidLocation(t *testing.T) {
	f := newPresenceFixture(t)
	bad := models.NewPoint(-200, 95)

	_, err := f.service.Heartbeat(context.Background(), primitive.NewObjectID(), &bad)
	assert.Equal(t, apperrors.KindInvalidArgument, apperrors.KindOf(err))
}
