package services

import (
	"context"

	"ridedispatch/internal/apperrors"
	"ridedispatch/internal/config"
	"ridedispatch/internal/models"
	"ridedispatch/internal/observability"
	"ridedispatch/internal/repositories/interfaces"
	"ridedispatch/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PresenceService owns the driver go-online/go-offline state machine and the
// heartbeat path. The stored presence document is the source of truth; every
// call returns the document as the backend now sees it so clients
// resynchronize instead of trusting optimistic local state.
type PresenceService interface {
	// SetOnline moves the driver online (requires a fresh location fix) or
	// offline (unconditional). A transition already in flight for the same
	// driver makes the call a no-op returning current state.
	SetOnline(ctx context.Context, driverID primitive.ObjectID, online bool, class models.ServiceClass, location *models.Location) (*models.DriverPresence, error)

	// Heartbeat records a location ping and refreshes staleness tracking.
	Heartbeat(ctx context.Context, driverID primitive.ObjectID, location *models.Location) (*models.DriverPresence, error)
}

type presenceService struct {
	presence interfaces.DriverPresenceRepository
	geo      GeoIndex
	locker   TransitionLocker
	cfg      *config.DispatchConfig
	clock    Clock
	log      *logger.Logger
}

func NewPresenceService(
	presence interfaces.DriverPresenceRepository,
	geo GeoIndex,
	locker TransitionLocker,
	cfg *config.DispatchConfig,
	clock Clock,
	log *logger.Logger,
) PresenceService {
	return &presenceService{
		presence: presence,
		geo:      geo,
		locker:   locker,
		cfg:      cfg,
		clock:    clock,
		log:      log,
	}
}

func (s *presenceService) SetOnline(ctx context.Context, driverID primitive.ObjectID, online bool, class models.ServiceClass, location *models.Location) (*models.DriverPresence, error) {
	lockKey := "presence_transition:" + driverID.Hex()
	acquired, err := s.locker.AcquireLock(ctx, lockKey, s.cfg.PresenceLockTTL)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if !acquired {
		// A transition is already in flight; report current backend state
		// instead of stacking a second transition on top of it.
		s.log.WithDriverID(driverID).Debug("Presence transition already in flight, no-op")
		return s.presence.Get(ctx, driverID)
	}
	defer s.locker.ReleaseLock(ctx, lockKey)

	if online {
		if location == nil || !location.Valid() {
			return nil, apperrors.InvalidArgument("going online requires a fresh location fix")
		}
		if !class.Valid() {
			return nil, apperrors.InvalidArgument("unknown service class")
		}

		if err := s.presence.SetOnline(ctx, driverID, class, location); err != nil {
			return nil, apperrors.Internal(err)
		}
		if err := s.geo.GeoAdd(ctx, driverGeoKey, driverID.Hex(), location.Longitude(), location.Latitude()); err != nil {
			s.log.WithDriverID(driverID).WithError(err).Warn("Failed to index driver location")
		}
	} else {
		if err := s.presence.SetOffline(ctx, driverID); err != nil {
			return nil, apperrors.Internal(err)
		}
		if err := s.geo.GeoRemove(ctx, driverGeoKey, driverID.Hex()); err != nil {
			s.log.WithDriverID(driverID).WithError(err).Warn("Failed to drop driver from location index")
		}
	}

	s.refreshOnlineGauge(ctx)

	// Read back: the stored document, not the request, is what the client
	// must converge to.
	return s.presence.Get(ctx, driverID)
}

func (s *presenceService) Heartbeat(ctx context.Context, driverID primitive.ObjectID, location *models.Location) (*models.DriverPresence, error) {
	if location != nil && !location.Valid() {
		return nil, apperrors.InvalidArgument("invalid location")
	}

	if err := s.presence.Heartbeat(ctx, driverID, location); err != nil {
		return nil, apperrors.Internal(err)
	}

	if location != nil {
		if err := s.geo.GeoAdd(ctx, driverGeoKey, driverID.Hex(), location.Longitude(), location.Latitude()); err != nil {
			s.log.WithDriverID(driverID).WithError(err).Warn("Failed to index driver location")
		}
	}

	return s.presence.Get(ctx, driverID)
}

func (s *presenceService) refreshOnlineGauge(ctx context.Context) {
	count, err := s.presence.CountOnline(ctx)
	if err != nil {
		return
	}
	observability.DriversOnline.Set(float64(count))
}
