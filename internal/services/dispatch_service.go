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

// DispatchService turns a requested ride into a fan-out of time-limited
// offers to nearby eligible drivers.
type DispatchService interface {
	// Dispatch selects candidates for the ride and creates one pending offer
	// per candidate. Returns the number of offers created; zero with a nil
	// error means no eligible driver was found and the ride stays in
	// dispatching.
	Dispatch(ctx context.Context, rideID primitive.ObjectID) (int, error)

	// Redispatch re-runs candidate selection with the widened radius for a
	// ride that is still unassigned.
	Redispatch(ctx context.Context, rideID primitive.ObjectID) (int, error)

	// ListDriverOffers returns the driver's live offer queue: pending offers
	// that have not yet expired.
	ListDriverOffers(ctx context.Context, driverID primitive.ObjectID) ([]*models.Offer, error)

	// ListRideOffers returns every offer of a ride regardless of status.
	ListRideOffers(ctx context.Context, rideID primitive.ObjectID) ([]*models.Offer, error)
}

type OfferNotifier interface {
	NotifyOfferCreated(rideID, driverID primitive.ObjectID, expiresAtUnix int64)
	NotifyRideStatus(rideID primitive.ObjectID, status models.RideStatus)
}

type dispatchService struct {
	rides    interfaces.RideRepository
	offers   interfaces.OfferRepository
	presence interfaces.DriverPresenceRepository
	geo      GeoIndex
	notifier OfferNotifier
	cfg      *config.DispatchConfig
	clock    Clock
	log      *logger.Logger
}

func NewDispatchService(
	rides interfaces.RideRepository,
	offers interfaces.OfferRepository,
	presence interfaces.DriverPresenceRepository,
	geo GeoIndex,
	notifier OfferNotifier,
	cfg *config.DispatchConfig,
	clock Clock,
	log *logger.Logger,
) DispatchService {
	return &dispatchService{
		rides:    rides,
		offers:   offers,
		presence: presence,
		geo:      geo,
		notifier: notifier,
		cfg:      cfg,
		clock:    clock,
		log:      log,
	}
}

func (s *dispatchService) Dispatch(ctx context.Context, rideID primitive.ObjectID) (int, error) {
	return s.dispatch(ctx, rideID, s.cfg.SearchRadiusKM, []models.RideStatus{models.RideStatusRequested})
}

func (s *dispatchService) Redispatch(ctx context.Context, rideID primitive.ObjectID) (int, error) {
	return s.dispatch(ctx, rideID, s.cfg.RedispatchRadiusKM, []models.RideStatus{
		models.RideStatusDispatching,
		models.RideStatusOffered,
	})
}

func (s *dispatchService) dispatch(ctx context.Context, rideID primitive.ObjectID, radiusKM float64, from []models.RideStatus) (int, error) {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	if ride == nil {
		return 0, apperrors.NotFound("ride")
	}
	if !ride.Status.IsDispatchable() || ride.DriverID != nil {
		return 0, apperrors.FailedPrecondition("RIDE_NOT_DISPATCHABLE", "ride is no longer waiting for a driver")
	}

	// Moving requested->dispatching is conditional; a concurrent dispatch of
	// the same ride simply observes the transition already happened and
	// proceeds, offer creation below is idempotent either way.
	if ride.Status == models.RideStatusRequested {
		if _, err := s.rides.TransitionStatus(ctx, rideID, from, models.RideStatusDispatching); err != nil {
			return 0, apperrors.Internal(err)
		}
	}

	candidates, err := s.selectCandidates(ctx, ride, radiusKM)
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		s.log.WithRideID(rideID).Info("No eligible drivers found, ride stays in dispatching")
		return 0, nil
	}

	expiresAt := s.clock.Now().Add(s.cfg.OfferTTL)
	created := 0
	for _, candidate := range candidates {
		wasCreated, err := s.offers.CreatePending(ctx, rideID, candidate.ID, expiresAt)
		if err != nil {
			// Offers are independent; keep fanning out and let the sweeper
			// reconcile whatever is missing.
			s.log.WithRideID(rideID).WithDriverID(candidate.ID).WithError(err).Warn("Failed to create offer")
			continue
		}
		if wasCreated {
			created++
			observability.OffersCreated.Inc()
			if s.notifier != nil {
				s.notifier.NotifyOfferCreated(rideID, candidate.ID, expiresAt.Unix())
			}
		}
	}

	if created > 0 {
		if _, err := s.rides.TransitionStatus(ctx, rideID,
			[]models.RideStatus{models.RideStatusDispatching}, models.RideStatusOffered); err != nil {
			return created, apperrors.Internal(err)
		}
		if s.notifier != nil {
			s.notifier.NotifyRideStatus(rideID, models.RideStatusOffered)
		}
	}

	s.log.WithRideID(rideID).WithFields(map[string]interface{}{
		"candidates": len(candidates),
		"offers":     created,
	}).Info("Ride dispatched")

	return created, nil
}

func (s *dispatchService) ListDriverOffers(ctx context.Context, driverID primitive.ObjectID) ([]*models.Offer, error) {
	offers, err := s.offers.ListPendingByDriver(ctx, driverID, s.clock.Now())
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return offers, nil
}

func (s *dispatchService) ListRideOffers(ctx context.Context, rideID primitive.ObjectID) ([]*models.Offer, error) {
	offers, err := s.offers.ListByRide(ctx, rideID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return offers, nil
}

func (s *dispatchService) selectCandidates(ctx context.Context, ride *models.Ride, radiusKM float64) ([]*models.DriverPresence, error) {
	members, err := s.geo.GeoSearch(
		ctx,
		driverGeoKey,
		ride.PickupLocation.Longitude(),
		ride.PickupLocation.Latitude(),
		radiusKM,
		s.cfg.MaxOffersPerRide*3, // oversample, the presence filter prunes
	)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	ids := make([]primitive.ObjectID, 0, len(members))
	for _, member := range members {
		id, err := primitive.ObjectIDFromHex(member)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	heartbeatAfter := s.clock.Now().Add(-s.cfg.HeartbeatStaleAfter)
	eligible, err := s.presence.ListEligible(ctx, ids, ride.ServiceClass, heartbeatAfter)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	if len(eligible) > s.cfg.MaxOffersPerRide {
		eligible = eligible[:s.cfg.MaxOffersPerRide]
	}

	return eligible, nil
}
