package services

import (
	"context"

	"ridedispatch/internal/apperrors"
	"ridedispatch/internal/config"
	"ridedispatch/internal/models"
	"ridedispatch/internal/observability"
	"ridedispatch/internal/repositories/interfaces"
	"ridedispatch/pkg/database"
	"ridedispatch/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AcceptanceService resolves the race between drivers answering the same
// ride. Accept is the only code path that may ever set an offer to accepted.
type AcceptanceService interface {
	// Accept atomically converts the driver's pending offer into the ride's
	// single assignment. Exactly one concurrent Accept per ride can succeed.
	Accept(ctx context.Context, rideID, driverID primitive.ObjectID) error

	// Decline resolves the driver's own offer to rejected. It never touches
	// the ride or sibling offers.
	Decline(ctx context.Context, rideID, driverID primitive.ObjectID) error
}

type acceptanceService struct {
	tx       TxRunner
	rides    interfaces.RideRepository
	offers   interfaces.OfferRepository
	presence interfaces.DriverPresenceRepository
	notifier OfferNotifier
	cfg      *config.DispatchConfig
	clock    Clock
	log      *logger.Logger
}

func NewAcceptanceService(
	tx TxRunner,
	rides interfaces.RideRepository,
	offers interfaces.OfferRepository,
	presence interfaces.DriverPresenceRepository,
	notifier OfferNotifier,
	cfg *config.DispatchConfig,
	clock Clock,
	log *logger.Logger,
) AcceptanceService {
	return &acceptanceService{
		tx:       tx,
		rides:    rides,
		offers:   offers,
		presence: presence,
		notifier: notifier,
		cfg:      cfg,
		clock:    clock,
		log:      log,
	}
}

func (s *acceptanceService) Accept(ctx context.Context, rideID, driverID primitive.ObjectID) error {
	var err error
	for attempt := 0; attempt <= s.cfg.TxnRetries; attempt++ {
		err = s.tx.Run(ctx, func(txCtx context.Context) error {
			return s.acceptInTxn(txCtx, rideID, driverID)
		})
		if err == nil || !database.IsTransientError(err) {
			break
		}
		s.log.WithRideID(rideID).WithDriverID(driverID).
			WithField("attempt", attempt+1).Warn("Acceptance transaction conflicted, retrying")
	}

	if err != nil {
		if database.IsTransientError(err) {
			// Conflicts beyond the retry bound surface as a precondition
			// failure, never as a silent drop.
			err = apperrors.ErrTxnConflict.Wrap(err)
		}
		observability.AcceptanceResults.WithLabelValues(apperrors.CodeOf(err)).Inc()
		return err
	}

	observability.AcceptanceResults.WithLabelValues("won").Inc()
	s.log.WithRideID(rideID).WithDriverID(driverID).Info("Ride accepted")

	// Fast path: resolve the losers' offers immediately so their queues
	// clear without waiting for a sweep. Best-effort only; the sweeper's
	// expiry pass is the backstop and must stay correct without this.
	s.cancelSiblingOffers(ctx, rideID, driverID)

	if s.notifier != nil {
		s.notifier.NotifyRideStatus(rideID, models.RideStatusAccepted)
	}

	return nil
}

// acceptInTxn performs the four reads and four writes of the acceptance
// contract inside one transaction context.
func (s *acceptanceService) acceptInTxn(ctx context.Context, rideID, driverID primitive.ObjectID) error {
	offer, err := s.offers.Get(ctx, rideID, driverID)
	if err != nil {
		return apperrors.Internal(err)
	}
	if offer == nil {
		return apperrors.NotFound("offer")
	}
	if offer.Expired(s.clock.Now()) {
		return apperrors.ErrOfferExpired
	}
	if offer.Status != models.OfferStatusPending {
		return apperrors.ErrOfferNotPending
	}

	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return apperrors.Internal(err)
	}
	if ride == nil {
		return apperrors.NotFound("ride")
	}
	if !ride.Status.IsDispatchable() || ride.DriverID != nil {
		return apperrors.ErrRideNotDispatchable
	}

	presence, err := s.presence.Get(ctx, driverID)
	if err != nil {
		return apperrors.Internal(err)
	}
	if presence == nil || !presence.IsOnline || presence.IsBusy {
		return apperrors.ErrDriverUnavailable
	}

	resolved, err := s.offers.ResolveIfPending(ctx, rideID, driverID, models.OfferStatusAccepted)
	if err != nil {
		return apperrors.Internal(err)
	}
	if !resolved {
		return apperrors.ErrOfferNotPending
	}

	assigned, err := s.rides.AssignDriver(ctx, rideID, driverID)
	if err != nil {
		return apperrors.Internal(err)
	}
	if !assigned {
		return apperrors.ErrRideNotDispatchable
	}

	busy, err := s.presence.MarkBusy(ctx, driverID, rideID, models.RideStatusAccepted)
	if err != nil {
		return apperrors.Internal(err)
	}
	if !busy {
		return apperrors.ErrDriverUnavailable
	}

	return nil
}

func (s *acceptanceService) cancelSiblingOffers(ctx context.Context, rideID, winner primitive.ObjectID) {
	cancelled, err := s.offers.CancelPendingExcept(ctx, rideID, winner)
	if err != nil {
		s.log.WithRideID(rideID).WithError(err).Warn("Failed to cancel sibling offers, sweeper will repair")
		return
	}

	if cancelled > 0 {
		s.log.WithRideID(rideID).WithField("cancelled", cancelled).Debug("Sibling offers cancelled")
	}
}

func (s *acceptanceService) Decline(ctx context.Context, rideID, driverID primitive.ObjectID) error {
	offer, err := s.offers.Get(ctx, rideID, driverID)
	if err != nil {
		return apperrors.Internal(err)
	}
	if offer == nil {
		return apperrors.NotFound("offer")
	}

	// An already-resolved offer makes decline a no-op; the driver's intent
	// is satisfied either way.
	if offer.Status != models.OfferStatusPending {
		return nil
	}

	if _, err := s.offers.ResolveIfPending(ctx, rideID, driverID, models.OfferStatusRejected); err != nil {
		return apperrors.Internal(err)
	}

	observability.AcceptanceResults.WithLabelValues("declined").Inc()
	s.log.WithRideID(rideID).WithDriverID(driverID).Info("Offer declined")

	return nil
}
