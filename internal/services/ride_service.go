package services

import (
	"context"
	"fmt"

	"ridedispatch/internal/apperrors"
	"ridedispatch/internal/config"
	"ridedispatch/internal/models"
	"ridedispatch/internal/observability"
	"ridedispatch/internal/repositories/interfaces"
	"ridedispatch/pkg/logger"
	"ridedispatch/pkg/payment"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TripRequest struct {
	PickupLat    float64             `json:"pickup_lat"`
	PickupLng    float64             `json:"pickup_lng"`
	DropoffLat   float64             `json:"dropoff_lat"`
	DropoffLng   float64             `json:"dropoff_lng"`
	ServiceClass models.ServiceClass `json:"service_class"`
	PriceCents   int64               `json:"price_cents"`
}

type CancelResult struct {
	Refunded bool `json:"refunded"`
}

// RideService owns the ride aggregate's lifecycle outside the acceptance
// race: request intake, progress transitions and cancellation.
type RideService interface {
	RequestTrip(ctx context.Context, riderID primitive.ObjectID, req *TripRequest) (*models.Ride, error)
	GetRide(ctx context.Context, callerID primitive.ObjectID, callerType string, rideID primitive.ObjectID) (*models.Ride, error)

	// Start moves accepted -> started and is gated on the payment
	// collaborator reporting the ride's payment as authorized.
	Start(ctx context.Context, driverID, rideID primitive.ObjectID) error
	Progress(ctx context.Context, driverID, rideID primitive.ObjectID) error
	Complete(ctx context.Context, driverID, rideID primitive.ObjectID) error

	// Cancel ends any non-terminal ride. An active ride triggers a refund
	// decision through the payment collaborator.
	Cancel(ctx context.Context, callerID primitive.ObjectID, callerType string, rideID primitive.ObjectID, reason string) (*CancelResult, error)
}

type rideService struct {
	rides    interfaces.RideRepository
	offers   interfaces.OfferRepository
	presence interfaces.DriverPresenceRepository
	payments payment.Provider
	notifier OfferNotifier
	cfg      *config.DispatchConfig
	clock    Clock
	log      *logger.Logger
}

func NewRideService(
	rides interfaces.RideRepository,
	offers interfaces.OfferRepository,
	presence interfaces.DriverPresenceRepository,
	payments payment.Provider,
	notifier OfferNotifier,
	cfg *config.DispatchConfig,
	clock Clock,
	log *logger.Logger,
) RideService {
	return &rideService{
		rides:    rides,
		offers:   offers,
		presence: presence,
		payments: payments,
		notifier: notifier,
		cfg:      cfg,
		clock:    clock,
		log:      log,
	}
}

func (s *rideService) RequestTrip(ctx context.Context, riderID primitive.ObjectID, req *TripRequest) (*models.Ride, error) {
	if req.ServiceClass == "" {
		req.ServiceClass = models.ServiceClassStandard
	}
	if !req.ServiceClass.Valid() {
		return nil, apperrors.InvalidArgument("unknown service class")
	}
	if req.PriceCents < 0 {
		return nil, apperrors.InvalidArgument("price must not be negative")
	}

	pickup := models.NewPoint(req.PickupLng, req.PickupLat)
	dropoff := models.NewPoint(req.DropoffLng, req.DropoffLat)
	if !pickup.Valid() || !dropoff.Valid() {
		return nil, apperrors.InvalidArgument("coordinates out of range")
	}

	ride := &models.Ride{
		RideNumber:      fmt.Sprintf("RD-%s", uuid.NewString()[:8]),
		RiderID:         riderID,
		ServiceClass:    req.ServiceClass,
		PickupLocation:  pickup,
		DropoffLocation: dropoff,
		PriceCents:      req.PriceCents,
		Currency:        "USD",
	}

	if err := s.rides.Create(ctx, ride); err != nil {
		return nil, apperrors.Internal(err)
	}

	observability.RidesRequested.Inc()
	s.log.WithRideID(ride.ID).LogRideEvent(ride.ID, "requested", map[string]interface{}{
		"rider_id":      riderID.Hex(),
		"service_class": string(ride.ServiceClass),
	})

	return ride, nil
}

func (s *rideService) GetRide(ctx context.Context, callerID primitive.ObjectID, callerType string, rideID primitive.ObjectID) (*models.Ride, error) {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if ride == nil {
		return nil, apperrors.NotFound("ride")
	}

	if !s.mayAccess(ride, callerID, callerType) {
		return nil, apperrors.NotAuthorized("caller is not a party to this ride")
	}

	return ride, nil
}

func (s *rideService) Start(ctx context.Context, driverID, rideID primitive.ObjectID) error {
	ride, err := s.loadAssignedRide(ctx, driverID, rideID)
	if err != nil {
		return err
	}

	status, err := s.payments.GetAuthorizationStatus(ctx, ride.PaymentIntentID)
	if err != nil {
		return apperrors.Internal(err)
	}
	if status != payment.AuthorizationStatusAuthorized {
		return apperrors.ErrPaymentNotAuthorized
	}

	return s.transition(ctx, ride, driverID,
		[]models.RideStatus{models.RideStatusAccepted}, models.RideStatusStarted)
}

func (s *rideService) Progress(ctx context.Context, driverID, rideID primitive.ObjectID) error {
	ride, err := s.loadAssignedRide(ctx, driverID, rideID)
	if err != nil {
		return err
	}

	return s.transition(ctx, ride, driverID,
		[]models.RideStatus{models.RideStatusStarted}, models.RideStatusInProgress)
}

func (s *rideService) Complete(ctx context.Context, driverID, rideID primitive.ObjectID) error {
	ride, err := s.loadAssignedRide(ctx, driverID, rideID)
	if err != nil {
		return err
	}

	if err := s.transition(ctx, ride, driverID,
		[]models.RideStatus{models.RideStatusInProgress}, models.RideStatusCompleted); err != nil {
		return err
	}

	if _, err := s.presence.ClearBusy(ctx, driverID, rideID); err != nil {
		// Busy release is repairable; the sweeper corrects a driver whose
		// binding points at a terminal ride.
		s.log.WithRideID(rideID).WithDriverID(driverID).WithError(err).Warn("Failed to release driver after completion")
	}

	return nil
}

func (s *rideService) Cancel(ctx context.Context, callerID primitive.ObjectID, callerType string, rideID primitive.ObjectID, reason string) (*CancelResult, error) {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if ride == nil {
		return nil, apperrors.NotFound("ride")
	}
	if !s.mayAccess(ride, callerID, callerType) {
		return nil, apperrors.NotAuthorized("caller is not a party to this ride")
	}
	if ride.Status.IsTerminal() {
		return nil, apperrors.FailedPrecondition("RIDE_ALREADY_ENDED", "ride is already completed or cancelled")
	}

	if reason == "" {
		reason = cancelReasonFor(callerType)
	}

	wasActive := ride.Status.IsActive()

	nonTerminal := []models.RideStatus{
		models.RideStatusRequested,
		models.RideStatusDispatching,
		models.RideStatusOffered,
		models.RideStatusAccepted,
		models.RideStatusStarted,
		models.RideStatusInProgress,
	}
	cancelled, err := s.rides.Cancel(ctx, rideID, reason, callerType, nonTerminal)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if !cancelled {
		// Lost a race with another terminal transition.
		return nil, apperrors.FailedPrecondition("RIDE_ALREADY_ENDED", "ride is already completed or cancelled")
	}

	// Resolve whatever offers are still pending so driver queues clear.
	if _, err := s.offers.CancelPendingExcept(ctx, rideID, primitive.NilObjectID); err != nil {
		s.log.WithRideID(rideID).WithError(err).Warn("Failed to cancel outstanding offers, sweeper will repair")
	}

	if ride.DriverID != nil {
		if _, err := s.presence.ClearBusy(ctx, *ride.DriverID, rideID); err != nil {
			s.log.WithRideID(rideID).WithDriverID(*ride.DriverID).WithError(err).Warn("Failed to release driver after cancellation")
		}
	}

	result := &CancelResult{}
	if wasActive && ride.PaymentIntentID != "" {
		// Refund decision belongs to the payment collaborator; a failure is
		// reported as refunded=false, never as a failed cancellation.
		if _, err := s.payments.RefundPayment(ctx, &payment.RefundRequest{
			PaymentIntentID: ride.PaymentIntentID,
			AmountCents:     ride.PriceCents,
			Reason:          reason,
		}); err != nil {
			s.log.WithRideID(rideID).WithError(err).Warn("Refund request failed")
		} else {
			result.Refunded = true
		}
	}

	if s.notifier != nil {
		s.notifier.NotifyRideStatus(rideID, models.RideStatusCancelled)
	}

	s.log.LogRideEvent(rideID, "cancelled", map[string]interface{}{
		"reason":       reason,
		"cancelled_by": callerType,
		"refunded":     result.Refunded,
	})

	return result, nil
}

func (s *rideService) loadAssignedRide(ctx context.Context, driverID, rideID primitive.ObjectID) (*models.Ride, error) {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if ride == nil {
		return nil, apperrors.NotFound("ride")
	}
	if ride.DriverID == nil || *ride.DriverID != driverID {
		return nil, apperrors.NotAuthorized("ride is not assigned to this driver")
	}

	return ride, nil
}

func (s *rideService) transition(ctx context.Context, ride *models.Ride, driverID primitive.ObjectID, from []models.RideStatus, to models.RideStatus) error {
	ok, err := s.rides.TransitionStatus(ctx, ride.ID, from, to)
	if err != nil {
		return apperrors.Internal(err)
	}
	if !ok {
		return apperrors.FailedPrecondition("INVALID_RIDE_STATE",
			fmt.Sprintf("ride cannot move to %s from its current status", to))
	}

	// Mirror onto the presence document; completion clears the binding via
	// ClearBusy instead.
	if !to.IsTerminal() {
		if err := s.presence.UpdateRideStatus(ctx, driverID, ride.ID, to); err != nil {
			s.log.WithRideID(ride.ID).WithDriverID(driverID).WithError(err).Warn("Failed to mirror ride status onto presence")
		}
	}

	if s.notifier != nil {
		s.notifier.NotifyRideStatus(ride.ID, to)
	}

	return nil
}

func (s *rideService) mayAccess(ride *models.Ride, callerID primitive.ObjectID, callerType string) bool {
	if callerType == "admin" {
		return true
	}
	if ride.RiderID == callerID {
		return true
	}
	if ride.DriverID != nil && *ride.DriverID == callerID {
		return true
	}
	return false
}

func cancelReasonFor(callerType string) string {
	switch callerType {
	case "driver":
		return models.CancelReasonDriver
	case "admin":
		return models.CancelReasonAdmin
	default:
		return models.CancelReasonRider
	}
}
