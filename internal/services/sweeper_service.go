package services

import (
	"context"
	"time"

	"ridedispatch/internal/config"
	"ridedispatch/internal/observability"
	"ridedispatch/internal/repositories/interfaces"
	"ridedispatch/pkg/logger"
)

// SweepReport carries the mutation counts of one reconciliation pass set.
type SweepReport struct {
	CancelledRides int64 `json:"cancelled_rides"`
	ExpiredOffers  int64 `json:"expired_offers"`
	OfflineDrivers int64 `json:"offline_drivers"`
}

// SweeperService restores the engine's invariants without assuming any other
// component ran correctly. Every correction is a conditional update that
// re-checks the stale condition at write time, so sweeps are idempotent and
// safe to run concurrently with live traffic and with themselves.
type SweeperService interface {
	Sweep(ctx context.Context) (*SweepReport, error)
}

type sweeperService struct {
	rides    interfaces.RideRepository
	offers   interfaces.OfferRepository
	presence interfaces.DriverPresenceRepository
	cfg      *config.DispatchConfig
	clock    Clock
	log      *logger.Logger
}

func NewSweeperService(
	rides interfaces.RideRepository,
	offers interfaces.OfferRepository,
	presence interfaces.DriverPresenceRepository,
	cfg *config.DispatchConfig,
	clock Clock,
	log *logger.Logger,
) SweeperService {
	return &sweeperService{
		rides:    rides,
		offers:   offers,
		presence: presence,
		cfg:      cfg,
		clock:    clock,
		log:      log,
	}
}

// Sweep runs the three repair passes. Each pass is independent; a failure in
// one is logged and the remaining passes still run.
func (s *sweeperService) Sweep(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{}
	now := s.clock.Now()

	cancelled, err := s.rides.CancelStuck(ctx, now.Add(-s.cfg.MaxSearchWindow))
	if err != nil {
		s.log.WithError(err).Error("Stuck-ride pass failed")
	} else {
		report.CancelledRides = cancelled
		observability.SweepCancelledRides.Add(float64(cancelled))
	}

	expired, err := s.offers.ExpirePending(ctx, now)
	if err != nil {
		s.log.WithError(err).Error("Expired-offer pass failed")
	} else {
		report.ExpiredOffers = expired
		observability.SweepExpiredOffers.Add(float64(expired))
	}

	offline, err := s.sweepGhostDrivers(ctx, now)
	if err != nil {
		s.log.WithError(err).Error("Ghost-driver pass failed")
	} else {
		report.OfflineDrivers = offline
		observability.SweepOfflineDrivers.Add(float64(offline))
	}

	s.log.LogSweepReport(report.CancelledRides, report.ExpiredOffers, report.OfflineDrivers)

	return report, nil
}

// sweepGhostDrivers forces stale-heartbeat drivers offline. The busy flag is
// only cleared when the bound ride is missing or terminal; a ghost driver
// mid-ride keeps the binding so the ride's own lifecycle resolves it.
func (s *sweeperService) sweepGhostDrivers(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-s.cfg.HeartbeatStaleAfter)

	stale, err := s.presence.ListStaleOnline(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	var forced int64
	for _, ghost := range stale {
		clearBusy := false
		if ghost.IsBusy {
			clearBusy = true
			if ghost.CurrentRideID != nil {
				ride, err := s.rides.GetByID(ctx, *ghost.CurrentRideID)
				if err != nil {
					s.log.WithDriverID(ghost.ID).WithError(err).Warn("Failed to load ghost driver's ride, skipping busy reconciliation")
					clearBusy = false
				} else if ride != nil && ride.Status.IsActive() {
					// Driver is genuinely mid-ride; force offline but keep
					// the busy binding intact.
					clearBusy = false
				}
			}
		}

		ok, err := s.presence.ForceOffline(ctx, ghost.ID, cutoff, clearBusy)
		if err != nil {
			// One failed correction must not abort the scan.
			s.log.WithDriverID(ghost.ID).WithError(err).Warn("Failed to force ghost driver offline")
			continue
		}
		if ok {
			forced++
		}
	}

	return forced, nil
}
