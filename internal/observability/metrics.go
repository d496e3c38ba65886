package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RidesRequested = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "rides_requested_total", Help: "Total ride requests received"})
	OffersCreated  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "offers_created_total", Help: "Total offers fanned out to drivers"})

	AcceptanceResults = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "acceptance_results_total", Help: "Acceptance attempts by outcome"},
		[]string{"outcome"},
	)

	SweepCancelledRides = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "sweep_cancelled_rides_total", Help: "Stuck rides cancelled by the sweeper"})
	SweepExpiredOffers  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "sweep_expired_offers_total", Help: "Pending offers expired by the sweeper"})
	SweepOfflineDrivers = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "sweep_offline_drivers_total", Help: "Ghost drivers forced offline by the sweeper"})

	DriversOnline = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ride_dispatch", Name: "drivers_online", Help: "Drivers currently marked online"})

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
