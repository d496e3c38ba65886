package config

import (
	"time"
)

// DispatchConfig carries every tunable of the dispatch/offer engine. It is
// loaded once at startup and passed into the coordinator; operations read it,
// never mutate it.
type DispatchConfig struct {
	OfferTTL             time.Duration `yaml:"offer_ttl"`
	MaxOffersPerRide     int           `yaml:"max_offers_per_ride"`
	SearchRadiusKM       float64       `yaml:"search_radius_km"`
	RedispatchRadiusKM   float64       `yaml:"redispatch_radius_km"`
	MaxSearchWindow      time.Duration `yaml:"max_search_window"`
	HeartbeatStaleAfter  time.Duration `yaml:"heartbeat_stale_after"`
	SweepInterval        time.Duration `yaml:"sweep_interval"`
	TxnRetries           int           `yaml:"txn_retries"`
	PresenceLockTTL      time.Duration `yaml:"presence_lock_ttl"`
	LocationFreshWithin  time.Duration `yaml:"location_fresh_within"`
}

func loadDispatchConfig() *DispatchConfig {
	return &DispatchConfig{
		OfferTTL:            getEnvAsDuration("DISPATCH_OFFER_TTL", 60*time.Second),
		MaxOffersPerRide:    getEnvAsInt("DISPATCH_MAX_OFFERS_PER_RIDE", 5),
		SearchRadiusKM:      getEnvAsFloat64("DISPATCH_SEARCH_RADIUS_KM", 5.0),
		RedispatchRadiusKM:  getEnvAsFloat64("DISPATCH_REDISPATCH_RADIUS_KM", 10.0),
		MaxSearchWindow:     getEnvAsDuration("DISPATCH_MAX_SEARCH_WINDOW", 5*time.Minute),
		HeartbeatStaleAfter: getEnvAsDuration("DISPATCH_HEARTBEAT_STALE_AFTER", 2*time.Minute),
		SweepInterval:       getEnvAsDuration("DISPATCH_SWEEP_INTERVAL", 30*time.Second),
		TxnRetries:          getEnvAsInt("DISPATCH_TXN_RETRIES", 3),
		PresenceLockTTL:     getEnvAsDuration("DISPATCH_PRESENCE_LOCK_TTL", 10*time.Second),
		LocationFreshWithin: getEnvAsDuration("DISPATCH_LOCATION_FRESH_WITHIN", 30*time.Second),
	}
}
