package services

import (
	"context"
	"time"
)

// Clock lets tests pin wall-clock time; all TTL and staleness decisions go
// through it.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func NewRealClock() Clock { return realClock{} }

// TxRunner executes a function inside one storage transaction. The MongoDB
// implementation lives in pkg/database; tests substitute a serialized
// in-memory runner.
type TxRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

// GeoIndex is the driver location index used for candidate lookup. Backed by
// the Redis geo commands in production.
type GeoIndex interface {
	GeoAdd(ctx context.Context, key, member string, longitude, latitude float64) error
	GeoRemove(ctx context.Context, key, member string) error
	GeoSearch(ctx context.Context, key string, longitude, latitude, radiusKM float64, limit int) ([]string, error)
}

// TransitionLocker guards the go-online/go-offline transitions against
// re-entrant requests from the same driver.
type TransitionLocker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

const driverGeoKey = "drivers:geo"
