package services

import (
	"context"
	"io"
	"sync"
	"time"

	"ridedispatch/internal/config"
	"ridedispatch/internal/models"
	"ridedispatch/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testLogger() *logger.Logger {
	l, _ := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Format: "text"})
	l.SetOutput(io.Discard)
	return l
}

func testConfig() *config.DispatchConfig {
	return &config.DispatchConfig{
		OfferTTL:            60 * time.Second,
		MaxOffersPerRide:    5,
		SearchRadiusKM:      5.0,
		RedispatchRadiusKM:  10.0,
		MaxSearchWindow:     5 * time.Minute,
		HeartbeatStaleAfter: 2 * time.Minute,
		SweepInterval:       30 * time.Second,
		TxnRetries:          3,
		PresenceLockTTL:     10 * time.Second,
	}
}

// fakeClock pins time for TTL and staleness decisions.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeTxRunner serializes transaction bodies with a mutex. The conditional
// repository writes carry the real atomicity, mirroring how the Mongo
// transactions behave.
type fakeTxRunner struct {
	mu sync.Mutex
}

func (t *fakeTxRunner) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}

// memRideRepo is an in-memory RideRepository with the same conditional-write
// semantics as the Mongo implementation.
type memRideRepo struct {
	mu    sync.Mutex
	rides map[primitive.ObjectID]*models.Ride
}

func newMemRideRepo() *memRideRepo {
	return &memRideRepo{rides: make(map[primitive.ObjectID]*models.Ride)}
}

func (r *memRideRepo) Create(ctx context.Context, ride *models.Ride) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ride.ID.IsZero() {
		ride.ID = primitive.NewObjectID()
	}
	ride.Status = models.RideStatusRequested
	now := time.Now()
	ride.RequestedAt = now
	ride.CreatedAt = now
	ride.UpdatedAt = now

	clone := *ride
	r.rides[ride.ID] = &clone
	return nil
}

func (r *memRideRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ride, ok := r.rides[id]
	if !ok {
		return nil, nil
	}
	clone := *ride
	return &clone, nil
}

func (r *memRideRepo) TransitionStatus(ctx context.Context, id primitive.ObjectID, from []models.RideStatus, to models.RideStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ride, ok := r.rides[id]
	if !ok || !statusIn(ride.Status, from) {
		return false, nil
	}
	ride.Status = to
	ride.UpdatedAt = time.Now()
	return true, nil
}

func (r *memRideRepo) AssignDriver(ctx context.Context, id primitive.ObjectID, driverID primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ride, ok := r.rides[id]
	if !ok || ride.DriverID != nil || !ride.Status.IsDispatchable() {
		return false, nil
	}
	d := driverID
	ride.DriverID = &d
	ride.Status = models.RideStatusAccepted
	now := time.Now()
	ride.AcceptedAt = &now
	return true, nil
}

func (r *memRideRepo) Cancel(ctx context.Context, id primitive.ObjectID, reason, cancelledBy string, from []models.RideStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ride, ok := r.rides[id]
	if !ok || !statusIn(ride.Status, from) {
		return false, nil
	}
	ride.Status = models.RideStatusCancelled
	ride.CancellationReason = reason
	ride.CancelledBy = cancelledBy
	now := time.Now()
	ride.CancelledAt = &now
	return true, nil
}

func (r *memRideRepo) CancelStuck(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, ride := range r.rides {
		waiting := ride.Status == models.RideStatusRequested ||
			ride.Status == models.RideStatusDispatching ||
			ride.Status == models.RideStatusOffered
		if waiting && ride.RequestedAt.Before(cutoff) {
			ride.Status = models.RideStatusCancelled
			ride.CancellationReason = models.CancelReasonSearchTimeout
			ride.CancelledBy = "sweeper"
			count++
		}
	}
	return count, nil
}

// seed installs a ride bypassing Create's status reset.
func (r *memRideRepo) seed(ride *models.Ride) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ride.ID.IsZero() {
		ride.ID = primitive.NewObjectID()
	}
	clone := *ride
	r.rides[ride.ID] = &clone
}

func statusIn(s models.RideStatus, set []models.RideStatus) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}

type offerKey struct {
	rideID   primitive.ObjectID
	driverID primitive.ObjectID
}

// memOfferRepo mirrors the Mongo offer repository's upsert and
// conditional-resolve behavior.
type memOfferRepo struct {
	mu     sync.Mutex
	offers map[offerKey]*models.Offer
}

func newMemOfferRepo() *memOfferRepo {
	return &memOfferRepo{offers: make(map[offerKey]*models.Offer)}
}

func (r *memOfferRepo) CreatePending(ctx context.Context, rideID, driverID primitive.ObjectID, expiresAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := offerKey{rideID, driverID}
	if existing, ok := r.offers[key]; ok {
		existing.Attempts++
		return false, nil
	}
	r.offers[key] = &models.Offer{
		ID:        primitive.NewObjectID(),
		RideID:    rideID,
		DriverID:  driverID,
		Status:    models.OfferStatusPending,
		Attempts:  1,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}
	return true, nil
}

func (r *memOfferRepo) Get(ctx context.Context, rideID, driverID primitive.ObjectID) (*models.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	offer, ok := r.offers[offerKey{rideID, driverID}]
	if !ok {
		return nil, nil
	}
	clone := *offer
	return &clone, nil
}

func (r *memOfferRepo) ListByRide(ctx context.Context, rideID primitive.ObjectID) ([]*models.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.Offer
	for key, offer := range r.offers {
		if key.rideID == rideID {
			clone := *offer
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (r *memOfferRepo) ListPendingByDriver(ctx context.Context, driverID primitive.ObjectID, now time.Time) ([]*models.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.Offer
	for key, offer := range r.offers {
		if key.driverID == driverID && offer.Status == models.OfferStatusPending && offer.ExpiresAt.After(now) {
			clone := *offer
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (r *memOfferRepo) ResolveIfPending(ctx context.Context, rideID, driverID primitive.ObjectID, to models.OfferStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	offer, ok := r.offers[offerKey{rideID, driverID}]
	if !ok || offer.Status != models.OfferStatusPending {
		return false, nil
	}
	offer.Status = to
	now := time.Now()
	offer.RespondedAt = &now
	return true, nil
}

func (r *memOfferRepo) CancelPendingExcept(ctx context.Context, rideID primitive.ObjectID, winner primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for key, offer := range r.offers {
		if key.rideID != rideID || offer.Status != models.OfferStatusPending {
			continue
		}
		if !winner.IsZero() && key.driverID == winner {
			continue
		}
		offer.Status = models.OfferStatusCancelled
		count++
	}
	return count, nil
}

func (r *memOfferRepo) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, offer := range r.offers {
		if offer.Status == models.OfferStatusPending && offer.ExpiresAt.Before(now) {
			offer.Status = models.OfferStatusExpired
			count++
		}
	}
	return count, nil
}

// memPresenceRepo holds driver presence documents with the conditional
// busy-flag writes the acceptance path depends on.
type memPresenceRepo struct {
	mu      sync.Mutex
	drivers map[primitive.ObjectID]*models.DriverPresence
}

func newMemPresenceRepo() *memPresenceRepo {
	return &memPresenceRepo{drivers: make(map[primitive.ObjectID]*models.DriverPresence)}
}

func (r *memPresenceRepo) Get(ctx context.Context, driverID primitive.ObjectID) (*models.DriverPresence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.drivers[driverID]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (r *memPresenceRepo) SetOnline(ctx context.Context, driverID primitive.ObjectID, class models.ServiceClass, location *models.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	p, ok := r.drivers[driverID]
	if !ok {
		p = &models.DriverPresence{ID: driverID, CreatedAt: now}
		r.drivers[driverID] = p
	}
	p.IsOnline = true
	p.ServiceClass = class
	p.Location = location
	p.LastHeartbeatAt = &now
	p.OnlineSince = &now
	return nil
}

func (r *memPresenceRepo) SetOffline(ctx context.Context, driverID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.drivers[driverID]; ok {
		p.IsOnline = false
		p.OnlineSince = nil
	}
	return nil
}

func (r *memPresenceRepo) Heartbeat(ctx context.Context, driverID primitive.ObjectID, location *models.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.drivers[driverID]
	if !ok {
		return nil
	}
	now := time.Now()
	p.LastHeartbeatAt = &now
	if location != nil {
		p.Location = location
	}
	return nil
}

func (r *memPresenceRepo) MarkBusy(ctx context.Context, driverID, rideID primitive.ObjectID, status models.RideStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.drivers[driverID]
	if !ok || !p.IsOnline || p.IsBusy {
		return false, nil
	}
	p.IsBusy = true
	rid := rideID
	p.CurrentRideID = &rid
	p.CurrentRideStatus = status
	return true, nil
}

func (r *memPresenceRepo) ClearBusy(ctx context.Context, driverID, rideID primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.drivers[driverID]
	if !ok || p.CurrentRideID == nil || *p.CurrentRideID != rideID {
		return false, nil
	}
	p.IsBusy = false
	p.CurrentRideID = nil
	p.CurrentRideStatus = ""
	return true, nil
}

func (r *memPresenceRepo) UpdateRideStatus(ctx context.Context, driverID, rideID primitive.ObjectID, status models.RideStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.drivers[driverID]
	if ok && p.CurrentRideID != nil && *p.CurrentRideID == rideID {
		p.CurrentRideStatus = status
	}
	return nil
}

func (r *memPresenceRepo) ListEligible(ctx context.Context, ids []primitive.ObjectID, class models.ServiceClass, heartbeatAfter time.Time) ([]*models.DriverPresence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.DriverPresence
	for _, id := range ids {
		p, ok := r.drivers[id]
		if !ok || !p.Available() || p.ServiceClass != class {
			continue
		}
		if p.LastHeartbeatAt == nil || p.LastHeartbeatAt.Before(heartbeatAfter) {
			continue
		}
		clone := *p
		result = append(result, &clone)
	}
	return result, nil
}

func (r *memPresenceRepo) ListStaleOnline(ctx context.Context, cutoff time.Time) ([]*models.DriverPresence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.DriverPresence
	for _, p := range r.drivers {
		if p.IsOnline && (p.LastHeartbeatAt == nil || p.LastHeartbeatAt.Before(cutoff)) {
			clone := *p
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (r *memPresenceRepo) ForceOffline(ctx context.Context, driverID primitive.ObjectID, cutoff time.Time, clearBusy bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.drivers[driverID]
	if !ok || !p.IsOnline {
		return false, nil
	}
	if p.LastHeartbeatAt != nil && !p.LastHeartbeatAt.Before(cutoff) {
		// Fresh ping won the race.
		return false, nil
	}
	p.IsOnline = false
	p.OnlineSince = nil
	if clearBusy {
		p.IsBusy = false
		p.CurrentRideID = nil
		p.CurrentRideStatus = ""
	}
	return true, nil
}

func (r *memPresenceRepo) CountOnline(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, p := range r.drivers {
		if p.IsOnline {
			count++
		}
	}
	return count, nil
}

func (r *memPresenceRepo) seed(p *models.DriverPresence) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *p
	r.drivers[p.ID] = &clone
}

// fakeGeo is a deterministic GeoIndex that returns whatever members were
// added, in insertion order, ignoring distance.
type fakeGeo struct {
	mu      sync.Mutex
	members []string
}

func (g *fakeGeo) GeoAdd(ctx context.Context, key, member string, longitude, latitude float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, m := range g.members {
		if m == member {
			return nil
		}
	}
	g.members = append(g.members, member)
	return nil
}

func (g *fakeGeo) GeoRemove(ctx context.Context, key, member string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, m := range g.members {
		if m == member {
			g.members = append(g.members[:i], g.members[i+1:]...)
			break
		}
	}
	return nil
}

func (g *fakeGeo) GeoSearch(ctx context.Context, key string, longitude, latitude, radiusKM float64, limit int) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	result := make([]string, len(g.members))
	copy(result, g.members)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (g *fakeGeo) contains(member string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, m := range g.members {
		if m == member {
			return true
		}
	}
	return false
}

// fakeLocker implements TransitionLocker in memory.
type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (l *fakeLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *fakeLocker) ReleaseLock(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

// recordingNotifier captures published events for assertions.
type recordingNotifier struct {
	mu           sync.Mutex
	offerEvents  []primitive.ObjectID
	statusEvents []models.RideStatus
}

func (n *recordingNotifier) NotifyOfferCreated(rideID, driverID primitive.ObjectID, expiresAtUnix int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.offerEvents = append(n.offerEvents, driverID)
}

func (n *recordingNotifier) NotifyRideStatus(rideID primitive.ObjectID, status models.RideStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statusEvents = append(n.statusEvents, status)
}

func (n *recordingNotifier) lastStatus() models.RideStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.statusEvents) == 0 {
		return ""
	}
	return n.statusEvents[len(n.statusEvents)-1]
}
