package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DriverPresence is the long-lived per-driver availability document. The
// backend copy is the source of truth; clients resynchronize to whatever it
// reports after every presence call.
type DriverPresence struct {
	ID                primitive.ObjectID  `json:"id" bson:"_id"`
	ServiceClass      ServiceClass        `json:"service_class" bson:"service_class"`
	IsOnline          bool                `json:"is_online" bson:"is_online"`
	IsBusy            bool                `json:"is_busy" bson:"is_busy"`
	CurrentRideID     *primitive.ObjectID `json:"current_ride_id" bson:"current_ride_id"`
	CurrentRideStatus RideStatus          `json:"current_ride_status,omitempty" bson:"current_ride_status"`
	Location          *Location           `json:"location" bson:"location"`
	LastHeartbeatAt   *time.Time          `json:"last_heartbeat_at" bson:"last_heartbeat_at"`
	OnlineSince       *time.Time          `json:"online_since" bson:"online_since"`
	CreatedAt         time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at" bson:"updated_at"`
}

// Available reports whether the driver may receive new offers.
func (p *DriverPresence) Available() bool {
	return p.IsOnline && !p.IsBusy
}

// HeartbeatStale reports whether the last ping is older than threshold,
// making the driver a ghost candidate.
func (p *DriverPresence) HeartbeatStale(now time.Time, threshold time.Duration) bool {
	if p.LastHeartbeatAt == nil {
		return true
	}
	return now.Sub(*p.LastHeartbeatAt) > threshold
}
