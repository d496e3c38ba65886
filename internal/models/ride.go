package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideStatus string
type ServiceClass string

const (
	RideStatusRequested   RideStatus = "requested"
	RideStatusDispatching RideStatus = "dispatching"
	RideStatusOffered     RideStatus = "offered"
	RideStatusAccepted    RideStatus = "accepted"
	RideStatusStarted     RideStatus = "started"
	RideStatusInProgress  RideStatus = "in_progress"
	RideStatusCompleted   RideStatus = "completed"
	RideStatusCancelled   RideStatus = "cancelled"

	ServiceClassStandard ServiceClass = "standard"
	ServiceClassPremium  ServiceClass = "premium"
	ServiceClassXL       ServiceClass = "xl"
)

const (
	CancelReasonSearchTimeout = "search_timeout"
	CancelReasonRider         = "rider_cancelled"
	CancelReasonDriver        = "driver_cancelled"
	CancelReasonAdmin         = "admin_cancelled"
)

type Ride struct {
	ID                 primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	RideNumber         string              `json:"ride_number" bson:"ride_number"`
	RiderID            primitive.ObjectID  `json:"rider_id" bson:"rider_id" validate:"required"`
	DriverID           *primitive.ObjectID `json:"driver_id" bson:"driver_id"`
	ServiceClass       ServiceClass        `json:"service_class" bson:"service_class" validate:"required"`
	Status             RideStatus          `json:"status" bson:"status" default:"requested"`
	PickupLocation     Location            `json:"pickup_location" bson:"pickup_location" validate:"required"`
	DropoffLocation    Location            `json:"dropoff_location" bson:"dropoff_location" validate:"required"`
	PriceCents         int64               `json:"price_cents" bson:"price_cents"`
	Currency           string              `json:"currency" bson:"currency" default:"USD"`
	PaymentIntentID    string              `json:"payment_intent_id,omitempty" bson:"payment_intent_id"`
	CancellationReason string              `json:"cancellation_reason,omitempty" bson:"cancellation_reason"`
	CancelledBy        string              `json:"cancelled_by,omitempty" bson:"cancelled_by"`
	RequestedAt        time.Time           `json:"requested_at" bson:"requested_at"`
	DispatchedAt       *time.Time          `json:"dispatched_at" bson:"dispatched_at"`
	AcceptedAt         *time.Time          `json:"accepted_at" bson:"accepted_at"`
	StartedAt          *time.Time          `json:"started_at" bson:"started_at"`
	CompletedAt        *time.Time          `json:"completed_at" bson:"completed_at"`
	CancelledAt        *time.Time          `json:"cancelled_at" bson:"cancelled_at"`
	CreatedAt          time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at" bson:"updated_at"`
}

// IsTerminal reports whether the status can never change again.
func (s RideStatus) IsTerminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// IsActive reports whether a driver assigned to a ride in this status
// counts as busy.
func (s RideStatus) IsActive() bool {
	return s == RideStatusAccepted || s == RideStatusStarted || s == RideStatusInProgress
}

// IsDispatchable reports whether the ride can still be won by a driver.
func (s RideStatus) IsDispatchable() bool {
	return s == RideStatusRequested || s == RideStatusDispatching || s == RideStatusOffered
}

var rideTransitions = map[RideStatus][]RideStatus{
	RideStatusRequested:   {RideStatusDispatching, RideStatusCancelled},
	RideStatusDispatching: {RideStatusOffered, RideStatusCancelled},
	RideStatusOffered:     {RideStatusAccepted, RideStatusDispatching, RideStatusCancelled},
	RideStatusAccepted:    {RideStatusStarted, RideStatusCancelled},
	RideStatusStarted:     {RideStatusInProgress, RideStatusCancelled},
	RideStatusInProgress:  {RideStatusCompleted, RideStatusCancelled},
}

// CanTransitionTo reports whether next is a legal successor of s. Terminal
// statuses have no successors.
func (s RideStatus) CanTransitionTo(next RideStatus) bool {
	for _, allowed := range rideTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (c ServiceClass) Valid() bool {
	switch c {
	case ServiceClassStandard, ServiceClassPremium, ServiceClassXL:
		return true
	}
	return false
}
