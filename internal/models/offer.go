package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OfferStatus string

const (
	OfferStatusPending   OfferStatus = "pending"
	OfferStatusAccepted  OfferStatus = "accepted"
	OfferStatusExpired   OfferStatus = "expired"
	OfferStatusCancelled OfferStatus = "cancelled"
	OfferStatusRejected  OfferStatus = "rejected"
)

// Offer is a time-limited proposal of one ride to one driver. There is at
// most one offer document per (ride_id, driver_id) pair.
type Offer struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	RideID      primitive.ObjectID `json:"ride_id" bson:"ride_id" validate:"required"`
	DriverID    primitive.ObjectID `json:"driver_id" bson:"driver_id" validate:"required"`
	Status      OfferStatus        `json:"status" bson:"status" default:"pending"`
	Attempts    int                `json:"attempts" bson:"attempts"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	ExpiresAt   time.Time          `json:"expires_at" bson:"expires_at"`
	RespondedAt *time.Time         `json:"responded_at" bson:"responded_at"`
	UpdatedAt   time.Time          `json:"updated_at" bson:"updated_at"`
}

// Expired reports whether the TTL has passed. The stored expires_at is the
// only authority; client countdowns are advisory.
func (o *Offer) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

func (s OfferStatus) IsTerminal() bool {
	return s != OfferStatusPending
}
