package services

import (
	"ridedispatch/internal/models"
	"ridedispatch/pkg/realtime"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// hubNotifier pushes dispatch events onto the realtime hub. Delivery is
// best-effort; engine state never depends on a subscriber receiving it.
type hubNotifier struct {
	hub *realtime.Hub
}

func NewHubNotifier(hub *realtime.Hub) OfferNotifier {
	return &hubNotifier{hub: hub}
}

func (n *hubNotifier) NotifyOfferCreated(rideID, driverID primitive.ObjectID, expiresAtUnix int64) {
	n.hub.PublishDriverEvent(driverID, "offer_created", map[string]interface{}{
		"ride_id":    rideID.Hex(),
		"expires_at": expiresAtUnix,
	})
}

func (n *hubNotifier) NotifyRideStatus(rideID primitive.ObjectID, status models.RideStatus) {
	n.hub.PublishRideEvent(rideID, "ride_status", map[string]interface{}{
		"ride_id": rideID.Hex(),
		"status":  string(status),
	})
}
