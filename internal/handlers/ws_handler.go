package handlers

import (
	"ridedispatch/internal/utils"
	"ridedispatch/pkg/realtime"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type WSHandler struct {
	hub *realtime.Hub
}

func NewWSHandler(hub *realtime.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// Subscribe upgrades the connection and joins the caller's event rooms.
// Drivers always join their own offer feed; a ride_id query parameter adds
// that ride's status feed.
func (h *WSHandler) Subscribe(c *gin.Context) {
	userID, userType, ok := caller(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var rooms []string
	if userType == "driver" {
		rooms = append(rooms, realtime.DriverRoom(userID))
	}
	if rideHex := c.Query("ride_id"); rideHex != "" {
		rideID, err := primitive.ObjectIDFromHex(rideHex)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid ride ID")
			return
		}
		rooms = append(rooms, realtime.RideRoom(rideID))
	}

	if len(rooms) == 0 {
		utils.BadRequestResponse(c, "Nothing to subscribe to")
		return
	}

	if err := h.hub.ServeWS(c.Writer, c.Request, userID, rooms); err != nil {
		utils.InternalServerErrorResponse(c)
	}
}
