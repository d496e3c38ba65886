package handlers

import (
	"context"

	"ridedispatch/internal/services"
	"ridedispatch/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideHandler struct {
	rideService     services.RideService
	dispatchService services.DispatchService
}

func NewRideHandler(rideService services.RideService, dispatchService services.DispatchService) *RideHandler {
	return &RideHandler{
		rideService:     rideService,
		dispatchService: dispatchService,
	}
}

// RequestTrip creates a ride and fans out the first wave of offers
func (h *RideHandler) RequestTrip(c *gin.Context) {
	var request services.TripRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	riderID, ok := callerID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	ride, err := h.rideService.RequestTrip(c.Request.Context(), riderID, &request)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	// Dispatch runs inline; zero offers is not an error, the ride stays in
	// dispatching for the sweeper and redispatch to pick up.
	offers, err := h.dispatchService.Dispatch(c.Request.Context(), ride.ID)
	if err != nil {
		offers = 0
	}

	utils.CreatedResponse(c, "Trip requested", gin.H{
		"ride":   ride,
		"offers": offers,
	})
}

// GetRide returns the ride to its rider, its driver or an admin
func (h *RideHandler) GetRide(c *gin.Context) {
	rideID, ok := rideIDParam(c)
	if !ok {
		return
	}

	userID, userType, ok := caller(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	ride, err := h.rideService.GetRide(c.Request.Context(), userID, userType, rideID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride retrieved", ride)
}

// CancelRide ends a non-terminal ride on behalf of any party to it
func (h *RideHandler) CancelRide(c *gin.Context) {
	rideID, ok := rideIDParam(c)
	if !ok {
		return
	}

	userID, userType, ok := caller(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var request struct {
		Reason string `json:"reason"`
	}
	// Body is optional; an empty reason falls back to the caller's role.
	_ = c.ShouldBindJSON(&request)

	result, err := h.rideService.Cancel(c.Request.Context(), userID, userType, rideID, request.Reason)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride cancelled", result)
}

// Redispatch re-runs candidate selection with the widened radius
func (h *RideHandler) Redispatch(c *gin.Context) {
	rideID, ok := rideIDParam(c)
	if !ok {
		return
	}

	userID, userType, ok := caller(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	// Access check doubles as existence check.
	if _, err := h.rideService.GetRide(c.Request.Context(), userID, userType, rideID); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	offers, err := h.dispatchService.Redispatch(c.Request.Context(), rideID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride redispatched", gin.H{"offers": offers})
}

// StartRide moves an accepted ride to started once payment is authorized
func (h *RideHandler) StartRide(c *gin.Context) {
	h.driverTransition(c, h.rideService.Start, "Ride started")
}

// ProgressRide moves a started ride to in_progress
func (h *RideHandler) ProgressRide(c *gin.Context) {
	h.driverTransition(c, h.rideService.Progress, "Ride in progress")
}

// CompleteRide ends the ride and releases the driver
func (h *RideHandler) CompleteRide(c *gin.Context) {
	h.driverTransition(c, h.rideService.Complete, "Ride completed")
}

func (h *RideHandler) driverTransition(c *gin.Context, fn func(ctx context.Context, driverID, rideID primitive.ObjectID) error, message string) {
	rideID, ok := rideIDParam(c)
	if !ok {
		return
	}

	driverID, ok := callerID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	if err := fn(c.Request.Context(), driverID, rideID); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, message, nil)
}

func rideIDParam(c *gin.Context) (primitive.ObjectID, bool) {
	rideID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ride ID")
		return primitive.NilObjectID, false
	}
	return rideID, true
}

func callerID(c *gin.Context) (primitive.ObjectID, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		return primitive.NilObjectID, false
	}
	id, ok := userID.(primitive.ObjectID)
	return id, ok
}

func caller(c *gin.Context) (primitive.ObjectID, string, bool) {
	id, ok := callerID(c)
	if !ok {
		return primitive.NilObjectID, "", false
	}
	userType, _ := c.Get("user_type")
	typeStr, ok := userType.(string)
	return id, typeStr, ok
}
