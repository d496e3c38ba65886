package handlers

import (
	"ridedispatch/internal/models"
	"ridedispatch/internal/services"
	"ridedispatch/internal/utils"

	"github.com/gin-gonic/gin"
)

type DriverHandler struct {
	presenceService   services.PresenceService
	dispatchService   services.DispatchService
	acceptanceService services.AcceptanceService
}

func NewDriverHandler(
	presenceService services.PresenceService,
	dispatchService services.DispatchService,
	acceptanceService services.AcceptanceService,
) *DriverHandler {
	return &DriverHandler{
		presenceService:   presenceService,
		dispatchService:   dispatchService,
		acceptanceService: acceptanceService,
	}
}

type presenceRequest struct {
	Online       bool                `json:"online"`
	ServiceClass models.ServiceClass `json:"service_class"`
	Lat          float64             `json:"lat"`
	Lng          float64             `json:"lng"`
}

type heartbeatRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// SetOnline transitions the driver online or offline
func (h *DriverHandler) SetOnline(c *gin.Context) {
	var request presenceRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	driverID, ok := callerID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var location *models.Location
	if request.Online {
		point := models.NewPoint(request.Lng, request.Lat)
		location = &point
	}

	presence, err := h.presenceService.SetOnline(c.Request.Context(), driverID, request.Online, request.ServiceClass, location)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Presence updated", presence)
}

// Heartbeat records a liveness ping, optionally with a location fix
func (h *DriverHandler) Heartbeat(c *gin.Context) {
	var request heartbeatRequest
	_ = c.ShouldBindJSON(&request)

	driverID, ok := callerID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var location *models.Location
	if request.Lat != nil && request.Lng != nil {
		point := models.NewPoint(*request.Lng, *request.Lat)
		location = &point
	}

	presence, err := h.presenceService.Heartbeat(c.Request.Context(), driverID, location)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Heartbeat recorded", presence)
}

// ListOffers returns the driver's pending, unexpired offers
func (h *DriverHandler) ListOffers(c *gin.Context) {
	driverID, ok := callerID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	offers, err := h.dispatchService.ListDriverOffers(c.Request.Context(), driverID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Offers retrieved", offers)
}

// AcceptOffer converts the driver's pending offer into the ride's assignment
func (h *DriverHandler) AcceptOffer(c *gin.Context) {
	rideID, ok := rideIDParam(c)
	if !ok {
		return
	}

	driverID, ok := callerID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	if err := h.acceptanceService.Accept(c.Request.Context(), rideID, driverID); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Offer accepted", nil)
}

// DeclineOffer resolves the driver's own offer to rejected
func (h *DriverHandler) DeclineOffer(c *gin.Context) {
	rideID, ok := rideIDParam(c)
	if !ok {
		return
	}

	driverID, ok := callerID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	if err := h.acceptanceService.Decline(c.Request.Context(), rideID, driverID); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Offer declined", nil)
}
