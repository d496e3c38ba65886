package handlers

import (
	"ridedispatch/internal/services"
	"ridedispatch/internal/utils"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	sweeperService  services.SweeperService
	dispatchService services.DispatchService
}

func NewAdminHandler(sweeperService services.SweeperService, dispatchService services.DispatchService) *AdminHandler {
	return &AdminHandler{
		sweeperService:  sweeperService,
		dispatchService: dispatchService,
	}
}

// ManualCleanup runs the reconciliation passes on demand and returns the
// mutation counts
func (h *AdminHandler) ManualCleanup(c *gin.Context) {
	report, err := h.sweeperService.Sweep(c.Request.Context())
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Cleanup completed", report)
}

// ListRideOffers returns every offer of a ride for inspection
func (h *AdminHandler) ListRideOffers(c *gin.Context) {
	rideID, ok := rideIDParam(c)
	if !ok {
		return
	}

	offers, err := h.dispatchService.ListRideOffers(c.Request.Context(), rideID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Offers retrieved", offers)
}
