package routes

import (
	"ridedispatch/internal/handlers"
	"ridedispatch/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupAdminRoutes sets up operator routes for reconciliation and inspection
func SetupAdminRoutes(r *gin.RouterGroup, adminHandler *handlers.AdminHandler, rideHandler *handlers.RideHandler, jwtSecret string) {
	admin := r.Group("/admin")
	admin.Use(middleware.AuthRequired(jwtSecret), middleware.AdminRequired())
	{
		admin.POST("/cleanup", adminHandler.ManualCleanup)
		admin.GET("/rides/:id", rideHandler.GetRide)
		admin.GET("/rides/:id/offers", adminHandler.ListRideOffers)
	}
}
