package routes

import (
	"ridedispatch/internal/handlers"
	"ridedispatch/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupRideRoutes sets up the rider-facing ride lifecycle routes
func SetupRideRoutes(r *gin.RouterGroup, rideHandler *handlers.RideHandler, jwtSecret string) {
	rides := r.Group("/rides")
	rides.Use(middleware.AuthRequired(jwtSecret))
	{
		rides.POST("/", middleware.RiderRequired(), rideHandler.RequestTrip)
		rides.GET("/:id", rideHandler.GetRide)
		rides.POST("/:id/cancel", rideHandler.CancelRide)
		rides.POST("/:id/redispatch", rideHandler.Redispatch)

		// Driver-side progress transitions
		rides.POST("/:id/start", middleware.DriverRequired(), rideHandler.StartRide)
		rides.POST("/:id/progress", middleware.DriverRequired(), rideHandler.ProgressRide)
		rides.POST("/:id/complete", middleware.DriverRequired(), rideHandler.CompleteRide)
	}
}
