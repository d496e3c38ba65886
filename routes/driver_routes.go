package routes

import (
	"ridedispatch/internal/handlers"
	"ridedispatch/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupDriverRoutes sets up presence and offer routes for drivers
func SetupDriverRoutes(r *gin.RouterGroup, driverHandler *handlers.DriverHandler, jwtSecret string) {
	drivers := r.Group("/drivers")
	drivers.Use(middleware.AuthRequired(jwtSecret), middleware.DriverRequired())
	{
		drivers.POST("/online", driverHandler.SetOnline)
		drivers.POST("/heartbeat", driverHandler.Heartbeat)

		drivers.GET("/offers", driverHandler.ListOffers)
		drivers.POST("/offers/:id/accept", driverHandler.AcceptOffer)
		drivers.POST("/offers/:id/decline", driverHandler.DeclineOffer)
	}
}
