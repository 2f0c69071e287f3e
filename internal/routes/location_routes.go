package routes

import (
	"github.com/gin-gonic/gin"

	"bus_tracker/internal/middleware"
)

func LocationRoutes(api *gin.RouterGroup, d Dependencies) {
	locations := api.Group("/locations")
	{
		locations.GET("/buses/active", d.Locations.Active)
		locations.GET("/nearby", d.Locations.Nearby)
	}

	bus := locations.Group("/bus/:busId", middleware.RequireAuth(d.Resolver, d.Log))
	{
		bus.POST("/update", d.Locations.Update)
		bus.PUT("/update", d.Locations.Update)
		bus.GET("/latest", d.Locations.Latest)
		bus.GET("/history", d.Locations.History)
		bus.GET("/date/:date", d.Locations.HistoryByDate)
		bus.GET("/stats", d.Locations.Stats)
	}
}
