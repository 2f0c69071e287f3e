package routes

import (
	"github.com/gin-gonic/gin"

	"bus_tracker/internal/middleware"
	"bus_tracker/internal/models"
)

func BusRoutes(api *gin.RouterGroup, d Dependencies) {
	buses := api.Group("/buses")
	{
		buses.GET("", middleware.OptionalAuth(d.Resolver), d.Buses.List)
		buses.GET("/:id", middleware.OptionalAuth(d.Resolver), d.Buses.Get)
	}

	authed := buses.Group("", middleware.RequireAuth(d.Resolver, d.Log))
	{
		authed.PATCH("/:id/status", d.Buses.UpdateStatus)
		authed.PUT("/:id/location", d.Buses.UpdateLocation)
	}

	admin := authed.Group("", middleware.RequireRoles(d.Log, models.RoleAdmin))
	{
		admin.POST("", d.Buses.Create)
		admin.PUT("/:id", d.Buses.Update)
		admin.DELETE("/:id", d.Buses.Delete)
	}
}
