package routes

import (
	"github.com/gin-gonic/gin"

	"bus_tracker/internal/middleware"
	"bus_tracker/internal/models"
)

func RouteRoutes(api *gin.RouterGroup, d Dependencies) {
	routes := api.Group("/routes")
	{
		routes.GET("", d.Routes.List)
		routes.GET("/:id", d.Routes.Get)
	}

	admin := routes.Group("", middleware.RequireAuth(d.Resolver, d.Log), middleware.RequireRoles(d.Log, models.RoleAdmin))
	{
		admin.POST("", d.Routes.Create)
		admin.PUT("/:id", d.Routes.Update)
		admin.DELETE("/:id", d.Routes.Delete)
	}
}
