package routes

import (
	"github.com/gin-gonic/gin"

	"bus_tracker/internal/middleware"
	"bus_tracker/internal/models"
)

func AdminRoutes(api *gin.RouterGroup, d Dependencies) {
	admin := api.Group("/admin")
	admin.Use(middleware.RequireAuth(d.Resolver, d.Log), middleware.RequireRoles(d.Log, models.RoleAdmin))
	{
		admin.GET("/users", d.Admin.ListUsers)
		admin.POST("/users", d.Admin.CreateUser)
		admin.GET("/users/:id", d.Admin.GetUser)
		admin.PUT("/users/:id", d.Admin.UpdateUser)
		admin.DELETE("/users/:id", d.Admin.DeleteUser)

		admin.GET("/bus-operators", d.Admin.ListOperators)
		admin.POST("/bus-operators", d.Admin.CreateOperator)
		admin.GET("/bus-operators/:id", d.Admin.GetOperator)
		admin.PUT("/bus-operators/:id", d.Admin.UpdateOperator)
		admin.DELETE("/bus-operators/:id", d.Admin.DeleteOperator)

		admin.DELETE("/locations/cleanup", d.Locations.Cleanup)
	}
}
