package routes

import (
	"github.com/gin-gonic/gin"

	"bus_tracker/internal/middleware"
)

func AuthRoutes(api *gin.RouterGroup, d Dependencies) {
	auth := api.Group("/auth")
	{
		auth.POST("/register", d.Auth.Register)
		auth.POST("/login", d.Auth.Login)
		auth.POST("/refresh", d.Auth.Refresh)
	}

	session := auth.Group("", middleware.RequireAuth(d.Resolver, d.Log))
	{
		session.POST("/logout", d.Auth.Logout)
		session.GET("/me", d.Auth.Me)
		session.PUT("/me", d.Auth.UpdateProfile)
		session.PUT("/password", d.Auth.ChangePassword)
	}
}
