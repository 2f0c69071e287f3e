package routes

import (
	"github.com/gin-gonic/gin"
)

// WebSocketRoutes authenticates inside the handler; browsers cannot send
// an Authorization header on upgrade.
func WebSocketRoutes(r *gin.Engine, d Dependencies) {
	wsRoutes := r.Group("/ws")
	{
		wsRoutes.GET("/locations", d.WebSocket.HandleLocationWebSocket)
	}
}
