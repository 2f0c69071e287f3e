package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"bus_tracker/internal/controllers"
	"bus_tracker/internal/middleware"
)

// Dependencies are the handlers and collaborators the router wires together.
type Dependencies struct {
	Auth      *controllers.AuthController
	Buses     *controllers.BusController
	Routes    *controllers.RouteController
	Locations *controllers.LocationController
	Admin     *controllers.AdminController
	Health    *controllers.HealthController
	WebSocket *controllers.WebSocketController

	Resolver middleware.ActorResolver
	// Gatherer backs /metrics; nil leaves the endpoint out.
	Gatherer prometheus.Gatherer
	Log      logrus.FieldLogger
}

// SetupRouter registers every endpoint on r. Global middleware is the
// caller's concern.
func SetupRouter(r *gin.Engine, d Dependencies) *gin.Engine {
	r.GET("/health", d.Health.Health)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	WebSocketRoutes(r, d)

	api := r.Group("/api/v1")
	AuthRoutes(api, d)
	BusRoutes(api, d)
	RouteRoutes(api, d)
	LocationRoutes(api, d)
	AdminRoutes(api, d)

	return r
}
