package controllers

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bus_tracker/internal/models"
	"bus_tracker/internal/response"
	"bus_tracker/internal/services"
)

// routeInput mirrors services.RouteInput. Path is a GeoJSON LineString;
// sending null removes it.
type routeInput struct {
	RouteNumber       *string            `json:"routeNumber"`
	Name              *string            `json:"name"`
	Origin            *string            `json:"origin"`
	Destination       *string            `json:"destination"`
	Distance          *float64           `json:"distance"`
	EstimatedDuration *int               `json:"estimatedDuration"`
	IsActive          *bool              `json:"isActive"`
	Waypoints         *[]models.Waypoint `json:"waypoints"`
	Path              json.RawMessage    `json:"path"`
}

func (in routeInput) toService() services.RouteInput {
	return services.RouteInput{
		RouteNumber:       in.RouteNumber,
		Name:              in.Name,
		Origin:            in.Origin,
		Destination:       in.Destination,
		Distance:          in.Distance,
		EstimatedDuration: in.EstimatedDuration,
		IsActive:          in.IsActive,
		Waypoints:         in.Waypoints,
		Path:              in.Path,
	}
}

type RouteController struct {
	routes *services.RouteService
	log    logrus.FieldLogger
}

func NewRouteController(routes *services.RouteService, log logrus.FieldLogger) *RouteController {
	return &RouteController{routes: routes, log: log}
}

func (rc *RouteController) List(c *gin.Context) {
	q := newQueryParser(c)
	params := services.RouteListParams{
		ListParams: q.listParams(),
		IsActive:   q.boolPtr("isActive"),
	}
	if err := q.err(); err != nil {
		response.Error(c, rc.log, err)
		return
	}

	page, err := rc.routes.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, rc.log, err)
		return
	}
	response.OK(c, "", page)
}

func (rc *RouteController) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, rc.log, err)
		return
	}
	route, err := rc.routes.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, rc.log, err)
		return
	}
	response.OK(c, "", route)
}

func (rc *RouteController) Create(c *gin.Context) {
	var input routeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, rc.log, response.BindError(err))
		return
	}
	route, err := rc.routes.Create(c.Request.Context(), input.toService())
	if err != nil {
		response.Error(c, rc.log, err)
		return
	}
	rc.log.WithFields(logrus.Fields{"route_id": route.ID, "route_number": route.RouteNumber}).Info("route created")
	response.Created(c, "route created", route)
}

func (rc *RouteController) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, rc.log, err)
		return
	}
	var input routeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, rc.log, response.BindError(err))
		return
	}
	route, err := rc.routes.Update(c.Request.Context(), id, input.toService())
	if err != nil {
		response.Error(c, rc.log, err)
		return
	}
	response.OK(c, "route updated", route)
}

func (rc *RouteController) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, rc.log, err)
		return
	}
	if err := rc.routes.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, rc.log, err)
		return
	}
	rc.log.WithField("route_id", id).Info("route deleted")
	response.OK(c, "route deleted", nil)
}
