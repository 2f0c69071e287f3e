package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bus_tracker/internal/middleware"
	"bus_tracker/internal/response"
	"bus_tracker/internal/services"
)

type busInput struct {
	BusNumber  *string `json:"busNumber"`
	RouteID    *uint   `json:"routeId"`
	OperatorID *uint   `json:"operatorId"`
	Capacity   *int    `json:"capacity"`
	BusType    *string `json:"busType"`
	Status     *string `json:"status"`
}

func (in busInput) toService() services.BusInput {
	return services.BusInput{
		BusNumber:  in.BusNumber,
		RouteID:    in.RouteID,
		OperatorID: in.OperatorID,
		Capacity:   in.Capacity,
		BusType:    in.BusType,
		Status:     in.Status,
	}
}

type busStatusInput struct {
	Status string `json:"status" binding:"required"`
}

type BusController struct {
	buses     *services.BusService
	locations *services.LocationService
	log       logrus.FieldLogger
}

func NewBusController(buses *services.BusService, locations *services.LocationService, log logrus.FieldLogger) *BusController {
	return &BusController{buses: buses, locations: locations, log: log}
}

func (bc *BusController) List(c *gin.Context) {
	q := newQueryParser(c)
	status, _ := q.raw("status")
	params := services.BusListParams{
		ListParams: q.listParams(),
		Status:     status,
		RouteID:    q.uintPtr("routeId"),
		OperatorID: q.uintPtr("operatorId"),
	}
	if err := q.err(); err != nil {
		response.Error(c, bc.log, err)
		return
	}

	page, err := bc.buses.List(c.Request.Context(), middleware.CurrentActor(c), params)
	if err != nil {
		response.Error(c, bc.log, err)
		return
	}
	response.OK(c, "", page)
}

func (bc *BusController) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, bc.log, err)
		return
	}
	bus, err := bc.buses.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, bc.log, err)
		return
	}
	response.OK(c, "", bus)
}

func (bc *BusController) Create(c *gin.Context) {
	var input busInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, bc.log, response.BindError(err))
		return
	}
	bus, err := bc.buses.Create(c.Request.Context(), input.toService())
	if err != nil {
		response.Error(c, bc.log, err)
		return
	}
	bc.log.WithFields(logrus.Fields{"bus_id": bus.ID, "bus_code": bus.BusCode}).Info("bus created")
	response.Created(c, "bus created", bus)
}

func (bc *BusController) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, bc.log, err)
		return
	}
	var input busInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, bc.log, response.BindError(err))
		return
	}
	bus, err := bc.buses.Update(c.Request.Context(), id, input.toService())
	if err != nil {
		response.Error(c, bc.log, err)
		return
	}
	response.OK(c, "bus updated", bus)
}

func (bc *BusController) UpdateStatus(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, bc.log, err)
		return
	}
	var input busStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, bc.log, response.BindError(err))
		return
	}
	bus, err := bc.buses.UpdateStatus(c.Request.Context(), middleware.CurrentActor(c), id, input.Status)
	if err != nil {
		response.Error(c, bc.log, err)
		return
	}
	response.OK(c, "bus status updated", bus)
}

func (bc *BusController) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, bc.log, err)
		return
	}
	if err := bc.buses.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, bc.log, err)
		return
	}
	bc.log.WithField("bus_id", id).Info("bus deleted")
	response.OK(c, "bus deleted", nil)
}

// UpdateLocation is the older per-bus location endpoint. It shares the
// ingest path with the locations API.
func (bc *BusController) UpdateLocation(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, bc.log, err)
		return
	}
	var input locationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, bc.log, response.BindError(err))
		return
	}

	c.Header("Deprecation", "true")
	c.Header("Link", `</api/v1/locations/bus/`+c.Param("id")+`/update>; rel="successor-version"`)

	loc, err := bc.locations.UpdateLocation(c.Request.Context(), middleware.CurrentActor(c), id, input.toService())
	if err != nil {
		response.Error(c, bc.log, err)
		return
	}
	response.OK(c, "location updated", loc)
}
