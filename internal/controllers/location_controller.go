package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bus_tracker/internal/middleware"
	"bus_tracker/internal/response"
	"bus_tracker/internal/services"
)

// locationInput is a GPS ping as sent by a bus device.
type locationInput struct {
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Speed     *float64   `json:"speed"`
	Heading   *float64   `json:"heading"`
	Accuracy  *float64   `json:"accuracy"`
	Timestamp *time.Time `json:"timestamp"`
}

func (in locationInput) toService() services.LocationInput {
	return services.LocationInput{
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		Speed:     in.Speed,
		Heading:   in.Heading,
		Accuracy:  in.Accuracy,
		Timestamp: in.Timestamp,
	}
}

type LocationController struct {
	locations     *services.LocationService
	retentionDays int
	log           logrus.FieldLogger
}

// NewLocationController uses retentionDays when a cleanup request omits it.
func NewLocationController(locations *services.LocationService, retentionDays int, log logrus.FieldLogger) *LocationController {
	return &LocationController{locations: locations, retentionDays: retentionDays, log: log}
}

func (lc *LocationController) Update(c *gin.Context) {
	busID, err := pathID(c, "busId")
	if err != nil {
		response.Error(c, lc.log, err)
		return
	}
	var input locationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, lc.log, response.BindError(err))
		return
	}

	loc, err := lc.locations.UpdateLocation(c.Request.Context(), middleware.CurrentActor(c), busID, input.toService())
	if err != nil {
		response.Error(c, lc.log, err)
		return
	}
	response.Created(c, "location updated", loc)
}

func (lc *LocationController) Latest(c *gin.Context) {
	busID, err := pathID(c, "busId")
	if err != nil {
		response.Error(c, lc.log, err)
		return
	}
	loc, err := lc.locations.GetLatestLocation(c.Request.Context(), middleware.CurrentActor(c), busID)
	if err != nil {
		response.Error(c, lc.log, err)
		return
	}
	response.OK(c, "", loc)
}

func (lc *LocationController) History(c *gin.Context) {
	busID, err := pathID(c, "busId")
	if err != nil {
		response.Error(c, lc.log, err)
		return
	}
	q := newQueryParser(c)
	query := services.HistoryQuery{
		Page:      q.positiveInt("page"),
		Limit:     q.positiveInt("limit"),
		StartDate: q.timePtr("startDate"),
		EndDate:   q.timePtr("endDate"),
	}
	if err := q.err(); err != nil {
		response.Error(c, lc.log, err)
		return
	}

	page, err := lc.locations.GetHistory(c.Request.Context(), middleware.CurrentActor(c), busID, query)
	if err != nil {
		response.Error(c, lc.log, err)
		return
	}
	response.OK(c, "", page)
}

func (lc *LocationController) HistoryByDate(c *gin.Context) {
	busID, err := pathID(c, "busId")
	if err != nil {
		response.Error(c, lc.log, err)
		return
	}
	q := newQueryParser(c)
	page, limit := q.positiveInt("page"), q.positiveInt("limit")
	if err := q.err(); err != nil {
		response.Error(c, lc.log, err)
		return
	}

	result, err := lc.locations.GetHistoryByDate(c.Request.Context(), middleware.CurrentActor(c), busID, c.Param("date"), page, limit)
	if err != nil {
		response.Error(c, lc.log, err)
		return
	}
	response.OK(c, "", result)
}

func (lc *LocationController) Stats(c *gin.Context) {
	busID, err := pathID(c, "busId")
	if err != nil {
		response.Error(c, lc.log, err)
		return
	}
	stats, err := lc.locations.GetStats(c.Request.Context(), middleware.CurrentActor(c), busID)
	if err != nil {
		response.Error(c, lc.log, err)
		return
	}
	response.OK(c, "", stats)
}

func (lc *LocationController) Active(c *gin.Context) {
	q := newQueryParser(c)
	limit := q.positiveInt("limit")
	activeOnly := q.boolPtr("activeOnly")
	if err := q.err(); err != nil {
		response.Error(c, lc.log, err)
		return
	}

	buses, err := lc.locations.GetAllActive(c.Request.Context(), limit, activeOnly == nil || *activeOnly)
	if err != nil {
		response.Error(c, lc.log, err)
		return
	}
	response.OK(c, "", gin.H{"buses": buses, "count": len(buses)})
}

func (lc *LocationController) Nearby(c *gin.Context) {
	q := newQueryParser(c)
	status, _ := q.raw("status")
	query := services.NearbyQuery{
		Latitude:  q.floatPtr("latitude"),
		Longitude: q.floatPtr("longitude"),
		RadiusKm:  q.floatPtr("radius"),
		Status:    status,
	}
	if err := q.err(); err != nil {
		response.Error(c, lc.log, err)
		return
	}

	buses, err := lc.locations.GetNearby(c.Request.Context(), query)
	if err != nil {
		response.Error(c, lc.log, err)
		return
	}
	response.OK(c, "", gin.H{"buses": buses, "count": len(buses)})
}

// Cleanup deletes pings older than retentionDays.
func (lc *LocationController) Cleanup(c *gin.Context) {
	q := newQueryParser(c)
	days := q.positiveInt("retentionDays")
	if err := q.err(); err != nil {
		response.Error(c, lc.log, err)
		return
	}
	if days == 0 {
		days = lc.retentionDays
	}

	deleted, err := lc.locations.Cleanup(c.Request.Context(), days)
	if err != nil {
		response.Error(c, lc.log, err)
		return
	}
	lc.log.WithFields(logrus.Fields{"retention_days": days, "deleted": deleted}).Info("location cleanup")
	response.OK(c, "cleanup complete", gin.H{"deletedCount": deleted, "retentionDays": days})
}
