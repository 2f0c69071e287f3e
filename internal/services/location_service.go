package services

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/mmcloughlin/geohash"
	"github.com/sirupsen/logrus"

	"bus_tracker/internal/apperrors"
	"bus_tracker/internal/metrics"
	"bus_tracker/internal/models"
	"bus_tracker/internal/policy"
	"bus_tracker/internal/repository"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
	defaultActiveLimit  = 100
	maxActiveLimit      = 1000
	defaultRadiusKm     = 5.0
	maxRadiusKm         = 100.0
	maxSpeedKmh         = 300.0
	geohashPrecision    = 7
	statsWindowDays     = 30
	dateLayout          = "2006-01-02"
)

// LocationInput is an incoming ping. Nil fields were not supplied.
type LocationInput struct {
	Latitude  *float64
	Longitude *float64
	Speed     *float64
	Heading   *float64
	Accuracy  *float64
	Timestamp *time.Time
}

// HistoryQuery selects a page of a bus's pings, newest first.
type HistoryQuery struct {
	Page      int
	Limit     int
	StartDate *time.Time
	EndDate   *time.Time
}

type LocationPage struct {
	Locations  []models.Location `json:"locations"`
	Pagination Pagination        `json:"pagination"`
}

// NearbyQuery is a radius search. RadiusKm defaults to 5 and Status to active.
type NearbyQuery struct {
	Latitude  *float64
	Longitude *float64
	RadiusKm  *float64
	Status    string
}

type BusStats struct {
	BusID   uint                       `json:"busId"`
	Overall models.LocationStats       `json:"overall"`
	Daily   []models.DailyLocationStat `json:"daily"`
}

type LocationService struct {
	locations repository.LocationRepository
	buses     repository.BusRepository
	publisher LocationPublisher
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
	now       func() time.Time
}

// NewLocationService wires the ingest and query engine. publisher and m may be nil.
func NewLocationService(locations repository.LocationRepository, buses repository.BusRepository,
	publisher LocationPublisher, m *metrics.Metrics, log logrus.FieldLogger) *LocationService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &LocationService{
		locations: locations,
		buses:     buses,
		publisher: publisher,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// WithClock replaces the time source.
func (s *LocationService) WithClock(now func() time.Time) *LocationService {
	s.now = now
	return s
}

// inRange is false for NaN.
func inRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

func (in LocationInput) validate() error {
	var errs apperrors.FieldErrors
	if in.Latitude == nil {
		errs.Add("latitude", "is required")
	} else if !inRange(*in.Latitude, -90, 90) {
		errs.Add("latitude", "must be between -90 and 90")
	}
	if in.Longitude == nil {
		errs.Add("longitude", "is required")
	} else if !inRange(*in.Longitude, -180, 180) {
		errs.Add("longitude", "must be between -180 and 180")
	}
	if in.Speed != nil && !inRange(*in.Speed, 0, maxSpeedKmh) {
		errs.Add("speed", "must be between 0 and 300")
	}
	if in.Heading != nil && !inRange(*in.Heading, 0, 360) {
		errs.Add("heading", "must be between 0 and 360")
	}
	if in.Accuracy != nil && !(*in.Accuracy >= 0) {
		errs.Add("accuracy", "must be a non-negative number")
	}
	return errs.Err()
}

// UpdateLocation stores a ping for busID and refreshes the bus's cached position.
func (s *LocationService) UpdateLocation(ctx context.Context, actor policy.Actor, busID uint, in LocationInput) (*models.Location, error) {
	loc, bus, err := s.ingest(ctx, actor, busID, in)
	if err != nil {
		s.metrics.IngestFailed(string(apperrors.KindOf(err)))
		return nil, err
	}

	s.metrics.LocationIngested()
	s.publisher.PublishLocation(ctx, loc, bus)
	return loc, nil
}

func (s *LocationService) ingest(ctx context.Context, actor policy.Actor, busID uint, in LocationInput) (*models.Location, *models.Bus, error) {
	if err := in.validate(); err != nil {
		return nil, nil, err
	}

	bus, err := s.buses.FindByID(ctx, busID)
	if err != nil {
		return nil, nil, err
	}
	if err := policy.Authorize(actor, policy.ActionUpdate, policy.BusResource(bus)); err != nil {
		return nil, nil, err
	}

	ts := s.now().UTC()
	if in.Timestamp != nil {
		ts = in.Timestamp.UTC()
	}
	lat, lon := *in.Latitude, *in.Longitude
	loc := &models.Location{
		BusID:     bus.ID,
		Point:     models.NewGeoPoint(lat, lon),
		Speed:     valueOr(in.Speed, 0),
		Heading:   valueOr(in.Heading, 0),
		Accuracy:  in.Accuracy,
		Timestamp: ts,
		IsActive:  true,
		Geohash:   geohash.EncodeWithPrecision(lat, lon, geohashPrecision),
	}

	if err := s.locations.Append(ctx, loc); err != nil {
		return nil, nil, err
	}
	if bus.LastUpdated == nil || !ts.Before(*bus.LastUpdated) {
		bus.SetCurrentLocation(loc.Point, ts)
	}

	s.log.WithFields(logrus.Fields{
		"bus_id":  bus.ID,
		"geohash": loc.Geohash,
	}).Debug("location stored")
	return loc, bus, nil
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// GetLatestLocation returns the bus's newest ping.
func (s *LocationService) GetLatestLocation(ctx context.Context, actor policy.Actor, busID uint) (*models.Location, error) {
	if _, err := s.authorizedBus(ctx, actor, busID); err != nil {
		return nil, err
	}
	return s.locations.Latest(ctx, busID)
}

func (s *LocationService) authorizedBus(ctx context.Context, actor policy.Actor, busID uint) (*models.Bus, error) {
	bus, err := s.buses.FindByID(ctx, busID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionRead, policy.BusResource(bus)); err != nil {
		return nil, err
	}
	return bus, nil
}

// GetHistory pages through a bus's pings, newest first.
func (s *LocationService) GetHistory(ctx context.Context, actor policy.Actor, busID uint, q HistoryQuery) (*LocationPage, error) {
	var errs apperrors.FieldErrors
	pg := resolvePage(q.Page, q.Limit, defaultHistoryLimit, maxHistoryLimit, &errs)
	if q.StartDate != nil && q.EndDate != nil && q.StartDate.After(*q.EndDate) {
		errs.Add("startDate", "must not be after endDate")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if _, err := s.authorizedBus(ctx, actor, busID); err != nil {
		return nil, err
	}

	items, total, err := s.locations.History(ctx, busID, repository.HistoryFilter{
		Start:  q.StartDate,
		End:    q.EndDate,
		Limit:  pg.Size,
		Offset: pg.Offset(),
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Location{}
	}
	return &LocationPage{
		Locations:  items,
		Pagination: newPagination(total, pg.Number, pg.Size, len(items)),
	}, nil
}

// GetHistoryByDate pages through the pings of one UTC calendar day (YYYY-MM-DD).
func (s *LocationService) GetHistoryByDate(ctx context.Context, actor policy.Actor, busID uint, date string, page, limit int) (*LocationPage, error) {
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), time.UTC)
	if err != nil {
		return nil, apperrors.Validation("validation failed",
			apperrors.FieldError{Field: "date", Message: "must be a date in YYYY-MM-DD format"})
	}
	end := day.Add(24*time.Hour - time.Microsecond)
	return s.GetHistory(ctx, actor, busID, HistoryQuery{
		Page:      page,
		Limit:     limit,
		StartDate: &day,
		EndDate:   &end,
	})
}

// GetNearby returns buses whose latest active ping lies within the radius,
// nearest first, with distances in meters.
func (s *LocationService) GetNearby(ctx context.Context, q NearbyQuery) ([]models.BusLocation, error) {
	var errs apperrors.FieldErrors
	if q.Latitude == nil {
		errs.Add("latitude", "is required")
	} else if !inRange(*q.Latitude, -90, 90) {
		errs.Add("latitude", "must be between -90 and 90")
	}
	if q.Longitude == nil {
		errs.Add("longitude", "is required")
	} else if !inRange(*q.Longitude, -180, 180) {
		errs.Add("longitude", "must be between -180 and 180")
	}
	radius := defaultRadiusKm
	if q.RadiusKm != nil {
		radius = *q.RadiusKm
		if !(radius > 0 && radius <= maxRadiusKm) {
			errs.Add("radius", "must be greater than 0 and at most 100")
		}
	}
	status := models.BusStatusActive
	if q.Status != "" {
		status = models.BusStatus(q.Status)
		if !status.Valid() {
			errs.Add("status", "must be one of active, inactive, maintenance")
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	rows, err := s.locations.Nearby(ctx, repository.NearbyFilter{
		Latitude:     *q.Latitude,
		Longitude:    *q.Longitude,
		RadiusMeters: radius * 1000,
		Status:       status,
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.BusLocation, 0, len(rows))
	for _, r := range rows {
		v := r.View()
		if v.Distance != nil {
			d := math.Round(*v.Distance*100) / 100
			v.Distance = &d
		}
		out = append(out, v)
	}
	return out, nil
}

// GetAllActive returns the latest ping of every bus, newest first.
func (s *LocationService) GetAllActive(ctx context.Context, limit int, activeOnly bool) ([]models.BusLocation, error) {
	if limit == 0 {
		limit = defaultActiveLimit
	}
	if limit < 1 || limit > maxActiveLimit {
		return nil, apperrors.Validation("validation failed",
			apperrors.FieldError{Field: "limit", Message: "must be between 1 and 1000"})
	}

	rows, err := s.locations.LatestPerBus(ctx, limit, activeOnly)
	if err != nil {
		return nil, err
	}
	out := make([]models.BusLocation, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.View())
	}
	return out, nil
}

// GetStats aggregates a bus's whole history plus a trailing daily series.
func (s *LocationService) GetStats(ctx context.Context, actor policy.Actor, busID uint) (*BusStats, error) {
	if _, err := s.authorizedBus(ctx, actor, busID); err != nil {
		return nil, err
	}

	since := s.now().UTC().AddDate(0, 0, -statsWindowDays)
	overall, daily, err := s.locations.Stats(ctx, busID, since)
	if err != nil {
		return nil, err
	}
	if overall == nil {
		overall = &models.LocationStats{}
	}
	if daily == nil {
		daily = []models.DailyLocationStat{}
	}
	return &BusStats{BusID: busID, Overall: *overall, Daily: daily}, nil
}

// Cleanup deletes pings older than retentionDays and returns how many were removed.
func (s *LocationService) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays < 1 {
		return 0, apperrors.Validation("validation failed",
			apperrors.FieldError{Field: "retentionDays", Message: "must be a positive integer"})
	}

	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays)
	deleted, err := s.locations.DeleteOlderThan(ctx, cutoff)
	s.metrics.RetentionRun(deleted, err)
	if err != nil {
		s.log.WithError(err).Error("location cleanup failed")
		return 0, err
	}

	s.log.WithFields(logrus.Fields{
		"retention_days": retentionDays,
		"deleted":        deleted,
	}).Info("old locations cleaned up")
	return deleted, nil
}
