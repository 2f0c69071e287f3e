package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bus_tracker/internal/models"
)

// latestPingCTE picks each bus's newest active ping.
const latestPingCTE = `WITH latest AS (
	SELECT DISTINCT ON (l.bus_id)
		l.bus_id, l.latitude, l.longitude, l.speed, l.heading, l.accuracy, l."timestamp", l.geog
	FROM locations l
	WHERE l.is_active = true
	ORDER BY l.bus_id, l."timestamp" DESC, l.id DESC
)`

const busLocationColumns = `latest.bus_id, latest.latitude, latest.longitude, latest.speed,
	latest.heading, latest.accuracy, latest."timestamp",
	b.bus_number, b.bus_code, b.bus_type, b.capacity, b.status,
	r.id AS route_id, r.route_number, r.name AS route_name, r.origin, r.destination,
	o.id AS operator_id, o.name AS operator_name`

const busLocationJoins = `FROM latest
JOIN buses b ON b.id = latest.bus_id
LEFT JOIN routes r ON r.id = b.route_id
LEFT JOIN operators o ON o.id = b.operator_id`

const nearbySQL = latestPingCTE + `
SELECT ` + busLocationColumns + `,
	ST_Distance(latest.geog, ST_SetSRID(ST_MakePoint(@lon, @lat), 4326)::geography) AS distance
` + busLocationJoins + `
WHERE b.status = @status
	AND ST_DWithin(latest.geog, ST_SetSRID(ST_MakePoint(@lon, @lat), 4326)::geography, @radius)
ORDER BY distance ASC`

const latestPerBusSQL = latestPingCTE + `
SELECT ` + busLocationColumns + `
` + busLocationJoins + `
WHERE (@activeOnly = false OR b.status = 'active')
ORDER BY latest."timestamp" DESC
LIMIT @limit`

const overallStatsSQL = `SELECT COUNT(*) AS total_records,
	COALESCE(AVG(speed), 0) AS avg_speed,
	COALESCE(MAX(speed), 0) AS max_speed,
	MIN("timestamp") AS first_record,
	MAX("timestamp") AS last_record
FROM locations
WHERE bus_id = ?`

const dailyStatsSQL = `SELECT to_char(date_trunc('day', "timestamp" AT TIME ZONE 'UTC'), 'YYYY-MM-DD') AS date,
	COUNT(*) AS count,
	COALESCE(AVG(speed), 0) AS avg_speed
FROM locations
WHERE bus_id = ? AND "timestamp" >= ?
GROUP BY 1
ORDER BY 1`

type LocationRepo struct {
	db *gorm.DB
}

func NewLocationRepo(db *gorm.DB) *LocationRepo {
	return &LocationRepo{db: db}
}

func (r *LocationRepo) Append(ctx context.Context, loc *models.Location) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(loc).Error; err != nil {
			return translateError(err, "location")
		}
		// Only move the cache forward so an out-of-order ping never regresses it.
		err := tx.Model(&models.Bus{}).
			Where("id = ? AND (last_updated IS NULL OR last_updated <= ?)", loc.BusID, loc.Timestamp).
			Updates(map[string]interface{}{
				"current_latitude":  loc.Point.Latitude,
				"current_longitude": loc.Point.Longitude,
				"last_updated":      loc.Timestamp,
			}).Error
		return translateError(err, "bus")
	})
}

func (r *LocationRepo) Latest(ctx context.Context, busID uint) (*models.Location, error) {
	var loc models.Location
	err := r.db.WithContext(ctx).
		Where("bus_id = ?", busID).
		Order(`"timestamp" DESC, id DESC`).
		First(&loc).Error
	if err != nil {
		return nil, translateError(err, "location")
	}
	return &loc, nil
}

func (r *LocationRepo) History(ctx context.Context, busID uint, filter HistoryFilter) ([]models.Location, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Location{}).Where("bus_id = ?", busID)
	if filter.Start != nil {
		q = q.Where(`"timestamp" >= ?`, *filter.Start)
	}
	if filter.End != nil {
		q = q.Where(`"timestamp" <= ?`, *filter.End)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translateError(err, "locations")
	}
	locs := []models.Location{}
	if pastEnd(filter.Offset, total) {
		return locs, total, nil
	}
	err := q.Order(`"timestamp" DESC, id DESC`).
		Offset(filter.Offset).Limit(filter.Limit).
		Find(&locs).Error
	if err != nil {
		return nil, 0, translateError(err, "locations")
	}
	return locs, total, nil
}

func (r *LocationRepo) Nearby(ctx context.Context, filter NearbyFilter) ([]models.BusLocationRow, error) {
	rows := []models.BusLocationRow{}
	err := r.db.WithContext(ctx).Raw(nearbySQL, map[string]interface{}{
		"lat":    filter.Latitude,
		"lon":    filter.Longitude,
		"radius": filter.RadiusMeters,
		"status": filter.Status,
	}).Scan(&rows).Error
	if err != nil {
		return nil, translateError(err, "locations")
	}
	return rows, nil
}

func (r *LocationRepo) LatestPerBus(ctx context.Context, limit int, activeOnly bool) ([]models.BusLocationRow, error) {
	rows := []models.BusLocationRow{}
	err := r.db.WithContext(ctx).Raw(latestPerBusSQL, map[string]interface{}{
		"activeOnly": activeOnly,
		"limit":      limit,
	}).Scan(&rows).Error
	if err != nil {
		return nil, translateError(err, "locations")
	}
	return rows, nil
}

func (r *LocationRepo) Stats(ctx context.Context, busID uint, dailySince time.Time) (*models.LocationStats, []models.DailyLocationStat, error) {
	var overall models.LocationStats
	if err := r.db.WithContext(ctx).Raw(overallStatsSQL, busID).Scan(&overall).Error; err != nil {
		return nil, nil, translateError(err, "location stats")
	}
	daily := []models.DailyLocationStat{}
	if err := r.db.WithContext(ctx).Raw(dailyStatsSQL, busID, dailySince).Scan(&daily).Error; err != nil {
		return nil, nil, translateError(err, "location stats")
	}
	return &overall, daily, nil
}

func (r *LocationRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where(`"timestamp" < ?`, cutoff).Delete(&models.Location{})
	if res.Error != nil {
		return 0, translateError(res.Error, "locations")
	}
	return res.RowsAffected, nil
}
