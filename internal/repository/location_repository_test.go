package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus_tracker/internal/apperrors"
	"bus_tracker/internal/models"
)

var locationColumns = []string{
	"id", "bus_id", "latitude", "longitude", "speed", "heading", "accuracy",
	"timestamp", "is_active", "geohash", "created_at",
}

func TestLocationRepo_Append(t *testing.T) {
	ts := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	testCases := []struct {
		name      string
		mockSetup func(mock sqlmock.Sqlmock)
		wantErr   bool
	}{
		{
			name: "Success - ping inserted and bus cache refreshed",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(`INSERT INTO "locations"`).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
				mock.ExpectExec(`UPDATE "buses" SET .* WHERE .*id = \$\d+ AND \(last_updated IS NULL OR last_updated <= \$\d+\)`).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "Success - older ping leaves cache untouched",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(`INSERT INTO "locations"`).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
				mock.ExpectExec(`UPDATE "buses" SET`).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectCommit()
			},
		},
		{
			name: "Bus update fails - insert rolled back",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(`INSERT INTO "locations"`).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
				mock.ExpectExec(`UPDATE "buses" SET`).
					WillReturnError(errors.New("connection reset"))
				mock.ExpectRollback()
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := setupRepoTest(t)
			tc.mockSetup(mock)
			repo := NewLocationRepo(db)

			loc := &models.Location{
				BusID:     5,
				Point:     models.NewGeoPoint(7.0907, 79.9935),
				Speed:     45,
				Heading:   180,
				Timestamp: ts,
				IsActive:  true,
			}
			err := repo.Append(context.Background(), loc)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.NotZero(t, loc.ID)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestLocationRepo_Latest(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		db, mock := setupRepoTest(t)
		ts := time.Now().UTC()
		rows := sqlmock.NewRows(locationColumns).
			AddRow(9, 5, 7.0907, 79.9935, 45.0, 180.0, nil, ts, true, "tc1x2y3", ts)
		mock.ExpectQuery(`SELECT \* FROM "locations" WHERE bus_id = \$1 ORDER BY "timestamp" DESC, id DESC`).
			WillReturnRows(rows)

		loc, err := NewLocationRepo(db).Latest(context.Background(), 5)
		require.NoError(t, err)
		assert.Equal(t, [2]float64{79.9935, 7.0907}, loc.Point.Coordinates())
		assert.Equal(t, 45.0, loc.Speed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("No history", func(t *testing.T) {
		db, mock := setupRepoTest(t)
		mock.ExpectQuery(`SELECT \* FROM "locations"`).
			WillReturnRows(sqlmock.NewRows(locationColumns))

		loc, err := NewLocationRepo(db).Latest(context.Background(), 5)
		assert.Nil(t, loc)
		assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLocationRepo_History(t *testing.T) {
	db, mock := setupRepoTest(t)
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "locations" WHERE bus_id = \$1 AND "timestamp" >= \$2 AND "timestamp" <= \$3`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`SELECT \* FROM "locations" WHERE .* ORDER BY "timestamp" DESC, id DESC LIMIT`).
		WillReturnRows(sqlmock.NewRows(locationColumns).
			AddRow(2, 5, 7.1, 79.9, 30.0, 90.0, nil, start.Add(2*time.Hour), true, "", start).
			AddRow(1, 5, 7.0, 79.8, 20.0, 90.0, nil, start.Add(time.Hour), true, "", start))

	locs, total, err := NewLocationRepo(db).History(context.Background(), 5, HistoryFilter{
		Start: &start, End: &end, Limit: 50, Offset: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, locs, 2)
	assert.True(t, locs[0].Timestamp.After(locs[1].Timestamp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocationRepo_HistoryPastTheEnd(t *testing.T) {
	db, mock := setupRepoTest(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "locations" WHERE bus_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	locs, total, err := NewLocationRepo(db).History(context.Background(), 5, HistoryFilter{
		Limit: 4, Offset: Page{Number: 1<<62 + 1, Size: 4}.Offset(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Empty(t, locs)
	assert.NotNil(t, locs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocationRepo_Nearby(t *testing.T) {
	db, mock := setupRepoTest(t)
	ts := time.Now().UTC()

	cols := []string{
		"bus_id", "latitude", "longitude", "speed", "heading", "accuracy", "timestamp",
		"bus_number", "bus_code", "bus_type", "capacity", "status",
		"route_id", "route_number", "route_name", "origin", "destination",
		"operator_id", "operator_name", "distance",
	}
	mock.ExpectQuery(`WITH latest AS \(\s+SELECT DISTINCT ON \(l.bus_id\).*ST_DWithin`).
		WithArgs(79.9935, 7.0907, sqlmock.AnyArg(), 79.9935, 7.0907, 5000.0).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(5, 7.0907, 79.9935, 45.0, 180.0, nil, ts,
				"NB-0001", "BUS123456", "Luxury", 45, "active",
				1, "87", "Colombo - Kandy", "Colombo", "Kandy",
				nil, nil, 12.3456))

	rows, err := NewLocationRepo(db).Nearby(context.Background(), NearbyFilter{
		Latitude: 7.0907, Longitude: 79.9935, RadiusMeters: 5000, Status: models.BusStatusActive,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "NB-0001", rows[0].BusNumber)
	require.NotNil(t, rows[0].RouteNumber)
	assert.Equal(t, "87", *rows[0].RouteNumber)
	assert.Nil(t, rows[0].OperatorID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocationRepo_Stats(t *testing.T) {
	db, mock := setupRepoTest(t)
	first := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	last := first.Add(2 * time.Hour)
	since := first.AddDate(0, 0, -30)

	mock.ExpectQuery(`SELECT COUNT\(\*\) AS total_records`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"total_records", "avg_speed", "max_speed", "first_record", "last_record"}).
			AddRow(3, 30.0, 45.0, first, last))
	mock.ExpectQuery(`SELECT to_char\(date_trunc\('day'`).
		WithArgs(5, since).
		WillReturnRows(sqlmock.NewRows([]string{"date", "count", "avg_speed"}).
			AddRow("2025-03-01", 3, 30.0))

	overall, daily, err := NewLocationRepo(db).Stats(context.Background(), 5, since)
	require.NoError(t, err)
	assert.Equal(t, int64(3), overall.TotalRecords)
	assert.Equal(t, 45.0, overall.MaxSpeed)
	require.Len(t, daily, 1)
	assert.Equal(t, "2025-03-01", daily[0].Date)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocationRepo_DeleteOlderThan(t *testing.T) {
	db, mock := setupRepoTest(t)
	cutoff := time.Now().AddDate(0, 0, -90)

	mock.ExpectExec(`DELETE FROM "locations" WHERE "timestamp" < \$1`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 42))

	n, err := NewLocationRepo(db).DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
