package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus_tracker/internal/apperrors"
	"bus_tracker/internal/models"
)

func uintPtr(v uint) *uint { return &v }

func TestBusRepo_Create(t *testing.T) {
	testCases := []struct {
		name       string
		operatorID *uint
		mockSetup  func(mock sqlmock.Sqlmock)
	}{
		{
			name:       "With operator - count incremented",
			operatorID: uintPtr(3),
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(`INSERT INTO "buses"`).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
				mock.ExpectExec(`UPDATE "operators" SET "total_buses"=GREATEST\(total_buses \+ \$1, 0\) WHERE id = \$2`).
					WithArgs(1, 3).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "Without operator - no count update",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(`INSERT INTO "buses"`).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
				mock.ExpectCommit()
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := setupRepoTest(t)
			tc.mockSetup(mock)

			bus := &models.Bus{
				BusNumber:  "NB-0001",
				BusCode:    "BUS123456",
				RouteID:    1,
				OperatorID: tc.operatorID,
				Capacity:   45,
				BusType:    "Luxury",
				Status:     models.BusStatusActive,
			}
			require.NoError(t, NewBusRepo(db).Create(context.Background(), bus))
			assert.NotZero(t, bus.ID)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBusRepo_Delete(t *testing.T) {
	t.Run("Success - cascades in one transaction", func(t *testing.T) {
		db, mock := setupRepoTest(t)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "locations" WHERE bus_id = \$1`).
			WithArgs(10).
			WillReturnResult(sqlmock.NewResult(0, 120))
		mock.ExpectExec(`UPDATE "users" SET "assigned_bus_id"=\$1.* WHERE assigned_bus_id = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM "buses" WHERE "buses"."id" = \$1`).
			WithArgs(10).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE "operators" SET "total_buses"=GREATEST\(total_buses \+ \$1, 0\)`).
			WithArgs(-1, 3).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := NewBusRepo(db).Delete(context.Background(), &models.Bus{ID: 10, OperatorID: uintPtr(3)})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing bus - rolled back", func(t *testing.T) {
		db, mock := setupRepoTest(t)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "locations"`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`UPDATE "users"`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`DELETE FROM "buses"`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := NewBusRepo(db).Delete(context.Background(), &models.Bus{ID: 10})
		assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBusRepo_Update_MovesOperatorCount(t *testing.T) {
	db, mock := setupRepoTest(t)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "buses" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "operators" SET "total_buses"`).
		WithArgs(-1, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "operators" SET "total_buses"`).
		WithArgs(1, 4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	bus := &models.Bus{ID: 10, BusNumber: "NB-0001", BusCode: "BUS123456", RouteID: 1, OperatorID: uintPtr(4),
		Capacity: 45, BusType: "Luxury", Status: models.BusStatusActive}
	require.NoError(t, NewBusRepo(db).Update(context.Background(), bus, uintPtr(3)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBusRepo_ExistsByNumber(t *testing.T) {
	db, mock := setupRepoTest(t)
	mock.ExpectQuery(`SELECT count\(\*\) FROM "buses" WHERE bus_number = \$1 AND id <> \$2`).
		WithArgs("NB-0001", 10).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := NewBusRepo(db).ExistsByNumber(context.Background(), "NB-0001", 10)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBusRepo_ListSearchIsLiteral(t *testing.T) {
	db, mock := setupRepoTest(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "buses" WHERE .*bus_number ILIKE \$1 ESCAPE '\\' OR bus_code ILIKE \$2 ESCAPE '\\'`).
		WithArgs(`%\_%`, `%\_%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT \* FROM "buses" WHERE .* ORDER BY bus_number ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	buses, total, err := NewBusRepo(db).List(context.Background(), BusFilter{
		Search: "_",
		Page:   Page{Number: 1, Size: 20},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, buses)
	assert.NoError(t, mock.ExpectationsWereMet())
}
