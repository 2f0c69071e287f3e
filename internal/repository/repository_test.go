package repository

import (
	"math"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"bus_tracker/internal/apperrors"
)

// setupRepoTest returns a gorm handle backed by sqlmock.
func setupRepoTest(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db, mock
}

func TestTranslateError(t *testing.T) {
	testCases := []struct {
		name      string
		err       error
		wantKind  apperrors.Kind
		wantField string
	}{
		{
			name:     "record not found",
			err:      gorm.ErrRecordNotFound,
			wantKind: apperrors.KindNotFound,
		},
		{
			name:      "unique index violation",
			err:       &pq.Error{Code: "23505", Constraint: "idx_buses_bus_number", Table: "buses"},
			wantKind:  apperrors.KindConflict,
			wantField: "busNumber",
		},
		{
			name:      "unique constraint on underscored table",
			err:       &pq.Error{Code: "23505", Constraint: "idx_refresh_tokens_token_id", Table: "refresh_tokens"},
			wantKind:  apperrors.KindConflict,
			wantField: "tokenId",
		},
		{
			name:     "foreign key violation",
			err:      &pq.Error{Code: "23503", Table: "buses"},
			wantKind: apperrors.KindConflict,
		},
		{
			name:     "other driver error",
			err:      &pq.Error{Code: "57014"},
			wantKind: apperrors.KindInternal,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := translateError(tc.err, "bus")
			require.Error(t, err)
			assert.Equal(t, tc.wantKind, apperrors.KindOf(err))
			if tc.wantField != "" {
				var appErr *apperrors.Error
				require.ErrorAs(t, err, &appErr)
				require.Len(t, appErr.Fields, 1)
				assert.Equal(t, tc.wantField, appErr.Fields[0].Field)
			}
		})
	}

	assert.NoError(t, translateError(nil, "bus"))
}

func TestPageOffset(t *testing.T) {
	assert.Equal(t, 0, Page{Number: 1, Size: 50}.Offset())
	assert.Equal(t, 100, Page{Number: 3, Size: 50}.Offset())
	assert.Equal(t, 0, Page{Number: 0, Size: 50}.Offset())
	assert.Equal(t, math.MaxInt, Page{Number: 1<<62 + 1, Size: 4}.Offset())
	assert.Equal(t, math.MaxInt, Page{Number: math.MaxInt, Size: 2}.Offset())
}

func TestPastEnd(t *testing.T) {
	assert.False(t, pastEnd(0, 0))
	assert.False(t, pastEnd(2, 3))
	assert.True(t, pastEnd(3, 3))
	assert.True(t, pastEnd(math.MaxInt, 3))
}

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, "%NB-0001%", containsPattern("NB-0001"))
	assert.Equal(t, `%\_%`, containsPattern("_"))
	assert.Equal(t, `%50\%%`, containsPattern("50%"))
	assert.Equal(t, `%a\\b%`, containsPattern(`a\b`))
}
