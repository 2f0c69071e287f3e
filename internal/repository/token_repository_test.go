package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus_tracker/internal/apperrors"
	"bus_tracker/internal/models"
)

func TestTokenRepo_Store_EvictsBeyondLimit(t *testing.T) {
	db, mock := setupRepoTest(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "refresh_tokens"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(6))
	mock.ExpectExec(`DELETE FROM "refresh_tokens" WHERE user_id = \$1 AND id NOT IN \(SELECT "?id"? FROM "refresh_tokens" WHERE user_id = \$2 ORDER BY created_at DESC, id DESC LIMIT`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := NewTokenRepo(db).Store(context.Background(), &models.RefreshToken{
		UserID: 1, TokenID: "jti-6", ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_Rotate(t *testing.T) {
	next := func() *models.RefreshToken {
		return &models.RefreshToken{UserID: 1, TokenID: "jti-new", ExpiresAt: time.Now().Add(time.Hour)}
	}

	t.Run("Success", func(t *testing.T) {
		db, mock := setupRepoTest(t)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "refresh_tokens" WHERE user_id = \$1 AND token_id = \$2`).
			WithArgs(1, "jti-old").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`INSERT INTO "refresh_tokens"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
		mock.ExpectExec(`DELETE FROM "refresh_tokens" WHERE user_id = \$1 AND id NOT IN`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		require.NoError(t, NewTokenRepo(db).Rotate(context.Background(), 1, "jti-old", next()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Replayed token - already consumed", func(t *testing.T) {
		db, mock := setupRepoTest(t)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "refresh_tokens" WHERE user_id = \$1 AND token_id = \$2`).
			WithArgs(1, "jti-old").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := NewTokenRepo(db).Rotate(context.Background(), 1, "jti-old", next())
		assert.True(t, apperrors.Is(err, apperrors.KindAuthentication))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
