package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus_tracker/internal/apperrors"
	"bus_tracker/internal/auth"
	"bus_tracker/internal/config"
	"bus_tracker/internal/models"
	"bus_tracker/internal/policy"
)

func testTokenManager() *auth.TokenManager {
	return auth.NewTokenManager(config.JWTConfig{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "bus_tracker",
	})
}

func newAuthService(m *repoMocks) (*AuthService, *auth.TokenManager) {
	tm := testTokenManager()
	return NewAuthService(m.users, m.tokens, tm, testLogger()).WithClock(fixedClock), tm
}

func userWithPassword(t *testing.T, pw string) *models.User {
	t.Helper()
	hash, err := auth.HashPassword(pw)
	require.NoError(t, err)
	return &models.User{ID: 7, Username: "nimal", Email: "nimal@example.com", PasswordHash: hash, Role: models.RoleUser, IsActive: true}
}

func TestAuthService_Login(t *testing.T) {
	m := newRepoMocks(t)
	svc, tm := newAuthService(m)
	u := userWithPassword(t, "secret123")

	m.users.EXPECT().FindByLogin(gomock.Any(), "nimal@example.com").Return(u, nil)
	m.users.EXPECT().TouchLastLogin(gomock.Any(), uint(7), fixedNow).Return(nil)
	m.tokens.EXPECT().Store(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rt *models.RefreshToken) error {
			assert.Equal(t, uint(7), rt.UserID)
			assert.NotEmpty(t, rt.TokenID)
			return nil
		})

	res, err := svc.Login(context.Background(), " nimal@example.com ", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", res.TokenType)
	assert.Equal(t, int64(900), res.ExpiresIn)
	assert.Equal(t, fixedNow, *res.User.LastLogin)

	claims, err := tm.ParseAccessToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, models.RoleUser, claims.Role)
}

// There is no lockout: repeated failures leave the account untouched.
func TestAuthService_RepeatedFailedLoginsDoNotLockAccount(t *testing.T) {
	m := newRepoMocks(t)
	svc, _ := newAuthService(m)
	u := userWithPassword(t, "secret123")

	m.users.EXPECT().FindByLogin(gomock.Any(), "nimal").Return(u, nil).Times(3)
	m.users.EXPECT().Update(gomock.Any(), gomock.Any()).Times(0)
	m.users.EXPECT().TouchLastLogin(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	for i := 0; i < 3; i++ {
		_, err := svc.Login(context.Background(), "nimal", "wrong-password")
		assertKind(t, err, apperrors.KindAuthentication)
		assert.EqualError(t, err, apperrors.MsgInvalidCredentials)
	}
	assert.True(t, u.IsActive)
	assert.Nil(t, u.LastLogin)
}

func TestAuthService_Authenticate_Failures(t *testing.T) {
	t.Run("Unknown user", func(t *testing.T) {
		m := newRepoMocks(t)
		svc, _ := newAuthService(m)
		m.users.EXPECT().FindByLogin(gomock.Any(), "ghost").Return(nil, apperrors.NotFound("user"))

		_, err := svc.Authenticate(context.Background(), "ghost", "whatever")
		assert.EqualError(t, err, apperrors.MsgInvalidCredentials)
	})

	t.Run("Inactive account", func(t *testing.T) {
		m := newRepoMocks(t)
		svc, _ := newAuthService(m)
		u := userWithPassword(t, "secret123")
		u.IsActive = false
		m.users.EXPECT().FindByLogin(gomock.Any(), "nimal").Return(u, nil)

		_, err := svc.Authenticate(context.Background(), "nimal", "secret123")
		assertKind(t, err, apperrors.KindAuthentication)
		assert.EqualError(t, err, apperrors.MsgAccountInactive)
	})

	t.Run("Missing fields", func(t *testing.T) {
		svc, _ := newAuthService(newRepoMocks(t))
		_, err := svc.Authenticate(context.Background(), "  ", "")
		assertKind(t, err, apperrors.KindValidation)
	})
}

func TestAuthService_Register(t *testing.T) {
	m := newRepoMocks(t)
	svc, _ := newAuthService(m)

	m.users.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, u *models.User) error {
			assert.Equal(t, models.RoleUser, u.Role)
			assert.Nil(t, u.OperatorID)
			u.ID = 20
			return nil
		})
	m.tokens.EXPECT().Store(gomock.Any(), gomock.Any()).Return(nil)

	res, err := svc.Register(context.Background(), RegisterInput{Username: "sunil", Email: "Sunil@Example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "sunil@example.com", res.User.Email)
	assert.NotEmpty(t, res.RefreshToken)
}

func TestAuthService_Refresh(t *testing.T) {
	t.Run("Rotates the stored token", func(t *testing.T) {
		m := newRepoMocks(t)
		svc, tm := newAuthService(m)
		u := userWithPassword(t, "secret123")
		old, err := tm.GenerateRefreshToken(u.ID)
		require.NoError(t, err)

		m.users.EXPECT().FindByID(gomock.Any(), uint(7)).Return(u, nil)
		m.tokens.EXPECT().Rotate(gomock.Any(), uint(7), old.TokenID, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ uint, _ string, next *models.RefreshToken) error {
				assert.NotEqual(t, old.TokenID, next.TokenID)
				return nil
			})

		pair, err := svc.Refresh(context.Background(), old.Token)
		require.NoError(t, err)
		assert.NotEqual(t, old.Token, pair.RefreshToken)
	})

	t.Run("Replayed token is rejected", func(t *testing.T) {
		m := newRepoMocks(t)
		svc, tm := newAuthService(m)
		u := userWithPassword(t, "secret123")
		old, err := tm.GenerateRefreshToken(u.ID)
		require.NoError(t, err)

		m.users.EXPECT().FindByID(gomock.Any(), uint(7)).Return(u, nil)
		m.tokens.EXPECT().Rotate(gomock.Any(), uint(7), old.TokenID, gomock.Any()).
			Return(apperrors.Authentication(apperrors.MsgInvalidOrExpiredToken))

		_, err = svc.Refresh(context.Background(), old.Token)
		assertKind(t, err, apperrors.KindAuthentication)
	})

	t.Run("Access token is not a refresh token", func(t *testing.T) {
		m := newRepoMocks(t)
		svc, tm := newAuthService(m)
		access, err := tm.GenerateAccessToken(userWithPassword(t, "secret123"))
		require.NoError(t, err)

		_, err = svc.Refresh(context.Background(), access)
		assert.EqualError(t, err, apperrors.MsgInvalidOrExpiredToken)
	})

	t.Run("Inactive user", func(t *testing.T) {
		m := newRepoMocks(t)
		svc, tm := newAuthService(m)
		u := userWithPassword(t, "secret123")
		u.IsActive = false
		old, err := tm.GenerateRefreshToken(u.ID)
		require.NoError(t, err)
		m.users.EXPECT().FindByID(gomock.Any(), uint(7)).Return(u, nil)

		_, err = svc.Refresh(context.Background(), old.Token)
		assert.EqualError(t, err, apperrors.MsgAccountInactive)
	})
}

func TestAuthService_Logout(t *testing.T) {
	m := newRepoMocks(t)
	svc, tm := newAuthService(m)
	rt, err := tm.GenerateRefreshToken(7)
	require.NoError(t, err)
	other, err := tm.GenerateRefreshToken(8)
	require.NoError(t, err)

	m.tokens.EXPECT().Revoke(gomock.Any(), uint(7), rt.TokenID).Return(nil).Times(2)

	assert.NoError(t, svc.Logout(context.Background(), 7, rt.Token))
	assert.NoError(t, svc.Logout(context.Background(), 7, rt.Token), "idempotent")
	assert.NoError(t, svc.Logout(context.Background(), 7, ""), "no token is a no-op")
	assert.NoError(t, svc.Logout(context.Background(), 7, other.Token), "another user's token is ignored")
	assert.NoError(t, svc.Logout(context.Background(), 7, "garbage"))
}

func TestAuthService_ResolveActor(t *testing.T) {
	t.Run("Driver becomes bus scoped", func(t *testing.T) {
		m := newRepoMocks(t)
		svc, tm := newAuthService(m)
		driver := &models.User{ID: 5, Username: "driver1", Role: models.RoleDriver, AssignedBusID: ptr(uint(1)), OperatorID: ptr(uint(3)), IsActive: true}
		token, err := tm.GenerateAccessToken(driver)
		require.NoError(t, err)
		m.users.EXPECT().FindByID(gomock.Any(), uint(5)).Return(driver, nil)

		u, actor, err := svc.ResolveActor(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, uint(5), u.ID)
		assert.Equal(t, policy.BusScoped{UserID: 5, BusID: 1, OperatorID: ptr(uint(3))}, actor)
	})

	t.Run("Deactivated after issue", func(t *testing.T) {
		m := newRepoMocks(t)
		svc, tm := newAuthService(m)
		u := userWithPassword(t, "secret123")
		token, err := tm.GenerateAccessToken(u)
		require.NoError(t, err)
		u.IsActive = false
		m.users.EXPECT().FindByID(gomock.Any(), uint(7)).Return(u, nil)

		_, _, err = svc.ResolveActor(context.Background(), token)
		assertKind(t, err, apperrors.KindAuthentication)
	})

	t.Run("Deleted user", func(t *testing.T) {
		m := newRepoMocks(t)
		svc, tm := newAuthService(m)
		token, err := tm.GenerateAccessToken(&models.User{ID: 99, Role: models.RoleUser})
		require.NoError(t, err)
		m.users.EXPECT().FindByID(gomock.Any(), uint(99)).Return(nil, apperrors.NotFound("user"))

		_, _, err = svc.ResolveActor(context.Background(), token)
		assert.EqualError(t, err, apperrors.MsgInvalidOrExpiredToken)
	})
}

func TestAuthService_ChangePassword(t *testing.T) {
	t.Run("Wrong current password", func(t *testing.T) {
		m := newRepoMocks(t)
		svc, _ := newAuthService(m)
		m.users.EXPECT().FindByID(gomock.Any(), uint(7)).Return(userWithPassword(t, "secret123"), nil)

		err := svc.ChangePassword(context.Background(), 7, "nope", "newsecret")
		assertKind(t, err, apperrors.KindAuthentication)
	})

	t.Run("Success revokes every session", func(t *testing.T) {
		m := newRepoMocks(t)
		svc, _ := newAuthService(m)
		u := userWithPassword(t, "secret123")
		m.users.EXPECT().FindByID(gomock.Any(), uint(7)).Return(u, nil)
		m.users.EXPECT().Update(gomock.Any(), u).Return(nil)
		m.tokens.EXPECT().RevokeAll(gomock.Any(), uint(7)).Return(nil)

		require.NoError(t, svc.ChangePassword(context.Background(), 7, "secret123", "newsecret"))
		assert.True(t, auth.CheckPassword(u.PasswordHash, "newsecret"))
	})

	t.Run("Short new password", func(t *testing.T) {
		svc, _ := newAuthService(newRepoMocks(t))
		err := svc.ChangePassword(context.Background(), 7, "secret123", "123")
		assertKind(t, err, apperrors.KindValidation)
	})
}

func TestAuthService_UpdateProfile(t *testing.T) {
	m := newRepoMocks(t)
	svc, _ := newAuthService(m)
	u := userWithPassword(t, "secret123")
	m.users.EXPECT().FindByID(gomock.Any(), uint(7)).Return(u, nil)
	m.users.EXPECT().Update(gomock.Any(), u).Return(nil)

	out, err := svc.UpdateProfile(context.Background(), 7, ProfileInput{Email: ptr(" New@Example.com")})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", out.Email)
	assert.Equal(t, "nimal", out.Username)
}
