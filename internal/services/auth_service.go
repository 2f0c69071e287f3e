package services

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"bus_tracker/internal/apperrors"
	"bus_tracker/internal/auth"
	"bus_tracker/internal/models"
	"bus_tracker/internal/policy"
	"bus_tracker/internal/repository"
)

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"` // seconds
	TokenType    string `json:"tokenType"`
}

// AuthResult is returned by login and registration.
type AuthResult struct {
	User *models.User `json:"user"`
	TokenPair
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type ProfileInput struct {
	Username *string
	Email    *string
}

// AuthService authenticates users and issues, rotates and revokes tokens.
// Failed logins are not counted; there is no lockout.
type AuthService struct {
	users  repository.UserRepository
	tokens repository.TokenRepository
	jwt    *auth.TokenManager
	log    logrus.FieldLogger
	now    func() time.Time
}

func NewAuthService(users repository.UserRepository, tokens repository.TokenRepository,
	jwt *auth.TokenManager, log logrus.FieldLogger) *AuthService {
	return &AuthService{users: users, tokens: tokens, jwt: jwt, log: log, now: time.Now}
}

func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

func invalidCredentials() error {
	return apperrors.Authentication(apperrors.MsgInvalidCredentials)
}

func invalidToken() error {
	return apperrors.Authentication(apperrors.MsgInvalidOrExpiredToken)
}

// Authenticate checks a username-or-email and password pair and records the login.
func (s *AuthService) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	var errs apperrors.FieldErrors
	login = strings.TrimSpace(login)
	if login == "" {
		errs.Add("username", "is required")
	}
	if password == "" {
		errs.Add("password", "is required")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	u, err := s.users.FindByLogin(ctx, login)
	if apperrors.Is(err, apperrors.KindNotFound) {
		return nil, invalidCredentials()
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, apperrors.Authentication(apperrors.MsgAccountInactive)
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		s.log.WithField("user_id", u.ID).Warn("failed login attempt")
		return nil, invalidCredentials()
	}

	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, u.ID, now); err != nil {
		return nil, err
	}
	u.LastLogin = &now
	return u, nil
}

// IssueTokens mints an access and a refresh token and stores the refresh jti.
func (s *AuthService) IssueTokens(ctx context.Context, u *models.User) (*TokenPair, error) {
	pair, rt, err := s.mint(u)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Store(ctx, &models.RefreshToken{
		UserID:    u.ID,
		TokenID:   rt.TokenID,
		ExpiresAt: rt.ExpiresAt,
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *AuthService) mint(u *models.User) (*TokenPair, *auth.RefreshToken, error) {
	access, err := s.jwt.GenerateAccessToken(u)
	if err != nil {
		return nil, nil, apperrors.Internal("could not sign access token", err)
	}
	rt, err := s.jwt.GenerateRefreshToken(u.ID)
	if err != nil {
		return nil, nil, apperrors.Internal("could not sign refresh token", err)
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: rt.Token,
		ExpiresIn:    int64(s.jwt.AccessTTL().Seconds()),
		TokenType:    "Bearer",
	}, rt, nil
}

func (s *AuthService) Login(ctx context.Context, login, password string) (*AuthResult, error) {
	u, err := s.Authenticate(ctx, login, password)
	if err != nil {
		return nil, err
	}
	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": u.ID, "role": u.Role}).Info("user logged in")
	return &AuthResult{User: u, TokenPair: *pair}, nil
}

// Register creates a consumer account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	var errs apperrors.FieldErrors
	validateUsername(username, &errs)
	validateEmail(email, &errs)
	validatePassword("password", in.Password, &errs)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperrors.Internal("could not hash password", err)
	}
	u := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleUser,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return nil, err
	}
	s.log.WithField("user_id", u.ID).Info("user registered")
	return &AuthResult{User: u, TokenPair: *pair}, nil
}

// Refresh exchanges a stored refresh token for a new pair. The old token is
// consumed, so presenting it twice fails.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.jwt.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, invalidToken()
	}

	u, err := s.users.FindByID(ctx, claims.UserID)
	if apperrors.Is(err, apperrors.KindNotFound) {
		return nil, invalidToken()
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, apperrors.Authentication(apperrors.MsgAccountInactive)
	}

	pair, rt, err := s.mint(u)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Rotate(ctx, u.ID, claims.ID, &models.RefreshToken{
		UserID:    u.ID,
		TokenID:   rt.TokenID,
		ExpiresAt: rt.ExpiresAt,
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout revokes the given refresh token when it belongs to userID. Unknown or
// missing tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, userID uint, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	claims, err := s.jwt.ParseRefreshToken(refreshToken)
	if err != nil || claims.UserID != userID {
		return nil
	}
	return s.tokens.Revoke(ctx, userID, claims.ID)
}

// ResolveActor verifies an access token and loads the live user behind it.
func (s *AuthService) ResolveActor(ctx context.Context, accessToken string) (*models.User, policy.Actor, error) {
	claims, err := s.jwt.ParseAccessToken(accessToken)
	if err != nil {
		return nil, nil, invalidToken()
	}
	u, err := s.users.FindByID(ctx, claims.UserID)
	if apperrors.Is(err, apperrors.KindNotFound) {
		return nil, nil, invalidToken()
	}
	if err != nil {
		return nil, nil, err
	}
	if !u.IsActive {
		return nil, nil, apperrors.Authentication(apperrors.MsgAccountInactive)
	}
	return u, policy.FromUser(u), nil
}

func (s *AuthService) Me(ctx context.Context, userID uint) (*models.User, error) {
	return s.users.FindByID(ctx, userID)
}

// UpdateProfile lets a user change their own username and email.
func (s *AuthService) UpdateProfile(ctx context.Context, userID uint, in ProfileInput) (*models.User, error) {
	var errs apperrors.FieldErrors
	if in.Username != nil {
		v := strings.TrimSpace(*in.Username)
		in.Username = &v
		validateUsername(v, &errs)
	}
	if in.Email != nil {
		v := strings.ToLower(strings.TrimSpace(*in.Email))
		in.Email = &v
		validateEmail(v, &errs)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.Username != nil {
		u.Username = *in.Username
	}
	if in.Email != nil {
		u.Email = *in.Email
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ChangePassword replaces the password after checking the current one and
// signs the user out everywhere.
func (s *AuthService) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	var errs apperrors.FieldErrors
	if current == "" {
		errs.Add("currentPassword", "is required")
	}
	validatePassword("newPassword", next, &errs)
	if err := errs.Err(); err != nil {
		return err
	}

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash, current) {
		return apperrors.Authentication("current password is incorrect")
	}

	hash, err := auth.HashPassword(next)
	if err != nil {
		return apperrors.Internal("could not hash password", err)
	}
	u.PasswordHash = hash
	if err := s.users.Update(ctx, u); err != nil {
		return err
	}
	if err := s.tokens.RevokeAll(ctx, userID); err != nil {
		return err
	}
	s.log.WithField("user_id", userID).Info("password changed")
	return nil
}
