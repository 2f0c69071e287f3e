// Package auth mints and verifies access and refresh tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"bus_tracker/internal/config"
	"bus_tracker/internal/models"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWrongType    = errors.New("wrong token type")
)

// AccessClaims is carried by short-lived access tokens.
type AccessClaims struct {
	UserID   uint        `json:"id"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	Type     string      `json:"type"`
	jwt.RegisteredClaims
}

// RefreshClaims is carried by refresh tokens; RegisteredClaims.ID holds the jti.
type RefreshClaims struct {
	UserID uint   `json:"id"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

// RefreshToken is a freshly minted refresh token with its stored identity.
type RefreshToken struct {
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

// TokenManager signs tokens with separate HS256 secrets for access and refresh.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

func NewTokenManager(cfg config.JWTConfig) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		now:           time.Now,
	}
}

// WithClock replaces the time source; used by tests.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	m.now = now
	return m
}

func (m *TokenManager) AccessTTL() time.Duration { return m.accessTTL }

func (m *TokenManager) GenerateAccessToken(u *models.User) (string, error) {
	now := m.now()
	claims := AccessClaims{
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Role,
		Type:     TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   fmt.Sprint(u.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.accessSecret)
}

func (m *TokenManager) GenerateRefreshToken(userID uint) (*RefreshToken, error) {
	now := m.now()
	jti := uuid.NewString()
	expiresAt := now.Add(m.refreshTTL)
	claims := RefreshClaims{
		UserID: userID,
		Type:   TokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    m.issuer,
			Subject:   fmt.Sprint(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.refreshSecret)
	if err != nil {
		return nil, err
	}
	return &RefreshToken{Token: signed, TokenID: jti, ExpiresAt: expiresAt}, nil
}

func (m *TokenManager) ParseAccessToken(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(tokenStr, claims, m.accessSecret); err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeAccess {
		return nil, ErrWrongType
	}
	return claims, nil
}

func (m *TokenManager) ParseRefreshToken(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.parse(tokenStr, claims, m.refreshSecret); err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeRefresh || claims.ID == "" {
		return nil, ErrWrongType
	}
	return claims, nil
}

func (m *TokenManager) parse(tokenStr string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
