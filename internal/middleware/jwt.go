package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bus_tracker/internal/apperrors"
	"bus_tracker/internal/models"
	"bus_tracker/internal/policy"
	"bus_tracker/internal/response"
)

const (
	ctxUserKey  = "user"
	ctxActorKey = "actor"
)

// ActorResolver turns an access token into the live user and their actor.
type ActorResolver interface {
	ResolveActor(ctx context.Context, accessToken string) (*models.User, policy.Actor, error)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// RequireAuth ensures a valid access token for an active user is present.
func RequireAuth(resolver ActorResolver, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			response.Error(c, log, apperrors.Authentication("missing or invalid Authorization header"))
			return
		}

		user, actor, err := resolver.ResolveActor(c.Request.Context(), token)
		if err != nil {
			response.Error(c, log, err)
			return
		}

		c.Set(ctxUserKey, user)
		c.Set(ctxActorKey, actor)
		c.Next()
	}
}

// OptionalAuth attaches the caller when a valid token is sent and otherwise
// continues anonymously.
func OptionalAuth(resolver ActorResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := BearerToken(c); token != "" {
			if user, actor, err := resolver.ResolveActor(c.Request.Context(), token); err == nil {
				c.Set(ctxUserKey, user)
				c.Set(ctxActorKey, actor)
			}
		}
		c.Next()
	}
}

// RequireRoles must run after RequireAuth.
func RequireRoles(log logrus.FieldLogger, roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			response.Error(c, log, apperrors.Authentication("authentication required"))
			return
		}
		for _, r := range roles {
			if user.Role == r {
				c.Next()
				return
			}
		}
		response.Error(c, log, apperrors.AccessDenied("insufficient permissions"))
	}
}

// CurrentUser returns the authenticated user, if any.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok && u != nil
}

// CurrentActor returns the caller's actor; nil for anonymous requests.
func CurrentActor(c *gin.Context) policy.Actor {
	v, ok := c.Get(ctxActorKey)
	if !ok {
		return nil
	}
	actor, _ := v.(policy.Actor)
	return actor
}
