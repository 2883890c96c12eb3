// Package middleware holds the gin middleware shared by every route:
// bearer authentication, caller scoping, request logging and the error
// response format.
package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/24f2002329/caniedit/internal/apperrors"
	"github.com/24f2002329/caniedit/internal/auth"
	"github.com/24f2002329/caniedit/internal/models"
)

const (
	MsgMissingToken = "Missing authorization token"
	MsgInvalidToken = "Invalid or expired token"

	userKey = "user"
)

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.Identity, error)
}

// UserSyncer mirrors a verified identity into the users table.
type UserSyncer interface {
	Sync(ctx context.Context, id models.Identity) (*models.User, error)
}

// Authenticator resolves the bearer token on a request into a synced user.
// A nil verifier means authentication is not configured: optional routes
// treat everyone as anonymous and protected routes fail.
type Authenticator struct {
	verifier TokenVerifier
	users    UserSyncer
	log      *zap.Logger
}

func NewAuthenticator(verifier TokenVerifier, users UserSyncer, log *zap.Logger) *Authenticator {
	return &Authenticator{verifier: verifier, users: users, log: log}
}

// OptionalAuth attaches the user when a valid token is present. Missing or
// invalid tokens fall through as anonymous; only a failing user sync
// aborts the request.
func (a *Authenticator) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := extractBearerToken(c.GetHeader("Authorization"))
		if !ok || a.verifier == nil {
			c.Next()
			return
		}

		id, err := a.verifier.Verify(c.Request.Context(), token)
		if err != nil {
			a.log.Debug("Optional auth failed, continuing anonymously",
				zap.String("path", c.Request.URL.Path), zap.Error(err))
			c.Next()
			return
		}

		if !a.attach(c, id) {
			return
		}
		c.Next()
	}
}

// RequireAuth rejects requests without a valid token with 401.
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.verifier == nil {
			AbortWithError(c, a.log, apperrors.Configuration("auth verifier not configured"))
			return
		}

		token, ok := extractBearerToken(c.GetHeader("Authorization"))
		if !ok {
			AbortWithError(c, a.log, apperrors.AuthenticationRequired(MsgMissingToken))
			return
		}

		id, err := a.verifier.Verify(c.Request.Context(), token)
		if err != nil {
			a.log.Info("Auth failure: token rejected",
				zap.String("path", c.Request.URL.Path), zap.Error(err))
			AbortWithError(c, a.log, apperrors.AuthenticationRequired(MsgInvalidToken))
			return
		}

		if !a.attach(c, id) {
			return
		}
		c.Next()
	}
}

func (a *Authenticator) attach(c *gin.Context, id *models.Identity) bool {
	user, err := a.users.Sync(c.Request.Context(), *id)
	if err != nil {
		AbortWithError(c, a.log, err)
		return false
	}
	c.Set(userKey, user)
	c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
	return true
}

// CurrentUser returns the authenticated user, if any.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

// CallerScope is the quota scope of the request: the user when
// authenticated, otherwise the normalized client IP.
func CallerScope(c *gin.Context) models.Scope {
	if user, ok := CurrentUser(c); ok {
		return models.UserScope(user.ID)
	}
	return models.AnonymousScope(ClientIP(c.Request))
}

func extractBearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
