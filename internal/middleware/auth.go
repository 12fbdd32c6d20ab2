package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "coffeeshop/internal/errors"
	"coffeeshop/internal/logger"
	"coffeeshop/internal/models"
	"coffeeshop/internal/session"
)

// Context keys set by the gate.
const (
	ContextUserID = "userID"
	ContextEmail  = "email"
	ContextRole   = "role"
)

// Principal is the identity attached to a request once the gate succeeds.
// Role is always the stored role, never the one in the token.
type Principal struct {
	ID    string
	Email string
	Role  models.Role
}

// TokenVerifier verifies a session token.
type TokenVerifier interface {
	Verify(token string) (*session.Claims, error)
}

// UserResolver re-reads a user from the credential store.
type UserResolver interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// LockChecker re-evaluates the lock state of a user.
type LockChecker interface {
	CheckAccess(ctx context.Context, userID string) error
}

// Gate authorizes protected requests in two layers: the token must verify,
// and the user it names must still exist. Lock-sensitive routes also re-check
// the lock state, so role changes and locks apply on the next request.
type Gate struct {
	tokens TokenVerifier
	users  UserResolver
	locks  LockChecker
}

// NewGate creates a Gate.
func NewGate(tokens TokenVerifier, users UserResolver, locks LockChecker) *Gate {
	return &Gate{tokens: tokens, users: users, locks: locks}
}

// Authorize resolves token to a Principal. With checkLock set, a locked
// account is rejected and an expired lock is cleared.
func (g *Gate) Authorize(ctx context.Context, token string, checkLock bool) (*Principal, error) {
	if !session.WellFormed(token) {
		return nil, apperrors.ErrUnauthenticated
	}

	claims, err := g.tokens.Verify(token)
	switch {
	case errors.Is(err, session.ErrExpired):
		return nil, apperrors.ErrSessionExpired
	case errors.Is(err, session.ErrMalformed):
		return nil, apperrors.ErrUnauthenticated
	case err != nil:
		return nil, apperrors.ErrTokenInvalid
	}

	user, err := g.users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, apperrors.ErrUserNotFound) {
		return nil, apperrors.ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}

	if checkLock && g.locks != nil {
		if err := g.locks.CheckAccess(ctx, user.ID); err != nil {
			return nil, err
		}
	}

	return &Principal{ID: user.ID, Email: user.Email, Role: user.Role}, nil
}

// Require authenticates the request without a lock re-check.
func (g *Gate) Require() gin.HandlerFunc {
	return g.handler(false)
}

// RequireUnlocked authenticates the request and rejects locked accounts.
func (g *Gate) RequireUnlocked() gin.HandlerFunc {
	return g.handler(true)
}

func (g *Gate) handler(checkLock bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := g.Authorize(c.Request.Context(), extractToken(c), checkLock)
		if err != nil {
			logger.Get().Debugw("request rejected by gate", "path", c.Request.URL.Path, "reason", codeOf(err))
			abortWithError(c, err)
			return
		}

		c.Set(ContextUserID, p.ID)
		c.Set(ContextEmail, p.Email)
		c.Set(ContextRole, p.Role)
		c.Next()
	}
}

// extractToken reads the session cookie, falling back to a bearer header.
func extractToken(c *gin.Context) string {
	if token, err := c.Cookie(session.CookieName); err == nil && token != "" {
		return token
	}
	authHeader := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// GetPrincipal returns the principal attached by the gate.
func GetPrincipal(c *gin.Context) (*Principal, bool) {
	id := c.GetString(ContextUserID)
	if id == "" {
		return nil, false
	}
	role, _ := c.Get(ContextRole)
	r, _ := role.(models.Role)
	return &Principal{ID: id, Email: c.GetString(ContextEmail), Role: r}, true
}

// RequireRole allows only principals holding one of roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok {
			abortWithError(c, apperrors.ErrUnauthenticated)
			return
		}
		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}
		abortWithError(c, apperrors.ErrForbidden)
	}
}

// RequireAdmin allows admins only.
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin)
}

// RequireAdminOrViewer allows admins and read-only staff.
func RequireAdminOrViewer() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin, models.RoleViewer)
}

// RequireOwnerOrAdmin allows admins and the user named by the path parameter.
func RequireOwnerOrAdmin(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok {
			abortWithError(c, apperrors.ErrUnauthenticated)
			return
		}
		if p.Role == models.RoleAdmin || p.ID == c.Param(param) {
			c.Next()
			return
		}
		abortWithError(c, apperrors.ErrForbidden)
	}
}

func codeOf(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "unknown"
}
