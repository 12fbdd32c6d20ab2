package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"coffeeshop/internal/middleware"
	"coffeeshop/internal/models"
	"coffeeshop/internal/pagination"
	"coffeeshop/internal/services"
	"coffeeshop/internal/session"
	"coffeeshop/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

// --- mock services ---

type mockAuthService struct {
	authenticateFn func(ctx context.Context, email, password string) (*models.Identity, error)
}

func (m *mockAuthService) Authenticate(ctx context.Context, email, password string) (*models.Identity, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, email, password)
	}
	return &models.Identity{}, nil
}

type mockUserService struct {
	createUserFn  func(ctx context.Context, name, email, password, phone string) (*models.User, error)
	getUserByIDFn func(ctx context.Context, id string) (*models.User, error)
	listUsersFn   func(ctx context.Context, page pagination.PageRequest, role *models.Role) (*pagination.PageResponse[models.User], error)
	updateRoleFn  func(ctx context.Context, actorID, userID string, role models.Role) (*models.User, error)
	deleteUserFn  func(ctx context.Context, actorID, userID string) error
}

func (m *mockUserService) CreateUser(ctx context.Context, name, email, password, phone string) (*models.User, error) {
	if m.createUserFn != nil {
		return m.createUserFn(ctx, name, email, password, phone)
	}
	return &models.User{}, nil
}

func (m *mockUserService) GetUserByEmail(context.Context, string) (*models.User, error) {
	return &models.User{}, nil
}

func (m *mockUserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if m.getUserByIDFn != nil {
		return m.getUserByIDFn(ctx, id)
	}
	return &models.User{}, nil
}

func (m *mockUserService) ListUsers(ctx context.Context, page pagination.PageRequest, role *models.Role) (*pagination.PageResponse[models.User], error) {
	if m.listUsersFn != nil {
		return m.listUsersFn(ctx, page, role)
	}
	resp := pagination.NewPageResponse[models.User](nil, 1, 20, 0)
	return &resp, nil
}

func (m *mockUserService) UpdateRole(ctx context.Context, actorID, userID string, role models.Role) (*models.User, error) {
	if m.updateRoleFn != nil {
		return m.updateRoleFn(ctx, actorID, userID, role)
	}
	return &models.User{Role: role}, nil
}

func (m *mockUserService) DeleteUser(ctx context.Context, actorID, userID string) error {
	if m.deleteUserFn != nil {
		return m.deleteUserFn(ctx, actorID, userID)
	}
	return nil
}

type mockSecurityService struct {
	lockFn   func(ctx context.Context, userID, reason string, permanent bool, durationMin int) error
	unlockFn func(ctx context.Context, userID string) error
	statsFn  func(ctx context.Context) (*services.SecurityStats, error)
}

func (m *mockSecurityService) Lock(ctx context.Context, userID, reason string, permanent bool, durationMin int) error {
	if m.lockFn != nil {
		return m.lockFn(ctx, userID, reason, permanent, durationMin)
	}
	return nil
}

func (m *mockSecurityService) Unlock(ctx context.Context, userID string) error {
	if m.unlockFn != nil {
		return m.unlockFn(ctx, userID)
	}
	return nil
}

func (m *mockSecurityService) ResetAttempts(context.Context, string) error { return nil }

func (m *mockSecurityService) GetStatus(_ context.Context, userID string) (*services.SecurityStatus, error) {
	return &services.SecurityStatus{UserSecurity: models.UserSecurity{UserID: userID}, State: "open"}, nil
}

func (m *mockSecurityService) ListLocked(context.Context) ([]services.LockedAccount, error) {
	return []services.LockedAccount{}, nil
}

func (m *mockSecurityService) Stats(ctx context.Context) (*services.SecurityStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx)
	}
	return &services.SecurityStats{}, nil
}

func (m *mockSecurityService) CheckAccess(context.Context, string) error { return nil }

type auditEntry struct {
	actorID, action, targetID string
}

type mockAuditService struct {
	entries []auditEntry
}

func (m *mockAuditService) Log(actorID, action, targetID, _ string, _ map[string]interface{}) {
	m.entries = append(m.entries, auditEntry{actorID, action, targetID})
}

// --- helpers ---

const (
	adminID  = "0192b1f0-0000-7000-8000-0000000000aa"
	targetID = "0192b1f0-0000-7000-8000-0000000000bb"
)

// withPrincipal stands in for the gate.
func withPrincipal(id string, role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, id)
		c.Set(middleware.ContextEmail, "admin@test.com")
		c.Set(middleware.ContextRole, role)
		c.Next()
	}
}

func newIssuer() *session.Issuer {
	return session.NewIssuer("handler-test-secret-long-enough-123", "coffeeshop-api", time.Hour)
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error body %q: %v", rec.Body.String(), err)
	}
	return resp.Error
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	return nil
}
