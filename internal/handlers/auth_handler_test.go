package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "coffeeshop/internal/errors"
	"coffeeshop/internal/models"
)

func setupAuthRouter(auth *mockAuthService, users *mockUserService) *gin.Engine {
	h := NewAuthHandler(auth, users, newIssuer(), CookieOptions{SameSite: http.SameSiteStrictMode})
	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/logout", h.Logout)
	r.GET("/auth/profile", withPrincipal(targetID, models.RoleUser), h.GetProfile)
	return r
}

func TestLogin(t *testing.T) {
	t.Run("success_sets_cookie", func(t *testing.T) {
		auth := &mockAuthService{authenticateFn: func(_ context.Context, email, _ string) (*models.Identity, error) {
			return &models.Identity{ID: targetID, Name: "Ana", Email: email, Role: models.RoleUser}, nil
		}}
		r := setupAuthRouter(auth, &mockUserService{})

		rec := doJSON(r, http.MethodPost, "/auth/login", `{"email":"ana@test.com","password":"password123"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp AuthResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if resp.Message == "" || resp.User.ID != targetID || resp.User.Role != models.RoleUser {
			t.Errorf("unexpected response: %+v", resp)
		}

		cookie := sessionCookie(rec)
		if cookie == nil {
			t.Fatal("expected session cookie")
		}
		if !cookie.HttpOnly || cookie.MaxAge != 3600 || cookie.Path != "/" || cookie.SameSite != http.SameSiteStrictMode {
			t.Errorf("unexpected cookie attributes: %+v", cookie)
		}
		if _, err := newIssuer().Verify(cookie.Value); err != nil {
			t.Errorf("cookie does not carry a valid token: %v", err)
		}
	})

	t.Run("missing_fields", func(t *testing.T) {
		r := setupAuthRouter(&mockAuthService{}, &mockUserService{})

		rec := doJSON(r, http.MethodPost, "/auth/login", `{"email":"ana@test.com"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if code := decodeError(t, rec).Code; code != "INVALID_INPUT" {
			t.Errorf("expected INVALID_INPUT, got %s", code)
		}
	})

	errorCases := []struct {
		name       string
		err        error
		wantStatus int
		check      func(t *testing.T, d ErrorDetail)
	}{
		{
			name:       "wrong_password",
			err:        apperrors.InvalidPassword(3),
			wantStatus: http.StatusUnauthorized,
			check: func(t *testing.T, d ErrorDetail) {
				if d.Code != "INVALID_PASSWORD" || d.RemainingAttempts != 3 {
					t.Errorf("unexpected error: %+v", d)
				}
			},
		},
		{
			name:       "temporarily_locked",
			err:        apperrors.AccountLocked(12),
			wantStatus: http.StatusLocked,
			check: func(t *testing.T, d ErrorDetail) {
				if d.Code != "ACCOUNT_LOCKED" || d.RemainingMinutes != 12 {
					t.Errorf("unexpected error: %+v", d)
				}
			},
		},
		{
			name:       "permanently_locked",
			err:        apperrors.AccountPermanentlyLocked("Fraude confirmado"),
			wantStatus: http.StatusLocked,
			check: func(t *testing.T, d ErrorDetail) {
				if d.Code != "ACCOUNT_PERMANENTLY_LOCKED" || d.LockReason != "Fraude confirmado" || !d.Permanent {
					t.Errorf("unexpected error: %+v", d)
				}
			},
		},
		{
			name:       "unknown_email",
			err:        apperrors.ErrInvalidCredentials,
			wantStatus: http.StatusUnauthorized,
			check: func(t *testing.T, d ErrorDetail) {
				if d.Code != "INVALID_CREDENTIALS" || d.RemainingAttempts != 0 {
					t.Errorf("unexpected error: %+v", d)
				}
			},
		},
	}

	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			auth := &mockAuthService{authenticateFn: func(context.Context, string, string) (*models.Identity, error) {
				return nil, tc.err
			}}
			r := setupAuthRouter(auth, &mockUserService{})

			rec := doJSON(r, http.MethodPost, "/auth/login", `{"email":"ana@test.com","password":"nope"}`)
			if rec.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, rec.Code)
			}
			if sessionCookie(rec) != nil {
				t.Error("no cookie may be set on failure")
			}
			tc.check(t, decodeError(t, rec))
		})
	}
}

func TestRegister(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		users := &mockUserService{createUserFn: func(_ context.Context, name, email, _, _ string) (*models.User, error) {
			u := &models.User{Name: name, Email: email, Role: models.RoleUser}
			u.ID = targetID
			return u, nil
		}}
		r := setupAuthRouter(&mockAuthService{}, users)

		rec := doJSON(r, http.MethodPost, "/auth/register", `{"name":"Ana","email":"ana@test.com","password":"latte2024"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if sessionCookie(rec) == nil {
			t.Error("expected session cookie after registration")
		}
	})

	t.Run("weak_password", func(t *testing.T) {
		called := false
		users := &mockUserService{createUserFn: func(context.Context, string, string, string, string) (*models.User, error) {
			called = true
			return &models.User{}, nil
		}}
		r := setupAuthRouter(&mockAuthService{}, users)

		rec := doJSON(r, http.MethodPost, "/auth/register", `{"name":"Ana","email":"ana@test.com","password":"latteonly"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if called {
			t.Error("service must not be called for a weak password")
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		users := &mockUserService{createUserFn: func(context.Context, string, string, string, string) (*models.User, error) {
			return nil, apperrors.ErrDuplicateEmail
		}}
		r := setupAuthRouter(&mockAuthService{}, users)

		rec := doJSON(r, http.MethodPost, "/auth/register", `{"name":"Ana","email":"ana@test.com","password":"latte2024"}`)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})
}

func TestLogout(t *testing.T) {
	r := setupAuthRouter(&mockAuthService{}, &mockUserService{})

	rec := doJSON(r, http.MethodPost, "/auth/logout", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	cookie := sessionCookie(rec)
	if cookie == nil || cookie.MaxAge >= 0 || cookie.Value != "" {
		t.Errorf("expected cleared cookie, got %+v", cookie)
	}
}

func TestGetProfile(t *testing.T) {
	users := &mockUserService{getUserByIDFn: func(_ context.Context, id string) (*models.User, error) {
		u := &models.User{Name: "Ana", Email: "ana@test.com", PhoneNumber: "+56 9 1111 2222", Role: models.RoleUser}
		u.ID = id
		return u, nil
	}}
	r := setupAuthRouter(&mockAuthService{}, users)

	rec := doJSON(r, http.MethodGet, "/auth/profile", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp ProfileResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.ID != targetID || resp.PhoneNumber != "+56 9 1111 2222" {
		t.Errorf("unexpected profile: %+v", resp)
	}
}
