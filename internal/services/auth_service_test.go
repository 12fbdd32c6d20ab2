package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "coffeeshop/internal/errors"
	"coffeeshop/internal/models"
	"coffeeshop/internal/testutil"
)

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		clock := newFakeClock()
		svc := NewAuthService(db, testOptions(clock))
		user := testutil.CreateTestUser(t, db)

		id, err := svc.Authenticate(ctx, user.Email, testutil.TestPassword)
		testutil.AssertNoError(t, err)
		if id.ID != user.ID || id.Role != models.RoleUser {
			t.Errorf("unexpected identity: %+v", id)
		}

		sec := testutil.GetSecurityState(t, db, user.ID)
		if sec.LoginAttempts != 0 || sec.LastLogin == nil {
			t.Errorf("expected reset counter and last login, got %+v", sec)
		}
	})

	t.Run("email_is_case_insensitive", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAuthService(db, testOptions(newFakeClock()))
		user := testutil.CreateTestUser(t, db)

		_, err := svc.Authenticate(ctx, "  "+strings.ToUpper(user.Email)+" ", testutil.TestPassword)
		testutil.AssertNoError(t, err)
	})

	t.Run("invalid_input", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAuthService(db, testOptions(newFakeClock()))

		for _, tc := range []struct{ email, password string }{
			{"", "password123"},
			{"not-an-email", "password123"},
			{"someone@test.com", ""},
		} {
			_, err := svc.Authenticate(ctx, tc.email, tc.password)
			testutil.AssertAppError(t, err, "INVALID_INPUT")
		}
	})

	t.Run("unknown_email", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAuthService(db, testOptions(newFakeClock()))

		_, err := svc.Authenticate(ctx, "ghost@test.com", "password123")
		testutil.AssertAppError(t, err, "INVALID_CREDENTIALS")
	})

	t.Run("wrong_password_reports_remaining", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAuthService(db, testOptions(newFakeClock()))
		user := testutil.CreateTestUser(t, db)

		_, err := svc.Authenticate(ctx, user.Email, "wrong-password")
		appErr := testutil.AssertAppError(t, err, "INVALID_PASSWORD")
		if appErr.RemainingAttempts != 4 {
			t.Errorf("expected 4 remaining attempts, got %d", appErr.RemainingAttempts)
		}
		if appErr.StatusCode != 401 {
			t.Errorf("expected 401, got %d", appErr.StatusCode)
		}

		sec := testutil.GetSecurityState(t, db, user.ID)
		if sec.LoginAttempts != 1 || sec.LastFailedLogin == nil {
			t.Errorf("expected one recorded failure, got %+v", sec)
		}
	})

	t.Run("federated_account_cannot_use_password", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAuthService(db, testOptions(newFakeClock()))
		user := testutil.CreateTestFederatedUser(t, db)

		_, err := svc.Authenticate(ctx, user.Email, "anything123")
		testutil.AssertAppError(t, err, "INVALID_CREDENTIALS")

		sec := testutil.GetSecurityState(t, db, user.ID)
		if sec.LoginAttempts != 0 {
			t.Errorf("federated rejection must not count as a failure, got %d", sec.LoginAttempts)
		}
	})
}

func TestAuthenticateLockout(t *testing.T) {
	ctx := context.Background()

	t.Run("locks_after_max_attempts", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		clock := newFakeClock()
		svc := NewAuthService(db, testOptions(clock))
		user := testutil.CreateTestUser(t, db)

		for i := 1; i < 5; i++ {
			_, err := svc.Authenticate(ctx, user.Email, "wrong-password")
			appErr := testutil.AssertAppError(t, err, "INVALID_PASSWORD")
			require.Equal(t, 5-i, appErr.RemainingAttempts)
		}

		_, err := svc.Authenticate(ctx, user.Email, "wrong-password")
		appErr := testutil.AssertAppError(t, err, "ACCOUNT_LOCKED")
		require.Equal(t, 15, appErr.RemainingMinutes)

		_, err = svc.Authenticate(ctx, user.Email, testutil.TestPassword)
		testutil.AssertAppError(t, err, "ACCOUNT_LOCKED")
	})

	t.Run("scenario_attempts_at_four", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		clock := newFakeClock()
		svc := NewAuthService(db, testOptions(clock))
		user := testutil.CreateTestUser(t, db)
		testutil.SetSecurityState(t, db, models.UserSecurity{UserID: user.ID, LoginAttempts: 4})

		_, err := svc.Authenticate(ctx, user.Email, "wrong-password")
		testutil.AssertAppError(t, err, "ACCOUNT_LOCKED")

		sec := testutil.GetSecurityState(t, db, user.ID)
		require.Equal(t, 5, sec.LoginAttempts)
		require.True(t, sec.IsLocked)
		require.NotNil(t, sec.LockedUntil)
		require.WithinDuration(t, clock.Now().Add(15*time.Minute), *sec.LockedUntil, time.Second)
	})

	t.Run("lazy_clear_after_expiry", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		clock := newFakeClock()
		svc := NewAuthService(db, testOptions(clock))
		user := testutil.CreateTestUser(t, db)
		testutil.SetSecurityState(t, db, models.UserSecurity{
			UserID:        user.ID,
			LoginAttempts: 5,
			IsLocked:      true,
			LockedUntil:   timePtr(clock.Now().Add(15 * time.Minute)),
			LockReason:    strPtr("too many failed attempts"),
		})

		_, err := svc.Authenticate(ctx, user.Email, testutil.TestPassword)
		appErr := testutil.AssertAppError(t, err, "ACCOUNT_LOCKED")
		require.Equal(t, 15, appErr.RemainingMinutes)

		clock.Advance(15 * time.Minute)

		_, err = svc.Authenticate(ctx, user.Email, testutil.TestPassword)
		testutil.AssertNoError(t, err)

		sec := testutil.GetSecurityState(t, db, user.ID)
		require.Equal(t, 0, sec.LoginAttempts)
		require.False(t, sec.IsLocked)
		require.Nil(t, sec.LockedUntil)
	})

	t.Run("failure_after_expiry_starts_a_fresh_count", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		clock := newFakeClock()
		svc := NewAuthService(db, testOptions(clock))
		user := testutil.CreateTestUser(t, db)
		testutil.SetSecurityState(t, db, models.UserSecurity{
			UserID:        user.ID,
			LoginAttempts: 5,
			IsLocked:      true,
			LockedUntil:   timePtr(clock.Now().Add(-time.Minute)),
		})

		_, err := svc.Authenticate(ctx, user.Email, "wrong-password")
		appErr := testutil.AssertAppError(t, err, "INVALID_PASSWORD")
		require.Equal(t, 4, appErr.RemainingAttempts)
	})

	t.Run("stale_lock_flag_without_deadline_is_cleared", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAuthService(db, testOptions(newFakeClock()))
		user := testutil.CreateTestUser(t, db)
		testutil.SetSecurityState(t, db, models.UserSecurity{UserID: user.ID, LoginAttempts: 2, IsLocked: true})

		_, err := svc.Authenticate(ctx, user.Email, testutil.TestPassword)
		testutil.AssertNoError(t, err)
	})

	t.Run("permanent_lock_rejects_correct_password", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAuthService(db, testOptions(newFakeClock()))
		user := testutil.CreateTestUser(t, db)
		testutil.SetSecurityState(t, db, models.UserSecurity{
			UserID:              user.ID,
			IsLocked:            true,
			IsPermanentlyLocked: true,
			LockReason:          strPtr("Fraude confirmado"),
		})

		_, err := svc.Authenticate(ctx, user.Email, testutil.TestPassword)
		appErr := testutil.AssertAppError(t, err, "ACCOUNT_PERMANENTLY_LOCKED")
		require.Equal(t, "Fraude confirmado", appErr.LockReason)
		require.True(t, appErr.Permanent)
		require.Equal(t, 423, appErr.StatusCode)

		sec := testutil.GetSecurityState(t, db, user.ID)
		require.Equal(t, 0, sec.LoginAttempts)
		require.Nil(t, sec.LastLogin)
	})

	t.Run("permanent_lock_survives_deadline", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		clock := newFakeClock()
		svc := NewAuthService(db, testOptions(clock))
		user := testutil.CreateTestUser(t, db)
		testutil.SetSecurityState(t, db, models.UserSecurity{
			UserID:              user.ID,
			IsLocked:            true,
			IsPermanentlyLocked: true,
			LockedUntil:         timePtr(clock.Now().Add(-time.Hour)),
			LockReason:          strPtr("Chargeback abuse"),
		})

		_, err := svc.Authenticate(ctx, user.Email, testutil.TestPassword)
		testutil.AssertAppError(t, err, "ACCOUNT_PERMANENTLY_LOCKED")
	})
}

func TestAuthenticateConcurrentFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("two_requests_at_four", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAuthService(db, testOptions(newFakeClock()))
		user := testutil.CreateTestUser(t, db)
		testutil.SetSecurityState(t, db, models.UserSecurity{UserID: user.ID, LoginAttempts: 4})

		errs := make([]error, 2)
		var wg sync.WaitGroup
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = svc.Authenticate(ctx, user.Email, "wrong-password")
			}(i)
		}
		wg.Wait()

		for _, err := range errs {
			testutil.AssertAppError(t, err, "ACCOUNT_LOCKED")
		}
		sec := testutil.GetSecurityState(t, db, user.ID)
		require.Equal(t, 5, sec.LoginAttempts)
		require.True(t, sec.IsLocked)
	})

	t.Run("burst_never_skips_threshold", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAuthService(db, testOptions(newFakeClock()))
		user := testutil.CreateTestUser(t, db)

		const n = 12
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = svc.Authenticate(ctx, user.Email, "wrong-password")
			}(i)
		}
		wg.Wait()

		var invalid, locked int
		for _, err := range errs {
			switch {
			case errors.Is(err, apperrors.ErrInvalidPassword):
				invalid++
			case errors.Is(err, apperrors.ErrAccountLocked):
				locked++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		require.Equal(t, 4, invalid)
		require.Equal(t, n-4, locked)

		sec := testutil.GetSecurityState(t, db, user.ID)
		require.Equal(t, 5, sec.LoginAttempts)
		require.True(t, sec.IsLocked)
	})
}
