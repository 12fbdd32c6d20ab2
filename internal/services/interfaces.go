package services

import (
	"context"
	"time"

	"coffeeshop/internal/lockout"
	"coffeeshop/internal/models"
	"coffeeshop/internal/pagination"
)

// UserServicer defines the contract for the credential store.
type UserServicer interface {
	CreateUser(ctx context.Context, name, email, password, phoneNumber string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, page pagination.PageRequest, role *models.Role) (*pagination.PageResponse[models.User], error)
	UpdateRole(ctx context.Context, actorID, userID string, role models.Role) (*models.User, error)
	DeleteUser(ctx context.Context, actorID, userID string) error
}

// AuthServicer verifies credentials against the lockout state.
type AuthServicer interface {
	Authenticate(ctx context.Context, email, password string) (*models.Identity, error)
}

// SecurityStatus is a user's stored security row plus its derived lock state.
type SecurityStatus struct {
	models.UserSecurity
	State            string `json:"state"`
	RemainingMinutes int    `json:"remaining_min,omitempty"`
}

// LockedAccount is a row of the locked-accounts listing.
type LockedAccount struct {
	UserID              string     `json:"user_id"`
	Email               string     `json:"email"`
	Name                string     `json:"name"`
	IsPermanentlyLocked bool       `json:"is_permanently_locked"`
	LockedUntil         *time.Time `json:"locked_until,omitempty"`
	LockReason          *string    `json:"lock_reason,omitempty"`
	LoginAttempts       int        `json:"login_attempts"`
}

// SecurityStats aggregates account security counters for the dashboard.
type SecurityStats struct {
	PermanentlyLocked     int64 `json:"permanently_locked"`
	LockedAccounts        int64 `json:"locked_accounts"`
	AccountsWithAttempts  int64 `json:"accounts_with_attempts"`
	FailedLoginsToday     int64 `json:"failed_logins_today"`
	SuccessfulLoginsToday int64 `json:"successful_logins_today"`
}

// AccountSecurityServicer defines admin lock management and the per-request lock re-check.
type AccountSecurityServicer interface {
	Lock(ctx context.Context, userID, reason string, permanent bool, durationMin int) error
	Unlock(ctx context.Context, userID string) error
	ResetAttempts(ctx context.Context, userID string) error
	GetStatus(ctx context.Context, userID string) (*SecurityStatus, error)
	ListLocked(ctx context.Context) ([]LockedAccount, error)
	Stats(ctx context.Context) (*SecurityStats, error)
	CheckAccess(ctx context.Context, userID string) error
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(actorID, action, targetID, ipAddress string, changes map[string]interface{})
}

// Options carries the dependencies shared by the services.
type Options struct {
	Policy lockout.Policy
	// Timeout bounds every storage round trip of a single operation.
	Timeout time.Duration
	Hasher  PasswordHasher
	// Now is the clock, UTC by default.
	Now func() time.Time
}

const defaultTimeout = 5 * time.Second

func (o Options) withDefaults() Options {
	if o.Policy.MaxAttempts == 0 {
		o.Policy = lockout.DefaultPolicy()
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.Hasher == nil {
		o.Hasher = NewBcryptHasher(0)
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}
