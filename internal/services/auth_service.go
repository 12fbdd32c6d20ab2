package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "coffeeshop/internal/errors"
	"coffeeshop/internal/lockout"
	"coffeeshop/internal/logger"
	"coffeeshop/internal/models"
)

// maxLockRounds bounds how often a login re-reads the security row after
// losing an optimistic update to a concurrent writer.
const maxLockRounds = 3

// authService verifies credentials and drives the lockout state machine.
type authService struct {
	db    *gorm.DB
	store *securityStore
	opts  Options
}

// NewAuthService creates a new AuthServicer.
func NewAuthService(db *gorm.DB, opts Options) AuthServicer {
	opts = opts.withDefaults()
	return &authService{db: db, store: newSecurityStore(db, opts.Policy), opts: opts}
}

// Authenticate checks email and password and returns the public identity.
// Unknown emails and federated-only accounts are indistinguishable from a
// bad credential. Storage failures are never treated as a pass.
func (s *authService) Authenticate(ctx context.Context, email, password string) (*models.Identity, error) {
	email = normalizeEmail(email)
	if !strings.Contains(email, "@") || password == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "email and password are required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	log := logger.Get()

	var user models.User
	err := s.db.WithContext(ctx).Joins("Security").Where("users.email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		burnVerify(s.opts.Hasher, password)
		log.Infow("login rejected", "reason", "unknown_email")
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	sec := user.Security
	if sec == nil || sec.UserID == "" {
		if sec, err = s.store.ensure(ctx, user.ID); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	if err := admit(ctx, s.store, s.opts, user.ID, sec); err != nil {
		log.Infow("login rejected", "user_id", user.ID, "reason", codeOf(err))
		return nil, err
	}

	if user.PasswordDigest == nil {
		burnVerify(s.opts.Hasher, password)
		log.Infow("login rejected", "user_id", user.ID, "reason", "no_local_password")
		return nil, apperrors.ErrInvalidCredentials
	}

	if !s.opts.Hasher.Verify(*user.PasswordDigest, password) {
		return nil, s.fail(ctx, user.ID)
	}

	applied, err := s.store.recordSuccess(ctx, user.ID, s.opts.Now())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !applied {
		// Locked between the admission check and the reset.
		return nil, s.rejectFromStore(ctx, user.ID)
	}

	log.Infow("login succeeded", "user_id", user.ID)
	id := user.Identity()
	return &id, nil
}

// admit evaluates the lock engine against sec, lazily clearing an expired
// temporary lock. It is shared by login and the per-request lock re-check.
func admit(ctx context.Context, store *securityStore, opts Options, userID string, sec *models.UserSecurity) error {
	for round := 0; round < maxLockRounds; round++ {
		now := opts.Now()
		d := opts.Policy.Evaluate(snapshotOf(sec), now)
		switch d.Verdict {
		case lockout.Allow:
			return nil
		case lockout.RejectPermanent:
			return apperrors.AccountPermanentlyLocked(d.LockReason)
		case lockout.RejectTemporary:
			return apperrors.AccountLocked(d.RemainingMinutes)
		case lockout.ExpiredClearAndAllow:
			cleared, err := store.clearExpired(ctx, userID, sec.Version, now)
			if err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if cleared {
				return nil
			}
		}

		var err error
		if sec, err = store.get(ctx, userID); err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if sec == nil {
			return apperrors.ErrInvalidCredentials
		}
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, errors.New("security state kept changing during login"))
}

// fail records a wrong password and maps the resulting state to an error.
func (s *authService) fail(ctx context.Context, userID string) error {
	attempts, applied, err := s.store.recordFailure(ctx, userID, s.opts.Now())
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !applied {
		return s.rejectFromStore(ctx, userID)
	}

	if s.opts.Policy.ReachesThreshold(attempts) {
		now := s.opts.Now()
		minutes := lockout.RemainingMinutes(s.opts.Policy.LockUntil(now), now)
		logger.Get().Warnw("account locked after failed attempts", "user_id", userID, "attempts", attempts)
		return apperrors.TooManyAttempts(minutes)
	}

	remaining := s.opts.Policy.Remaining(attempts)
	logger.Get().Infow("login rejected", "user_id", userID, "reason", "wrong_password", "remaining", remaining)
	return apperrors.InvalidPassword(remaining)
}

// rejectFromStore re-reads the row after a conditional write lost to a
// concurrent lock and reports that lock.
func (s *authService) rejectFromStore(ctx context.Context, userID string) error {
	sec, err := s.store.get(ctx, userID)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	d := s.opts.Policy.Evaluate(snapshotOf(sec), s.opts.Now())
	switch d.Verdict {
	case lockout.RejectPermanent:
		return apperrors.AccountPermanentlyLocked(d.LockReason)
	case lockout.RejectTemporary:
		return apperrors.AccountLocked(d.RemainingMinutes)
	}
	// The lock has already lapsed; never report success from this path.
	return apperrors.ErrInvalidCredentials
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func codeOf(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "unknown"
}
