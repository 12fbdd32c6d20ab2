package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "coffeeshop/internal/errors"
	"coffeeshop/internal/lockout"
	"coffeeshop/internal/logger"
	"coffeeshop/internal/models"
)

// accountSecurityService manages locks on behalf of administrators and
// re-checks lock state for authenticated requests.
type accountSecurityService struct {
	db    *gorm.DB
	store *securityStore
	opts  Options
}

// NewAccountSecurityService creates a new AccountSecurityServicer.
func NewAccountSecurityService(db *gorm.DB, opts Options) AccountSecurityServicer {
	opts = opts.withDefaults()
	return &accountSecurityService{db: db, store: newSecurityStore(db, opts.Policy), opts: opts}
}

// Lock imposes an admin lock. Nothing is written when validation fails.
func (s *accountSecurityService) Lock(ctx context.Context, userID, reason string, permanent bool, durationMin int) error {
	l, err := s.opts.Policy.NewManualLock(reason, permanent, durationMin)
	if err != nil {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	if err := s.store.lock(ctx, userID, l, s.opts.Now()); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	logger.Get().Warnw("account locked by admin", "user_id", userID, "permanent", l.Permanent, "duration", l.Duration.String())
	return nil
}

// Unlock fully reopens the account, including a permanent lock. It is idempotent.
func (s *accountSecurityService) Unlock(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	if err := s.store.unlock(ctx, userID, s.opts.Now()); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	logger.Get().Infow("account unlocked by admin", "user_id", userID)
	return nil
}

// ResetAttempts zeroes the failure counter without touching lock flags.
func (s *accountSecurityService) ResetAttempts(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	if err := s.store.resetAttempts(ctx, userID, s.opts.Now()); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// GetStatus returns the stored row with its derived state. Users without a
// row yet report an open, zero state.
func (s *accountSecurityService) GetStatus(ctx context.Context, userID string) (*SecurityStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	sec, err := s.store.get(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if sec == nil {
		sec = &models.UserSecurity{UserID: userID}
	}

	now := s.opts.Now()
	status := &SecurityStatus{UserSecurity: *sec, State: lockout.Derive(snapshotOf(sec), now).String()}
	if d := s.opts.Policy.Evaluate(snapshotOf(sec), now); d.Verdict == lockout.RejectTemporary {
		status.RemainingMinutes = d.RemainingMinutes
	}
	return status, nil
}

// ListLocked returns accounts with an active temporary or permanent lock.
func (s *accountSecurityService) ListLocked(ctx context.Context) ([]LockedAccount, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	var rows []LockedAccount
	err := s.db.WithContext(ctx).
		Table("user_security AS s").
		Select("s.user_id, u.email, u.name, s.is_permanently_locked, s.locked_until, s.lock_reason, s.login_attempts").
		Joins("JOIN users u ON u.id = s.user_id").
		Where("s.is_permanently_locked = ? OR (s.is_locked = ? AND s.locked_until > ?)", true, true, s.opts.Now()).
		Order("s.updated_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if rows == nil {
		rows = []LockedAccount{}
	}
	return rows, nil
}

// Stats aggregates lock and login counters. "Today" starts at UTC midnight.
func (s *accountSecurityService) Stats(ctx context.Context) (*SecurityStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	now := s.opts.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	db := s.db.WithContext(ctx)

	var stats SecurityStats
	counts := []struct {
		dst   *int64
		query string
		args  []interface{}
	}{
		{&stats.PermanentlyLocked, "is_permanently_locked = ?", []interface{}{true}},
		{&stats.LockedAccounts, "is_locked = ? AND is_permanently_locked = ? AND locked_until > ?", []interface{}{true, false, now}},
		{&stats.AccountsWithAttempts, "login_attempts > ?", []interface{}{0}},
		{&stats.FailedLoginsToday, "last_failed_login >= ?", []interface{}{startOfDay}},
		{&stats.SuccessfulLoginsToday, "last_login >= ?", []interface{}{startOfDay}},
	}
	for _, c := range counts {
		if err := db.Model(&models.UserSecurity{}).Where(c.query, c.args...).Count(c.dst).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return &stats, nil
}

// CheckAccess re-evaluates the lock state of an authenticated user. Expired
// temporary locks are cleared on the way.
func (s *accountSecurityService) CheckAccess(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	sec, err := s.store.get(ctx, userID)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if sec == nil {
		return nil
	}
	return admit(ctx, s.store, s.opts, userID, sec)
}

func (s *accountSecurityService) requireUser(ctx context.Context, userID string) error {
	var user models.User
	err := s.db.WithContext(ctx).Select("id").Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrUserNotFound
	}
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
