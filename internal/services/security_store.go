package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"coffeeshop/internal/lockout"
	"coffeeshop/internal/models"
)

// securityStore owns every write to the user_security table. Each mutation
// is a single statement so concurrent logins and admin actions on the same
// user can neither lose updates nor skip the lock threshold.
type securityStore struct {
	db     *gorm.DB
	policy lockout.Policy
}

func newSecurityStore(db *gorm.DB, policy lockout.Policy) *securityStore {
	return &securityStore{db: db, policy: policy}
}

// get loads the row for userID, returning nil when it does not exist yet.
func (s *securityStore) get(ctx context.Context, userID string) (*models.UserSecurity, error) {
	var sec models.UserSecurity
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&sec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sec, nil
}

// ensure materializes an open row for userID if none exists and returns the current row.
func (s *securityStore) ensure(ctx context.Context, userID string) (*models.UserSecurity, error) {
	row := &models.UserSecurity{UserID: userID}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(row).Error
	if err != nil {
		return nil, err
	}

	sec, err := s.get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sec == nil {
		return nil, errors.New("security row vanished after upsert")
	}
	return sec, nil
}

// clearExpired resets an expired temporary lock. It only applies when the
// row is still at the observed version, so a lock written in between wins.
func (s *securityStore) clearExpired(ctx context.Context, userID string, version int64, now time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Exec(`
		UPDATE user_security
		SET login_attempts = 0, is_locked = ?, locked_until = NULL, lock_reason = NULL,
		    version = version + 1, updated_at = ?
		WHERE user_id = ? AND version = ? AND is_permanently_locked = ?`,
		false, now, userID, version, false)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

type failureResult struct {
	LoginAttempts int
}

// recordFailure counts one failed password match. The increment, threshold
// check and lock are evaluated by the database in one statement and only
// apply to an unlocked row; applied is false when the row was locked by the
// time the statement ran.
func (s *securityStore) recordFailure(ctx context.Context, userID string, now time.Time) (attempts int, applied bool, err error) {
	until := s.policy.LockUntil(now)
	firstLocks := s.policy.ReachesThreshold(1)
	var insertUntil *time.Time
	var insertReason *string
	if firstLocks {
		reason := lockout.AutoLockReason
		insertUntil, insertReason = &until, &reason
	}

	var rows []failureResult
	res := s.db.WithContext(ctx).Raw(`
		INSERT INTO user_security
			(user_id, login_attempts, is_locked, locked_until, is_permanently_locked, lock_reason,
			 last_failed_login, version, created_at, updated_at)
		VALUES (?, 1, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			login_attempts = user_security.login_attempts + 1,
			is_locked = CASE WHEN user_security.login_attempts + 1 >= ? THEN ? ELSE user_security.is_locked END,
			locked_until = CASE WHEN user_security.login_attempts + 1 >= ? THEN ? ELSE user_security.locked_until END,
			lock_reason = CASE WHEN user_security.login_attempts + 1 >= ? THEN ? ELSE user_security.lock_reason END,
			last_failed_login = excluded.last_failed_login,
			version = user_security.version + 1,
			updated_at = excluded.updated_at
		WHERE user_security.is_locked = ? AND user_security.is_permanently_locked = ?
		RETURNING login_attempts`,
		userID, firstLocks, insertUntil, false, insertReason, now, now, now,
		s.policy.MaxAttempts, true,
		s.policy.MaxAttempts, until,
		s.policy.MaxAttempts, lockout.AutoLockReason,
		false, false,
	).Scan(&rows)
	if res.Error != nil {
		return 0, false, res.Error
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[0].LoginAttempts, true, nil
}

// recordSuccess resets the counter and stamps last_login, unless the row
// was locked concurrently.
func (s *securityStore) recordSuccess(ctx context.Context, userID string, now time.Time) (bool, error) {
	var versions []int64
	res := s.db.WithContext(ctx).Raw(`
		INSERT INTO user_security
			(user_id, login_attempts, is_locked, is_permanently_locked, last_login, version, created_at, updated_at)
		VALUES (?, 0, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			login_attempts = 0,
			is_locked = excluded.is_locked,
			locked_until = NULL,
			lock_reason = NULL,
			last_login = excluded.last_login,
			version = user_security.version + 1,
			updated_at = excluded.updated_at
		WHERE user_security.is_locked = ? AND user_security.is_permanently_locked = ?
		RETURNING version`,
		userID, false, false, now, now, now,
		false, false,
	).Scan(&versions)
	if res.Error != nil {
		return false, res.Error
	}
	return len(versions) == 1, nil
}

// lock applies an admin lock from any state.
func (s *securityStore) lock(ctx context.Context, userID string, l lockout.ManualLock, now time.Time) error {
	var until *time.Time
	if !l.Permanent {
		u := now.Add(l.Duration)
		until = &u
	}
	return s.db.WithContext(ctx).Exec(`
		INSERT INTO user_security
			(user_id, login_attempts, is_locked, locked_until, is_permanently_locked, lock_reason,
			 version, created_at, updated_at)
		VALUES (?, 0, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			is_locked = excluded.is_locked,
			locked_until = excluded.locked_until,
			is_permanently_locked = excluded.is_permanently_locked,
			lock_reason = excluded.lock_reason,
			version = user_security.version + 1,
			updated_at = excluded.updated_at`,
		userID, true, until, l.Permanent, l.Reason, now, now,
	).Error
}

// unlock returns the row to the fully open state.
func (s *securityStore) unlock(ctx context.Context, userID string, now time.Time) error {
	return s.db.WithContext(ctx).Exec(`
		INSERT INTO user_security
			(user_id, login_attempts, is_locked, is_permanently_locked, version, created_at, updated_at)
		VALUES (?, 0, ?, ?, 1, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			login_attempts = 0,
			is_locked = excluded.is_locked,
			locked_until = NULL,
			is_permanently_locked = excluded.is_permanently_locked,
			lock_reason = NULL,
			version = user_security.version + 1,
			updated_at = excluded.updated_at`,
		userID, false, false, now, now,
	).Error
}

// resetAttempts zeroes the counter and leaves the lock flags alone.
func (s *securityStore) resetAttempts(ctx context.Context, userID string, now time.Time) error {
	return s.db.WithContext(ctx).Exec(`
		INSERT INTO user_security
			(user_id, login_attempts, is_locked, is_permanently_locked, version, created_at, updated_at)
		VALUES (?, 0, ?, ?, 1, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			login_attempts = 0,
			version = user_security.version + 1,
			updated_at = excluded.updated_at`,
		userID, false, false, now, now,
	).Error
}

func snapshotOf(sec *models.UserSecurity) lockout.Snapshot {
	if sec == nil {
		return lockout.Snapshot{}
	}
	return lockout.Snapshot{
		LoginAttempts:       sec.LoginAttempts,
		IsLocked:            sec.IsLocked,
		LockedUntil:         sec.LockedUntil,
		IsPermanentlyLocked: sec.IsPermanentlyLocked,
		LockReason:          sec.Reason(),
	}
}
