package models

import "time"

// UserSecurity is the per-user login security state. At most one row exists
// per user; it is created lazily and only ever written through upserts.
type UserSecurity struct {
	UserID              string     `gorm:"type:uuid;primaryKey" json:"user_id"`
	LoginAttempts       int        `gorm:"not null;default:0" json:"login_attempts"`
	IsLocked            bool       `gorm:"not null;default:false" json:"is_locked"`
	LockedUntil         *time.Time `json:"locked_until,omitempty"`
	IsPermanentlyLocked bool       `gorm:"not null;default:false" json:"is_permanently_locked"`
	LockReason          *string    `json:"lock_reason,omitempty"`
	LastFailedLogin     *time.Time `json:"last_failed_login,omitempty"`
	LastLogin           *time.Time `json:"last_login,omitempty"`
	// Version is bumped by every write and guards optimistic updates.
	Version   int64     `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table name used by the raw upsert statements.
func (UserSecurity) TableName() string {
	return "user_security"
}

// Reason returns the lock reason or the empty string.
func (s *UserSecurity) Reason() string {
	if s == nil || s.LockReason == nil {
		return ""
	}
	return *s.LockReason
}
