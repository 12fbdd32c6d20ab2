// Package lockout decides whether a login may proceed given a user's stored
// security state, and describes how failures and admin actions move that
// state. It performs no I/O; callers persist the transitions atomically.
package lockout

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

// Policy defaults.
const (
	DefaultMaxAttempts  = 5
	DefaultLockDuration = 15 * time.Minute

	// MinLockReasonLength applies to admin-initiated locks only.
	MinLockReasonLength = 10
	// MaxManualLockDuration bounds admin temporary locks.
	MaxManualLockDuration = 30 * 24 * time.Hour

	AutoLockReason = "too many failed attempts"
)

// Manual lock validation errors.
var (
	ErrReasonTooShort  = fmt.Errorf("lock reason must be at least %d characters", MinLockReasonLength)
	ErrInvalidDuration = errors.New("lock duration must be between 1 minute and 30 days")
)

// State is the lock state derived from the stored fields at read time.
type State int

const (
	// Open accepts login attempts.
	Open State = iota
	// TempLocked rejects logins until LockedUntil.
	TempLocked
	// TempExpired is a temporary lock whose deadline has passed but whose
	// flags have not been cleared in storage yet.
	TempExpired
	// PermanentLocked rejects everything until an admin unlocks.
	PermanentLocked
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case TempLocked:
		return "temp_locked"
	case TempExpired:
		return "temp_expired"
	case PermanentLocked:
		return "permanent_locked"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Verdict is the outcome of evaluating a login attempt.
type Verdict int

const (
	Allow Verdict = iota
	RejectPermanent
	RejectTemporary
	// ExpiredClearAndAllow tells the caller to persist the clear transition
	// and then continue as Open.
	ExpiredClearAndAllow
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case RejectPermanent:
		return "reject_permanent"
	case RejectTemporary:
		return "reject_temporary"
	case ExpiredClearAndAllow:
		return "expired_clear_and_allow"
	}
	return fmt.Sprintf("Verdict(%d)", int(v))
}

// Snapshot is the subset of the stored security state the engine reads.
type Snapshot struct {
	LoginAttempts       int
	IsLocked            bool
	LockedUntil         *time.Time
	IsPermanentlyLocked bool
	LockReason          string
}

// Decision is the result of Evaluate.
type Decision struct {
	Verdict Verdict
	State   State
	// RemainingMinutes is set for RejectTemporary.
	RemainingMinutes int
	// LockReason is set for RejectPermanent.
	LockReason string
}

// Policy holds the lockout thresholds.
type Policy struct {
	MaxAttempts  int
	LockDuration time.Duration
}

// DefaultPolicy returns 5 attempts and a 15 minute lock.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, LockDuration: DefaultLockDuration}
}

// Derive maps stored fields to an explicit State. A permanent lock wins over
// everything else. An IsLocked flag without a deadline is treated as stale.
func Derive(s Snapshot, now time.Time) State {
	if s.IsPermanentlyLocked {
		return PermanentLocked
	}
	if s.LockedUntil != nil {
		if now.Before(*s.LockedUntil) {
			return TempLocked
		}
		return TempExpired
	}
	if s.IsLocked {
		return TempExpired
	}
	return Open
}

// Evaluate decides whether a login attempt against s may proceed at now.
func (p Policy) Evaluate(s Snapshot, now time.Time) Decision {
	state := Derive(s, now)
	switch state {
	case PermanentLocked:
		return Decision{Verdict: RejectPermanent, State: state, LockReason: s.LockReason}
	case TempLocked:
		return Decision{Verdict: RejectTemporary, State: state, RemainingMinutes: RemainingMinutes(*s.LockedUntil, now)}
	case TempExpired:
		return Decision{Verdict: ExpiredClearAndAllow, State: state}
	}
	return Decision{Verdict: Allow, State: state}
}

// ReachesThreshold reports whether the given attempt count triggers a lock.
func (p Policy) ReachesThreshold(attempts int) bool {
	return attempts >= p.MaxAttempts
}

// Remaining returns how many failures are left before the lock.
func (p Policy) Remaining(attempts int) int {
	if r := p.MaxAttempts - attempts; r > 0 {
		return r
	}
	return 0
}

// LockUntil returns the deadline of an automatic lock imposed at now.
func (p Policy) LockUntil(now time.Time) time.Time {
	return now.Add(p.LockDuration)
}

// AfterFailure returns the state produced by a failed password match on an
// Open account. The store expresses the same transition as one statement.
func (p Policy) AfterFailure(s Snapshot, now time.Time) Snapshot {
	next := s
	next.LoginAttempts++
	if p.ReachesThreshold(next.LoginAttempts) {
		until := p.LockUntil(now)
		next.IsLocked = true
		next.LockedUntil = &until
		next.LockReason = AutoLockReason
	}
	return next
}

// RemainingMinutes is the ceiling of minutes until until, never below 1.
func RemainingMinutes(until, now time.Time) int {
	m := int(math.Ceil(until.Sub(now).Minutes()))
	if m < 1 {
		return 1
	}
	return m
}

// ManualLock is a validated admin lock request.
type ManualLock struct {
	Reason    string
	Permanent bool
	// Duration is zero for permanent locks.
	Duration time.Duration
}

// NewManualLock validates an admin lock. durationMin of zero on a temporary
// lock falls back to the policy lock duration.
func (p Policy) NewManualLock(reason string, permanent bool, durationMin int) (ManualLock, error) {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) < MinLockReasonLength {
		return ManualLock{}, ErrReasonTooShort
	}
	if permanent {
		return ManualLock{Reason: reason, Permanent: true}, nil
	}

	d := p.LockDuration
	if durationMin != 0 {
		d = time.Duration(durationMin) * time.Minute
	}
	if d < time.Minute || d > MaxManualLockDuration {
		return ManualLock{}, ErrInvalidDuration
	}
	return ManualLock{Reason: reason, Duration: d}, nil
}
