package account

import "time"

// Policy carries the configured lockout thresholds.
type Policy struct {
	// MaxAttempts is the failed-attempt count that triggers a lock.
	// Zero disables automatic locking.
	MaxAttempts int
	// LockDuration is how long an automatic lock lasts.
	LockDuration time.Duration
}

// Lockout tracks failed authentication attempts and the lock expiry for
// one account. The stored state is either unlocked (LockedUntil nil or in
// the past) or locked until a point in time; locks self-expire without an
// explicit clear.
type Lockout struct {
	FailedAttempts int
	LockedUntil    *time.Time
}

// IsLocked reports whether a lock is in effect at now. An expiry exactly
// equal to now counts as expired.
func (l Lockout) IsLocked(now time.Time) bool {
	return l.LockedUntil != nil && l.LockedUntil.After(now)
}

// RecordFailure registers a failed attempt. Callers must check IsLocked
// first; a call while locked is ignored so the counter invariant holds
// regardless. Returns true when this failure imposed a new lock.
func (l *Lockout) RecordFailure(p Policy, now time.Time) bool {
	if l.IsLocked(now) {
		return false
	}
	l.FailedAttempts++
	if p.MaxAttempts > 0 && l.FailedAttempts >= p.MaxAttempts {
		until := now.Add(p.LockDuration)
		l.LockedUntil = &until
		l.FailedAttempts = 0
		return true
	}
	return false
}

// RecordSuccess resets the failed-attempt counter. Lock state is left
// untouched; there is no transition out of Locked here.
func (l *Lockout) RecordSuccess() {
	l.FailedAttempts = 0
}

// Lock imposes an administrative lock until now+d, replacing any existing
// expiry, and resets the counter.
func (l *Lockout) Lock(d time.Duration, now time.Time) {
	until := now.Add(d)
	l.LockedUntil = &until
	l.FailedAttempts = 0
}

// Unlock clears stored lock state immediately, regardless of expiry.
func (l *Lockout) Unlock() {
	l.LockedUntil = nil
	l.FailedAttempts = 0
}
