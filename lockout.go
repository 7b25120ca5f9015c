package sentinel

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultLockThreshold is the failed attempt count that triggers an
	// automatic brute-force lock.
	DefaultLockThreshold = 5
	// DefaultBruteForceLockDuration bounds an automatic brute-force lock.
	DefaultBruteForceLockDuration = 30 * time.Minute
	// DefaultSuspiciousLockMinutes bounds a suspicious-activity lock.
	DefaultSuspiciousLockMinutes = 60
)

// LockReason is the single recorded cause of a lock. A lock always has
// exactly one reason at a time.
type LockReason string

const (
	LockReasonUserRequest        LockReason = "user_request"
	LockReasonSuspiciousActivity LockReason = "suspicious_activity"
	LockReasonBruteForce         LockReason = "brute_force"
	LockReasonSecurityBreach     LockReason = "security_breach"
	LockReasonAdminAction        LockReason = "admin_action"
	LockReasonMfaFailures        LockReason = "mfa_failures"
)

// Description returns the human-readable form used in user-facing payloads.
// Raw enum values never surface to users.
func (r LockReason) Description() string {
	switch r {
	case LockReasonUserRequest:
		return "locked at the account owner's request"
	case LockReasonSuspiciousActivity:
		return "locked due to suspicious activity"
	case LockReasonBruteForce:
		return "locked after too many failed sign-in attempts"
	case LockReasonSecurityBreach:
		return "locked due to a security breach"
	case LockReasonAdminAction:
		return "locked by an administrator"
	case LockReasonMfaFailures:
		return "locked after repeated two-factor failures"
	default:
		return "locked"
	}
}

// AttemptKind tags what kind of authentication failed.
type AttemptKind string

const (
	AttemptKindLogin AttemptKind = "login"
	AttemptKindMFA   AttemptKind = "mfa"
	AttemptKindOAuth AttemptKind = "oauth"
)

// ActorRef identifies who/what triggered a transition.
type ActorRef struct {
	ID   string
	Type string
}

// AccountLockStatus is the per-user lock record. One status per user id.
type AccountLockStatus struct {
	IsLocked      bool       `json:"is_locked"`
	LockedAt      *time.Time `json:"locked_at,omitempty"`
	LockedBy      string     `json:"locked_by,omitempty"`
	Reason        LockReason `json:"reason,omitempty"`
	Description   string     `json:"description,omitempty"`
	UnlockAt      *time.Time `json:"unlock_at,omitempty"` // nil means indefinite
	AttemptCount  int        `json:"attempt_count"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
}

// OverwritePolicy decides what a lock call does when the account is already
// locked. The original system let any lock silently overwrite the previous
// reason and duration; that behavior is preserved as the default but made an
// explicit, testable policy.
type OverwritePolicy int

const (
	// OverwriteLock replaces reason, duration, and description on re-lock
	// (last writer wins).
	OverwriteLock OverwritePolicy = iota
	// PreserveLock keeps the original reason and duration; a re-lock still
	// revokes sessions but does not rewrite the record.
	PreserveLock
)

// FailedAttemptResult tells the caller whether the attempt tripped the
// threshold so it can surface a lockout message.
type FailedAttemptResult struct {
	ShouldLock   bool
	AttemptCount int
}

// LockoutMachine is the brute-force account lockout state machine. States
// are UNLOCKED and LOCKED(reason, unlockAt?); every transition into LOCKED
// revokes the user's sessions, and lock expiry is evaluated lazily on read.
type LockoutMachine struct {
	locks        LockStore
	sessions     *SessionRegistry
	trail        *Trail
	threshold    int
	lockDuration time.Duration
	policy       OverwritePolicy
	now          func() time.Time
	logger       Logger
}

// LockoutOption customizes machine construction.
type LockoutOption func(*LockoutMachine)

// WithLockThreshold overrides the failed-attempt threshold.
func WithLockThreshold(n int) LockoutOption {
	return func(m *LockoutMachine) {
		if n > 0 {
			m.threshold = n
		}
	}
}

// WithBruteForceLockDuration overrides the automatic lock duration.
func WithBruteForceLockDuration(d time.Duration) LockoutOption {
	return func(m *LockoutMachine) {
		if d > 0 {
			m.lockDuration = d
		}
	}
}

// WithOverwritePolicy selects the re-lock behavior.
func WithOverwritePolicy(policy OverwritePolicy) LockoutOption {
	return func(m *LockoutMachine) {
		m.policy = policy
	}
}

// WithLockoutClock injects a custom clock (useful for tests).
func WithLockoutClock(clock func() time.Time) LockoutOption {
	return func(m *LockoutMachine) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithLockoutLogger overrides the default logger.
func WithLockoutLogger(logger Logger) LockoutOption {
	return func(m *LockoutMachine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewLockoutMachine wires the state machine to its collaborators: the lock
// store it owns, the session registry it revokes through, and the audit
// trail every transition writes to.
func NewLockoutMachine(locks LockStore, sessions *SessionRegistry, trail *Trail, opts ...LockoutOption) *LockoutMachine {
	m := &LockoutMachine{
		locks:        locks,
		sessions:     sessions,
		trail:        trail,
		threshold:    DefaultLockThreshold,
		lockDuration: DefaultBruteForceLockDuration,
		policy:       OverwriteLock,
		now:          time.Now,
		logger:       defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// RecordFailedAttempt increments the user's attempt counter atomically. At
// the threshold, and only from the unlocked state, the account transitions
// to LOCKED(BruteForce) and every session is revoked. The increment and the
// lock decision share one critical section so concurrent bursts lose no
// updates and lock exactly once.
func (m *LockoutMachine) RecordFailedAttempt(ctx context.Context, userID string, kind AttemptKind) (FailedAttemptResult, error) {
	if userID == "" {
		return FailedAttemptResult{}, ErrInvalidUserID
	}

	now := m.now()
	locked := false
	status, err := m.locks.Update(ctx, userID, func(s *AccountLockStatus) error {
		s.AttemptCount++
		s.LastAttemptAt = &now

		if s.AttemptCount >= m.threshold && !s.IsLocked {
			unlockAt := now.Add(m.lockDuration)
			s.IsLocked = true
			s.LockedAt = &now
			s.LockedBy = ""
			s.Reason = LockReasonBruteForce
			s.Description = fmt.Sprintf("automatic lock after %d failed attempts", s.AttemptCount)
			s.UnlockAt = &unlockAt
			locked = true
		}
		return nil
	})
	if err != nil {
		return FailedAttemptResult{}, err
	}

	m.audit(ctx, EventFailedLoginAttempt, LevelWarning, fmt.Sprintf("failed %s attempt %d", kind, status.AttemptCount), Fields{
		UserID: userID,
		Details: map[string]any{
			"kind":          string(kind),
			"attempt_count": status.AttemptCount,
		},
	})

	if locked {
		m.audit(ctx, EventAccountLocked, LevelWarning, "account locked: brute force threshold reached", Fields{
			UserID: userID,
			Details: map[string]any{
				"reason":    string(LockReasonBruteForce),
				"unlock_at": status.UnlockAt.Format(time.RFC3339),
			},
			Success: true,
		})
		m.revokeSessions(ctx, userID)
	}

	return FailedAttemptResult{ShouldLock: locked, AttemptCount: status.AttemptCount}, nil
}

// EmergencyLock is the user-initiated panic switch: an indefinite lock that
// stays until someone explicitly unlocks it.
func (m *LockoutMachine) EmergencyLock(ctx context.Context, userID string, actor ActorRef, ip, description string) error {
	if description == "" {
		description = "emergency lock requested by account owner"
	}
	return m.lock(ctx, userID, actor, ip, LockReasonUserRequest, description, nil, LevelWarning)
}

// LockForSuspiciousActivity is the system-initiated lock. The critical audit
// entry is written before the state changes so the trail records the
// detection even if the lock write fails.
func (m *LockoutMachine) LockForSuspiciousActivity(ctx context.Context, userID, description, ip string, durationMinutes int) error {
	if userID == "" {
		return ErrInvalidUserID
	}
	if durationMinutes <= 0 {
		durationMinutes = DefaultSuspiciousLockMinutes
	}

	m.audit(ctx, EventSuspiciousActivity, LevelCritical, description, Fields{
		UserID:    userID,
		IPAddress: ip,
		Details: map[string]any{
			"duration_minutes": durationMinutes,
		},
	})

	unlockAt := m.now().Add(time.Duration(durationMinutes) * time.Minute)
	return m.lock(ctx, userID, ActorRef{Type: "system"}, ip, LockReasonSuspiciousActivity, description, &unlockAt, LevelCritical)
}

// Unlock clears the lock. Returns false when the account was not locked;
// the second of two consecutive calls is a no-op with no audit entry.
func (m *LockoutMachine) Unlock(ctx context.Context, userID, description string, actor ActorRef) (bool, error) {
	return m.unlock(ctx, userID, description, actor)
}

// IsLocked reports the lock state, applying lazy auto-unlock when the
// unlock horizon has passed.
func (m *LockoutMachine) IsLocked(ctx context.Context, userID string) (bool, error) {
	status, err := m.Status(ctx, userID)
	if err != nil {
		return false, err
	}
	return status.IsLocked, nil
}

// Status returns the user's lock record. A lock whose unlockAt has passed
// is cleared on the spot, with the same audit trail as an explicit unlock.
// This passive path is the one lock transition that touches no sessions.
func (m *LockoutMachine) Status(ctx context.Context, userID string) (AccountLockStatus, error) {
	if userID == "" {
		return AccountLockStatus{}, ErrInvalidUserID
	}

	status, ok, err := m.locks.Get(ctx, userID)
	if err != nil {
		return AccountLockStatus{}, err
	}
	if !ok {
		return AccountLockStatus{}, nil
	}

	if status.IsLocked && status.UnlockAt != nil && !m.now().Before(*status.UnlockAt) {
		if _, err := m.unlock(ctx, userID, "auto-unlock", ActorRef{Type: "system"}); err != nil {
			return AccountLockStatus{}, err
		}
		status, _, err = m.locks.Get(ctx, userID)
		if err != nil {
			return AccountLockStatus{}, err
		}
	}

	return status, nil
}

// ResetFailedAttempts zeroes the counter without touching lock state.
// Called after a successful authentication so counts never bleed across
// sessions.
func (m *LockoutMachine) ResetFailedAttempts(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidUserID
	}

	_, err := m.locks.Update(ctx, userID, func(s *AccountLockStatus) error {
		s.AttemptCount = 0
		return nil
	})
	return err
}

func (m *LockoutMachine) lock(ctx context.Context, userID string, actor ActorRef, ip string, reason LockReason, description string, unlockAt *time.Time, level Level) error {
	if userID == "" {
		return ErrInvalidUserID
	}

	now := m.now()
	overwritten := true
	_, err := m.locks.Update(ctx, userID, func(s *AccountLockStatus) error {
		if s.IsLocked && m.policy == PreserveLock {
			overwritten = false
			return nil
		}
		s.IsLocked = true
		s.LockedAt = &now
		s.LockedBy = actor.ID
		s.Reason = reason
		s.Description = description
		s.UnlockAt = unlockAt
		return nil
	})
	if err != nil {
		return err
	}

	details := map[string]any{
		"reason":      string(reason),
		"overwritten": overwritten,
	}
	if unlockAt != nil {
		details["unlock_at"] = unlockAt.Format(time.RFC3339)
	} else {
		details["indefinite"] = true
	}

	m.audit(ctx, EventAccountLocked, level, "account locked: "+reason.Description(), Fields{
		UserID:    userID,
		IPAddress: ip,
		Details:   details,
		Success:   true,
	})

	m.revokeSessions(ctx, userID)
	return nil
}

func (m *LockoutMachine) unlock(ctx context.Context, userID, description string, actor ActorRef) (bool, error) {
	if userID == "" {
		return false, ErrInvalidUserID
	}

	var lockedFor time.Duration
	unlocked := false
	_, err := m.locks.Update(ctx, userID, func(s *AccountLockStatus) error {
		if !s.IsLocked {
			return nil
		}
		if s.LockedAt != nil {
			lockedFor = m.now().Sub(*s.LockedAt)
		}
		s.IsLocked = false
		s.LockedAt = nil
		s.LockedBy = ""
		s.Reason = ""
		s.Description = ""
		s.UnlockAt = nil
		unlocked = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if !unlocked {
		return false, nil
	}

	m.audit(ctx, EventAccountUnlocked, LevelInfo, fmt.Sprintf("account unlocked after %s: %s", lockedFor.Round(time.Second), description), Fields{
		UserID: userID,
		Details: map[string]any{
			"locked_for": lockedFor.String(),
			"actor":      actor.ID,
		},
		Success: true,
	})

	return true, nil
}

func (m *LockoutMachine) revokeSessions(ctx context.Context, userID string) {
	if m.sessions == nil {
		return
	}
	if _, err := m.sessions.DeleteAll(ctx, userID); err != nil {
		m.logger.Error("lockout session revocation failed for %s: %v", userID, err)
	}
}

func (m *LockoutMachine) audit(ctx context.Context, eventType EventType, level Level, message string, fields Fields) {
	if m.trail == nil {
		return
	}
	if _, err := m.trail.Log(ctx, eventType, level, message, fields); err != nil {
		m.logger.Warn("lockout audit write failed: %v", err)
	}
}
