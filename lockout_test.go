package sentinel_test

import (
	"context"
	"sync"
	"testing"
	"time"

	sentinel "github.com/goliatone/go-sentinel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lockoutFixture struct {
	machine  *sentinel.LockoutMachine
	registry *sentinel.SessionRegistry
	trail    *sentinel.Trail
	now      time.Time
	mu       sync.Mutex
}

func (f *lockoutFixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *lockoutFixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newLockoutFixture(t *testing.T, opts ...sentinel.LockoutOption) *lockoutFixture {
	t.Helper()

	f := &lockoutFixture{
		now: time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC),
	}

	f.trail = sentinel.NewTrail(sentinel.NewMemoryAuditStore(), sentinel.WithTrailClock(f.clock))
	f.registry = sentinel.NewSessionRegistry(sentinel.NewMemorySessionStore(), sentinel.WithSessionClock(f.clock))

	all := append([]sentinel.LockoutOption{sentinel.WithLockoutClock(f.clock)}, opts...)
	f.machine = sentinel.NewLockoutMachine(sentinel.NewMemoryLockStore(), f.registry, f.trail, all...)

	return f
}

func (f *lockoutFixture) entriesOf(t *testing.T, eventType sentinel.EventType) []*sentinel.AuditEntry {
	t.Helper()
	entries, err := f.trail.Query(context.Background(), sentinel.AuditFilter{EventType: eventType})
	require.NoError(t, err)
	return entries
}

func TestRecordFailedAttemptLocksAtThreshold(t *testing.T) {
	f := newLockoutFixture(t)
	ctx := context.Background()

	session, err := f.registry.Create(ctx, "user-1", sentinel.RequestMeta{UserAgent: "Mozilla/5.0", IPAddress: "203.0.113.7"})
	require.NoError(t, err)

	for i := 1; i <= 4; i++ {
		result, err := f.machine.RecordFailedAttempt(ctx, "user-1", sentinel.AttemptKindLogin)
		require.NoError(t, err)
		assert.False(t, result.ShouldLock)
		assert.Equal(t, i, result.AttemptCount)
	}

	result, err := f.machine.RecordFailedAttempt(ctx, "user-1", sentinel.AttemptKindLogin)
	require.NoError(t, err)
	assert.True(t, result.ShouldLock)
	assert.Equal(t, 5, result.AttemptCount)

	status, err := f.machine.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, status.IsLocked)
	assert.Equal(t, sentinel.LockReasonBruteForce, status.Reason)
	require.NotNil(t, status.UnlockAt)
	assert.Equal(t, f.clock().Add(30*time.Minute), status.UnlockAt.UTC())

	// every session revoked by the lock
	_, found, err := f.registry.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, found)

	locked := f.entriesOf(t, sentinel.EventAccountLocked)
	require.Len(t, locked, 1)
	assert.Equal(t, sentinel.LevelWarning, locked[0].Level)

	attempts := f.entriesOf(t, sentinel.EventFailedLoginAttempt)
	assert.Len(t, attempts, 5)
}

func TestRecordFailedAttemptRejectsEmptyUser(t *testing.T) {
	f := newLockoutFixture(t)

	_, err := f.machine.RecordFailedAttempt(context.Background(), "", sentinel.AttemptKindLogin)
	assert.ErrorIs(t, err, sentinel.ErrInvalidUserID)
}

func TestUnlockIsIdempotent(t *testing.T) {
	f := newLockoutFixture(t)
	ctx := context.Background()

	require.NoError(t, f.machine.EmergencyLock(ctx, "user-1", sentinel.ActorRef{ID: "user-1", Type: "user"}, "203.0.113.7", ""))

	unlocked, err := f.machine.Unlock(ctx, "user-1", "support ticket resolved", sentinel.ActorRef{ID: "admin-1"})
	require.NoError(t, err)
	assert.True(t, unlocked)

	unlocked, err = f.machine.Unlock(ctx, "user-1", "second call", sentinel.ActorRef{ID: "admin-1"})
	require.NoError(t, err)
	assert.False(t, unlocked)

	// the no-op unlock writes no audit entry
	assert.Len(t, f.entriesOf(t, sentinel.EventAccountUnlocked), 1)
}

func TestResetFailedAttemptsRestartsCounter(t *testing.T) {
	f := newLockoutFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.machine.RecordFailedAttempt(ctx, "user-1", sentinel.AttemptKindLogin)
		require.NoError(t, err)
	}

	require.NoError(t, f.machine.ResetFailedAttempts(ctx, "user-1"))

	for i := 0; i < 4; i++ {
		result, err := f.machine.RecordFailedAttempt(ctx, "user-1", sentinel.AttemptKindLogin)
		require.NoError(t, err)
		assert.False(t, result.ShouldLock)
	}

	locked, err := f.machine.IsLocked(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestEmergencyLockIsIndefinite(t *testing.T) {
	f := newLockoutFixture(t)
	ctx := context.Background()

	_, err := f.registry.Create(ctx, "user-1", sentinel.RequestMeta{UserAgent: "curl/8.0", IPAddress: "198.51.100.9"})
	require.NoError(t, err)

	require.NoError(t, f.machine.EmergencyLock(ctx, "user-1", sentinel.ActorRef{ID: "user-1", Type: "user"}, "198.51.100.9", ""))

	status, err := f.machine.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, status.IsLocked)
	assert.Equal(t, sentinel.LockReasonUserRequest, status.Reason)
	assert.Nil(t, status.UnlockAt)

	sessions, err := f.registry.List(ctx, "user-1", "")
	require.NoError(t, err)
	assert.Empty(t, sessions)

	// indefinite locks never expire on their own
	f.advance(365 * 24 * time.Hour)
	locked, err := f.machine.IsLocked(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestSuspiciousActivityLockWritesCriticalEntryFirst(t *testing.T) {
	f := newLockoutFixture(t)
	ctx := context.Background()

	err := f.machine.LockForSuspiciousActivity(ctx, "user-1", "impossible travel detected", "203.0.113.7", 0)
	require.NoError(t, err)

	suspicious := f.entriesOf(t, sentinel.EventSuspiciousActivity)
	require.Len(t, suspicious, 1)
	assert.Equal(t, sentinel.LevelCritical, suspicious[0].Level)
	assert.Equal(t, "impossible travel detected", suspicious[0].Message)

	status, err := f.machine.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, status.IsLocked)
	assert.Equal(t, sentinel.LockReasonSuspiciousActivity, status.Reason)
	require.NotNil(t, status.UnlockAt)
	assert.Equal(t, f.clock().Add(60*time.Minute), status.UnlockAt.UTC())
}

func TestLazyAutoUnlockAtHorizon(t *testing.T) {
	f := newLockoutFixture(t)
	ctx := context.Background()

	require.NoError(t, f.machine.LockForSuspiciousActivity(ctx, "user-1", "anomalous logins", "203.0.113.7", 45))

	f.advance(44 * time.Minute)
	locked, err := f.machine.IsLocked(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, locked)

	f.advance(2 * time.Minute)
	locked, err = f.machine.IsLocked(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, locked)

	// the passive unlock leaves the same trail as an explicit one
	unlocks := f.entriesOf(t, sentinel.EventAccountUnlocked)
	require.Len(t, unlocks, 1)
	assert.Contains(t, unlocks[0].Message, "auto-unlock")
}

func TestRelockPolicyOverwrite(t *testing.T) {
	f := newLockoutFixture(t)
	ctx := context.Background()

	require.NoError(t, f.machine.EmergencyLock(ctx, "user-1", sentinel.ActorRef{ID: "user-1"}, "", ""))
	require.NoError(t, f.machine.LockForSuspiciousActivity(ctx, "user-1", "relock", "", 30))

	status, err := f.machine.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, sentinel.LockReasonSuspiciousActivity, status.Reason)
	require.NotNil(t, status.UnlockAt)
}

func TestRelockPolicyPreserve(t *testing.T) {
	f := newLockoutFixture(t, sentinel.WithOverwritePolicy(sentinel.PreserveLock))
	ctx := context.Background()

	require.NoError(t, f.machine.EmergencyLock(ctx, "user-1", sentinel.ActorRef{ID: "user-1"}, "", ""))
	require.NoError(t, f.machine.LockForSuspiciousActivity(ctx, "user-1", "relock", "", 30))

	status, err := f.machine.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, sentinel.LockReasonUserRequest, status.Reason)
	assert.Nil(t, status.UnlockAt)
}

func TestConcurrentFailedAttemptsCountExactly(t *testing.T) {
	f := newLockoutFixture(t)
	ctx := context.Background()

	const attempts = 50
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			_, err := f.machine.RecordFailedAttempt(ctx, "user-1", sentinel.AttemptKindLogin)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	status, err := f.machine.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, attempts, status.AttemptCount)
	assert.True(t, status.IsLocked)

	// the threshold trips exactly once
	assert.Len(t, f.entriesOf(t, sentinel.EventAccountLocked), 1)
}

func TestLockedAccountErrorPayload(t *testing.T) {
	f := newLockoutFixture(t)
	ctx := context.Background()

	require.NoError(t, f.machine.LockForSuspiciousActivity(ctx, "user-1", "detected", "", 30))

	status, err := f.machine.Status(ctx, "user-1")
	require.NoError(t, err)

	lockErr := sentinel.NewLockedAccountError(status)
	assert.True(t, sentinel.IsLockedAccountError(lockErr))
	assert.Contains(t, lockErr.Error(), "locked")
}
