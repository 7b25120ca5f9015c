package sentinel

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// SessionStore persists session records. Implementations must make every
// method a single atomic operation; the registry layers expiry semantics on
// top and never relies on the store to evict anything.
type SessionStore interface {
	Put(ctx context.Context, session *Session) error
	Get(ctx context.Context, id string) (*Session, bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]*Session, error)
	// DeleteByUser removes every session owned by userID except keepID.
	// Pass keepID == "" to remove all of them. Returns the number removed.
	DeleteByUser(ctx context.Context, userID, keepID string) (int, error)
	Touch(ctx context.Context, id string, at time.Time) (bool, error)
}

// LockStore persists per-user lock state. Update runs fn under a per-user
// critical section so read-modify-write cycles (attempt counters, lock
// transitions) never lose writes during concurrent bursts.
type LockStore interface {
	Get(ctx context.Context, userID string) (AccountLockStatus, bool, error)
	Update(ctx context.Context, userID string, fn func(*AccountLockStatus) error) (AccountLockStatus, error)
	Delete(ctx context.Context, userID string) error
}

// AuditStore persists audit entries. Append-only: entries are never mutated,
// and only DeleteOlderThan removes them.
type AuditStore interface {
	Append(ctx context.Context, entry *AuditEntry) error
	Query(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// DefaultLogger returns the fallback printf logger used when no Logger is
// injected.
func DefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SENTINEL "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SENTINEL "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SENTINEL "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SENTINEL "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
