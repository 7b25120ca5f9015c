package sentinel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// EventType enumerates the security-relevant events the trail records. The
// set is closed: components log these and nothing else.
type EventType string

const (
	EventLoginSuccess EventType = "auth.login.success"
	EventLoginFailure EventType = "auth.login.failure"
	EventLogout       EventType = "auth.logout"
	EventTokenInvalid EventType = "auth.token.invalid"

	EventMFASuccess EventType = "mfa.challenge.success"
	EventMFAFailure EventType = "mfa.challenge.failure"

	EventSessionCreated EventType = "session.created"
	EventSessionRevoked EventType = "session.revoked"
	EventSessionExpired EventType = "session.expired"

	EventAccountLocked       EventType = "account.locked"
	EventAccountUnlocked     EventType = "account.unlocked"
	EventFailedLoginAttempt  EventType = "account.failed_attempt"
	EventAttemptCounterReset EventType = "account.attempts_reset"

	EventPermissionDenied  EventType = "permission.denied"
	EventPermissionGranted EventType = "permission.granted"

	EventDataExport   EventType = "data.export"
	EventDataDeletion EventType = "data.deletion"

	EventSuspiciousActivity EventType = "security.suspicious_activity"
	EventAuditPurge         EventType = "security.audit_purge"
)

// Level grades the severity of an audit entry.
type Level string

const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

// AuditEntry is an immutable record of a security-relevant event. Entries
// are never mutated or deleted except by the retention sweep.
type AuditEntry struct {
	ID        uuid.UUID      `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	UserID    string         `json:"user_id,omitempty"`
	Username  string         `json:"username,omitempty"`
	EventType EventType      `json:"event_type"`
	Level     Level          `json:"level"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	IPAddress string         `json:"ip_address,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Success   bool           `json:"success"`
}

// Fields carries the optional attributes of a logged event.
type Fields struct {
	UserID    string
	Username  string
	IPAddress string
	UserAgent string
	SessionID string
	Details   map[string]any
	Success   bool
}

// AuditFilter selects entries conjunctively over every provided field.
// Zero Limit means unbounded.
type AuditFilter struct {
	UserID    string
	EventType EventType
	Level     Level
	IPAddress string
	Start     *time.Time
	End       *time.Time
	Limit     int
	Offset    int
}

// Matches reports whether the entry satisfies every provided predicate.
func (f AuditFilter) Matches(entry *AuditEntry) bool {
	if f.UserID != "" && entry.UserID != f.UserID {
		return false
	}
	if f.EventType != "" && entry.EventType != f.EventType {
		return false
	}
	if f.Level != "" && entry.Level != f.Level {
		return false
	}
	if f.IPAddress != "" && entry.IPAddress != f.IPAddress {
		return false
	}
	if f.Start != nil && entry.Timestamp.Before(*f.Start) {
		return false
	}
	if f.End != nil && entry.Timestamp.After(*f.End) {
		return false
	}
	return true
}

// AuditStats aggregates a filtered slice of the trail.
type AuditStats struct {
	Total          int               `json:"total"`
	ByLevel        map[Level]int     `json:"by_level"`
	ByEventType    map[EventType]int `json:"by_event_type"`
	RecentActivity []*AuditEntry     `json:"recent_activity"`
}

// AuditSink mirrors entries outside the store, e.g. to a console writer in
// development. Sinks run best-effort and never block the append.
type AuditSink interface {
	Emit(ctx context.Context, entry *AuditEntry)
}

// JSONWriterSink writes one JSON line per entry.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink mirrors entries to w, one JSON object per line.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

func (s *JSONWriterSink) Emit(ctx context.Context, entry *AuditEntry) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// DefaultRetentionDays is the audit horizon the retention sweep applies
// unless told otherwise.
const DefaultRetentionDays = 90

// Trail is the append-only security audit log. Appends are synchronous:
// every audit-worthy failure produces exactly one entry before the
// triggering function returns.
type Trail struct {
	store  AuditStore
	sink   AuditSink
	now    func() time.Time
	logger Logger
}

// TrailOption customizes trail construction.
type TrailOption func(*Trail)

// WithTrailSink mirrors appended entries to a sink (telemetry, console).
func WithTrailSink(sink AuditSink) TrailOption {
	return func(t *Trail) {
		t.sink = sink
	}
}

// WithTrailClock injects a custom clock (useful for tests).
func WithTrailClock(clock func() time.Time) TrailOption {
	return func(t *Trail) {
		if clock != nil {
			t.now = clock
		}
	}
}

// WithTrailLogger overrides the default logger.
func WithTrailLogger(logger Logger) TrailOption {
	return func(t *Trail) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTrail returns a trail backed by the provided store.
func NewTrail(store AuditStore, opts ...TrailOption) *Trail {
	t := &Trail{
		store:  store,
		now:    time.Now,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Log assigns an id and timestamp and appends the entry to the store.
func (t *Trail) Log(ctx context.Context, eventType EventType, level Level, message string, fields Fields) (*AuditEntry, error) {
	entry := &AuditEntry{
		ID:        uuid.New(),
		Timestamp: t.now(),
		UserID:    fields.UserID,
		Username:  fields.Username,
		EventType: eventType,
		Level:     level,
		Message:   message,
		Details:   fields.Details,
		IPAddress: fields.IPAddress,
		SessionID: fields.SessionID,
		Success:   fields.Success,
	}

	if fields.UserAgent != "" {
		if entry.Details == nil {
			entry.Details = map[string]any{}
		}
		entry.Details["user_agent"] = fields.UserAgent
	}

	if err := t.store.Append(ctx, entry); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to append audit entry")
	}

	if t.sink != nil {
		t.sink.Emit(ctx, entry)
	}

	return entry, nil
}

// Query returns entries matching the filter, newest first, paginated.
func (t *Trail) Query(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error) {
	return t.store.Query(ctx, filter)
}

// Stats aggregates the filtered set: totals by level and event type plus the
// ten most recent entries.
func (t *Trail) Stats(ctx context.Context, filter AuditFilter) (*AuditStats, error) {
	filter.Limit = 0
	filter.Offset = 0
	entries, err := t.store.Query(ctx, filter)
	if err != nil {
		return nil, err
	}

	stats := &AuditStats{
		Total:       len(entries),
		ByLevel:     map[Level]int{},
		ByEventType: map[EventType]int{},
	}
	for _, entry := range entries {
		stats.ByLevel[entry.Level]++
		stats.ByEventType[entry.EventType]++
	}

	recent := entries
	if len(recent) > 10 {
		recent = recent[:10]
	}
	stats.RecentActivity = recent

	return stats, nil
}

// CleanupOld deletes entries older than daysToKeep and appends one entry
// describing the purge. The purge entry is appended after the deletion with
// a fresh timestamp, so it is never eligible for removal in the same pass.
func (t *Trail) CleanupOld(ctx context.Context, daysToKeep int) (int, error) {
	if daysToKeep <= 0 {
		daysToKeep = DefaultRetentionDays
	}

	cutoff := t.now().AddDate(0, 0, -daysToKeep)
	removed, err := t.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryInternal, "audit retention sweep failed")
	}

	if _, err := t.Log(ctx, EventAuditPurge, LevelInfo, fmt.Sprintf("purged %d audit entries", removed), Fields{
		Success: true,
		Details: map[string]any{
			"removed":      removed,
			"days_to_keep": daysToKeep,
			"cutoff":       cutoff.Format(time.RFC3339),
		},
	}); err != nil {
		return removed, err
	}

	return removed, nil
}
