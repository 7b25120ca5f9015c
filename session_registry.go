package sentinel

import (
	"context"
	"sort"
	"time"

	"github.com/goliatone/go-errors"
)

// DefaultSessionTTL is the lifetime of a session unless overridden.
const DefaultSessionTTL = 7 * 24 * time.Hour

// SessionRegistry tracks live sessions per user and per session id. Expiry
// is enforced lazily on every read; there is no background sweep.
type SessionRegistry struct {
	store  SessionStore
	trail  *Trail
	ttl    time.Duration
	now    func() time.Time
	logger Logger
}

// SessionRegistryOption customizes registry construction.
type SessionRegistryOption func(*SessionRegistry)

// WithSessionTTL overrides the default 7 day session lifetime.
func WithSessionTTL(ttl time.Duration) SessionRegistryOption {
	return func(r *SessionRegistry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithSessionClock injects a custom clock (useful for tests).
func WithSessionClock(clock func() time.Time) SessionRegistryOption {
	return func(r *SessionRegistry) {
		if clock != nil {
			r.now = clock
		}
	}
}

// WithSessionLogger overrides the default logger.
func WithSessionLogger(logger Logger) SessionRegistryOption {
	return func(r *SessionRegistry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSessionAudit attaches the audit trail; session creation and
// revocation then write entries.
func WithSessionAudit(trail *Trail) SessionRegistryOption {
	return func(r *SessionRegistry) {
		r.trail = trail
	}
}

// NewSessionRegistry returns a registry backed by the provided store.
func NewSessionRegistry(store SessionStore, opts ...SessionRegistryOption) *SessionRegistry {
	r := &SessionRegistry{
		store:  store,
		ttl:    DefaultSessionTTL,
		now:    time.Now,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Create generates a session for userID from the request attributes and
// indexes it by id and by user.
func (r *SessionRegistry) Create(ctx context.Context, userID string, meta RequestMeta) (*Session, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	id, err := newSessionID()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to generate session id")
	}

	now := r.now()
	session := &Session{
		ID:           id,
		UserID:       userID,
		DeviceInfo:   ParseUserAgent(meta.UserAgent),
		IPAddress:    meta.IPAddress,
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(r.ttl),
		IsActive:     true,
	}

	if err := r.store.Put(ctx, session); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to persist session")
	}

	r.audit(ctx, EventSessionCreated, LevelInfo, "session created", Fields{
		UserID:    userID,
		SessionID: session.ID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	})

	return session, nil
}

// Get returns the live session for id. Expired entries are evicted on the
// spot and reported as absent.
func (r *SessionRegistry) Get(ctx context.Context, id string) (*Session, bool, error) {
	session, ok, err := r.store.Get(ctx, id)
	if err != nil || !ok {
		return nil, false, err
	}

	if session.ExpiredAt(r.now()) {
		if _, err := r.store.Delete(ctx, id); err != nil {
			r.logger.Warn("failed to evict expired session %s: %v", id, err)
		}
		return nil, false, nil
	}

	return session, true, nil
}

// Touch bumps LastActiveAt; called on every authenticated request. Returns
// false when the session is absent or expired.
func (r *SessionRegistry) Touch(ctx context.Context, id string) (bool, error) {
	// Route through Get so the expiry predicate and lazy eviction apply.
	if _, ok, err := r.Get(ctx, id); err != nil || !ok {
		return false, err
	}
	return r.store.Touch(ctx, id, r.now())
}

// Delete revokes a single session.
func (r *SessionRegistry) Delete(ctx context.Context, id string) (bool, error) {
	session, ok, err := r.store.Get(ctx, id)
	if err != nil {
		return false, err
	}

	removed, err := r.store.Delete(ctx, id)
	if err != nil {
		return false, err
	}

	if removed && ok {
		r.audit(ctx, EventSessionRevoked, LevelInfo, "session revoked", Fields{
			UserID:    session.UserID,
			SessionID: id,
			Success:   true,
		})
	}

	return removed, nil
}

// DeleteOthers revokes every session owned by userID except keepID.
func (r *SessionRegistry) DeleteOthers(ctx context.Context, userID, keepID string) (int, error) {
	if userID == "" {
		return 0, ErrInvalidUserID
	}

	removed, err := r.store.DeleteByUser(ctx, userID, keepID)
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		r.audit(ctx, EventSessionRevoked, LevelInfo, "other sessions revoked", Fields{
			UserID:    userID,
			SessionID: keepID,
			Success:   true,
			Details:   map[string]any{"revoked": removed},
		})
	}

	return removed, nil
}

// DeleteAll revokes every session owned by userID.
func (r *SessionRegistry) DeleteAll(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, ErrInvalidUserID
	}

	removed, err := r.store.DeleteByUser(ctx, userID, "")
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		r.audit(ctx, EventSessionRevoked, LevelInfo, "all sessions revoked", Fields{
			UserID:  userID,
			Success: true,
			Details: map[string]any{"revoked": removed},
		})
	}

	return removed, nil
}

// List returns the user's live sessions sorted by LastActiveAt descending.
// Expired entries are evicted as a side effect of iteration. The entry
// matching currentID is flagged IsCurrent.
func (r *SessionRegistry) List(ctx context.Context, userID, currentID string) ([]*Session, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	all, err := r.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := r.now()
	live := make([]*Session, 0, len(all))
	for _, session := range all {
		if session.ExpiredAt(now) {
			if _, err := r.store.Delete(ctx, session.ID); err != nil {
				r.logger.Warn("failed to evict expired session %s: %v", session.ID, err)
			}
			continue
		}
		session.IsCurrent = session.ID == currentID && currentID != ""
		live = append(live, session)
	}

	sort.Slice(live, func(i, j int) bool {
		return live[i].LastActiveAt.After(live[j].LastActiveAt)
	})

	return live, nil
}

// Stats aggregates the user's live sessions. Device uniqueness is computed
// over (os, browser) pairs, location uniqueness over IP addresses.
func (r *SessionRegistry) Stats(ctx context.Context, userID string) (SessionStats, error) {
	sessions, err := r.List(ctx, userID, "")
	if err != nil {
		return SessionStats{}, err
	}

	stats := SessionStats{
		TotalSessions: len(sessions),
	}

	devices := map[[2]string]struct{}{}
	locations := map[string]struct{}{}
	for _, session := range sessions {
		if session.IsActive {
			stats.ActiveSessions++
		}
		devices[[2]string{session.DeviceInfo.OS, session.DeviceInfo.Browser}] = struct{}{}
		if session.IPAddress != "" {
			locations[session.IPAddress] = struct{}{}
		}
		if stats.LastLoginAt == nil || session.CreatedAt.After(*stats.LastLoginAt) {
			createdAt := session.CreatedAt
			stats.LastLoginAt = &createdAt
		}
	}
	stats.UniqueDevices = len(devices)
	stats.UniqueLocations = len(locations)

	return stats, nil
}

func (r *SessionRegistry) audit(ctx context.Context, eventType EventType, level Level, message string, fields Fields) {
	if r.trail == nil {
		return
	}
	if _, err := r.trail.Log(ctx, eventType, level, message, fields); err != nil {
		r.logger.Warn("session registry audit write failed: %v", err)
	}
}
