package repository

import (
	"context"
	"database/sql"
	"time"

	sentinel "github.com/goliatone/go-sentinel"
	"github.com/uptrace/bun"
)

// SessionModel is the Bun model for persisted sessions. The primary key is
// the opaque session token, not a UUID.
type SessionModel struct {
	bun.BaseModel `bun:"table:sessions"`

	ID           string              `bun:"id,pk"`
	UserID       string              `bun:"user_id,notnull"`
	DeviceInfo   sentinel.DeviceInfo `bun:"device_info,type:jsonb"`
	IPAddress    string              `bun:"ip_address"`
	CreatedAt    time.Time           `bun:"created_at,notnull"`
	LastActiveAt time.Time           `bun:"last_active_at,notnull"`
	ExpiresAt    time.Time           `bun:"expires_at,notnull"`
	IsActive     bool                `bun:"is_active,notnull"`
}

// SessionRepository implements sentinel.SessionStore using Bun.
type SessionRepository struct {
	db *bun.DB
}

// NewSessionRepository creates a new repository.
func NewSessionRepository(db *bun.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Put implements sentinel.SessionStore.
func (r *SessionRepository) Put(ctx context.Context, session *sentinel.Session) error {
	model := r.fromSession(session)

	_, err := r.db.NewInsert().
		Model(model).
		On("CONFLICT (id) DO UPDATE").
		Set("user_id = EXCLUDED.user_id").
		Set("device_info = EXCLUDED.device_info").
		Set("ip_address = EXCLUDED.ip_address").
		Set("last_active_at = EXCLUDED.last_active_at").
		Set("expires_at = EXCLUDED.expires_at").
		Set("is_active = EXCLUDED.is_active").
		Exec(ctx)

	return err
}

// Get implements sentinel.SessionStore.
func (r *SessionRepository) Get(ctx context.Context, id string) (*sentinel.Session, bool, error) {
	var model SessionModel
	err := r.db.NewSelect().
		Model(&model).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	return r.toSession(&model), true, nil
}

// Delete implements sentinel.SessionStore.
func (r *SessionRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.NewDelete().
		Model((*SessionModel)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListByUser implements sentinel.SessionStore.
func (r *SessionRepository) ListByUser(ctx context.Context, userID string) ([]*sentinel.Session, error) {
	var models []SessionModel
	err := r.db.NewSelect().
		Model(&models).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return []*sentinel.Session{}, nil
		}
		return nil, err
	}

	sessions := make([]*sentinel.Session, len(models))
	for i, m := range models {
		sessions[i] = r.toSession(&m)
	}
	return sessions, nil
}

// DeleteByUser implements sentinel.SessionStore.
func (r *SessionRepository) DeleteByUser(ctx context.Context, userID, keepID string) (int, error) {
	q := r.db.NewDelete().
		Model((*SessionModel)(nil)).
		Where("user_id = ?", userID)

	if keepID != "" {
		q = q.Where("id != ?", keepID)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// Touch implements sentinel.SessionStore.
func (r *SessionRepository) Touch(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*SessionModel)(nil)).
		Set("last_active_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *SessionRepository) toSession(m *SessionModel) *sentinel.Session {
	return &sentinel.Session{
		ID:           m.ID,
		UserID:       m.UserID,
		DeviceInfo:   m.DeviceInfo,
		IPAddress:    m.IPAddress,
		CreatedAt:    m.CreatedAt,
		LastActiveAt: m.LastActiveAt,
		ExpiresAt:    m.ExpiresAt,
		IsActive:     m.IsActive,
	}
}

func (r *SessionRepository) fromSession(s *sentinel.Session) *SessionModel {
	if s == nil {
		return &SessionModel{}
	}
	return &SessionModel{
		ID:           s.ID,
		UserID:       s.UserID,
		DeviceInfo:   s.DeviceInfo,
		IPAddress:    s.IPAddress,
		CreatedAt:    s.CreatedAt,
		LastActiveAt: s.LastActiveAt,
		ExpiresAt:    s.ExpiresAt,
		IsActive:     s.IsActive,
	}
}
