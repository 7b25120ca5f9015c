package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-repository-bun"
	sentinel "github.com/goliatone/go-sentinel"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AuditEntryModel is the Bun model for audit trail entries.
type AuditEntryModel struct {
	bun.BaseModel `bun:"table:audit_entries"`

	ID        uuid.UUID      `bun:"id,pk,nullzero,type:uuid"`
	Timestamp time.Time      `bun:"timestamp,notnull"`
	UserID    string         `bun:"user_id"`
	Username  string         `bun:"username"`
	EventType string         `bun:"event_type,notnull"`
	Level     string         `bun:"level,notnull"`
	Message   string         `bun:"message"`
	Details   map[string]any `bun:"details,type:jsonb"`
	IPAddress string         `bun:"ip_address"`
	SessionID string         `bun:"session_id"`
	Success   bool           `bun:"success"`
}

// AuditRepository implements sentinel.AuditStore using Bun. Entries go in
// through the generic repository; reads and the retention sweep use query
// builders directly.
type AuditRepository struct {
	db      *bun.DB
	entries repository.Repository[*AuditEntryModel]
}

// NewAuditRepository creates a new repository.
func NewAuditRepository(db *bun.DB) *AuditRepository {
	handlers := repository.ModelHandlers[*AuditEntryModel]{
		NewRecord: func() *AuditEntryModel {
			return &AuditEntryModel{}
		},
		GetID: func(record *AuditEntryModel) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *AuditEntryModel, id uuid.UUID) {
			if record != nil {
				record.ID = id
			}
		},
	}

	return &AuditRepository{
		db:      db,
		entries: repository.NewRepository[*AuditEntryModel](db, handlers),
	}
}

// Append implements sentinel.AuditStore.
func (r *AuditRepository) Append(ctx context.Context, entry *sentinel.AuditEntry) error {
	_, err := r.entries.CreateTx(ctx, r.db, r.fromEntry(entry))
	return err
}

// Query implements sentinel.AuditStore. Filters combine conjunctively and
// results come back newest first.
func (r *AuditRepository) Query(ctx context.Context, filter sentinel.AuditFilter) ([]*sentinel.AuditEntry, error) {
	var models []AuditEntryModel

	q := r.db.NewSelect().
		Model(&models).
		Order("timestamp DESC")

	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.EventType != "" {
		q = q.Where("event_type = ?", string(filter.EventType))
	}
	if filter.Level != "" {
		q = q.Where("level = ?", string(filter.Level))
	}
	if filter.IPAddress != "" {
		q = q.Where("ip_address = ?", filter.IPAddress)
	}
	if filter.Start != nil {
		q = q.Where("timestamp >= ?", *filter.Start)
	}
	if filter.End != nil {
		q = q.Where("timestamp <= ?", *filter.End)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		if err == sql.ErrNoRows {
			return []*sentinel.AuditEntry{}, nil
		}
		return nil, err
	}

	entries := make([]*sentinel.AuditEntry, len(models))
	for i, m := range models {
		entries[i] = r.toEntry(&m)
	}
	return entries, nil
}

// DeleteOlderThan implements sentinel.AuditStore.
func (r *AuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.NewDelete().
		Model((*AuditEntryModel)(nil)).
		Where("timestamp < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (r *AuditRepository) toEntry(m *AuditEntryModel) *sentinel.AuditEntry {
	return &sentinel.AuditEntry{
		ID:        m.ID,
		Timestamp: m.Timestamp,
		UserID:    m.UserID,
		Username:  m.Username,
		EventType: sentinel.EventType(m.EventType),
		Level:     sentinel.Level(m.Level),
		Message:   m.Message,
		Details:   m.Details,
		IPAddress: m.IPAddress,
		SessionID: m.SessionID,
		Success:   m.Success,
	}
}

func (r *AuditRepository) fromEntry(e *sentinel.AuditEntry) *AuditEntryModel {
	if e == nil {
		return &AuditEntryModel{ID: uuid.New()}
	}
	id := e.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &AuditEntryModel{
		ID:        id,
		Timestamp: e.Timestamp,
		UserID:    e.UserID,
		Username:  e.Username,
		EventType: string(e.EventType),
		Level:     string(e.Level),
		Message:   e.Message,
		Details:   e.Details,
		IPAddress: e.IPAddress,
		SessionID: e.SessionID,
		Success:   e.Success,
	}
}
