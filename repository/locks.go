package repository

import (
	"context"
	"database/sql"
	"time"

	sentinel "github.com/goliatone/go-sentinel"
	"github.com/uptrace/bun"
)

// AccountLockModel is the Bun model for per-user lock state. One row per
// user id.
type AccountLockModel struct {
	bun.BaseModel `bun:"table:account_locks"`

	UserID        string     `bun:"user_id,pk"`
	IsLocked      bool       `bun:"is_locked,notnull"`
	LockedAt      *time.Time `bun:"locked_at"`
	LockedBy      string     `bun:"locked_by"`
	Reason        string     `bun:"reason"`
	Description   string     `bun:"description"`
	UnlockAt      *time.Time `bun:"unlock_at"`
	AttemptCount  int        `bun:"attempt_count,notnull"`
	LastAttemptAt *time.Time `bun:"last_attempt_at"`
	UpdatedAt     time.Time  `bun:"updated_at,notnull"`
}

// LockRepository implements sentinel.LockStore using Bun. Update wraps the
// read-modify-write cycle in a transaction so concurrent attempt bursts
// against the same user never lose counts.
type LockRepository struct {
	db *bun.DB
}

// NewLockRepository creates a new repository.
func NewLockRepository(db *bun.DB) *LockRepository {
	return &LockRepository{db: db}
}

// Get implements sentinel.LockStore.
func (r *LockRepository) Get(ctx context.Context, userID string) (sentinel.AccountLockStatus, bool, error) {
	var model AccountLockModel
	err := r.db.NewSelect().
		Model(&model).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return sentinel.AccountLockStatus{}, false, nil
		}
		return sentinel.AccountLockStatus{}, false, err
	}
	return r.toStatus(&model), true, nil
}

// Update implements sentinel.LockStore.
func (r *LockRepository) Update(ctx context.Context, userID string, fn func(*sentinel.AccountLockStatus) error) (sentinel.AccountLockStatus, error) {
	var status sentinel.AccountLockStatus

	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var model AccountLockModel
		err := tx.NewSelect().
			Model(&model).
			Where("user_id = ?", userID).
			Scan(ctx)
		if err != nil && err != sql.ErrNoRows {
			return err
		}

		status = r.toStatus(&model)
		if err := fn(&status); err != nil {
			return err
		}

		updated := r.fromStatus(userID, status)
		_, err = tx.NewInsert().
			Model(updated).
			On("CONFLICT (user_id) DO UPDATE").
			Set("is_locked = EXCLUDED.is_locked").
			Set("locked_at = EXCLUDED.locked_at").
			Set("locked_by = EXCLUDED.locked_by").
			Set("reason = EXCLUDED.reason").
			Set("description = EXCLUDED.description").
			Set("unlock_at = EXCLUDED.unlock_at").
			Set("attempt_count = EXCLUDED.attempt_count").
			Set("last_attempt_at = EXCLUDED.last_attempt_at").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		return err
	})
	if err != nil {
		return sentinel.AccountLockStatus{}, err
	}

	return status, nil
}

// Delete implements sentinel.LockStore.
func (r *LockRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.db.NewDelete().
		Model((*AccountLockModel)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	return err
}

func (r *LockRepository) toStatus(m *AccountLockModel) sentinel.AccountLockStatus {
	return sentinel.AccountLockStatus{
		IsLocked:      m.IsLocked,
		LockedAt:      m.LockedAt,
		LockedBy:      m.LockedBy,
		Reason:        sentinel.LockReason(m.Reason),
		Description:   m.Description,
		UnlockAt:      m.UnlockAt,
		AttemptCount:  m.AttemptCount,
		LastAttemptAt: m.LastAttemptAt,
	}
}

func (r *LockRepository) fromStatus(userID string, s sentinel.AccountLockStatus) *AccountLockModel {
	return &AccountLockModel{
		UserID:        userID,
		IsLocked:      s.IsLocked,
		LockedAt:      s.LockedAt,
		LockedBy:      s.LockedBy,
		Reason:        string(s.Reason),
		Description:   s.Description,
		UnlockAt:      s.UnlockAt,
		AttemptCount:  s.AttemptCount,
		LastAttemptAt: s.LastAttemptAt,
		UpdatedAt:     time.Now(),
	}
}
