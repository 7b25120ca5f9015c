package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"

	sentinel "github.com/goliatone/go-sentinel"
	"github.com/uptrace/bun"
)

// Manager bundles the persistent stores behind a single constructor so
// callers wire one dependency instead of three.
type Manager interface {
	Sessions() sentinel.SessionStore
	Locks() sentinel.LockStore
	Audit() sentinel.AuditStore
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
}

type mngr struct {
	db       *bun.DB
	sessions *SessionRepository
	locks    *LockRepository
	audit    *AuditRepository
}

func NewManager(db *bun.DB) Manager {
	return &mngr{
		db:       db,
		sessions: NewSessionRepository(db),
		locks:    NewLockRepository(db),
		audit:    NewAuditRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.sessions == nil {
		return errors.New("repository sessions should be initialized")
	}

	if m.locks == nil {
		return errors.New("repository locks should be initialized")
	}

	if m.audit == nil {
		return errors.New("repository audit should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Sessions() sentinel.SessionStore {
	return m.sessions
}

func (m mngr) Locks() sentinel.LockStore {
	return m.locks
}

func (m mngr) Audit() sentinel.AuditStore {
	return m.audit
}
