package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sentinel "github.com/goliatone/go-sentinel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	sqliteCreateSessions = `CREATE TABLE sessions (
    id TEXT NOT NULL PRIMARY KEY,
    user_id TEXT NOT NULL,
    device_info TEXT NOT NULL DEFAULT '{}',
    ip_address TEXT,
    created_at TIMESTAMP NOT NULL,
    last_active_at TIMESTAMP NOT NULL,
    expires_at TIMESTAMP NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE
);`

	sqliteCreateAccountLocks = `CREATE TABLE account_locks (
    user_id TEXT NOT NULL PRIMARY KEY,
    is_locked BOOLEAN NOT NULL DEFAULT FALSE,
    locked_at TIMESTAMP NULL,
    locked_by TEXT,
    reason TEXT,
    description TEXT,
    unlock_at TIMESTAMP NULL,
    attempt_count INTEGER NOT NULL DEFAULT 0,
    last_attempt_at TIMESTAMP NULL,
    updated_at TIMESTAMP NOT NULL
);`

	sqliteCreateAuditEntries = `CREATE TABLE audit_entries (
    id TEXT NOT NULL PRIMARY KEY,
    timestamp TIMESTAMP NOT NULL,
    user_id TEXT,
    username TEXT,
    event_type TEXT NOT NULL,
    level TEXT NOT NULL,
    message TEXT,
    details TEXT,
    ip_address TEXT,
    session_id TEXT,
    success BOOLEAN NOT NULL DEFAULT FALSE
);`
)

func setupTestDB(t *testing.T) (*bun.DB, func()) {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	for _, ddl := range []string{sqliteCreateSessions, sqliteCreateAccountLocks, sqliteCreateAuditEntries} {
		_, err = bunDB.Exec(ddl)
		require.NoError(t, err)
	}

	cleanup := func() {
		_ = bunDB.Close()
		_ = db.Close()
	}

	return bunDB, cleanup
}

func testSession(id, userID string) *sentinel.Session {
	now := time.Now().UTC().Truncate(time.Second)
	return &sentinel.Session{
		ID:     id,
		UserID: userID,
		DeviceInfo: sentinel.DeviceInfo{
			Browser:   "Firefox",
			OS:        "Linux",
			Device:    "Desktop",
			IsDesktop: true,
		},
		IPAddress:    "203.0.113.7",
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(24 * time.Hour),
		IsActive:     true,
	}
}

func TestSessionRepositoryPutAndGet(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	ctx := context.Background()

	session := testSession("tok-1", "user-1")
	require.NoError(t, repo.Put(ctx, session))

	got, found, err := repo.Get(ctx, "tok-1")
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, session.UserID, got.UserID)
	assert.Equal(t, session.IPAddress, got.IPAddress)
	assert.Equal(t, session.DeviceInfo.Browser, got.DeviceInfo.Browser)
	assert.True(t, got.DeviceInfo.IsDesktop)
	assert.True(t, got.IsActive)
	assert.WithinDuration(t, session.ExpiresAt, got.ExpiresAt, time.Second)
}

func TestSessionRepositoryGetMissing(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSessionRepository(db)

	got, found, err := repo.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
}

func TestSessionRepositoryPutUpserts(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	ctx := context.Background()

	session := testSession("tok-1", "user-1")
	require.NoError(t, repo.Put(ctx, session))

	session.IPAddress = "198.51.100.9"
	session.IsActive = false
	require.NoError(t, repo.Put(ctx, session))

	sessions, err := repo.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "198.51.100.9", sessions[0].IPAddress)
	assert.False(t, sessions[0].IsActive)
}

func TestSessionRepositoryDelete(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, testSession("tok-1", "user-1")))

	removed, err := repo.Delete(ctx, "tok-1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Delete(ctx, "tok-1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSessionRepositoryDeleteByUser(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, testSession("tok-1", "user-1")))
	require.NoError(t, repo.Put(ctx, testSession("tok-2", "user-1")))
	require.NoError(t, repo.Put(ctx, testSession("tok-3", "user-1")))
	require.NoError(t, repo.Put(ctx, testSession("tok-4", "user-2")))

	removed, err := repo.DeleteByUser(ctx, "user-1", "tok-2")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, found, err := repo.Get(ctx, "tok-2")
	require.NoError(t, err)
	assert.True(t, found)

	removed, err = repo.DeleteByUser(ctx, "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	other, err := repo.ListByUser(ctx, "user-2")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestSessionRepositoryTouch(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	ctx := context.Background()

	session := testSession("tok-1", "user-1")
	require.NoError(t, repo.Put(ctx, session))

	at := session.LastActiveAt.Add(15 * time.Minute)
	touched, err := repo.Touch(ctx, "tok-1", at)
	require.NoError(t, err)
	assert.True(t, touched)

	got, found, err := repo.Get(ctx, "tok-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.WithinDuration(t, at, got.LastActiveAt, time.Second)

	touched, err = repo.Touch(ctx, "missing", at)
	require.NoError(t, err)
	assert.False(t, touched)
}
