package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	sentinel "github.com/goliatone/go-sentinel"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	return rdb, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func redisSession(id, userID string) *sentinel.Session {
	now := time.Now().UTC().Truncate(time.Second)
	return &sentinel.Session{
		ID:     id,
		UserID: userID,
		DeviceInfo: sentinel.DeviceInfo{
			Browser:  "Chrome",
			OS:       "macOS",
			Device:   "Desktop",
			IsMobile: false,
		},
		IPAddress:    "203.0.113.7",
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(time.Hour),
		IsActive:     true,
	}
}

func TestRedisSessionStorePutAndGet(t *testing.T) {
	rdb, cleanup := newTestClient(t)
	defer cleanup()

	store := NewSessionStore(rdb)
	ctx := context.Background()

	session := redisSession("tok-1", "user-1")
	require.NoError(t, store.Put(ctx, session))

	got, found, err := store.Get(ctx, "tok-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "Chrome", got.DeviceInfo.Browser)
	assert.True(t, got.ExpiresAt.Equal(session.ExpiresAt))

	_, found, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisSessionStoreDelete(t *testing.T) {
	rdb, cleanup := newTestClient(t)
	defer cleanup()

	store := NewSessionStore(rdb)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, redisSession("tok-1", "user-1")))

	removed, err := store.Delete(ctx, "tok-1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.Delete(ctx, "tok-1")
	require.NoError(t, err)
	assert.False(t, removed)

	sessions, err := store.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestRedisSessionStoreListByUser(t *testing.T) {
	rdb, cleanup := newTestClient(t)
	defer cleanup()

	store := NewSessionStore(rdb)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, redisSession("tok-1", "user-1")))
	require.NoError(t, store.Put(ctx, redisSession("tok-2", "user-1")))
	require.NoError(t, store.Put(ctx, redisSession("tok-3", "user-2")))

	sessions, err := store.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	sessions, err = store.ListByUser(ctx, "user-3")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestRedisSessionStoreListPrunesStaleIndex(t *testing.T) {
	rdb, cleanup := newTestClient(t)
	defer cleanup()

	store := NewSessionStore(rdb)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, redisSession("tok-1", "user-1")))
	require.NoError(t, store.Put(ctx, redisSession("tok-2", "user-1")))

	// drop the session key behind the index's back
	require.NoError(t, rdb.Del(ctx, store.sessionKey("tok-1")).Err())

	sessions, err := store.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "tok-2", sessions[0].ID)

	ids, err := rdb.SMembers(ctx, store.userKey("user-1")).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-2"}, ids)
}

func TestRedisSessionStoreDeleteByUser(t *testing.T) {
	rdb, cleanup := newTestClient(t)
	defer cleanup()

	store := NewSessionStore(rdb)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, redisSession("tok-1", "user-1")))
	require.NoError(t, store.Put(ctx, redisSession("tok-2", "user-1")))
	require.NoError(t, store.Put(ctx, redisSession("tok-3", "user-1")))

	removed, err := store.DeleteByUser(ctx, "user-1", "tok-2")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, found, err := store.Get(ctx, "tok-2")
	require.NoError(t, err)
	assert.True(t, found)

	removed, err = store.DeleteByUser(ctx, "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestRedisSessionStoreTouch(t *testing.T) {
	rdb, cleanup := newTestClient(t)
	defer cleanup()

	store := NewSessionStore(rdb)
	ctx := context.Background()

	session := redisSession("tok-1", "user-1")
	require.NoError(t, store.Put(ctx, session))

	at := session.LastActiveAt.Add(10 * time.Minute)
	touched, err := store.Touch(ctx, "tok-1", at)
	require.NoError(t, err)
	assert.True(t, touched)

	got, found, err := store.Get(ctx, "tok-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, got.LastActiveAt.Equal(at))

	touched, err = store.Touch(ctx, "missing", at)
	require.NoError(t, err)
	assert.False(t, touched)
}

func TestRedisSessionStoreCustomPrefix(t *testing.T) {
	rdb, cleanup := newTestClient(t)
	defer cleanup()

	store := NewSessionStore(rdb, WithKeyPrefix("acme"))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, redisSession("tok-1", "user-1")))

	exists, err := rdb.Exists(ctx, "acme:session:tok-1").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
}
