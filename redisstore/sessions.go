// Package redisstore provides Redis-backed implementations of the session
// and lock stores for deployments where sessions must survive restarts and
// be shared across instances. Session records carry their own expiry; the
// Redis TTL is a backstop that garbage-collects keys the registry never
// reads again.
package redisstore

import (
	"context"
	"encoding/json"
	"time"

	sentinel "github.com/goliatone/go-sentinel"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "sentinel"

// deleteSessionScript removes the session key and its user-index entry in
// one round trip, returning whether the key existed.
const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// SessionStore implements sentinel.SessionStore on Redis. Each session is a
// JSON blob keyed by its token, with a per-user set indexing the tokens so
// ListByUser and DeleteByUser avoid key scans.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
}

// Option configures a redis-backed store.
type Option func(*options)

type options struct {
	prefix string
}

// WithKeyPrefix overrides the key namespace.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{prefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewSessionStore creates a session store backed by the given Redis client.
func NewSessionStore(client redis.UniversalClient, opts ...Option) *SessionStore {
	o := applyOptions(opts)
	return &SessionStore{
		client: client,
		prefix: o.prefix,
	}
}

func (s *SessionStore) sessionKey(id string) string {
	return s.prefix + ":session:" + id
}

func (s *SessionStore) userKey(userID string) string {
	return s.prefix + ":user:" + userID
}

// Put implements sentinel.SessionStore.
func (s *SessionStore) Put(ctx context.Context, session *sentinel.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	// Keep the key alive a little past the session's own expiry so the
	// registry can observe the expired record and log the expiry event.
	ttl := time.Until(session.ExpiresAt) + time.Hour
	if ttl <= 0 {
		ttl = time.Minute
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(session.ID), data, ttl)
		pipe.SAdd(ctx, s.userKey(session.UserID), session.ID)
		pipe.Expire(ctx, s.userKey(session.UserID), ttl)
		return nil
	})
	return err
}

// Get implements sentinel.SessionStore.
func (s *SessionStore) Get(ctx context.Context, id string) (*sentinel.Session, bool, error) {
	data, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, err
	}

	var session sentinel.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, false, err
	}
	return &session, true, nil
}

// Delete implements sentinel.SessionStore.
func (s *SessionStore) Delete(ctx context.Context, id string) (bool, error) {
	session, found, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	existed, err := deleteSessionLua.Run(ctx, s.client,
		[]string{s.sessionKey(id), s.userKey(session.UserID)},
		id,
	).Int64()
	if err != nil {
		return false, err
	}
	return existed == 1, nil
}

// ListByUser implements sentinel.SessionStore. Tokens indexed under the
// user whose session key already expired are pruned from the set as a side
// effect.
func (s *SessionStore) ListByUser(ctx context.Context, userID string) ([]*sentinel.Session, error) {
	ids, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return []*sentinel.Session{}, nil
		}
		return nil, err
	}

	sessions := make([]*sentinel.Session, 0, len(ids))
	var stale []any
	for _, id := range ids {
		session, found, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !found {
			stale = append(stale, id)
			continue
		}
		sessions = append(sessions, session)
	}

	if len(stale) > 0 {
		_ = s.client.SRem(ctx, s.userKey(userID), stale...).Err()
	}
	return sessions, nil
}

// DeleteByUser implements sentinel.SessionStore.
func (s *SessionStore) DeleteByUser(ctx context.Context, userID, keepID string) (int, error) {
	ids, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, id := range ids {
		if keepID != "" && id == keepID {
			continue
		}
		existed, err := deleteSessionLua.Run(ctx, s.client,
			[]string{s.sessionKey(id), s.userKey(userID)},
			id,
		).Int64()
		if err != nil {
			return removed, err
		}
		if existed == 1 {
			removed++
		}
	}
	return removed, nil
}

// Touch implements sentinel.SessionStore.
func (s *SessionStore) Touch(ctx context.Context, id string, at time.Time) (bool, error) {
	session, found, err := s.Get(ctx, id)
	if err != nil || !found {
		return false, err
	}

	session.LastActiveAt = at
	data, err := json.Marshal(session)
	if err != nil {
		return false, err
	}

	err = s.client.Set(ctx, s.sessionKey(id), data, redis.KeepTTL).Err()
	if err != nil {
		return false, err
	}
	return true, nil
}
