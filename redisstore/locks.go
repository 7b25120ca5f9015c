package redisstore

import (
	"context"
	"encoding/json"

	"github.com/goliatone/go-errors"
	sentinel "github.com/goliatone/go-sentinel"
	"github.com/redis/go-redis/v9"
)

const lockUpdateRetries = 100

// ErrLockContention is returned when a lock record could not be updated
// after repeated optimistic transaction attempts.
var ErrLockContention = errors.New(
	"lock state update retries exhausted",
	errors.CategoryOperation,
).WithTextCode("LOCK_CONTENTION")

// LockStore implements sentinel.LockStore on Redis. Update runs under
// WATCH so concurrent read-modify-write cycles against the same user retry
// instead of losing writes.
type LockStore struct {
	client redis.UniversalClient
	prefix string
}

// NewLockStore creates a lock store backed by the given Redis client.
func NewLockStore(client redis.UniversalClient, opts ...Option) *LockStore {
	o := applyOptions(opts)
	return &LockStore{
		client: client,
		prefix: o.prefix,
	}
}

func (s *LockStore) lockKey(userID string) string {
	return s.prefix + ":lock:" + userID
}

// Get implements sentinel.LockStore.
func (s *LockStore) Get(ctx context.Context, userID string) (sentinel.AccountLockStatus, bool, error) {
	data, err := s.client.Get(ctx, s.lockKey(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return sentinel.AccountLockStatus{}, false, nil
		}
		return sentinel.AccountLockStatus{}, false, err
	}

	var status sentinel.AccountLockStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return sentinel.AccountLockStatus{}, false, err
	}
	return status, true, nil
}

// Update implements sentinel.LockStore.
func (s *LockStore) Update(ctx context.Context, userID string, fn func(*sentinel.AccountLockStatus) error) (sentinel.AccountLockStatus, error) {
	key := s.lockKey(userID)
	var result sentinel.AccountLockStatus

	txn := func(tx *redis.Tx) error {
		var status sentinel.AccountLockStatus

		data, err := tx.Get(ctx, key).Bytes()
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil {
			if err := json.Unmarshal(data, &status); err != nil {
				return err
			}
		}

		if err := fn(&status); err != nil {
			return err
		}

		payload, err := json.Marshal(status)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		if err != nil {
			return err
		}

		result = status
		return nil
	}

	for i := 0; i < lockUpdateRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return result, nil
		}
		if err == redis.TxFailedErr {
			continue
		}
		return sentinel.AccountLockStatus{}, err
	}

	return sentinel.AccountLockStatus{}, ErrLockContention
}

// Delete implements sentinel.LockStore.
func (s *LockStore) Delete(ctx context.Context, userID string) error {
	return s.client.Del(ctx, s.lockKey(userID)).Err()
}
