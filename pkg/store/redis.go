package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDataOpsStore shares DataOps context across instances. TTLs are
// enforced by Redis key expiry.
type RedisDataOpsStore struct {
	rdb *redis.Client
}

var _ DataOpsStore = &RedisDataOpsStore{}

func NewRedisDataOpsStore(rdb *redis.Client) *RedisDataOpsStore {
	return &RedisDataOpsStore{rdb: rdb}
}

func (s *RedisDataOpsStore) set(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisDataOpsStore) get(ctx context.Context, key string, v interface{}) (bool, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisDataOpsStore) SaveLastFilter(ctx context.Context, sessionID string, f FilterContext) error {
	return s.set(ctx, lastFilterKey(sessionID), f, LastFilterTTL)
}

func (s *RedisDataOpsStore) LastFilter(ctx context.Context, sessionID string) (*FilterContext, error) {
	var f FilterContext
	found, err := s.get(ctx, lastFilterKey(sessionID), &f)
	if err != nil || !found {
		return nil, err
	}
	return &f, nil
}

func (s *RedisDataOpsStore) SavePending(ctx context.Context, sessionID string, op PendingOperation) error {
	return s.set(ctx, pendingKey(sessionID), op, PendingOperationTTL)
}

func (s *RedisDataOpsStore) Pending(ctx context.Context, sessionID string) (*PendingOperation, error) {
	var op PendingOperation
	found, err := s.get(ctx, pendingKey(sessionID), &op)
	if err != nil || !found {
		return nil, err
	}
	return &op, nil
}

func (s *RedisDataOpsStore) ClearPending(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, pendingKey(sessionID)).Err()
}

func (s *RedisDataOpsStore) Clear(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, pendingKey(sessionID), lastFilterKey(sessionID)).Err()
}
