package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "portal:tab:"

// RedisStore keeps one hash per tab session. Every access slides the TTL so
// an abandoned tab expires the way a closed browser tab drops its storage.
type RedisStore struct {
	rc  redis.Cmdable
	key string
	ttl time.Duration
}

// NewRedisStore scopes a store to the tab session id sid.
func NewRedisStore(rc redis.Cmdable, sid string, ttl time.Duration) *RedisStore {
	return &RedisStore{rc: rc, key: redisKeyPrefix + sid, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rc.HGet(ctx, s.key, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis hget %s: %w", key, err)
	}
	s.touch(ctx)
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	_, err := s.rc.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key, key, value)
		if s.ttl > 0 {
			pipe.Expire(ctx, s.key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis hset %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.rc.HDel(ctx, s.key, keys...).Err(); err != nil {
		return fmt.Errorf("redis hdel: %w", err)
	}
	return nil
}

func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.rc.HKeys(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hkeys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *RedisStore) touch(ctx context.Context) {
	if s.ttl > 0 {
		_ = s.rc.Expire(ctx, s.key, s.ttl).Err()
	}
}
