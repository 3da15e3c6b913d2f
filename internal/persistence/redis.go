package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/courier-portal/internal/config"
	"github.com/spec-kit/courier-portal/internal/storage"
)

var errRedisUnconfigured = errors.New("redis client not configured")

// Redis holds the client backing per tab session storage.
type Redis struct {
	Client *redis.Client
}

// NewRedis builds the client. An unreachable server is only logged so the
// portal can start before Redis does; readiness reports it until then.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable at startup", zap.String("addr", cfg.Addr), zap.Error(err))
	} else {
		logger.Info("redis ready", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	}
	return &Redis{Client: client}
}

// TabStore scopes session storage to tab sid. Entries expire ttl after the
// last write.
func (r *Redis) TabStore(sid string, ttl time.Duration) *storage.RedisStore {
	return storage.NewRedisStore(r.Client, sid, ttl)
}

// Ping reports whether Redis answers.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errRedisUnconfigured
	}
	return r.Client.Ping(ctx).Err()
}

func (r *Redis) Close() {
	if r == nil || r.Client == nil {
		return
	}
	_ = r.Client.Close()
}
