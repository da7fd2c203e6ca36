package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackit-taiwan/database-service/src/internal/infrastructure/logger"
)

// RedisWindow is a sliding-window limiter backed by Redis sorted sets,
// for deployments running more than one service instance. Each client
// identity maps to a ZSET keyed by request time; expired members are
// removed on every check, mirroring the in-memory window's lazy pruning.
//
// Redis errors fail open with a logged warning: the limiter is a
// protection layer, not a correctness layer, and an unavailable Redis
// should not take the API down with it.
type RedisWindow struct {
	rdb    *redis.Client
	cfg    Config
	prefix string

	now func() time.Time
}

// RedisOption customizes a RedisWindow.
type RedisOption func(*RedisWindow)

// WithKeyPrefix overrides the Redis key prefix (default "ratelimit").
func WithKeyPrefix(prefix string) RedisOption {
	return func(w *RedisWindow) { w.prefix = prefix }
}

// NewRedisWindow creates a Redis-backed sliding-window limiter.
func NewRedisWindow(rdb *redis.Client, cfg Config, opts ...RedisOption) *RedisWindow {
	if cfg.RequestsPerWindow <= 0 {
		cfg.RequestsPerWindow = 100
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = time.Minute
	}
	w := &RedisWindow{
		rdb:    rdb,
		cfg:    cfg,
		prefix: "ratelimit",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *RedisWindow) key(clientID string) string {
	return w.prefix + ":window:" + clientID
}

// Allow implements Window.
func (w *RedisWindow) Allow(ctx context.Context, clientID string) bool {
	if !w.cfg.Enabled {
		return true
	}

	now := w.now()
	key := w.key(clientID)
	cutoff := strconv.FormatInt(now.Add(-w.cfg.WindowSize).UnixNano(), 10)

	pipe := w.rdb.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", cutoff)
	count := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.WithField("error", err).Warn("Rate limit check failed, allowing request")
		return true
	}

	if count.Val() >= int64(w.cfg.RequestsPerWindow) {
		return false
	}

	member := strconv.FormatInt(now.UnixNano(), 10)
	pipe = w.rdb.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.Expire(ctx, key, w.cfg.WindowSize)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.WithField("error", err).Warn("Rate limit record failed")
	}
	return true
}

// Remaining implements Window.
func (w *RedisWindow) Remaining(ctx context.Context, clientID string) int {
	if !w.cfg.Enabled {
		return w.cfg.RequestsPerWindow
	}

	count, err := w.rdb.ZCard(ctx, w.key(clientID)).Result()
	if err != nil {
		logger.WithField("error", err).Warn("Rate limit count failed")
		return w.cfg.RequestsPerWindow
	}

	remaining := w.cfg.RequestsPerWindow - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}
