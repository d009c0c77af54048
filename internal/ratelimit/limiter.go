// Package ratelimit provides a redis-backed fixed-window rate limiter for
// the manual sync and debug endpoints.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisOps is the slice of the redis client the limiter needs. *redis.Client
// satisfies it.
type redisOps interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd
}

// Limiter counts hits per key in fixed windows. The counter lives in redis
// so the limit holds across process restarts.
//
// The limiter fails open: when redis is unreachable the request is allowed
// and the error is logged. Rate limiting protects the provider API from
// trigger storms; it must never take the dashboard down with it.
type Limiter struct {
	rdb    redisOps
	prefix string
	limit  int
	window time.Duration
	log    *slog.Logger
	clock  func() time.Time
}

func New(rdb *redis.Client, prefix string, limit int, window time.Duration, log *slog.Logger) *Limiter {
	if log == nil {
		log = slog.Default()
	}
	l := &Limiter{
		prefix: prefix,
		limit:  limit,
		window: window,
		log:    log,
		clock:  time.Now,
	}
	if rdb != nil {
		l.rdb = rdb
	}
	return l
}

// Allow reports whether one more hit for key fits in the current window.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	if l.rdb == nil || l.limit <= 0 || l.window <= 0 {
		return true
	}

	// The bucket is derived in nanoseconds so sub-second windows divide
	// cleanly.
	bucket := l.clock().UTC().UnixNano() / int64(l.window)
	rkey := fmt.Sprintf("%s:%s:%d", l.prefix, key, bucket)

	n, err := l.rdb.Incr(ctx, rkey).Result()
	if err != nil {
		l.log.Warn("rate limiter unavailable, allowing request", "key", key, "err", err)
		return true
	}
	if n == 1 {
		// First hit in the window owns the expiry. A second Expire on a
		// later hit would slide the window.
		if err := l.rdb.Expire(ctx, rkey, l.window).Err(); err != nil {
			l.log.Warn("rate limiter expire failed", "key", rkey, "err", err)
		}
	}
	return n <= int64(l.limit)
}
