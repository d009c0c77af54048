package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisBridge mirrors every event onto a redis pub/sub channel so observers
// outside this process (other replicas, ops tooling) see the same stream the
// in-process hub does.
//
// Publish errors are logged and swallowed: losing a mirror event must never
// fail a sync run.
type RedisBridge struct {
	rdb     *redis.Client
	channel string
	log     *slog.Logger
}

func NewRedisBridge(rdb *redis.Client, channel string, log *slog.Logger) *RedisBridge {
	if log == nil {
		log = slog.Default()
	}
	return &RedisBridge{rdb: rdb, channel: channel, log: log}
}

func (b *RedisBridge) Publish(ctx context.Context, e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		b.log.Warn("event marshal failed", "kind", string(e.Kind), "err", err)
		return
	}
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.log.Warn("event mirror publish failed", "kind", string(e.Kind), "err", err)
	}
}
