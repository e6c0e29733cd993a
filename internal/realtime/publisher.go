package realtime

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// Publisher pushes change notifications onto the aggregate's channel. Writers
// call it after every persisted mutation; delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, ev CVEvent) error
}

type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev CVEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, Channel(ev.CVID), b).Err()
}
