package relay

import (
	"context"
	"fmt"
	"time"

	"mini_chat/internal/service/redis"
)

type (
	// Backlog keeps recent publishes per topic so late subscribers can
	// catch up.
	Backlog interface {
		Append(ctx context.Context, topic string, payload []byte) error
		Replay(ctx context.Context, topic string) ([][]byte, error)
	}

	RedisBacklog struct {
		redisService *redis.RedisService
		size         int64
		ttl          time.Duration
	}
)

func NewRedisBacklog(redisSvc *redis.RedisService, size int, ttl time.Duration) *RedisBacklog {
	return &RedisBacklog{
		redisService: redisSvc,
		size:         int64(size),
		ttl:          ttl,
	}
}

func backlogKey(topic string) string {
	return fmt.Sprintf("relay: %s", topic)
}

func (b *RedisBacklog) Append(ctx context.Context, topic string, payload []byte) error {
	key := backlogKey(topic)
	if err := b.redisService.RPush(ctx, key, payload); err != nil {
		return err
	}
	return b.redisService.LKeepLast(ctx, key, b.size, b.ttl)
}

func (b *RedisBacklog) Replay(ctx context.Context, topic string) ([][]byte, error) {
	vals, err := b.redisService.LRange(ctx, backlogKey(topic))
	if err != nil {
		return nil, err
	}

	res := make([][]byte, 0, len(vals))
	for _, v := range vals {
		res = append(res, []byte(v))
	}
	return res, nil
}
