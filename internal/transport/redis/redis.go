// Package redis carries conversation traffic over Redis PUBLISH/SUBSCRIBE.
//
// Redis pub/sub drops messages for absent subscribers. With a backlog
// configured, every published payload is also appended to a capped list per
// topic and replayed to new subscribers, which gives late joiners the recent
// history. Replayed payloads may duplicate live ones; receivers dedupe.
package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	errs "mini_chat/internal/errors"
	redisSvc "mini_chat/internal/service/redis"
	"mini_chat/internal/transport"
	"mini_chat/internal/utils/log"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type (
	subscription struct {
		pubsub *goredis.PubSub
		done   chan struct{}
	}

	Transport struct {
		redisService *redisSvc.RedisService
		backlogSize  int64
		backlogTTL   time.Duration

		mu      sync.Mutex
		started bool
		subs    map[*subscription]struct{}
	}

	Option func(*Transport)
)

var _ transport.Transport = (*Transport)(nil)

func WithBacklog(size int, ttl time.Duration) Option {
	return func(t *Transport) {
		t.backlogSize = int64(size)
		t.backlogTTL = ttl
	}
}

func New(redisService *redisSvc.RedisService, opts ...Option) *Transport {
	t := &Transport{
		redisService: redisService,
		subs:         make(map[*subscription]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func backlogKey(topic string) string {
	return fmt.Sprintf("backlog: %s", topic)
}

func (t *Transport) Start(ctx context.Context) error {
	if err := t.redisService.Ping(ctx); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	t.mu.Lock()
	t.started = true
	t.mu.Unlock()
	return nil
}

func (t *Transport) Stop(ctx context.Context) error {
	t.mu.Lock()
	subs := t.subs
	t.subs = make(map[*subscription]struct{})
	t.started = false
	t.mu.Unlock()

	for sub := range subs {
		if err := t.close(ctx, sub); err != nil {
			log.Warn("close redis subscription failed", zap.Error(err))
		}
	}
	return nil
}

func (t *Transport) isStarted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

func (t *Transport) Send(ctx context.Context, topic string, payload []byte) (string, error) {
	if !t.isStarted() {
		return "", errs.ErrTransportNotStarted
	}

	if t.backlogSize > 0 {
		key := backlogKey(topic)
		if err := t.redisService.RPush(ctx, key, payload); err != nil {
			return "", err
		}
		if err := t.redisService.LKeepLast(ctx, key, t.backlogSize, t.backlogTTL); err != nil {
			return "", err
		}
	}

	if err := t.redisService.Publish(ctx, topic, payload); err != nil {
		return "", err
	}
	return transport.DeliveryID(payload), nil
}

func (t *Transport) Subscribe(ctx context.Context, topic string, handler transport.Handler) (transport.Unsubscribe, error) {
	if !t.isStarted() {
		return nil, errs.ErrTransportNotStarted
	}

	ps := t.redisService.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", topic, err)
	}

	if t.backlogSize > 0 {
		backlog, err := t.redisService.LRange(ctx, backlogKey(topic))
		if err != nil {
			ps.Close()
			return nil, err
		}
		for _, v := range backlog {
			deliver(handler, topic, []byte(v))
		}
	}

	sub := &subscription{
		pubsub: ps,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(sub.done)
		for msg := range ps.Channel() {
			deliver(handler, topic, []byte(msg.Payload))
		}
	}()

	t.mu.Lock()
	t.subs[sub] = struct{}{}
	t.mu.Unlock()

	return func(ctx context.Context) error {
		t.mu.Lock()
		_, ok := t.subs[sub]
		delete(t.subs, sub)
		t.mu.Unlock()
		if !ok {
			return nil
		}
		return t.close(ctx, sub)
	}, nil
}

func (t *Transport) close(ctx context.Context, sub *subscription) error {
	err := sub.pubsub.Close()
	select {
	case <-sub.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

func deliver(handler transport.Handler, topic string, payload []byte) {
	handler(payload, transport.Metadata{
		Topic:      topic,
		DeliveryID: transport.DeliveryID(payload),
		ReceivedAt: time.Now().UTC(),
	})
}
