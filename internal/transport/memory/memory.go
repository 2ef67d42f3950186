// Package memory is an in-process transport. Send delivers synchronously to
// every handler subscribed to the topic before returning.
package memory

import (
	"context"
	"sync"
	"time"

	"mini_chat/internal/transport"
)

type (
	subscription struct {
		handler transport.Handler
	}

	Transport struct {
		mu       sync.RWMutex
		handlers map[string][]*subscription
		history  map[string][][]byte
	}
)

var _ transport.Transport = (*Transport)(nil)

func New() *Transport {
	return &Transport{
		handlers: make(map[string][]*subscription),
		history:  make(map[string][][]byte),
	}
}

func (t *Transport) Start(ctx context.Context) error {
	return nil
}

func (t *Transport) Stop(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers = make(map[string][]*subscription)
	return nil
}

func (t *Transport) Send(ctx context.Context, topic string, payload []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data := append([]byte(nil), payload...)
	meta := transport.Metadata{
		Topic:      topic,
		DeliveryID: transport.DeliveryID(data),
		ReceivedAt: time.Now().UTC(),
	}

	t.mu.Lock()
	t.history[topic] = append(t.history[topic], data)
	subs := append([]*subscription(nil), t.handlers[topic]...)
	t.mu.Unlock()

	for _, sub := range subs {
		sub.handler(data, meta)
	}
	return meta.DeliveryID, nil
}

func (t *Transport) Subscribe(ctx context.Context, topic string, handler transport.Handler) (transport.Unsubscribe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &subscription{handler: handler}
	t.mu.Lock()
	t.handlers[topic] = append(t.handlers[topic], sub)
	t.mu.Unlock()

	return func(ctx context.Context) error {
		t.mu.Lock()
		defer t.mu.Unlock()
		subs := t.handlers[topic]
		for i, s := range subs {
			if s == sub {
				t.handlers[topic] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		return nil
	}, nil
}

// History returns every payload sent on topic, in send order.
func (t *Transport) History(topic string) [][]byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([][]byte(nil), t.history[topic]...)
}

// Subscribers returns how many handlers are attached to topic.
func (t *Transport) Subscribers(topic string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.handlers[topic])
}
