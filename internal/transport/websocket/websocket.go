// Package websocket is a client of the relay server. One connection carries
// every topic; the relay fans publishes out to subscribed connections.
//
// Handlers run on the connection's read loop. A handler must not call
// Subscribe on the same Transport.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	errs "mini_chat/internal/errors"
	"mini_chat/internal/transport"
	"mini_chat/internal/utils/log"

	gorilla "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type (
	entry struct {
		handler transport.Handler
	}

	Transport struct {
		url    string
		header http.Header
		dialer *gorilla.Dialer

		mu       sync.Mutex
		conn     *gorilla.Conn
		done     chan struct{}
		handlers map[string][]*entry
		acks     map[string][]chan error

		writeMu sync.Mutex
	}

	Option func(*Transport)
)

var _ transport.Transport = (*Transport)(nil)

func WithDialer(d *gorilla.Dialer) Option {
	return func(t *Transport) {
		t.dialer = d
	}
}

func WithHeader(h http.Header) Option {
	return func(t *Transport) {
		t.header = h
	}
}

// New returns a transport for the relay at url, e.g. "ws://localhost:9090/ws".
func New(url string, opts ...Option) *Transport {
	t := &Transport{
		url:      url,
		dialer:   gorilla.DefaultDialer,
		handlers: make(map[string][]*entry),
		acks:     make(map[string][]chan error),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return nil
	}

	conn, _, err := t.dialer.DialContext(ctx, t.url, t.header)
	if err != nil {
		return fmt.Errorf("dial relay %s: %w", t.url, err)
	}
	t.conn = conn
	t.done = make(chan struct{})
	go t.readLoop(conn, t.done)
	return nil
}

func (t *Transport) Stop(ctx context.Context) error {
	t.mu.Lock()
	conn, done := t.conn, t.done
	t.conn = nil
	t.handlers = make(map[string][]*entry)
	t.mu.Unlock()
	if conn == nil {
		return nil
	}

	t.writeMu.Lock()
	_ = conn.WriteControl(gorilla.CloseMessage,
		gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, ""), time.Now().Add(time.Second))
	t.writeMu.Unlock()
	err := conn.Close()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

func (t *Transport) Send(ctx context.Context, topic string, payload []byte) (string, error) {
	id := transport.DeliveryID(payload)
	if err := t.write(ctx, &Frame{Op: OpPublish, Topic: topic, Payload: payload, ID: id}); err != nil {
		return "", err
	}
	return id, nil
}

func (t *Transport) Subscribe(ctx context.Context, topic string, handler transport.Handler) (transport.Unsubscribe, error) {
	e := &entry{handler: handler}

	t.mu.Lock()
	if t.conn == nil {
		t.mu.Unlock()
		return nil, errs.ErrTransportNotStarted
	}
	first := len(t.handlers[topic]) == 0
	t.handlers[topic] = append(t.handlers[topic], e)
	var ack chan error
	if first {
		ack = make(chan error, 1)
		t.acks[topic] = append(t.acks[topic], ack)
	}
	done := t.done
	t.mu.Unlock()

	unsubscribe := func(ctx context.Context) error {
		return t.remove(ctx, topic, e)
	}

	if !first {
		return unsubscribe, nil
	}

	if err := t.write(ctx, &Frame{Op: OpSubscribe, Topic: topic}); err != nil {
		// No frame went out, so no ack will arrive for this waiter.
		t.dropAck(topic, ack)
		t.remove(ctx, topic, e)
		return nil, err
	}

	select {
	case err := <-ack:
		if err != nil {
			t.remove(ctx, topic, e)
			return nil, err
		}
	case <-done:
		return nil, errs.ErrTransportNotStarted
	case <-ctx.Done():
		t.remove(ctx, topic, e)
		return nil, ctx.Err()
	}
	return unsubscribe, nil
}

func (t *Transport) remove(ctx context.Context, topic string, e *entry) error {
	t.mu.Lock()
	entries := t.handlers[topic]
	for i, cur := range entries {
		if cur == e {
			entries = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	last := len(entries) == 0
	if last {
		delete(t.handlers, topic)
	} else {
		t.handlers[topic] = entries
	}
	connected := t.conn != nil
	t.mu.Unlock()

	if !last || !connected {
		return nil
	}
	return t.write(ctx, &Frame{Op: OpUnsubscribe, Topic: topic})
}

func (t *Transport) write(ctx context.Context, f *Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return errs.ErrTransportNotStarted
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
		defer conn.SetWriteDeadline(time.Time{})
	}
	if err := conn.WriteJSON(f); err != nil {
		return fmt.Errorf("write %s frame: %w", f.Op, err)
	}
	return nil
}

func (t *Transport) readLoop(conn *gorilla.Conn, done chan struct{}) {
	defer close(done)
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			var closeErr *gorilla.CloseError
			if errors.As(err, &closeErr) {
				log.Debug("relay connection closed", zap.Int("code", closeErr.Code))
			} else {
				log.Debug("relay read failed", zap.Error(err))
			}
			return
		}

		switch f.Op {
		case OpMessage:
			t.dispatch(&f)
		case OpSubscribed:
			t.ack(f.Topic, nil)
		case OpError:
			log.Warn("relay error", zap.String("topic", f.Topic), zap.String("error", f.Error))
			t.ack(f.Topic, fmt.Errorf("relay: %s", f.Error))
		default:
			log.Debug("unexpected frame from relay", zap.String("op", f.Op))
		}
	}
}

func (t *Transport) dispatch(f *Frame) {
	t.mu.Lock()
	entries := append([]*entry(nil), t.handlers[f.Topic]...)
	t.mu.Unlock()

	meta := transport.Metadata{
		Topic:      f.Topic,
		DeliveryID: f.ID,
		ReceivedAt: time.Now().UTC(),
	}
	if meta.DeliveryID == "" {
		meta.DeliveryID = transport.DeliveryID(f.Payload)
	}
	for _, e := range entries {
		e.handler(f.Payload, meta)
	}
}

func (t *Transport) dropAck(topic string, ack chan error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	waiting := t.acks[topic]
	for i, cur := range waiting {
		if cur == ack {
			waiting = append(waiting[:i:i], waiting[i+1:]...)
			break
		}
	}
	if len(waiting) == 0 {
		delete(t.acks, topic)
		return
	}
	t.acks[topic] = waiting
}

func (t *Transport) ack(topic string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	waiting := t.acks[topic]
	if len(waiting) == 0 {
		return
	}
	waiting[0] <- err
	if len(waiting) == 1 {
		delete(t.acks, topic)
		return
	}
	t.acks[topic] = waiting[1:]
}
