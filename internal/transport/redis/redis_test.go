package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	errs "mini_chat/internal/errors"
	redisSvc "mini_chat/internal/service/redis"
	"mini_chat/internal/transport"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu       sync.Mutex
	payloads []string
}

func (c *collector) handle(p []byte, _ transport.Metadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, string(p))
}

func (c *collector) get() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.payloads...)
}

func newTransport(t *testing.T, opts ...Option) (*Transport, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(redisSvc.NewRedis(rdb), opts...), mr
}

func TestTransport_NotStarted(t *testing.T) {
	req := require.New(t)
	tr, _ := newTransport(t)
	ctx := context.Background()

	_, err := tr.Send(ctx, "topic", []byte("x"))
	req.ErrorIs(err, errs.ErrTransportNotStarted)

	_, err = tr.Subscribe(ctx, "topic", func([]byte, transport.Metadata) {})
	req.ErrorIs(err, errs.ErrTransportNotStarted)
}

func TestTransport_PublishSubscribe(t *testing.T) {
	req := require.New(t)
	tr, _ := newTransport(t)
	ctx := context.Background()
	req.NoError(tr.Start(ctx))
	defer tr.Stop(ctx)

	topic := transport.TopicForConversation("group-1")
	c := &collector{}
	unsub, err := tr.Subscribe(ctx, topic, c.handle)
	req.NoError(err)

	id, err := tr.Send(ctx, topic, []byte("hello"))
	req.NoError(err)
	req.Equal(transport.DeliveryID([]byte("hello")), id)

	req.Eventually(func() bool {
		return len(c.get()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	req.Equal([]string{"hello"}, c.get())

	req.NoError(unsub(ctx))
	_, err = tr.Send(ctx, topic, []byte("after"))
	req.NoError(err)
	time.Sleep(50 * time.Millisecond)
	req.Equal([]string{"hello"}, c.get())
}

func TestTransport_BacklogReplay(t *testing.T) {
	req := require.New(t)
	tr, mr := newTransport(t, WithBacklog(2, time.Hour))
	ctx := context.Background()
	req.NoError(tr.Start(ctx))
	defer tr.Stop(ctx)

	topic := transport.TopicForConversation("group-1")
	for _, p := range []string{"one", "two", "three"} {
		_, err := tr.Send(ctx, topic, []byte(p))
		req.NoError(err)
	}

	backlog, err := mr.List(backlogKey(topic))
	req.NoError(err)
	req.Equal([]string{"two", "three"}, backlog)

	c := &collector{}
	_, err = tr.Subscribe(ctx, topic, c.handle)
	req.NoError(err)
	req.Equal([]string{"two", "three"}, c.get())
}

func TestTransport_StartFailsWithoutServer(t *testing.T) {
	req := require.New(t)
	tr, mr := newTransport(t)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req.Error(tr.Start(ctx))
}
