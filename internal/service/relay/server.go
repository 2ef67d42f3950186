// Package relay is an untrusted pub/sub hub for conversation envelopes. It
// never inspects payloads: it routes frames by topic and optionally keeps a
// backlog for late subscribers.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	wsTransport "mini_chat/internal/transport/websocket"
	"mini_chat/internal/utils/log"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

type (
	peer struct {
		conn    *websocket.Conn
		writeMu sync.Mutex
		topics  map[string]struct{}
	}

	HttpServer struct {
		addr     string
		backlog  Backlog
		validate *validator.Validate
		upgrader websocket.Upgrader

		mu     sync.RWMutex
		topics map[string]map[*peer]struct{}
	}

	Option func(*HttpServer)
)

func WithBacklog(b Backlog) Option {
	return func(s *HttpServer) {
		s.backlog = b
	}
}

func NewHttpServer(addr string, opts ...Option) *HttpServer {
	s := &HttpServer{
		addr:     addr,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
		topics: make(map[string]map[*peer]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HttpServer) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/ws", s.HandleWS()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	return r
}

// Run serves until ctx is cancelled.
func (s *HttpServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("relay listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *HttpServer) HandleWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("upgrade failed", zap.Error(err))
			return
		}

		p := &peer{
			conn:   conn,
			topics: make(map[string]struct{}),
		}
		go s.processWSMessage(r.Context(), p)
	}
}

func (s *HttpServer) processWSMessage(ctx context.Context, p *peer) {
	defer s.disconnect(p)
	// The request context ends when the handler returns; frames outlive it.
	ctx = context.WithoutCancel(ctx)

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			log.Debug("relay web socket closed", zap.Error(err))
			return
		}

		var f wsTransport.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Error("Unmarshal frame failed", zap.Error(err))
			continue
		}
		if err := s.validate.Struct(&f); err != nil {
			s.write(p, &wsTransport.Frame{Op: wsTransport.OpError, Topic: f.Topic, Error: err.Error()})
			continue
		}

		switch f.Op {
		case wsTransport.OpSubscribe:
			s.subscribe(ctx, p, f.Topic)
		case wsTransport.OpUnsubscribe:
			s.unsubscribe(p, f.Topic)
		case wsTransport.OpPublish:
			s.publish(ctx, &f)
		default:
			s.write(p, &wsTransport.Frame{Op: wsTransport.OpError, Topic: f.Topic, Error: "unsupported op " + f.Op})
		}
	}
}

func (s *HttpServer) subscribe(ctx context.Context, p *peer, topic string) {
	s.mu.Lock()
	subs, ok := s.topics[topic]
	if !ok {
		subs = make(map[*peer]struct{})
		s.topics[topic] = subs
	}
	subs[p] = struct{}{}
	p.topics[topic] = struct{}{}
	s.mu.Unlock()

	// Registration comes first so nothing published during the replay is
	// lost. A payload may then arrive twice; receivers dedupe.
	if s.backlog != nil {
		payloads, err := s.backlog.Replay(ctx, topic)
		if err != nil {
			log.Error("backlog replay failed", zap.String("topic", topic), zap.Error(err))
		}
		for _, payload := range payloads {
			s.write(p, &wsTransport.Frame{Op: wsTransport.OpMessage, Topic: topic, Payload: payload})
		}
	}

	s.write(p, &wsTransport.Frame{Op: wsTransport.OpSubscribed, Topic: topic})
}

func (s *HttpServer) unsubscribe(p *peer, topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(p, topic)
}

func (s *HttpServer) removeLocked(p *peer, topic string) {
	delete(p.topics, topic)
	subs, ok := s.topics[topic]
	if !ok {
		return
	}
	delete(subs, p)
	if len(subs) == 0 {
		delete(s.topics, topic)
	}
}

func (s *HttpServer) publish(ctx context.Context, f *wsTransport.Frame) {
	if s.backlog != nil {
		if err := s.backlog.Append(ctx, f.Topic, f.Payload); err != nil {
			log.Error("backlog append failed", zap.String("topic", f.Topic), zap.Error(err))
		}
	}

	s.mu.RLock()
	targets := make([]*peer, 0, len(s.topics[f.Topic]))
	for p := range s.topics[f.Topic] {
		targets = append(targets, p)
	}
	s.mu.RUnlock()

	out := &wsTransport.Frame{Op: wsTransport.OpMessage, Topic: f.Topic, Payload: f.Payload, ID: f.ID}
	for _, p := range targets {
		s.write(p, out)
	}
}

func (s *HttpServer) write(p *peer, f *wsTransport.Frame) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := p.conn.WriteJSON(f); err != nil {
		log.Debug("write frame failed", zap.String("op", f.Op), zap.Error(err))
	}
}

func (s *HttpServer) disconnect(p *peer) {
	s.mu.Lock()
	for topic := range p.topics {
		s.removeLocked(p, topic)
	}
	s.mu.Unlock()
	p.conn.Close()
}

// Subscribers reports how many connections listen on topic.
func (s *HttpServer) Subscribers(topic string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.topics[topic])
}
