package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mini_chat/internal/config"
	"mini_chat/internal/cryptographic/suite"
	errs "mini_chat/internal/errors"
	"mini_chat/internal/model"
	conversationRepo "mini_chat/internal/repository/conversation"
	identityRepo "mini_chat/internal/repository/identity"
	messageRepo "mini_chat/internal/repository/message"
	"mini_chat/internal/service/chat"
	redisSvc "mini_chat/internal/service/redis"
	"mini_chat/internal/transport"
	redisTransport "mini_chat/internal/transport/redis"
	wsTransport "mini_chat/internal/transport/websocket"
	"mini_chat/internal/utils/log"

	"github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var errNoIdentity = errors.New("no identity yet, run init first")

type (
	// session holds the stores and, once connected, the chat client of one
	// CLI invocation.
	session struct {
		cfg   *config.Config
		suite suite.Suite

		mongo         *mongo.Client
		identities    *identityRepo.Repo
		conversations *conversationRepo.Repo
		badger        *badger.DB
		messages      *messageRepo.Repo

		rdb       *redis.Client
		transport transport.Transport
		client    *chat.Client
	}
)

func openSession(ctx context.Context, cfg *config.Config) (*session, error) {
	s, err := suite.ByName(cfg.CryptoSuite)
	if err != nil {
		return nil, err
	}

	mongoDBClient, err := initMongo(ctx, cfg.MongoURI)
	if err != nil {
		return nil, fmt.Errorf("mongo: %w", err)
	}
	db := mongoDBClient.Database(cfg.MongoDatabase)

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, err
	}
	bdb, err := badger.Open(badger.DefaultOptions(filepath.Join(cfg.DataDir, "messages")).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		_ = mongoDBClient.Disconnect(ctx)
		return nil, fmt.Errorf("database opening failed: %w", err)
	}

	return &session{
		cfg:           cfg,
		suite:         s,
		mongo:         mongoDBClient,
		identities:    identityRepo.NewRepo(db),
		conversations: conversationRepo.NewRepo(db),
		badger:        bdb,
		messages:      messageRepo.NewRepo(bdb),
	}, nil
}

func initMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return client, client.Ping(ctx, nil)
}

func (s *session) identity(ctx context.Context) (*model.Identity, error) {
	identity, err := s.identities.Get(ctx)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errNoIdentity
	}
	return identity, err
}

// loadClient builds the chat client from persisted state. The transport is
// started only when connect is set.
func (s *session) loadClient(ctx context.Context, connect bool) (*chat.Client, error) {
	identity, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}

	s.transport = s.newTransport()
	client := chat.NewClient(s.transport, s.suite, identity,
		chat.WithPendingLimit(s.cfg.PendingRevokeLimit),
		chat.WithPendingTTL(s.cfg.PendingRevokeTTL),
	)

	convs, err := s.conversations.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, conv := range convs {
		if err := client.JoinConversation(conv); err != nil {
			log.Warn("skip stored conversation", zap.String("conversation", conv.ID), zap.Error(err))
		}
	}

	recs, err := s.messages.List()
	if err != nil {
		return nil, err
	}
	client.Restore(recs)

	if connect {
		if err := client.Start(ctx); err != nil {
			return nil, err
		}
	}
	s.client = client
	return client, nil
}

func (s *session) newTransport() transport.Transport {
	switch s.cfg.Transport {
	case config.TransportRedis:
		s.rdb = redis.NewClient(&redis.Options{
			Addr:     s.cfg.RedisAddr,
			Password: s.cfg.RedisPassword,
			DB:       s.cfg.RedisDB,
		})
		return redisTransport.New(redisSvc.NewRedis(s.rdb), redisTransport.WithBacklog(s.cfg.BacklogSize, s.cfg.BacklogTTL))
	default:
		return wsTransport.New(s.cfg.RelayAddr)
	}
}

// persist saves the current state of each message id.
func (s *session) persist(ids ...string) error {
	var recs []*model.MessageRecord
	for _, id := range ids {
		if rec, ok := s.client.Message(id); ok {
			recs = append(recs, rec)
		}
	}
	return s.messages.SaveAll(recs)
}

func (s *session) Close(ctx context.Context) {
	if s.client != nil {
		if err := s.client.Stop(ctx); err != nil {
			log.Warn("stop client failed", zap.Error(err))
		}
	}
	if s.rdb != nil {
		_ = s.rdb.Close()
	}
	log.Info("Closing BadgerDB...")
	_ = s.badger.Close()
	_ = s.mongo.Disconnect(ctx)
}
