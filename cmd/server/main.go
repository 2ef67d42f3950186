package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mini_chat/internal/config"
	"mini_chat/internal/service/redis"
	"mini_chat/internal/service/relay"
	"mini_chat/internal/utils/log"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := log.Init(cfg.LogLevel); err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []relay.Option
	if cfg.BacklogSize > 0 {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		redisService := redis.NewRedis(rdb)
		if err := redisService.Ping(ctx); err != nil {
			return fmt.Errorf("redis backlog at %s: %w", cfg.RedisAddr, err)
		}
		opts = append(opts, relay.WithBacklog(relay.NewRedisBacklog(redisService, cfg.BacklogSize, cfg.BacklogTTL)))
		log.Info("relay backlog enabled", zap.String("redis", cfg.RedisAddr), zap.Int("size", cfg.BacklogSize))
	}

	return relay.NewHttpServer(cfg.RelayListen, opts...).Run(ctx)
}
