package config

import (
	"fmt"
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	TransportRedis     = "redis"
	TransportWebsocket = "websocket"
)

type Config struct {
	LogLevel    string `env:"MINICHAT_LOG_LEVEL,default=info" validate:"oneof=debug info warn error"`
	DataDir     string `env:"MINICHAT_DATA_DIR,default=.minichat" validate:"required"`
	CryptoSuite string `env:"MINICHAT_CRYPTO_SUITE,default=curve25519" validate:"oneof=curve25519 p256"`
	Transport   string `env:"MINICHAT_TRANSPORT,default=websocket" validate:"oneof=redis websocket"`

	RedisAddr     string `env:"MINICHAT_REDIS_ADDR,default=localhost:6379" validate:"required_if=Transport redis"`
	RedisPassword string `env:"MINICHAT_REDIS_PASSWORD"`
	RedisDB       int    `env:"MINICHAT_REDIS_DB,default=0" validate:"gte=0"`

	RelayAddr   string `env:"MINICHAT_RELAY_ADDR,default=ws://localhost:9090/ws" validate:"required_if=Transport websocket"`
	RelayListen string `env:"MINICHAT_RELAY_LISTEN,default=localhost:9090" validate:"required"`

	MongoURI      string `env:"MINICHAT_MONGO_URI,default=mongodb://localhost:27017" validate:"required"`
	MongoDatabase string `env:"MINICHAT_MONGO_DATABASE,default=mini_chat" validate:"required"`

	BacklogSize int           `env:"MINICHAT_BACKLOG_SIZE,default=256" validate:"gte=0"`
	BacklogTTL  time.Duration `env:"MINICHAT_BACKLOG_TTL,default=24h" validate:"gte=0"`

	PendingRevokeLimit int           `env:"MINICHAT_PENDING_REVOKE_LIMIT,default=1024" validate:"gte=0"`
	PendingRevokeTTL   time.Duration `env:"MINICHAT_PENDING_REVOKE_TTL,default=24h" validate:"gte=0"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	es, err := env.EnvironToEnvSet(os.Environ())
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	return Parse(es)
}

func Parse(es env.EnvSet) (*Config, error) {
	var cfg Config
	if err := env.Unmarshal(es, &cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
