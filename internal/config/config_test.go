package config

import (
	"testing"
	"time"

	"github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	req := require.New(t)
	cfg, err := Parse(env.EnvSet{})
	req.NoError(err)

	req.Equal("info", cfg.LogLevel)
	req.Equal("curve25519", cfg.CryptoSuite)
	req.Equal(TransportWebsocket, cfg.Transport)
	req.Equal("ws://localhost:9090/ws", cfg.RelayAddr)
	req.Equal(256, cfg.BacklogSize)
	req.Equal(24*time.Hour, cfg.BacklogTTL)
	req.Equal(1024, cfg.PendingRevokeLimit)
	req.Equal(24*time.Hour, cfg.PendingRevokeTTL)
}

func TestParse_Overrides(t *testing.T) {
	req := require.New(t)
	cfg, err := Parse(env.EnvSet{
		"MINICHAT_CRYPTO_SUITE":         "p256",
		"MINICHAT_TRANSPORT":            "redis",
		"MINICHAT_REDIS_ADDR":           "redis:6380",
		"MINICHAT_REDIS_DB":             "2",
		"MINICHAT_PENDING_REVOKE_TTL":   "90m",
		"MINICHAT_PENDING_REVOKE_LIMIT": "16",
	})
	req.NoError(err)

	req.Equal("p256", cfg.CryptoSuite)
	req.Equal(TransportRedis, cfg.Transport)
	req.Equal("redis:6380", cfg.RedisAddr)
	req.Equal(2, cfg.RedisDB)
	req.Equal(90*time.Minute, cfg.PendingRevokeTTL)
	req.Equal(16, cfg.PendingRevokeLimit)
}

func TestParse_Invalid(t *testing.T) {
	for name, es := range map[string]env.EnvSet{
		"unknown suite":     {"MINICHAT_CRYPTO_SUITE": "rsa"},
		"unknown transport": {"MINICHAT_TRANSPORT": "carrier-pigeon"},
		"bad level":         {"MINICHAT_LOG_LEVEL": "loud"},
		"negative backlog":  {"MINICHAT_BACKLOG_SIZE": "-1"},
		"bad duration":      {"MINICHAT_BACKLOG_TTL": "soon"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(es)
			require.Error(t, err)
		})
	}
}
