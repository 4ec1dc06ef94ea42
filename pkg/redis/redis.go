// Package redis provides the shared Redis client. Redis is optional:
// when no address is configured the provider returns nil and every
// consumer degrades gracefully (no click rate limiting, outbox
// dispatch logs instead of publishing).
package redis

import (
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/flasti/ledger/internal/config"
)

func New(cfg config.Config, log *zap.Logger) *goredis.Client {
	if cfg.RedisAddr == "" {
		log.Info("redis not configured, running without it")
		return nil
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

var Module = fx.Module("redis",
	fx.Provide(New),
)
