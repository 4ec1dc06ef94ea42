// Package ratelimit implements a Redis token bucket used to throttle
// the public click-tracking endpoint. Without Redis the limiter is a
// pass-through: click tracking keeps working, just unthrottled.
package ratelimit

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/flasti/ledger/internal/config"
)

// tokenBucketScript refills at rate tokens/second up to burst and takes
// one token per call, atomically.
var tokenBucketScript = goredis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local bucket = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(bucket[1])
local ts = tonumber(bucket[2])
if tokens == nil then
  tokens = burst
  ts = now
end

tokens = math.min(burst, tokens + (now - ts) * rate)
local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call("HSET", key, "tokens", tokens, "ts", now)
redis.call("EXPIRE", key, math.ceil(burst / rate) + 60)
return allowed
`)

type Params struct {
	fx.In

	Log   *zap.Logger
	Guard *config.GuardConfigHolder
	Redis *goredis.Client `optional:"true"`
}

type Limiter struct {
	log   *zap.Logger
	guard *config.GuardConfigHolder
	redis *goredis.Client
}

func New(p Params) *Limiter {
	return &Limiter{
		log:   p.Log.Named("ratelimit"),
		guard: p.Guard,
		redis: p.Redis,
	}
}

// Allow reports whether one more request under key may proceed. Redis
// errors fail open: a broken limiter must not take down click tracking.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	if l.redis == nil {
		return true
	}
	cfg := l.guard.Get()
	allowed, err := tokenBucketScript.Run(ctx, l.redis,
		[]string{"ratelimit:" + key},
		cfg.TrackClickRate,
		cfg.TrackClickBurst,
		float64(time.Now().UnixMilli())/1000,
	).Int()
	if err != nil {
		l.log.Warn("rate limit check failed, allowing", zap.Error(err))
		return true
	}
	return allowed == 1
}

var Module = fx.Module("ratelimit",
	fx.Provide(New),
)
