package ratelimit

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/tokengate/tokengate/internal/config"
	"go.uber.org/zap"
)

// CompletionLimiter throttles completion calls per account. When disabled or
// when Redis is unreachable it fails open: metering still protects balances,
// the limiter only smooths bursts.
type CompletionLimiter struct {
	log    *zap.Logger
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewCompletionLimiter(cfg config.Config, log *zap.Logger) *CompletionLimiter {
	l := &CompletionLimiter{
		log:   log.Named("ratelimit"),
		rate:  cfg.RateLimit.CompletionRate,
		burst: cfg.RateLimit.CompletionBurst,
	}

	if !cfg.RateLimit.Enabled || cfg.RateLimit.RedisAddr == "" {
		return l
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RateLimit.RedisAddr,
		Password: cfg.RateLimit.RedisPassword,
		DB:       cfg.RateLimit.RedisDB,
	})
	l.bucket = NewTokenBucket(client)
	return l
}

// Allow reports whether the account may issue a completion call now, and the
// wait before the next one when it may not.
func (l *CompletionLimiter) Allow(ctx context.Context, accountID snowflake.ID) (bool, time.Duration) {
	if l.bucket == nil {
		return true, 0
	}

	res, err := l.bucket.Allow(ctx, "ratelimit:completions:"+accountID.String(), l.rate, l.burst)
	if err != nil {
		l.log.Warn("rate limiter unavailable, failing open", zap.Error(err))
		return true, 0
	}
	return res.Allowed, res.RetryAfter
}
