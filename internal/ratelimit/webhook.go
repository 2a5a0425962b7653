package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/sparks/internal/config"
)

const keyWebhookChannel = "sparks:ratelimit:webhook:%s"

// WebhookLimiter throttles POST /webhook per channel. A nil or disabled
// limiter allows everything.
type WebhookLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewWebhookLimiter(cfg config.Config, client *redis.Client) *WebhookLimiter {
	limit := cfg.Webhook
	if limit.RateLimitPerSecond <= 0 || client == nil {
		return &WebhookLimiter{}
	}
	burst := limit.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}
	return &WebhookLimiter{
		bucket: NewTokenBucket(client),
		rate:   limit.RateLimitPerSecond,
		burst:  burst,
	}
}

func (l *WebhookLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *WebhookLimiter) AllowChannel(ctx context.Context, channel string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyWebhookChannel, strings.ToLower(strings.TrimSpace(channel)))
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}
