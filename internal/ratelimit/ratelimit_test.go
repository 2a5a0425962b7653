package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/sparks/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLockerSingleHolder(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	locker := NewLocker(client)

	token, ok, err := locker.TryLock(ctx, "sparks:lock:test", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, token)

	_, ok, err = locker.TryLock(ctx, "sparks:lock:test", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// A stale token must not release someone else's lock.
	require.NoError(t, locker.Release(ctx, "sparks:lock:test", "other"))
	assert.True(t, mr.Exists("sparks:lock:test"))

	require.NoError(t, locker.Release(ctx, "sparks:lock:test", token))
	assert.False(t, mr.Exists("sparks:lock:test"))

	_, ok, err = locker.TryLock(ctx, "sparks:lock:test", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockerExpires(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	locker := NewLocker(client)

	_, ok, err := locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok, err = locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockerValidation(t *testing.T) {
	var nilLocker *Locker
	_, _, err := nilLocker.TryLock(context.Background(), "k", time.Second)
	assert.ErrorIs(t, err, ErrLockNotConfigured)

	_, client := newTestClient(t)
	locker := NewLocker(client)
	_, _, err = locker.TryLock(context.Background(), "", time.Second)
	assert.ErrorIs(t, err, ErrLockKeyEmpty)
	_, _, err = locker.TryLock(context.Background(), "k", 0)
	assert.ErrorIs(t, err, ErrLockTTLInvalid)
}

func TestTokenBucketExhaustsBurst(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	bucket := NewTokenBucket(client)

	for i := 0; i < 3; i++ {
		res, err := bucket.Allow(ctx, "bucket", 0.001, 3)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, 3, res.Limit)
	}

	res, err := bucket.Allow(ctx, "bucket", 0.001, 3)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
}

func TestTokenBucketValidation(t *testing.T) {
	_, client := newTestClient(t)
	bucket := NewTokenBucket(client)

	_, err := bucket.Allow(context.Background(), "", 1, 1)
	assert.ErrorIs(t, err, ErrBucketKeyEmpty)
	_, err = bucket.Allow(context.Background(), "k", 0, 1)
	assert.ErrorIs(t, err, ErrBucketInvalidLimit)
}

func TestWebhookLimiterDisabled(t *testing.T) {
	limiter := NewWebhookLimiter(config.Config{}, nil)
	assert.False(t, limiter.Enabled())

	res, err := limiter.AllowChannel(context.Background(), "whatsapp")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestWebhookLimiterPerChannel(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	cfg := config.Config{Webhook: config.WebhookConfig{RateLimitPerSecond: 0.001, RateLimitBurst: 1}}
	limiter := NewWebhookLimiter(cfg, client)
	require.True(t, limiter.Enabled())

	res, err := limiter.AllowChannel(ctx, "whatsapp")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = limiter.AllowChannel(ctx, "WhatsApp ")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	res, err = limiter.AllowChannel(ctx, "instagram")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
