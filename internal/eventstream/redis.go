package eventstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/sparks/internal/config"
	"github.com/smallbiznis/sparks/internal/observability/metrics"
)

// RedisStream is a Stream backed by a single Redis stream key.
type RedisStream struct {
	client  *redis.Client
	key     string
	maxLen  int64
	metrics *metrics.PipelineMetrics
}

func NewRedisStream(client *redis.Client, cfg config.Config) *RedisStream {
	return &RedisStream{
		client:  client,
		key:     cfg.Stream.Key,
		maxLen:  cfg.Stream.MaxLen,
		metrics: metrics.Pipeline(),
	}
}

func (s *RedisStream) Key() string {
	return s.key
}

func (s *RedisStream) Append(ctx context.Context, entry Entry) (string, error) {
	args := &redis.XAddArgs{
		Stream: s.key,
		Values: entry.values(),
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	id, err := s.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", s.key, err)
	}
	s.metrics.IncStreamAppended(s.key)
	return id, nil
}

// EnsureGroup creates group at the end of the stream, creating the stream
// when missing. An existing group is left untouched.
func (s *RedisStream) EnsureGroup(ctx context.Context, group string) error {
	err := s.client.XGroupCreateMkStream(ctx, s.key, group, "$").Err()
	if err != nil && !isBusyGroup(err) {
		return fmt.Errorf("xgroup create %s/%s: %w", s.key, group, err)
	}
	return nil
}

// ReadGroup returns up to count new entries for consumer, waiting at most
// block. A timeout returns an empty slice.
func (s *RedisStream) ReadGroup(ctx context.Context, group, consumer string, count int, block time.Duration) ([]Entry, error) {
	if block <= 0 {
		// go-redis treats a zero block as "wait forever".
		block = -1
	}
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{s.key, ">"},
		Count:    int64(count),
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup %s/%s: %w", s.key, group, err)
	}

	var entries []Entry
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			entry := decodeEntry(msg.ID, msg.Values)
			entry.Deliveries = 1
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (s *RedisStream) Ack(ctx context.Context, group, id string) error {
	if err := s.client.XAck(ctx, s.key, group, id).Err(); err != nil {
		return fmt.Errorf("xack %s/%s %s: %w", s.key, group, id, err)
	}
	s.metrics.IncStreamAcked(s.key, group)
	return nil
}

func (s *RedisStream) PendingCount(ctx context.Context, group string) (int64, error) {
	pending, err := s.client.XPending(ctx, s.key, group).Result()
	if err != nil {
		return 0, fmt.Errorf("xpending %s/%s: %w", s.key, group, err)
	}
	return pending.Count, nil
}

// Claim moves entries idle for at least minIdle to consumer. This is how
// entries abandoned by a crashed consumer are delivered again.
func (s *RedisStream) Claim(ctx context.Context, group, consumer string, minIdle time.Duration, count int) ([]Entry, error) {
	msgs, _, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   s.key,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    int64(count),
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xautoclaim %s/%s: %w", s.key, group, err)
	}

	if len(msgs) == 0 {
		return nil, nil
	}

	// Counts are advisory: without them the entries are still worth processing.
	deliveries, _ := s.deliveryCounts(ctx, group, consumer, msgs[0].ID, msgs[len(msgs)-1].ID, len(msgs))
	entries := make([]Entry, 0, len(msgs))
	for _, msg := range msgs {
		entry := decodeEntry(msg.ID, msg.Values)
		entry.Deliveries = deliveries[msg.ID]
		entries = append(entries, entry)
	}
	s.metrics.AddStreamClaimed(s.key, group, len(entries))
	return entries, nil
}

// deliveryCounts reads the delivery counter of consumer's pending entries
// between start and end.
func (s *RedisStream) deliveryCounts(ctx context.Context, group, consumer, start, end string, count int) (map[string]int64, error) {
	pending, err := s.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   s.key,
		Group:    group,
		Start:    start,
		End:      end,
		Count:    int64(count),
		Consumer: consumer,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xpending %s/%s: %w", s.key, group, err)
	}
	out := make(map[string]int64, len(pending))
	for _, p := range pending {
		out[p.ID] = p.RetryCount
	}
	return out, nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
