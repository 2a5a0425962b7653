// Package ingest accepts provider webhooks: it keeps a raw copy of the body
// and queues a stream entry the worker will normalize.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/sparks/internal/clock"
	"github.com/smallbiznis/sparks/internal/config"
	"github.com/smallbiznis/sparks/internal/eventstream"
	obslogger "github.com/smallbiznis/sparks/internal/observability/logger"
	"github.com/smallbiznis/sparks/internal/observability/metrics"
	"github.com/smallbiznis/sparks/internal/payload"
	"github.com/smallbiznis/sparks/internal/ratelimit"
	"github.com/smallbiznis/sparks/internal/rawstore"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	placeholderRoomPrefix = "room_unknown_"
	defaultRawPutTimeout  = 3 * time.Second
)

var (
	ErrInvalidJSON       = errors.New("invalid_json")
	ErrStreamUnavailable = errors.New("stream_unavailable")
)

// RateLimitedError is returned when the channel's webhook budget is spent.
type RateLimitedError struct {
	Channel    string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate_limited: channel %s", e.Channel)
}

type ChannelLimiter interface {
	AllowChannel(ctx context.Context, channel string) (*ratelimit.RateLimitResult, error)
}

type Params struct {
	fx.In

	Log     *zap.Logger
	Config  config.Config
	Clock   clock.Clock
	Stream  eventstream.Stream
	Raw     rawstore.Store
	Limiter ChannelLimiter   `optional:"true"`
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	log           *zap.Logger
	clock         clock.Clock
	stream        eventstream.Stream
	raw           rawstore.Store
	limiter       ChannelLimiter
	rawPutTimeout time.Duration
	metrics       *metrics.Metrics
	pipeline      *metrics.PipelineMetrics

	mu           sync.Mutex
	lastReceived time.Time
}

// Result is what the caller learns about a queued event.
type Result struct {
	RoomKey      string
	Channel      string
	EntryID      string
	RawObjectKey string
	RawStored    bool
}

func New(p Params) *Service {
	timeout := p.Config.Webhook.RawPutTimeout
	if timeout <= 0 {
		timeout = defaultRawPutTimeout
	}
	return &Service{
		log:           p.Log.Named("ingest.service"),
		clock:         p.Clock,
		stream:        p.Stream,
		raw:           p.Raw,
		limiter:       p.Limiter,
		rawPutTimeout: timeout,
		metrics:       p.Metrics,
		pipeline:      metrics.Pipeline(),
	}
}

// Ingest validates body, stores the raw copy and appends the stream entry.
// A failed raw write is logged and counted; only a failed append is returned,
// because the stream entry is the one durable record of the event.
func (s *Service) Ingest(ctx context.Context, body []byte) (Result, error) {
	p, err := payload.Decode(body)
	if err != nil {
		return Result{}, ErrInvalidJSON
	}

	channel, _ := payload.Channel.Extract(p)
	roomKey, ok := payload.RoomKey.Extract(p)
	if !ok {
		roomKey = PlaceholderRoomKey()
	}
	log := obslogger.WithContext(ctx, s.log).With(
		zap.String("channel", channel),
		zap.String("room_key", roomKey),
	)

	if err := s.allow(ctx, log, channel); err != nil {
		return Result{}, err
	}

	receivedAt := s.nextReceivedAt()
	res := Result{
		RoomKey:      roomKey,
		Channel:      channel,
		RawObjectKey: rawstore.ObjectKey(channel, roomKey, receivedAt),
	}

	putCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.rawPutTimeout)
	err = s.raw.Put(putCtx, res.RawObjectKey, body)
	cancel()
	if err != nil {
		log.Error("raw payload write failed", zap.String("raw_object_key", res.RawObjectKey), zap.Error(err))
		s.pipeline.IncRawStoreFailure("put")
		if s.metrics != nil {
			s.metrics.RecordRawStoreFailure(ctx, "put")
		}
	} else {
		res.RawStored = true
	}

	id, err := s.stream.Append(ctx, eventstream.Entry{
		Provider:     channel,
		RoomKey:      roomKey,
		RawObjectKey: res.RawObjectKey,
		ReceivedAt:   receivedAt,
	})
	if err != nil {
		log.Error("stream append failed", zap.Error(err))
		return res, fmt.Errorf("%w: %v", ErrStreamUnavailable, err)
	}
	res.EntryID = id

	s.pipeline.IncGatewayEvent(channel)
	if s.metrics != nil {
		s.metrics.RecordWebhookIngest(ctx, channel)
	}
	log.Debug("webhook queued", zap.String("entry_id", id), zap.Bool("raw_stored", res.RawStored))
	return res, nil
}

// nextReceivedAt never repeats within the process, so two events for one room
// never share a raw object key.
func (s *Service) nextReceivedAt() time.Time {
	now := s.clock.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !now.After(s.lastReceived) {
		now = s.lastReceived.Add(time.Nanosecond)
	}
	s.lastReceived = now
	return now
}

// allow fails open when the limiter itself is unavailable.
func (s *Service) allow(ctx context.Context, log *zap.Logger, channel string) error {
	if s.limiter == nil {
		return nil
	}
	res, err := s.limiter.AllowChannel(ctx, channel)
	if err != nil {
		log.Warn("webhook rate limiter unavailable", zap.Error(err))
		return nil
	}
	if res != nil && !res.Allowed {
		return &RateLimitedError{Channel: channel, RetryAfter: res.RetryAfter}
	}
	return nil
}

// PlaceholderRoomKey names a room for events that carry no room id.
func PlaceholderRoomKey() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return placeholderRoomPrefix + id[:8]
}
