package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sparks/internal/clock"
	"github.com/smallbiznis/sparks/internal/eventstream"
	obslogger "github.com/smallbiznis/sparks/internal/observability/logger"
	"github.com/smallbiznis/sparks/internal/observability/metrics"
	"github.com/smallbiznis/sparks/internal/payload"
	"github.com/smallbiznis/sparks/internal/rawstore"
	roomdomain "github.com/smallbiznis/sparks/internal/room/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Stream  eventstream.Stream
	Raw     rawstore.Store
	Rooms   roomdomain.Repository
	Config  Config
	Metrics *metrics.Metrics `optional:"true"`
}

// Worker turns stream entries into rooms and messages.
type Worker struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	stream   eventstream.Stream
	raw      rawstore.Store
	rooms    roomdomain.Repository
	cfg      Config
	metrics  *metrics.Metrics
	pipeline *metrics.PipelineMetrics
}

func NewWorker(p Params) *Worker {
	return &Worker{
		db:       p.DB,
		log:      p.Log.Named("worker"),
		genID:    p.GenID,
		clock:    p.Clock,
		stream:   p.Stream,
		raw:      p.Raw,
		rooms:    p.Rooms,
		cfg:      p.Config.withDefaults(),
		metrics:  p.Metrics,
		pipeline: metrics.Pipeline(),
	}
}

// Start makes sure the consumer group exists.
func (w *Worker) Start(ctx context.Context) error {
	return w.stream.EnsureGroup(ctx, w.cfg.Group)
}

// RunForever polls until ctx is done. Reads block for at most cfg.Block so
// shutdown is noticed between cycles.
func (w *Worker) RunForever(ctx context.Context) {
	w.log.Info("worker started",
		zap.String("stream", w.cfg.Stream),
		zap.String("group", w.cfg.Group),
		zap.String("consumer", w.cfg.Consumer),
		zap.Int("concurrency", w.cfg.Concurrency),
	)
	for {
		if ctx.Err() != nil {
			w.log.Info("worker stopped")
			return
		}
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.log.Warn("worker cycle failed", zap.Error(err))
			w.sleep(ctx, w.cfg.ErrorBackoff)
		}
	}
}

// RunOnce runs one poll cycle: reclaim stale entries, otherwise read new
// ones, then process the batch.
func (w *Worker) RunOnce(ctx context.Context) (CycleResult, error) {
	result := CycleResult{Entries: map[string]State{}}

	claimed, err := w.stream.Claim(ctx, w.cfg.Group, w.cfg.Consumer, w.cfg.ClaimMinIdle, w.cfg.BatchSize)
	if err != nil {
		return result, err
	}
	result.Claimed = len(claimed)

	batch := claimed
	if len(batch) == 0 {
		batch, err = w.stream.ReadGroup(ctx, w.cfg.Group, w.cfg.Consumer, w.cfg.BatchSize, w.cfg.Block)
		if err != nil {
			return result, err
		}
		result.Read = len(batch)
	} else {
		w.log.Info("reclaimed idle entries", zap.Int("count", len(batch)))
	}

	if len(batch) > 0 {
		result.Entries = w.processBatch(ctx, batch)
	}

	if pending, err := w.stream.PendingCount(ctx, w.cfg.Group); err == nil {
		result.Pending = pending
		w.pipeline.SetStreamPending(w.cfg.Stream, w.cfg.Group, pending)
	}
	return result, nil
}

// processBatch runs entries with bounded parallelism. Each entry is acked by
// its own goroutine right after its own processing finishes.
func (w *Worker) processBatch(ctx context.Context, batch []eventstream.Entry) map[string]State {
	var (
		mu     sync.Mutex
		states = make(map[string]State, len(batch))
	)
	for _, e := range batch {
		states[e.ID] = StateBatchReceived
	}

	var g errgroup.Group
	g.SetLimit(w.cfg.Concurrency)
	for _, entry := range batch {
		g.Go(func() error {
			mu.Lock()
			states[entry.ID] = StateProcessing
			mu.Unlock()

			final := w.handle(ctx, entry)

			mu.Lock()
			states[entry.ID] = final
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return states
}

// handle processes one entry on a context detached from shutdown, so work
// already started is finished or abandoned whole.
func (w *Worker) handle(parent context.Context, entry eventstream.Entry) State {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), w.cfg.EntryTimeout)
	defer cancel()

	log := obslogger.WithEntry(w.log, entry.ID, entry.RoomKey)
	started := time.Now()

	outcome, err := w.ProcessEntry(ctx, entry)
	if err != nil && entry.Deliveries >= int64(w.cfg.MaxDeliveries) {
		log.Error("entry failed on every delivery, dropped as poison",
			zap.Int64("deliveries", entry.Deliveries),
			zap.String("raw_object_key", entry.RawObjectKey),
			zap.Error(err),
		)
		outcome, err = metrics.EntryOutcomePoison, nil
	}
	w.pipeline.ObserveWorkerEntry(outcome, time.Since(started))
	if w.metrics != nil {
		w.metrics.RecordMessageStored(ctx, entry.Provider, outcome)
	}

	if err != nil {
		log.Warn("entry abandoned, left pending for redelivery",
			zap.String("outcome", outcome),
			zap.Int64("deliveries", entry.Deliveries),
			zap.Error(err),
		)
		return StateAbandoned
	}

	switch outcome {
	case metrics.EntryOutcomeDuplicate:
		log.Info("duplicate message skipped")
	case metrics.EntryOutcomeMalformed:
		log.Warn("malformed stream entry dropped")
	}

	if err := w.stream.Ack(ctx, w.cfg.Group, entry.ID); err != nil {
		log.Warn("ack failed, entry will be redelivered", zap.Error(err))
		return StateAbandoned
	}
	return StateAcked
}

// ProcessEntry writes the room and message for entry in one transaction. A
// nil error means the entry may be acked.
func (w *Worker) ProcessEntry(ctx context.Context, entry eventstream.Entry) (string, error) {
	if entry.Err != nil {
		return metrics.EntryOutcomeMalformed, nil
	}

	body, p := w.loadPayload(ctx, entry)

	now := w.clock.Now().UTC()
	receivedAt := entry.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = now
	}

	channel, _ := payload.Channel.Extract(p)
	room := &roomdomain.Room{
		ID:             w.genID.Generate(),
		RoomKey:        entry.RoomKey,
		Channel:        channel,
		RawMeta:        datatypes.JSON(payload.Meta(p)),
		CreatedAt:      now,
		LastActivityAt: receivedAt,
	}

	createdAt, ok := payload.Timestamp(p)
	if !ok {
		createdAt = receivedAt
	}
	senderType, _ := payload.SenderType.Extract(p)
	msg := &roomdomain.Message{
		ID:            w.genID.Generate(),
		ExternalMsgID: optional(payload.MessageID, p),
		SenderType:    roomdomain.ParseSenderType(senderType),
		SenderID:      optional(payload.SenderID, p),
		Phone:         optional(payload.Phone, p),
		Content:       payload.Content(p),
		RawPayload:    datatypes.JSON(body),
		CreatedAt:     createdAt,
		IngestedAt:    now,
	}

	inserted := false
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stored, err := w.rooms.UpsertRoom(ctx, tx, room, receivedAt)
		if err != nil {
			return err
		}
		if stored == nil {
			return errors.New("room vanished after upsert")
		}
		msg.RoomID = stored.ID
		inserted, err = w.rooms.InsertMessage(ctx, tx, msg)
		return err
	})
	if err != nil {
		return metrics.EntryOutcomeFailed, err
	}
	if !inserted {
		return metrics.EntryOutcomeDuplicate, nil
	}
	return metrics.EntryOutcomeStored, nil
}

// loadPayload fetches the raw body. When it is missing or unreadable the
// entry is still processed with a synthetic payload built from the stream
// fields.
func (w *Worker) loadPayload(ctx context.Context, entry eventstream.Entry) ([]byte, payload.Payload) {
	body, err := w.raw.Get(ctx, entry.RawObjectKey)
	if err == nil {
		p, decodeErr := payload.Decode(body)
		if decodeErr == nil {
			return body, p
		}
		err = decodeErr
	}

	reason := "unavailable"
	switch {
	case errors.Is(err, rawstore.ErrNotFound):
		reason = "not_found"
	case errors.Is(err, payload.ErrNotObject):
		reason = "invalid_json"
	}
	w.pipeline.IncRawFallback(reason)
	obslogger.WithEntry(w.log, entry.ID, entry.RoomKey).Warn("raw payload unavailable, using synthetic payload",
		zap.String("raw_object_key", entry.RawObjectKey),
		zap.String("reason", reason),
		zap.Error(err),
	)

	synthetic := payload.Synthetic(entry.Provider, entry.RoomKey)
	b, _ := json.Marshal(synthetic)
	return b, synthetic
}

func optional(f payload.Field, p payload.Payload) *string {
	v, ok := f.Extract(p)
	if !ok {
		return nil
	}
	return &v
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
