package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sparks/internal/clock"
	"github.com/smallbiznis/sparks/internal/config"
	funneldomain "github.com/smallbiznis/sparks/internal/funnel/domain"
	keyworddomain "github.com/smallbiznis/sparks/internal/keyword/domain"
	obslogger "github.com/smallbiznis/sparks/internal/observability/logger"
	"github.com/smallbiznis/sparks/internal/observability/metrics"
	roomdomain "github.com/smallbiznis/sparks/internal/room/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultBatchSize = 100

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Config   config.Config
	Rooms    roomdomain.Repository
	Repo     funneldomain.Repository
	Keywords keyworddomain.Service
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	rooms     roomdomain.Repository
	repo      funneldomain.Repository
	keywords  keyworddomain.Service
	loc       *time.Location
	batchSize int
	metrics   *metrics.Metrics
	pipeline  *metrics.PipelineMetrics
}

func New(p Params) (funneldomain.Service, error) {
	loc, err := time.LoadLocation(p.Config.Funnel.Timezone)
	if err != nil {
		return nil, fmt.Errorf("funnel timezone %q: %w", p.Config.Funnel.Timezone, err)
	}
	batch := p.Config.Funnel.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("funnel.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		rooms:     p.Rooms,
		repo:      p.Repo,
		keywords:  p.Keywords,
		loc:       loc,
		batchSize: batch,
		metrics:   p.Metrics,
		pipeline:  metrics.Pipeline(),
	}, nil
}

// Recompute classifies every room that has messages. Keyword sets are read
// once so the whole pass sees one snapshot. A failing room is logged and
// picked up again on the next pass.
func (s *Service) Recompute(ctx context.Context) (funneldomain.PassResult, error) {
	var result funneldomain.PassResult

	snapshot, err := s.keywords.Snapshot(ctx)
	if err != nil {
		return result, err
	}

	var afterID snowflake.ID
	for {
		rooms, err := s.rooms.ListRoomsAfter(ctx, s.db, afterID, s.batchSize)
		if err != nil {
			return result, fmt.Errorf("list rooms after %d: %w", afterID, err)
		}
		for i := range rooms {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			result.Rooms++
			switch outcome := s.classifyRoom(ctx, &rooms[i], snapshot); outcome {
			case metrics.RoomOutcomeClassified:
				result.Classified++
			case metrics.RoomOutcomeEmpty:
				result.Empty++
			default:
				result.Failed++
			}
		}
		if len(rooms) < s.batchSize {
			return result, nil
		}
		afterID = rooms[len(rooms)-1].ID
	}
}

func (s *Service) classifyRoom(ctx context.Context, room *roomdomain.Room, snapshot keyworddomain.Snapshot) string {
	log := obslogger.WithContext(ctx, s.log).With(
		zap.String("room_key", room.RoomKey),
		zap.String("room_id", room.ID.String()),
	)

	msgs, err := s.rooms.ListMessages(ctx, s.db, room.ID)
	if err != nil {
		log.Warn("load messages failed", zap.Error(err))
		s.pipeline.IncClassifierRoom(metrics.RoomOutcomeFailed)
		return metrics.RoomOutcomeFailed
	}
	if len(msgs) == 0 {
		s.pipeline.IncClassifierRoom(metrics.RoomOutcomeEmpty)
		return metrics.RoomOutcomeEmpty
	}

	rec, err := funneldomain.Classify(*room, msgs, snapshot, s.loc)
	if err != nil {
		log.Warn("classify room failed", zap.Error(err))
		s.pipeline.IncClassifierRoom(metrics.RoomOutcomeFailed)
		return metrics.RoomOutcomeFailed
	}

	now := s.clock.Now()
	rec.ID = s.genID.Generate()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if err := s.repo.Upsert(ctx, s.db, &rec); err != nil {
		log.Warn("upsert funnel record failed", zap.Error(err))
		s.pipeline.IncClassifierRoom(metrics.RoomOutcomeFailed)
		return metrics.RoomOutcomeFailed
	}

	s.pipeline.IncClassifierRoom(metrics.RoomOutcomeClassified)
	if s.metrics != nil {
		s.metrics.RecordFunnelRecord(ctx, rec.Channel)
	}
	return metrics.RoomOutcomeClassified
}

func (s *Service) Report(ctx context.Context, filter funneldomain.ReportFilter) (funneldomain.ReportPage, error) {
	if err := validateFilter(filter); err != nil {
		return funneldomain.ReportPage{}, err
	}
	return s.repo.List(ctx, s.db, filter)
}

func (s *Service) Summary(ctx context.Context, filter funneldomain.ReportFilter) ([]funneldomain.ChannelSummary, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	return s.repo.Summary(ctx, s.db, filter)
}

func validateFilter(filter funneldomain.ReportFilter) error {
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return funneldomain.ErrInvalidDateRange
	}
	return nil
}
