package service

import (
	"context"

	keyworddomain "github.com/smallbiznis/sparks/internal/keyword/domain"
	"github.com/smallbiznis/sparks/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	Store keyworddomain.Store
}

type Service struct {
	log     *zap.Logger
	store   keyworddomain.Store
	metrics *metrics.PipelineMetrics
}

func New(p Params) keyworddomain.Service {
	return &Service{
		log:     p.Log.Named("keyword.service"),
		store:   p.Store,
		metrics: metrics.Pipeline(),
	}
}

// Snapshot reads every category from the store. A category that cannot be
// read degrades to an empty set so one bad key never stops a pass.
func (s *Service) Snapshot(ctx context.Context) (keyworddomain.Snapshot, error) {
	snap := make(keyworddomain.Snapshot, len(keyworddomain.Categories))
	for _, category := range keyworddomain.Categories {
		words, err := s.store.Members(ctx, category)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Warn("keyword category unavailable, using empty set",
				zap.String("category", string(category)),
				zap.Error(err),
			)
			words = nil
		}
		set := keyworddomain.NewSet(words)
		snap[category] = set
		s.metrics.SetKeywordSetSize(string(category), len(set))
	}
	return snap, nil
}

func (s *Service) Sync(ctx context.Context, req keyworddomain.SyncRequest) (keyworddomain.SyncResult, error) {
	if len(req) == 0 {
		return keyworddomain.SyncResult{}, keyworddomain.ErrEmptyRequest
	}
	for category := range req {
		if _, err := keyworddomain.ParseCategory(string(category)); err != nil {
			return keyworddomain.SyncResult{}, err
		}
	}

	result := keyworddomain.SyncResult{Counts: make(map[keyworddomain.Category]int, len(req))}
	for _, category := range keyworddomain.Categories {
		words, ok := req[category]
		if !ok {
			continue
		}
		set := keyworddomain.NewSet(words)
		if err := s.store.Replace(ctx, category, set); err != nil {
			return result, err
		}
		result.Counts[category] = len(set)
		s.metrics.SetKeywordSetSize(string(category), len(set))
		s.log.Info("keyword set replaced",
			zap.String("category", string(category)),
			zap.Int("count", len(set)),
		)
	}
	return result, nil
}
