package filesource

import (
	"context"

	"github.com/smallbiznis/sparks/internal/config"
	keyworddomain "github.com/smallbiznis/sparks/internal/keyword/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("keyword.filesource",
	fx.Provide(NewFromConfig),
	fx.Invoke(runSource),
)

// NewFromConfig returns nil when KEYWORDS_FILE is unset; keywords are then
// managed only through POST /sync-keywords.
func NewFromConfig(cfg config.Config, service keyworddomain.Service, log *zap.Logger) *Source {
	if cfg.KeywordSrc.File == "" {
		log.Warn("keyword file sync disabled", zap.String("reason", "KEYWORDS_FILE not set"))
		return nil
	}
	return New(cfg.KeywordSrc.File, cfg.KeywordSrc.SyncInterval, service, log)
}

func runSource(lc fx.Lifecycle, src *Source) {
	if src == nil {
		return
	}
	var cancel context.CancelFunc
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, c := context.WithCancel(context.Background())
			cancel = c
			go func() {
				defer close(done)
				src.Run(ctx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})
}
