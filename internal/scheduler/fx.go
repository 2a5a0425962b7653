package scheduler

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(runScheduler),
)

// runScheduler starts the classification loop detached from the start
// context. Stop waits for an in-flight pass up to the stop deadline; the
// lock TTL covers a pass abandoned past that point.
func runScheduler(lc fx.Lifecycle, sched *Scheduler, log *zap.Logger) {
	var cancel context.CancelFunc
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, c := context.WithCancel(context.Background())
			cancel = c
			go func() {
				defer close(done)
				sched.RunForever(runCtx)
			}()
			log.Info("funnel classifier scheduled",
				zap.Duration("interval", sched.cfg.RunInterval),
				zap.Strings("jobs", sched.cfg.EnabledJobs),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel == nil {
				return nil
			}
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
				log.Warn("classifier pass still running at shutdown")
			}
			return nil
		},
	})
}
