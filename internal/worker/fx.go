package worker

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("worker",
	fx.Provide(FromAppConfig),
	fx.Provide(NewWorker),
	fx.Invoke(runWorker),
)

// runWorker creates the consumer group before serving so a fresh stream never
// drops entries appended between start and the first read.
func runWorker(lc fx.Lifecycle, w *Worker, log *zap.Logger) {
	var cancel context.CancelFunc
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := w.Start(ctx); err != nil {
				return err
			}
			runCtx, c := context.WithCancel(context.Background())
			cancel = c
			go func() {
				defer close(done)
				w.RunForever(runCtx)
			}()
			log.Info("normalization worker scheduled")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel == nil {
				return nil
			}
			cancel()
			// Entries run on their own timeout; unfinished ones stay pending
			// and are claimed after restart.
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})
}
