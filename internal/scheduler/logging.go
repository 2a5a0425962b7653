package scheduler

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	funneldomain "github.com/smallbiznis/sparks/internal/funnel/domain"
	obscontext "github.com/smallbiznis/sparks/internal/observability/context"
	obslogger "github.com/smallbiznis/sparks/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/sparks/internal/observability/metrics"
	"go.uber.org/zap"
)

// jobRun is the per-pass bookkeeping that ends up on the finish log line.
type jobRun struct {
	job       string
	runID     string
	startedAt time.Time

	pass       funneldomain.PassResult
	skipReason string
	errors     int
}

func (r *jobRun) record(res funneldomain.PassResult) {
	r.pass.Rooms += res.Rooms
	r.pass.Classified += res.Classified
	r.pass.Empty += res.Empty
	r.pass.Failed += res.Failed
	r.errors += res.Failed
}

func (r *jobRun) skip(reason string) {
	r.skipReason = reason
}

func (r *jobRun) fail() {
	r.errors++
}

// startJobRun tags ctx so every line logged during the pass, including gorm
// statements, carries the run id as correlation id.
func (s *Scheduler) startJobRun(ctx context.Context, job string) (context.Context, *jobRun) {
	run := &jobRun{
		job:       job,
		runID:     ulid.Make().String(),
		startedAt: s.clock.Now(),
	}
	ctx = obscontext.WithActor(ctx, "system", "scheduler")
	ctx = obscontext.WithCorrelationID(ctx, run.runID)
	return ctx, run
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun) {
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.Int64("duration_ms", s.clock.Now().Sub(run.startedAt).Milliseconds()),
	}
	if run.skipReason != "" {
		s.logger(ctx).Debug("scheduler.job.skipped", append(fields, zap.String("reason", run.skipReason))...)
		return
	}
	fields = append(fields,
		zap.Int("rooms", run.pass.Rooms),
		zap.Int("classified", run.pass.Classified),
		zap.Int("empty", run.pass.Empty),
		zap.Int("error_count", run.errors),
	)
	if run.errors > 0 {
		s.logger(ctx).Warn("scheduler.job.finish", fields...)
		return
	}
	s.logger(ctx).Info("scheduler.job.finish", fields...)
}

func (s *Scheduler) logSchedulerError(ctx context.Context, run *jobRun, msg string, err error, fields ...zap.Field) {
	run.fail()
	base := []zap.Field{
		zap.String("job", run.job),
		zap.String("error_type", obsmetrics.ClassifySchedulerErrorType(err)),
		zap.Bool("retryable", obsmetrics.IsSchedulerErrorRetryable(err)),
		zap.Error(err),
	}
	s.logger(ctx).Error(msg, append(base, fields...)...)
}
