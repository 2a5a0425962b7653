package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/sparks/internal/clock"
	funneldomain "github.com/smallbiznis/sparks/internal/funnel/domain"
	"github.com/smallbiznis/sparks/internal/metricspush"
	obsmetrics "github.com/smallbiznis/sparks/internal/observability/metrics"
	"github.com/smallbiznis/sparks/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobFunnelClassify = "funnel_classify"

	lockKeyPrefix = "sparks:lock:"
	pushTimeout   = 5 * time.Second
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

// JobLocker serializes a job across replicas.
type JobLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Funnel   funneldomain.Service
	Locker   *ratelimit.Locker   `optional:"true"`
	Pusher   metricspush.Pusher  `optional:"true"`
	Gatherer prometheus.Gatherer `optional:"true"`
	Config   Config              `optional:"true"`
}

type Scheduler struct {
	log      *zap.Logger
	cfg      Config
	clock    clock.Clock
	funnel   funneldomain.Service
	locker   JobLocker
	pusher   metricspush.Pusher
	gatherer prometheus.Gatherer
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.Funnel == nil {
		return nil, ErrInvalidConfig
	}
	s := &Scheduler{
		log:      p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:      p.Config.withDefaults(),
		clock:    p.Clock,
		funnel:   p.Funnel,
		pusher:   p.Pusher,
		gatherer: p.Gatherer,
	}
	if p.Locker != nil {
		s.locker = p.Locker
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	return s, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context, run *jobRun) error,
) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run := s.startJobRun(ctx, name)
	s.logger(ctx).Info("scheduler.job.start", zap.String("job", name))
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx, run)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(run.startedAt))
	if err != nil {
		run.fail()
	}
	s.logJobFinish(ctx, run)
	if err == nil {
		if run.skipReason == "" {
			schedMetrics.MarkSuccess(name, s.clock.Now())
		}
		return nil
	}

	schedMetrics.IncJobError(name, err)
	// A deadline is a soft timeout: the next tick recomputes everything anyway.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		schedMetrics.IncJobTimeout(name)
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every enabled job once and then pushes metrics if a pusher is
// configured.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobFunnelClassify, func(ctx context.Context) error {
			return s.runJob(ctx, JobFunnelClassify, s.cfg.JobTimeout, s.withLock(JobFunnelClassify, s.FunnelClassifyJob))
		}},
	}

	for _, job := range jobs {
		if s.isJobEnabled(job.Name) {
			err = errors.Join(err, job.Run(parent))
		}
	}

	s.pushMetrics(parent)
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// FunnelClassifyJob recomputes one funnel record per room.
func (s *Scheduler) FunnelClassifyJob(ctx context.Context, run *jobRun) error {
	result, err := s.funnel.Recompute(ctx)
	run.record(result)

	obsmetrics.Scheduler().RecordPass(JobFunnelClassify, result.Classified, result.Empty, result.Failed)

	return err
}

// withLock skips the job when another replica holds its lock. Without a
// locker the job always runs.
func (s *Scheduler) withLock(job string, fn func(context.Context, *jobRun) error) func(context.Context, *jobRun) error {
	return func(ctx context.Context, run *jobRun) error {
		if s.locker == nil {
			return fn(ctx, run)
		}
		key := lockKeyPrefix + job
		token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
		if err != nil {
			obsmetrics.Scheduler().IncDeferred(job, obsmetrics.SchedulerDeferredReasonLockError)
			s.logSchedulerError(ctx, run, "scheduler.lock.failed", err)
			return nil
		}
		if !ok {
			obsmetrics.Scheduler().IncDeferred(job, obsmetrics.SchedulerDeferredReasonLockHeld)
			run.skip(obsmetrics.SchedulerDeferredReasonLockHeld)
			return nil
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
			defer cancel()
			if err := s.locker.Release(releaseCtx, key, token); err != nil {
				s.logger(ctx).Warn("scheduler.lock.release_failed", zap.String("job", job), zap.Error(err))
			}
		}()
		return fn(ctx, run)
	}
}

func (s *Scheduler) pushMetrics(parent context.Context) {
	if s.pusher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), pushTimeout)
	defer cancel()
	if err := s.pusher.Push(ctx, s.gatherer); err != nil {
		s.log.Warn("metrics push failed", zap.Error(err))
	}
}
