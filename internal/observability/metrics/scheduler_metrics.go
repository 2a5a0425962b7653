package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/sparks/pkg/db"
	"gorm.io/gorm"
)

// Error types are for log lines; job reasons label the error counter.
const (
	SchedulerErrorTypeDeadlineExceeded = "deadline_exceeded"
	SchedulerErrorTypeDB               = "db"
	SchedulerErrorTypeRedis            = "redis"
	SchedulerErrorTypeBusinessRule     = "business_rule"
	SchedulerErrorTypeUnknown          = "unknown"

	SchedulerJobReasonDeadlineExceeded     = "deadline_exceeded"
	SchedulerJobReasonDBLockTimeout        = "db_lock_timeout"
	SchedulerJobReasonSerializationFailure = "serialization_failure"
	SchedulerJobReasonUniqueViolation      = "unique_violation"
	SchedulerJobReasonRedis                = "redis"
	SchedulerJobReasonUnknown              = "unknown"

	SchedulerDeferredReasonLockHeld  = "lock_held"
	SchedulerDeferredReasonLockError = "lock_error"
)

// Room outcomes of one classification pass.
const (
	PassOutcomeClassified = "classified"
	PassOutcomeEmpty      = "empty"
	PassOutcomeFailed     = "failed"
)

// RedisErrorClassifier is set by the Redis client package so lock and keyword
// failures are labelled without this package importing go-redis.
var RedisErrorClassifier func(err error) bool

// SchedulerMetrics tracks the classifier loop. The last-success gauge is what
// alerting keys on when the classifier only reports through a Pushgateway.
type SchedulerMetrics struct {
	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	jobTimeouts *prometheus.CounterVec
	jobErrors   *prometheus.CounterVec
	deferred    *prometheus.CounterVec
	passRooms   *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
	runLoopLag  prometheus.Histogram
}

var (
	schedulerMetricsOnce sync.Once
	schedulerMetrics     *SchedulerMetrics
)

func Scheduler() *SchedulerMetrics {
	return SchedulerWithConfig(Config{})
}

// SchedulerWithConfig registers the collectors on first use. Later calls
// return the same instance whatever cfg says.
func SchedulerWithConfig(cfg Config) *SchedulerMetrics {
	schedulerMetricsOnce.Do(func() {
		schedulerMetrics = newSchedulerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return schedulerMetrics
}

func newSchedulerMetrics(registerer prometheus.Registerer, cfg Config) *SchedulerMetrics {
	labels := constLabelsFor(cfg)
	counter := func(name, help string, by ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: name, Help: help, ConstLabels: labels,
		}, by)
	}

	m := &SchedulerMetrics{
		jobRuns:     counter("sparks_scheduler_job_runs_total", "Scheduler job runs by name.", "job"),
		jobTimeouts: counter("sparks_scheduler_job_timeouts_total", "Passes cut short by the job timeout.", "job"),
		jobErrors:   counter("sparks_scheduler_job_errors_total", "Scheduler job errors by reason.", "job", "reason"),
		deferred:    counter("sparks_scheduler_batch_deferred_total", "Passes skipped before doing any work.", "job", "reason"),
		passRooms:   counter("sparks_funnel_pass_rooms_total", "Rooms visited by classification passes, by outcome.", "job", "outcome"),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "sparks_scheduler_job_duration_seconds",
			Help:        "Scheduler job latency.",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 240},
			ConstLabels: labels,
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "sparks_scheduler_last_success_timestamp_seconds",
			Help:        "Unix time of the last pass that finished without error.",
			ConstLabels: labels,
		}, []string{"job"}),
		runLoopLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "sparks_scheduler_runloop_lag_seconds",
			Help:        "How late a pass started relative to its tick.",
			Buckets:     []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			ConstLabels: labels,
		}),
	}
	registerer.MustRegister(
		m.jobRuns, m.jobDuration, m.jobTimeouts, m.jobErrors,
		m.deferred, m.passRooms, m.lastSuccess, m.runLoopLag,
	)
	return m
}

func constLabelsFor(cfg Config) prometheus.Labels {
	service := strings.TrimSpace(cfg.ServiceName)
	if service == "" {
		service = "sparks"
	}
	env := strings.TrimSpace(cfg.Environment)
	if env == "" {
		env = "unknown"
	}
	return prometheus.Labels{"service": service, "env": env}
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifySchedulerJobReason(err)).Inc()
}

func (m *SchedulerMetrics) IncDeferred(job, reason string) {
	if m == nil {
		return
	}
	m.deferred.WithLabelValues(job, reason).Inc()
}

// RecordPass adds one pass's room outcomes.
func (m *SchedulerMetrics) RecordPass(job string, classified, empty, failed int) {
	if m == nil {
		return
	}
	for outcome, n := range map[string]int{
		PassOutcomeClassified: classified,
		PassOutcomeEmpty:      empty,
		PassOutcomeFailed:     failed,
	} {
		if n > 0 {
			m.passRooms.WithLabelValues(job, outcome).Add(float64(n))
		}
	}
}

func (m *SchedulerMetrics) MarkSuccess(job string, at time.Time) {
	if m == nil {
		return
	}
	m.lastSuccess.WithLabelValues(job).Set(float64(at.Unix()))
}

func (m *SchedulerMetrics) ObserveRunLoopLag(d time.Duration) {
	if m == nil {
		return
	}
	m.runLoopLag.Observe(max(d, 0).Seconds())
}

func isContextErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func isRedisErr(err error) bool {
	return RedisErrorClassifier != nil && RedisErrorClassifier(err)
}

// ClassifySchedulerErrorType names the subsystem an error came from.
func ClassifySchedulerErrorType(err error) string {
	switch {
	case err == nil:
		return SchedulerErrorTypeUnknown
	case isContextErr(err):
		return SchedulerErrorTypeDeadlineExceeded
	case isDBError(err):
		return SchedulerErrorTypeDB
	case isRedisErr(err):
		return SchedulerErrorTypeRedis
	default:
		return SchedulerErrorTypeBusinessRule
	}
}

// IsSchedulerErrorRetryable is true for infrastructure failures the next tick
// may not hit again.
func IsSchedulerErrorRetryable(err error) bool {
	return err != nil && (isContextErr(err) || isDBError(err) || isRedisErr(err))
}

func ClassifySchedulerJobReason(err error) string {
	switch {
	case err == nil:
		return SchedulerJobReasonUnknown
	case isContextErr(err):
		return SchedulerJobReasonDeadlineExceeded
	case db.HasPGCode(err, "55P03"):
		return SchedulerJobReasonDBLockTimeout
	case db.HasPGCode(err, "40001"):
		return SchedulerJobReasonSerializationFailure
	case db.IsDuplicateKeyErr(err):
		return SchedulerJobReasonUniqueViolation
	case isRedisErr(err):
		return SchedulerJobReasonRedis
	default:
		return SchedulerJobReasonUnknown
	}
}

// isDBError excludes not-found, which the classifier treats as data.
func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	for _, target := range []error{gorm.ErrInvalidDB, gorm.ErrInvalidTransaction, gorm.ErrInvalidData, gorm.ErrDuplicatedKey} {
		if errors.Is(err, target) {
			return true
		}
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
