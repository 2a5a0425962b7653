package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	errRedis := errors.New("redis down")
	RedisErrorClassifier = func(err error) bool { return errors.Is(err, errRedis) }
	t.Cleanup(func() { RedisErrorClassifier = nil })

	cases := []struct {
		name string
		err  error
		want string
	}{
		{"deadline", fmt.Errorf("funnel_classify: %w", context.DeadlineExceeded), SchedulerJobReasonDeadlineExceeded},
		{"db_lock_timeout", &pgconn.PgError{Code: "55P03"}, SchedulerJobReasonDBLockTimeout},
		{"serialization_failure", &pgconn.PgError{Code: "40001"}, SchedulerJobReasonSerializationFailure},
		{"unique_violation", gorm.ErrDuplicatedKey, SchedulerJobReasonUniqueViolation},
		{"redis", fmt.Errorf("keywords: %w", errRedis), SchedulerJobReasonRedis},
		{"unknown", errors.New("boom"), SchedulerJobReasonUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifySchedulerJobReason(tc.err))
		})
	}
}

func TestClassifySchedulerErrorType(t *testing.T) {
	errRedis := errors.New("redis down")
	RedisErrorClassifier = func(err error) bool { return errors.Is(err, errRedis) }
	t.Cleanup(func() { RedisErrorClassifier = nil })

	assert.Equal(t, SchedulerErrorTypeDB, ClassifySchedulerErrorType(&pgconn.PgError{Code: "08006"}))
	assert.Equal(t, SchedulerErrorTypeRedis, ClassifySchedulerErrorType(errRedis))
	assert.True(t, IsSchedulerErrorRetryable(errRedis))
	assert.Equal(t, SchedulerErrorTypeBusinessRule, ClassifySchedulerErrorType(gorm.ErrRecordNotFound))
	assert.False(t, IsSchedulerErrorRetryable(gorm.ErrRecordNotFound))
}

func TestRecordPass(t *testing.T) {
	m := newSchedulerMetrics(prometheus.NewRegistry(), Config{ServiceName: "sparks", Environment: "test"})

	m.RecordPass("funnel_classify", 3, 1, 0)
	m.RecordPass("funnel_classify", 2, 0, 1)
	m.IncDeferred("funnel_classify", SchedulerDeferredReasonLockHeld)
	m.MarkSuccess("funnel_classify", time.Unix(1759320000, 0))

	assert.Equal(t, 5.0, testutil.ToFloat64(m.passRooms.WithLabelValues("funnel_classify", PassOutcomeClassified)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.passRooms.WithLabelValues("funnel_classify", PassOutcomeEmpty)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.passRooms.WithLabelValues("funnel_classify", PassOutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deferred.WithLabelValues("funnel_classify", "lock_held")))
	assert.Equal(t, 1759320000.0, testutil.ToFloat64(m.lastSuccess.WithLabelValues("funnel_classify")))
}
