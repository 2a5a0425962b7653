package logger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/sparks/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-9")
	ctx = obscontext.WithCorrelationID(ctx, "01HX")
	ctx = obscontext.WithActor(ctx, "system", "worker-a")

	WithContext(ctx, base).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, "01HX", fields["correlation_id"])
	assert.Equal(t, "system", fields["actor_type"])
	assert.Equal(t, "worker-a", fields["actor_id"])
}

func TestGinMiddlewareEchoesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))
	r.GET("/ping", func(c *gin.Context) {
		assert.Equal(t, "abc", obscontext.RequestIDFromContext(c.Request.Context()))
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-Id", "abc")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "abc", rec.Header().Get("X-Request-Id"))
	require.Equal(t, 1, logs.FilterMessage("http_request").Len())
	entry := logs.FilterMessage("http_request").All()[0]
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	assert.Equal(t, "/ping", entry.ContextMap()["route"])
}

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "INSERT", operationFromSQL("INSERT INTO rooms ..."))
	assert.Equal(t, "SELECT", operationFromSQL("WITH x AS (SELECT 1) SELECT * FROM x"))
	assert.Equal(t, "UNKNOWN", operationFromSQL(""))
}

func TestTableFromSQL(t *testing.T) {
	assert.Equal(t, "messages", tableFromSQL(`INSERT INTO "messages" ("room_id") VALUES ($1) ON CONFLICT DO NOTHING`))
	assert.Equal(t, "rooms", tableFromSQL(`UPDATE "rooms" SET "last_activity_at"=$1`))
	assert.Equal(t, "funnel_records", tableFromSQL(`SELECT * FROM "funnel_records" WHERE leads_date IS NOT NULL`))
	assert.Equal(t, "", tableFromSQL("SELECT 1"))
}

func TestGormLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Info, GormLevel("debug"))
	assert.Equal(t, gormlogger.Warn, GormLevel("info"))
	assert.Equal(t, gormlogger.Error, GormLevel("ERROR"))
	assert.Equal(t, gormlogger.Silent, GormLevel("off"))
}

func TestGormLoggerTrace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(GormLoggerConfig{Level: gormlogger.Warn, SlowThreshold: 50 * time.Millisecond})
	l.base = zap.New(core)
	ctx := obscontext.WithCorrelationID(context.Background(), "entry-1")
	sql := func() (string, int64) { return `SELECT * FROM "rooms" WHERE room_id = $1`, 0 }

	l.Trace(ctx, time.Now(), sql, gormlogger.ErrRecordNotFound)
	assert.Equal(t, 0, logs.Len(), "not found is quiet by default")

	l.Trace(ctx, time.Now(), sql, errors.New("connection reset"))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "rooms", entry.ContextMap()["table"])
	assert.Equal(t, "entry-1", entry.ContextMap()["correlation_id"])

	l.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[1].Level)

	l.Trace(ctx, time.Now(), sql, nil)
	assert.Equal(t, 2, logs.Len(), "fast statements stay below warn")

	verbose := l.LogMode(gormlogger.Info)
	verbose.Trace(ctx, time.Now(), sql, nil)
	require.Equal(t, 3, logs.Len())
	assert.Equal(t, zapcore.DebugLevel, logs.All()[2].Level)
}
