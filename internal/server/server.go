package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/sparks/internal/config"
	funneldomain "github.com/smallbiznis/sparks/internal/funnel/domain"
	"github.com/smallbiznis/sparks/internal/ingest"
	keyworddomain "github.com/smallbiznis/sparks/internal/keyword/domain"
	"github.com/smallbiznis/sparks/internal/observability"
	obsmiddleware "github.com/smallbiznis/sparks/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/sparks/internal/observability/metrics"
	obstracing "github.com/smallbiznis/sparks/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module serves the gateway HTTP surface. Callers compose it with the ingest,
// keyword and funnel modules.
var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(func(svc *ingest.Service) IngestService { return svc }),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// IngestService accepts one webhook body.
type IngestService interface {
	Ingest(ctx context.Context, body []byte) (ingest.Result, error)
}

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	Ingest     IngestService
	KeywordSvc keyworddomain.Service
	FunnelSvc  funneldomain.Service
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	ingest     IngestService
	keywordSvc keyworddomain.Service
	funnelSvc  funneldomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("http"),
		ingest:     p.Ingest,
		keywordSvc: p.KeywordSvc,
		funnelSvc:  p.FunnelSvc,
	}

	svc.registerIngestRoutes()
	svc.registerKeywordRoutes()
	svc.registerReportRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerIngestRoutes() {
	s.engine.POST("/webhook", s.Webhook)
}

func (s *Server) registerKeywordRoutes() {
	s.engine.POST("/sync-keywords", s.SyncKeywords)
}

func (s *Server) registerReportRoutes() {
	report := s.engine.Group("/funnel-report")

	report.GET("", s.FunnelReport)
	report.GET("/summary", s.FunnelSummary)
}
