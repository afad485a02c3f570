package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/footprint/internal/config"
	"github.com/smallbiznis/footprint/internal/emission/factor"
	"github.com/smallbiznis/footprint/internal/observability"
	obsmiddleware "github.com/smallbiznis/footprint/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/footprint/internal/observability/metrics"
	obstracing "github.com/smallbiznis/footprint/internal/observability/tracing"
	"github.com/smallbiznis/footprint/internal/ratelimit"
	usagedomain "github.com/smallbiznis/footprint/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, log *zap.Logger) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Base:            log.Named("http"),
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type ServerParams struct {
	fx.In

	Engine       *gin.Engine
	Cfg          config.Config
	UsageSvc     usagedomain.Service
	Factors      *factor.Registry
	UsageLimiter *ratelimit.UsageIngestLimiter `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics           `optional:"true"`
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	usagesvc     usagedomain.Service
	factors      *factor.Registry
	usageLimiter *ratelimit.UsageIngestLimiter
	obsMetrics   *obsmetrics.Metrics
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:       p.Engine,
		cfg:          p.Cfg,
		usagesvc:     p.UsageSvc,
		factors:      p.Factors,
		usageLimiter: p.UsageLimiter,
		obsMetrics:   p.ObsMetrics,
	}
	s.RegisterAPIRoutes()
	return s
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(PrincipalMiddleware())

	usage := api.Group("/usage")
	usage.POST("", s.UsageIngestRateLimit(), s.IngestUsage)
	usage.GET("", s.QueryUsage)
	usage.GET("/history", s.UsageHistory)
	usage.GET("/stats", s.UsageStats)
	usage.GET("/:id", s.GetUsage)
	usage.DELETE("/:id", s.DeleteUsage)
	usage.PATCH("/:id/metrics", s.UpdateUsageMetrics)

	api.GET("/factors", s.GetFactors)
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
