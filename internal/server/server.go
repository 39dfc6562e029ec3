package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/dunning/internal/audit/domain"
	billingrundomain "github.com/smallbiznis/dunning/internal/billingrun/domain"
	"github.com/smallbiznis/dunning/internal/clock"
	"github.com/smallbiznis/dunning/internal/config"
	"github.com/smallbiznis/dunning/internal/observability"
	obsmiddleware "github.com/smallbiznis/dunning/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/dunning/internal/observability/metrics"
	obstracing "github.com/smallbiznis/dunning/internal/observability/tracing"
	settingdomain "github.com/smallbiznis/dunning/internal/setting/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(run),
)

// Trigger starts one billing run; the scheduler implements it.
type Trigger interface {
	Trigger(ctx context.Context, today time.Time) (billingrundomain.RunResult, error)
}

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.Middleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http.server.failed", zap.String("addr", srv.Addr), zap.Error(err))
				}
			}()
			log.Info("http.server.start", zap.String("addr", srv.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Params struct {
	fx.In

	Engine   *gin.Engine
	Config   config.Config
	Log      *zap.Logger
	Clock    clock.Clock
	Trigger  Trigger
	Settings settingdomain.Store
	AuditSvc auditdomain.Service
}

type Server struct {
	engine   *gin.Engine
	cfg      config.Config
	log      *zap.Logger
	clock    clock.Clock
	trigger  Trigger
	settings settingdomain.Store
	auditSvc auditdomain.Service
}

func NewServer(p Params) *Server {
	s := &Server{
		engine:   p.Engine,
		cfg:      p.Config,
		log:      p.Log.Named("http.server"),
		clock:    p.Clock,
		trigger:  p.Trigger,
		settings: p.Settings,
		auditSvc: p.AuditSvc,
	}
	s.RegisterRoutes()
	return s
}

func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.OperatorAuth())
	{
		api.GET("/billing-runs/last", s.GetLastBillingRun)
		api.POST("/billing-runs", s.TriggerBillingRun)
		api.GET("/audit-logs", s.ListAuditLogs)
	}
}
