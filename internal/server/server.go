package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/boostd/internal/authorization"
	boostdomain "github.com/smallbiznis/boostd/internal/boost/domain"
	"github.com/smallbiznis/boostd/internal/cache"
	"github.com/smallbiznis/boostd/internal/clock"
	"github.com/smallbiznis/boostd/internal/config"
	"github.com/smallbiznis/boostd/internal/observability"
	obsmiddleware "github.com/smallbiznis/boostd/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/boostd/internal/observability/metrics"
	obstracing "github.com/smallbiznis/boostd/internal/observability/tracing"
	"github.com/smallbiznis/boostd/internal/scheduler"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
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

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.String("addr", addr), zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	clock      clock.Clock
	boostSvc   boostdomain.Service
	candidates rankingSource
	authzSvc   authorization.Service
	sweeper    sweepRunner
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	Clock      clock.Clock `optional:"true"`
	BoostSvc   boostdomain.Service
	Candidates *cache.RankingCandidates
	AuthzSvc   authorization.Service
	Scheduler  *scheduler.Scheduler `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("http"),
		clock:      p.Clock,
		boostSvc:   p.BoostSvc,
		candidates: p.Candidates,
		authzSvc:   p.AuthzSvc,
	}
	if svc.clock == nil {
		svc.clock = clock.New()
	}
	// a nil *Scheduler must not become a non-nil interface
	if p.Scheduler != nil {
		svc.sweeper = p.Scheduler
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerInternalRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", ActorRequired())

	// -------- Boosts --------
	api.POST("/boosts", s.PurchaseBoost)
	api.GET("/boosts", s.ListBoosts)
	api.GET("/boosts/:id", s.GetBoost)
	api.POST("/boosts/:id/confirm", s.ConfirmBoostPayment)
	api.POST("/boosts/:id/cancel", s.CancelBoost)
	api.PATCH("/boosts/:id/auto-renew", s.SetAutoRenew)

	// -------- Ranking --------
	api.GET("/listings/ranked", s.ListRankedListings)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin", ActorRequired(), RequireRole(authorization.RolePlatformOperator))

	admin.POST("/boosts/grant", s.GrantBoost)
}

func (s *Server) registerInternalRoutes() {
	internal := s.engine.Group("/internal")

	internal.POST("/scheduler/run", s.RunScheduler)
}
