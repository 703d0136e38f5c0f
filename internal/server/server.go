package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/clearline/internal/config"
	dutydomain "github.com/smallbiznis/clearline/internal/duty/domain"
	levydomain "github.com/smallbiznis/clearline/internal/levy/domain"
	matchingdomain "github.com/smallbiznis/clearline/internal/matching/domain"
	obslogger "github.com/smallbiznis/clearline/internal/observability/logger"
	"github.com/smallbiznis/clearline/internal/observability/tracing"
	prorationdomain "github.com/smallbiznis/clearline/internal/proration/domain"
	tariffdomain "github.com/smallbiznis/clearline/internal/tariff/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log.Named("http")))
	r.Use(tracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(log)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", srv.Addr))
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
	engine       *gin.Engine
	log          *zap.Logger
	prorationSvc prorationdomain.Service
	dutySvc      dutydomain.Service
	matchingSvc  matchingdomain.Service
	levySvc      levydomain.Service
	tariffSvc    tariffdomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Log          *zap.Logger
	ProrationSvc prorationdomain.Service
	DutySvc      dutydomain.Service
	MatchingSvc  matchingdomain.Service
	LevySvc      levydomain.Service
	TariffSvc    tariffdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		log:          p.Log.Named("http.server"),
		prorationSvc: p.ProrationSvc,
		dutySvc:      p.DutySvc,
		matchingSvc:  p.MatchingSvc,
		levySvc:      p.LevySvc,
		tariffSvc:    p.TariffSvc,
	}

	svc.registerOrgRoutes()
	svc.registerReferenceRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerOrgRoutes() {
	org := s.engine.Group("/v1/orgs/:org_id", OrgScope())

	// -------- Shipments --------
	org.POST("/shipments/:id/recalculate", s.RecalculateShipment)

	// -------- Declarations --------
	org.GET("/declarations/:id/preview", s.PreviewDeclaration)
	org.POST("/declarations/:id/apply", s.ApplyDeclaration)
	org.GET("/declarations/:id/export.xlsx", s.ExportDeclaration)

	// -------- Matches --------
	org.POST("/invoices/:invoice_id/matches/:declaration_id", s.RunMatcher)
	org.GET("/invoices/:invoice_id/matches/:declaration_id", s.ListMatches)
	org.DELETE("/matches/:id", s.DeleteMatch)
}

func (s *Server) registerReferenceRoutes() {
	country := s.engine.Group("/v1/countries/:country")

	// -------- Levies --------
	country.GET("/levies", s.ListLevies)
	country.POST("/levies", s.CreateLevy)
	country.PUT("/levies/:code", s.UpdateLevy)
	country.DELETE("/levies/:code", s.DisableLevy)

	// -------- Tariffs --------
	country.GET("/tariffs", s.ListTariffs)
	country.PUT("/tariffs", s.UpsertTariff)
	country.GET("/tariffs/lookup", s.LookupTariff)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
