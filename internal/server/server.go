package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/tenantdesk/internal/config"
	"github.com/smallbiznis/tenantdesk/internal/observability"
	obsmiddleware "github.com/smallbiznis/tenantdesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/tenantdesk/internal/observability/metrics"
	obstracing "github.com/smallbiznis/tenantdesk/internal/observability/tracing"
	plandomain "github.com/smallbiznis/tenantdesk/internal/plan/domain"
	renewaldomain "github.com/smallbiznis/tenantdesk/internal/renewal/domain"
	tenantdomain "github.com/smallbiznis/tenantdesk/internal/tenant/domain"
	treasurydomain "github.com/smallbiznis/tenantdesk/internal/treasury/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
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

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	db          *gorm.DB
	catalog     plandomain.Catalog
	renewalCfg  *config.RenewalConfigHolder
	tenantSvc   tenantdomain.Service
	renewalSvc  renewaldomain.Service
	treasurySvc treasurydomain.Service
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	DB          *gorm.DB
	Catalog     plandomain.Catalog
	RenewalCfg  *config.RenewalConfigHolder
	TenantSvc   tenantdomain.Service
	RenewalSvc  renewaldomain.Service
	TreasurySvc treasurydomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		db:          p.DB,
		catalog:     p.Catalog,
		renewalCfg:  p.RenewalCfg,
		tenantSvc:   p.TenantSvc,
		renewalSvc:  p.RenewalSvc,
		treasurySvc: p.TreasurySvc,
	}

	svc.registerHealthRoutes()
	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerHealthRoutes() {
	s.engine.GET("/health", s.Health)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Plans --------
	api.GET("/plans", s.ListPlans)

	// -------- Tenants --------
	api.GET("/tenants", s.ListTenants)
	api.POST("/tenants", s.OnboardTenant)
	api.GET("/tenants/:id", s.GetTenantByID)
	api.GET("/tenants/:id/treasury-entries", s.ListTenantTreasuryEntries)
	api.POST("/tenants/:id/renewals", s.OpenRenewal)

	// -------- Renewals --------
	renewals := api.Group("/renewals/:id", RenewalContext())
	{
		renewals.GET("", s.GetRenewal)
		renewals.PUT("/target-tier", s.SetRenewalTargetTier)
		renewals.PUT("/use-credit", s.SetRenewalUseCredit)
		renewals.POST("/legs", s.AddRenewalPaymentLeg)
		renewals.DELETE("/legs/:leg_id", s.RemoveRenewalPaymentLeg)
		renewals.POST("/commit", s.CommitRenewal)
		renewals.POST("/cancel", s.CancelRenewal)
	}

	// -------- Treasury --------
	api.GET("/treasury/accounts", s.ListTreasuryAccounts)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

func (s *Server) Health(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
