package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pattamap/pattamap-vip/internal/config"
	"github.com/pattamap/pattamap-vip/internal/observability"
	obsmiddleware "github.com/pattamap/pattamap-vip/internal/observability/logger"
	obsmetrics "github.com/pattamap/pattamap-vip/internal/observability/metrics"
	obstracing "github.com/pattamap/pattamap-vip/internal/observability/tracing"
	paymentdomain "github.com/pattamap/pattamap-vip/internal/payment/domain"
	"github.com/pattamap/pattamap-vip/internal/ratelimit"
	settlementdomain "github.com/pattamap/pattamap-vip/internal/settlement/domain"
	subscriptiondomain "github.com/pattamap/pattamap-vip/internal/subscription/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
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
	r.Use(CorrelationID())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, s *Server) {
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
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
	engine *gin.Engine
	cfg    config.Config
	log    *zap.Logger

	subscriptionSvc subscriptiondomain.Service
	settlementSvc   settlementdomain.Service
	purchaseLimiter *ratelimit.PurchaseLimiter
	obsMetrics      *obsmetrics.Metrics
	paymentWebhook  paymentdomain.Service
}

type ServerParams struct {
	fx.In

	Gin *gin.Engine
	Cfg config.Config
	Log *zap.Logger

	SubscriptionSvc subscriptiondomain.Service
	SettlementSvc   settlementdomain.Service
	PurchaseLimiter *ratelimit.PurchaseLimiter `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics        `optional:"true"`
	PaymentWebhook  paymentdomain.Service      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine: p.Gin,
		cfg:    p.Cfg,
		log:    p.Log.Named("http.server"),

		subscriptionSvc: p.SubscriptionSvc,
		settlementSvc:   p.SettlementSvc,
		purchaseLimiter: p.PurchaseLimiter,
		obsMetrics:      p.ObsMetrics,
		paymentWebhook:  p.PaymentWebhook,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	vip := api.Group("/vip")
	{
		vip.GET("/pricing/:type", s.GetVIPPricing)
		vip.POST("/purchase", s.AuthRequired(), s.PurchaseRateLimit(), s.PurchaseVIP)
		vip.GET("/my-subscriptions", s.AuthRequired(), s.ListMyVIPSubscriptions)
		vip.PATCH("/subscriptions/:id/cancel", s.AuthRequired(), s.CancelVIPSubscription)
	}

	// Provider callbacks authenticate by signature, not by user token.
	webhooks := api.Group("/webhooks")
	{
		webhooks.POST("/promptpay", s.PromptPayWebhook)
	}
}

// registerAdminRoutes only authenticates; the admin role is checked by the
// settlement service before it reads any row.
func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin/vip", s.AuthRequired())
	{
		admin.POST("/verify-payment/:transactionId", s.VerifyVIPPayment)
		admin.GET("/transactions", s.ListVIPTransactions)
		admin.POST("/reject-payment/:transactionId", s.RejectVIPPayment)
	}
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
