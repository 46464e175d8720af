package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/khaja-app/khaja/internal/billingcycle"
	"github.com/khaja-app/khaja/internal/catalog"
	"github.com/khaja-app/khaja/internal/config"
	"github.com/khaja-app/khaja/internal/entitlement"
	"github.com/khaja-app/khaja/internal/lock"
	"github.com/khaja-app/khaja/internal/notification"
	"github.com/khaja-app/khaja/internal/observability"
	obslogging "github.com/khaja-app/khaja/internal/observability/logging"
	obsmetrics "github.com/khaja-app/khaja/internal/observability/metrics"
	obstracing "github.com/khaja-app/khaja/internal/observability/tracing"
	"github.com/khaja-app/khaja/internal/payment"
	paymentdomain "github.com/khaja-app/khaja/internal/payment/domain"
	"github.com/khaja-app/khaja/internal/providers/email"
	"github.com/khaja-app/khaja/internal/subscription"
	subscriptiondomain "github.com/khaja-app/khaja/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	catalog.Module,
	entitlement.Module,
	lock.Module,
	email.Module,
	notification.Module,
	subscription.Module,
	billingcycle.Module,
	payment.Module,
	observability.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, metrics *obsmetrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogging.GinMiddleware(log))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(metrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger, metrics *obsmetrics.Metrics) *gin.Engine {
	return NewEngine(log, metrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	catalogs        *catalog.Holder
	subscriptionSvc subscriptiondomain.Service
	webhookSvc      paymentdomain.WebhookService
	metrics         *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Catalogs        *catalog.Holder
	SubscriptionSvc subscriptiondomain.Service
	WebhookSvc      paymentdomain.WebhookService
	Metrics         *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		catalogs:        p.Catalogs,
		subscriptionSvc: p.SubscriptionSvc,
		webhookSvc:      p.WebhookSvc,
		metrics:         p.Metrics,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")

	v1.GET("/plans", s.listPlans)
	v1.GET("/services", s.listServices)

	v1.POST("/subscriptions", s.createSubscription)
	v1.GET("/subscriptions", s.listSubscriptions)
	v1.GET("/subscriptions/current", s.getCurrentSubscription)
	v1.GET("/subscriptions/current/services", s.listAvailableServices)
	v1.POST("/subscriptions/current/cancel", s.cancelSubscription)

	v1.POST("/service-requests", s.createServiceRequest)

	v1.POST("/webhooks/stripe", s.handleStripeWebhook)
}

// clientID reads the caller identity header. The marketplace gateway
// authenticates clients upstream and forwards the resolved ID here.
func (s *Server) clientID(c *gin.Context) (string, bool) {
	clientID := c.GetHeader("X-Client-ID")
	if clientID == "" {
		AbortWithError(c, newValidationError("client_id", "missing_client_id", "X-Client-ID header is required"))
		return "", false
	}
	return clientID, true
}
