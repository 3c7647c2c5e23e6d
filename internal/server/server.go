package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/recurflow/internal/billingevent"
	billingeventdomain "github.com/smallbiznis/recurflow/internal/billingevent/domain"
	"github.com/smallbiznis/recurflow/internal/catalog"
	"github.com/smallbiznis/recurflow/internal/config"
	"github.com/smallbiznis/recurflow/internal/consent"
	consentdomain "github.com/smallbiznis/recurflow/internal/consent/domain"
	"github.com/smallbiznis/recurflow/internal/coupon"
	"github.com/smallbiznis/recurflow/internal/gateway"
	"github.com/smallbiznis/recurflow/internal/history"
	historydomain "github.com/smallbiznis/recurflow/internal/history/domain"
	"github.com/smallbiznis/recurflow/internal/notification"
	"github.com/smallbiznis/recurflow/internal/order"
	orderdomain "github.com/smallbiznis/recurflow/internal/order/domain"
	"github.com/smallbiznis/recurflow/internal/ordertotal"
	"github.com/smallbiznis/recurflow/internal/pricing"
	pricingdomain "github.com/smallbiznis/recurflow/internal/pricing/domain"
	"github.com/smallbiznis/recurflow/internal/subscription"
	subscriptiondomain "github.com/smallbiznis/recurflow/internal/subscription/domain"
	"github.com/smallbiznis/recurflow/internal/swap"
	swapdomain "github.com/smallbiznis/recurflow/internal/swap/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	billingevent.Module,
	catalog.Module,
	consent.Module,
	coupon.Module,
	gateway.Module,
	history.Module,
	notification.Module,
	order.Module,
	ordertotal.Module,
	pricing.Module,
	subscription.Module,
	swap.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(HTTPMetrics())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
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
	genID           *snowflake.Node
	orderSvc        orderdomain.Service
	subscriptionSvc subscriptiondomain.Service
	swapSvc         swapdomain.Service
	consentSvc      consentdomain.Service
	pricingSvc      pricingdomain.Service
	historySvc      historydomain.Service
	eventSvc        billingeventdomain.Service
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	GenID           *snowflake.Node
	OrderSvc        orderdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	SwapSvc         swapdomain.Service
	ConsentSvc      consentdomain.Service
	PricingSvc      pricingdomain.Service
	HistorySvc      historydomain.Service
	EventSvc        billingeventdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		genID:           p.GenID,
		orderSvc:        p.OrderSvc,
		subscriptionSvc: p.SubscriptionSvc,
		swapSvc:         p.SwapSvc,
		consentSvc:      p.ConsentSvc,
		pricingSvc:      p.PricingSvc,
		historySvc:      p.HistorySvc,
		eventSvc:        p.EventSvc,
	}

	svc.registerAPIRoutes()
	svc.registerInternalRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Orders --------
	api.GET("/orders", s.ListOrders)
	api.GET("/orders/:id", s.GetOrderByID)
	api.POST("/orders/:id/cancel", s.CancelOrder)
	api.POST("/orders/:id/void", s.VoidOrder)
	api.POST("/orders/:id/swap", s.SwapOrder)
	api.GET("/orders/:id/history", s.ListOrderHistory)
	api.GET("/orders/:id/shippable-count", s.GetShippableCount)
	api.GET("/orders/:id/shipment", s.GetShipmentState)

	// -------- Line-item pricing, status, schedule --------
	api.GET("/line-items/:owner_type/:id/pricing", s.GetLineItemPricing)
	api.GET("/line-items/:owner_type/:id/status", s.GetLineItemStatus)
	api.GET("/line-items/:owner_type/:id/schedule", s.GetNextSchedule)

	// -------- Consent --------
	api.POST("/orders/:id/consent", s.ApplyConsent)
	api.DELETE("/orders/:id/consent", s.DeleteConsent)
	api.POST("/orders/:id/consent/cancel", s.CancelConsent)
	api.GET("/orders/:id/can-rebill", s.GetCanRebill)

	// -------- Subscription overrides --------
	api.PUT("/subscriptions/:subscription_id/override", s.UpsertSubscriptionOverride)
}

func (s *Server) registerInternalRoutes() {
	internal := s.engine.Group("/internal")

	internal.POST("/orders/:id/stop-terminal", s.StopTerminalProducts)
	internal.POST("/subscriptions/:subscription_id/override/consume", s.ConsumeSubscriptionOverride)
	internal.POST("/events/drain", s.DrainEvents)
}
