package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/flasti/ledger/internal/affiliate"
	affiliatedomain "github.com/flasti/ledger/internal/affiliate/domain"
	"github.com/flasti/ledger/internal/attribution"
	"github.com/flasti/ledger/internal/audit"
	auditdomain "github.com/flasti/ledger/internal/audit/domain"
	"github.com/flasti/ledger/internal/balance"
	balancedomain "github.com/flasti/ledger/internal/balance/domain"
	"github.com/flasti/ledger/internal/commission"
	commissiondomain "github.com/flasti/ledger/internal/commission/domain"
	"github.com/flasti/ledger/internal/config"
	"github.com/flasti/ledger/internal/events"
	"github.com/flasti/ledger/internal/fraud"
	obslogger "github.com/flasti/ledger/internal/observability/logger"
	obstracing "github.com/flasti/ledger/internal/observability/tracing"
	"github.com/flasti/ledger/internal/payout"
	payoutdomain "github.com/flasti/ledger/internal/payout/domain"
	"github.com/flasti/ledger/internal/ratelimit"
	"github.com/flasti/ledger/internal/sale"
	saledomain "github.com/flasti/ledger/internal/sale/domain"
	"github.com/flasti/ledger/internal/visit"
	visitdomain "github.com/flasti/ledger/internal/visit/domain"
	"github.com/flasti/ledger/internal/webhook"
	webhookdomain "github.com/flasti/ledger/internal/webhook/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	audit.Module,
	events.Module,
	affiliate.Module,
	visit.Module,
	attribution.Module,
	fraud.Module,
	commission.Module,
	balance.Module,
	sale.Module,
	webhook.Module,
	payout.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(obslogger.GinMiddleware(log))
	r.Use(obstracing.GinMiddleware())
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

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
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
	engine *gin.Engine
	cfg    config.Config
	db     *gorm.DB

	affiliateSvc  affiliatedomain.Service
	visitSvc      visitdomain.Service
	webhookSvc    webhookdomain.Service
	saleSvc       saledomain.Service
	balanceSvc    balancedomain.Service
	payoutSvc     payoutdomain.Service
	commissionSvc commissiondomain.Service
	auditSvc      auditdomain.Service
	clickLimiter  *ratelimit.Limiter
}

type ServerParams struct {
	fx.In

	Gin *gin.Engine
	Cfg config.Config
	DB  *gorm.DB

	AffiliateSvc  affiliatedomain.Service
	VisitSvc      visitdomain.Service
	WebhookSvc    webhookdomain.Service
	SaleSvc       saledomain.Service
	BalanceSvc    balancedomain.Service
	PayoutSvc     payoutdomain.Service
	CommissionSvc commissiondomain.Service
	AuditSvc      auditdomain.Service
	ClickLimiter  *ratelimit.Limiter
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		affiliateSvc:  p.AffiliateSvc,
		visitSvc:      p.VisitSvc,
		webhookSvc:    p.WebhookSvc,
		saleSvc:       p.SaleSvc,
		balanceSvc:    p.BalanceSvc,
		payoutSvc:     p.PayoutSvc,
		commissionSvc: p.CommissionSvc,
		auditSvc:      p.AuditSvc,
		clickLimiter:  p.ClickLimiter,
	}

	svc.registerPublicRoutes()
	svc.registerWebhookRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) registerPublicRoutes() {
	s.engine.GET("/r/:code", s.RateLimited("track"), s.TrackClick)
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/:provider", s.WebhookAuth(), s.HandleWebhook)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")

	api.POST("/affiliates", s.CreateAffiliate)
	api.GET("/affiliates", s.ListAffiliates)
	api.GET("/affiliates/:id", s.GetAffiliate)
	api.DELETE("/affiliates/:id", s.DeactivateAffiliate)

	api.GET("/affiliates/:id/balance", s.GetBalance)
	api.POST("/payouts", s.CreatePayout)

	api.GET("/sales", s.ListSales)
	api.GET("/sales/:transaction_id", s.GetSale)
	api.POST("/sales/:transaction_id/refund", s.RefundSale)

	api.GET("/commission-rates", s.ListCommissionRates)
	api.PUT("/commission-rates", s.UpsertCommissionRate)

	api.GET("/audit-logs", s.ListAuditLogs)
}
