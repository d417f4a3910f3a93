package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tokengate/tokengate/internal/account"
	accountdomain "github.com/tokengate/tokengate/internal/account/domain"
	"github.com/tokengate/tokengate/internal/auth"
	authdomain "github.com/tokengate/tokengate/internal/auth/domain"
	"github.com/tokengate/tokengate/internal/auth/token"
	"github.com/tokengate/tokengate/internal/config"
	"github.com/tokengate/tokengate/internal/migration"
	"github.com/tokengate/tokengate/internal/observability"
	obsmiddleware "github.com/tokengate/tokengate/internal/observability/logger"
	obsmetrics "github.com/tokengate/tokengate/internal/observability/metrics"
	"github.com/tokengate/tokengate/internal/order"
	orderdomain "github.com/tokengate/tokengate/internal/order/domain"
	"github.com/tokengate/tokengate/internal/payment"
	"github.com/tokengate/tokengate/internal/provider"
	"github.com/tokengate/tokengate/internal/ratelimit"
	"github.com/tokengate/tokengate/internal/relay"
	"github.com/tokengate/tokengate/internal/tokenizer"
	"github.com/tokengate/tokengate/internal/usage"
	usagedomain "github.com/tokengate/tokengate/internal/usage/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	observability.Module,
	migration.Module,
	tokenizer.Module,
	provider.Module,
	account.Module,
	usage.Module,
	order.Module,
	payment.Module,
	auth.Module,
	ratelimit.Module,
	relay.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":8080",
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
	engine            *gin.Engine
	cfg               config.Config
	genID             *snowflake.Node
	issuer            *token.Issuer
	authSvc           authdomain.Service
	accountSvc        accountdomain.Service
	usageSvc          usagedomain.Service
	orderSvc          orderdomain.Service
	payments          *payment.Registry
	stripeAdapter     *payment.StripeAdapter
	relaySvc          *relay.Service
	completionLimiter *ratelimit.CompletionLimiter
	obsMetrics        *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin               *gin.Engine
	Cfg               config.Config
	GenID             *snowflake.Node
	Issuer            *token.Issuer
	AuthSvc           authdomain.Service
	AccountSvc        accountdomain.Service
	UsageSvc          usagedomain.Service
	OrderSvc          orderdomain.Service
	Payments          *payment.Registry
	StripeAdapter     *payment.StripeAdapter
	RelaySvc          *relay.Service
	CompletionLimiter *ratelimit.CompletionLimiter
	ObsMetrics        *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:            p.Gin,
		cfg:               p.Cfg,
		genID:             p.GenID,
		issuer:            p.Issuer,
		authSvc:           p.AuthSvc,
		accountSvc:        p.AccountSvc,
		usageSvc:          p.UsageSvc,
		orderSvc:          p.OrderSvc,
		payments:          p.Payments,
		stripeAdapter:     p.StripeAdapter,
		relaySvc:          p.RelaySvc,
		completionLimiter: p.CompletionLimiter,
		obsMetrics:        p.ObsMetrics,
	}

	svc.registerAuthRoutes()
	svc.registerRelayRoutes()
	svc.registerAccountRoutes()
	svc.registerPaymentRoutes()

	return svc
}

func (s *Server) registerAuthRoutes() {
	g := s.engine.Group("/auth")
	g.POST("/register", s.Register)
	g.POST("/login", s.Login)
}

func (s *Server) registerRelayRoutes() {
	g := s.engine.Group("/v1")
	g.Use(s.AuthRequired())
	g.POST("/chat/completions", s.CompletionRateLimit(), s.ChatCompletions)
}

func (s *Server) registerAccountRoutes() {
	g := s.engine.Group("/account")
	g.Use(s.AuthRequired())
	g.GET("/profile", s.Profile)
	g.GET("/quota", s.Quota)
	g.GET("/usage", s.Usage)
	g.GET("/orders", s.Orders)
}

func (s *Server) registerPaymentRoutes() {
	g := s.engine.Group("/payment")
	g.GET("/plans", s.Plans)
	g.POST("/webhooks/:provider", s.PaymentWebhook)

	authed := g.Group("")
	authed.Use(s.AuthRequired())
	authed.POST("/orders", s.CreateOrder)
	authed.GET("/orders/:out_trade_no", s.GetOrder)

	if s.cfg.DevMockPay {
		authed.POST("/dev/mock-pay/:out_trade_no", s.DevMockPay)
	}
}
