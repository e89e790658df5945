package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"quant-engine/internal/engine"
	"quant-engine/internal/events"
	"quant-engine/internal/monitor"
	"quant-engine/internal/reconciliation"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "binance-trading-bot"

// Server wires HTTP endpoints around the engine and the event bus.
type Server struct {
	Router    *gin.Engine
	Engine    engine.Service
	Bus       *events.Bus
	Metrics   *monitor.Metrics
	Gatherer  prometheus.Gatherer
	Recon     *reconciliation.Service
	Log       *zap.Logger
	JWTSecret string

	limiters *ipLimiters
}

// Options holds the optional collaborators of a Server.
type Options struct {
	Bus       *events.Bus
	Metrics   *monitor.Metrics
	Gatherer  prometheus.Gatherer
	Recon     *reconciliation.Service
	Log       *zap.Logger
	JWTSecret string
	Timeout   time.Duration
	// RateLimit and RateBurst bound requests per client IP; zero means 20/s, burst 50.
	RateLimit float64
	RateBurst int
}

func NewServer(svc engine.Service, opts Options) *Server {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 20
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 50
	}
	log := opts.Log.Named("api")

	limiters := newIPLimiters(rate.Limit(opts.RateLimit), opts.RateBurst)
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())                       // Panic recovery (first)
	r.Use(RequestIDMiddleware())                // Request ID tracking
	r.Use(RequestLogger(log, opts.Metrics))     // Request logging (after ID is set)
	r.Use(RateLimitMiddleware(limiters, log))   // Rate limiting
	r.Use(CORSMiddleware())                     // CORS
	r.Use(TimeoutMiddleware(log, opts.Timeout)) // Request timeout (last before routes)

	s := &Server{
		Router:    r,
		Engine:    svc,
		Bus:       opts.Bus,
		Metrics:   opts.Metrics,
		Gatherer:  opts.Gatherer,
		Recon:     opts.Recon,
		Log:       log,
		JWTSecret: opts.JWTSecret,
		limiters:  limiters,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/", s.root)
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)
	if s.Gatherer != nil {
		s.Router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{})))
	}

	s.Router.GET("/config", s.getConfig)
	s.Router.GET("/positions", s.getPositions)
	s.Router.GET("/orders", s.getOrders)
	s.Router.GET("/status", s.getStatus)
	s.Router.GET("/market", s.getMarket)
	s.Router.GET("/reconciliation", s.getReconciliation)

	// Mutating routes
	protected := s.Router.Group("")
	protected.Use(AuthMiddleware(s.JWTSecret))
	{
		protected.POST("/config", s.updateConfig)
		protected.POST("/refresh", s.refresh)
		protected.POST("/run_strategy", s.runStrategy)
		protected.POST("/start", s.start)
		protected.POST("/stop", s.stop)
	}
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Binance Quant Trading Bot API", "status": "running"})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": ServiceName})
}

// SweepLimiters drops per-IP limiters every interval until ctx is done.
func (s *Server) SweepLimiters(ctx context.Context, interval time.Duration) {
	go s.limiters.sweep(ctx, interval)
}

// Handler returns the HTTP handler for use with an http.Server.
func (s *Server) Handler() http.Handler {
	return s.Router
}
