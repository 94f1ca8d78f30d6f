package router

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jwalitptl/clinic-sync/internal/handler"
	"github.com/jwalitptl/clinic-sync/internal/middleware"
	"github.com/jwalitptl/clinic-sync/internal/model"
)

const streamPath = "/api/v1/stream"

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// Handlers groups the feature handlers mounted by the router.
type Handlers struct {
	Root     *handler.Handler
	Health   Handler
	Auth     Handler
	Requests Handler
	Doctor   Handler
	Stream   Handler
	Pharmacy Handler
	Shop     Handler
	Advisor  Handler
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
	metrics  *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	errorTotal      *prometheus.CounterVec
}

type RouterConfig struct {
	Mode          string
	RateLimit     float64
	RateBurst     int
	CORSOrigins   []string
	Timeout       time.Duration
	MaxBodyBytes  int64
	MetricsPrefix string
	// Registerer defaults to the global prometheus registry.
	Registerer prometheus.Registerer
}

func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, config RouterConfig) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if config.Registerer == nil {
		config.Registerer = prometheus.DefaultRegisterer
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 1 << 20
	}

	engine := gin.New()

	r := &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
		metrics:  initRouterMetrics(config.MetricsPrefix, config.Registerer),
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		r.metricsMiddleware(),
		middleware.Timeout(middleware.TimeoutConfig{
			Duration:  config.Timeout,
			SkipPaths: []string{streamPath},
		}),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(middleware.DefaultCORSConfig(config.CORSOrigins)),
		middleware.SizeLimit(config.MaxBodyBytes),
	)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RPS:   config.RateLimit,
		Burst: config.RateBurst,
	})
	engine.Use(rateLimiter.RateLimit())

	return r
}

func (r *Router) Setup() {
	r.engine.GET("/", r.handlers.Root.Home)
	r.engine.NoRoute(r.handlers.Root.NotFound)

	r.handlers.Health.RegisterRoutes(&r.engine.RouterGroup)

	api := r.engine.Group("/api")
	r.handlers.Auth.RegisterRoutes(api)

	v1 := api.Group("/v1")
	v1.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.setupPublicRoutes(v1)

	protected := v1.Group("")
	protected.Use(r.auth.Authenticate())
	r.setupProtectedRoutes(protected)
}

func (r *Router) setupPublicRoutes(rg *gin.RouterGroup) {
	public := rg.Group("", middleware.Cache(middleware.CacheConfig{MaxAge: 60}))
	r.handlers.Shop.RegisterRoutes(public)
}

func (r *Router) setupProtectedRoutes(rg *gin.RouterGroup) {
	r.handlers.Requests.RegisterRoutes(rg)
	r.handlers.Stream.RegisterRoutes(rg)

	doctors := rg.Group("", r.auth.RequireRole(model.RoleDoctor, model.RoleAdmin))
	r.handlers.Doctor.RegisterRoutes(doctors)
	r.handlers.Advisor.RegisterRoutes(doctors)

	pharmacists := rg.Group("", r.auth.RequireRole(model.RolePharmacist, model.RoleAdmin))
	r.handlers.Pharmacy.RegisterRoutes(pharmacists)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics(prefix string, reg prometheus.Registerer) *routerMetrics {
	if prefix == "" {
		prefix = "clinic"
	}
	f := promauto.With(reg)
	return &routerMetrics{
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: prefix + "_http_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		errorTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_errors_total",
				Help: "Total number of HTTP errors",
			},
			[]string{"method", "path", "type"},
		),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		code := c.Writer.Status()
		status := strconv.Itoa(code)

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()

		switch {
		case code >= 500:
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, "server").Inc()
		case code >= 400:
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, "client").Inc()
		}
	}
}
