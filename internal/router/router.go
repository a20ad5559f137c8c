package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/detailing-api/internal/handler"
	"github.com/jwalitptl/detailing-api/internal/middleware"
	"github.com/jwalitptl/detailing-api/pkg/httputil"
	"github.com/jwalitptl/detailing-api/pkg/metrics"
)

type Handler interface {
	RegisterRoutes(gin.IRouter)
}

// ChatHandler takes extra middleware for the routes that reach a backend.
type ChatHandler interface {
	RegisterRoutes(gin.IRouter, ...gin.HandlerFunc)
}

type Handlers struct {
	Health    *handler.Handler
	Auth      Handler
	Services  Handler
	Customers Handler
	Registry  Handler
	Chat      ChatHandler
}

type RouterConfig struct {
	CORS           middleware.CORSConfig
	Security       middleware.SecurityConfig
	SizeLimit      middleware.SizeLimitConfig
	RequestTimeout time.Duration
	MetricsPath    string
	Logger         zerolog.Logger
	Metrics        *metrics.Metrics
}

type Router struct {
	engine      *gin.Engine
	config      RouterConfig
	handlers    Handlers
	auth        *middleware.AuthMiddleware
	chatLimiter *middleware.RateLimiter
}

// NewRouter builds the engine and its global middleware. auth and chatLimiter
// are optional.
func NewRouter(config RouterConfig, handlers Handlers, auth *middleware.AuthMiddleware, chatLimiter *middleware.RateLimiter) *Router {
	engine := gin.New()

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(config.Logger),
		middleware.ErrorHandler(),
	)
	if config.Metrics != nil {
		engine.Use(middleware.Metrics(config.Metrics))
	}
	engine.Use(
		middleware.Timeout(config.RequestTimeout),
		middleware.SecurityHeaders(config.Security),
		middleware.CORS(config.CORS),
		middleware.SizeLimit(config.SizeLimit),
	)

	return &Router{
		engine:      engine,
		config:      config,
		handlers:    handlers,
		auth:        auth,
		chatLimiter: chatLimiter,
	}
}

func (r *Router) Setup() {
	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, httputil.ErrorResponse{
			Error:   httputil.TitleNotFound,
			Message: "Route not found",
		})
	})

	if r.handlers.Health != nil {
		r.handlers.Health.RegisterRoutes(r.engine)
		if r.config.Metrics != nil && r.config.MetricsPath != "" {
			r.engine.GET(r.config.MetricsPath, r.handlers.Health.MetricsHandler())
		}
	}

	api := r.engine.Group("/api")
	r.setupPublicRoutes(api)

	protected := api.Group("")
	if r.auth != nil {
		protected.Use(r.auth.ProtectWrites())
	}
	r.setupProtectedRoutes(protected)
}

func (r *Router) setupPublicRoutes(rg *gin.RouterGroup) {
	if r.auth != nil && r.handlers.Auth != nil {
		r.handlers.Auth.RegisterRoutes(rg)
	}
	if r.handlers.Chat != nil {
		var limit []gin.HandlerFunc
		if r.chatLimiter != nil {
			limit = append(limit, r.chatLimiter.RateLimit())
		}
		r.handlers.Chat.RegisterRoutes(rg, limit...)
	}
}

func (r *Router) setupProtectedRoutes(rg *gin.RouterGroup) {
	for _, h := range []Handler{r.handlers.Services, r.handlers.Customers, r.handlers.Registry} {
		if h != nil {
			h.RegisterRoutes(rg)
		}
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
