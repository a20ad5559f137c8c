package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/detailing-api/internal/apis"
	"github.com/jwalitptl/detailing-api/internal/config"
	"github.com/jwalitptl/detailing-api/internal/email"
	"github.com/jwalitptl/detailing-api/internal/handler"
	authHandler "github.com/jwalitptl/detailing-api/internal/handler/auth"
	catalogHandler "github.com/jwalitptl/detailing-api/internal/handler/catalog"
	chatHandler "github.com/jwalitptl/detailing-api/internal/handler/chat"
	customerHandler "github.com/jwalitptl/detailing-api/internal/handler/customer"
	registryHandler "github.com/jwalitptl/detailing-api/internal/handler/registry"
	"github.com/jwalitptl/detailing-api/internal/llm"
	"github.com/jwalitptl/detailing-api/internal/middleware"
	"github.com/jwalitptl/detailing-api/internal/registry"
	"github.com/jwalitptl/detailing-api/internal/repository/sqlite"
	"github.com/jwalitptl/detailing-api/internal/router"
	authService "github.com/jwalitptl/detailing-api/internal/service/auth"
	catalogService "github.com/jwalitptl/detailing-api/internal/service/catalog"
	customerService "github.com/jwalitptl/detailing-api/internal/service/customer"
	"github.com/jwalitptl/detailing-api/pkg/auth"
	"github.com/jwalitptl/detailing-api/pkg/logger"
	"github.com/jwalitptl/detailing-api/pkg/messaging"
	"github.com/jwalitptl/detailing-api/pkg/messaging/redis"
	"github.com/jwalitptl/detailing-api/pkg/metrics"
	"github.com/jwalitptl/detailing-api/pkg/security"
	"github.com/jwalitptl/detailing-api/pkg/validator"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLog := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	db, err := sqlite.NewDB(cfg.DatabaseDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	log.Info().Str("dsn", cfg.DatabaseDSN()).Msg("database ready")

	// Metrics
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace, promRegistry)
	}

	// Change events go to Redis when configured
	publisher := newPublisher(cfg)

	// Initialize services
	validate := validator.New()
	catalogSvc := catalogService.NewService(
		sqlite.NewServiceRepository(db),
		catalogService.WithPublisher(publisher, cfg.Redis.Channel),
		catalogService.WithMetrics(m),
		catalogService.WithLogger(logger.Component("catalog")),
	)
	customerSvc := customerService.NewService(
		sqlite.NewCustomerRepository(db),
		customerService.WithPublisher(publisher, cfg.Redis.Channel),
		customerService.WithEmail(email.NewService(email.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			NotifyTo: cfg.SMTP.NotifyTo,
		})),
		customerService.WithMetrics(m),
		customerService.WithLogger(logger.Component("customer")),
	)

	// Initialize handlers
	catalogH := catalogHandler.NewHandler(catalogSvc, validate)
	customerH := customerHandler.NewHandler(customerSvc, validate)

	// The chat handler needs the backend catalog, which needs the registry,
	// which lists the chat handler: resolve through a late-bound handler.
	backends := llmBackends(cfg.LLM.Backends)
	var chatServe gin.HandlerFunc
	reg := registry.New(
		apis.Sources(apis.Handlers{
			Services:  catalogH.Serve(),
			Customers: customerH.Serve(),
			Chat:      func(c *gin.Context) { chatServe(c) },
		}, backends),
		registry.WithManifestDir(cfg.Registry.ManifestDir),
		registry.WithLogger(logger.Component("registry")),
		registry.WithObserver(apis.RegistryObserver(m)),
	)
	if err := reg.Initialize(); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize api registry")
	}

	catalog := apis.NewBackendCatalog(llm.NewStaticCatalog(backends), reg)
	llmRouter := llm.NewRouter(catalog,
		llm.MultiTransport{
			llm.KindHTTP:   llm.NewHTTPTransport(cfg.LLM.Timeout, cfg.LLM.Referer, cfg.LLM.Title),
			llm.KindOpenAI: llm.NewOpenAITransport(cfg.LLM.Timeout, cfg.LLM.Referer, cfg.LLM.Title),
		},
		llm.WithTimeout(cfg.LLM.Timeout),
		llm.WithCircuitBreaker(cfg.LLM.BreakerFailures, cfg.LLM.BreakerTimeout),
		llm.WithMetrics(m),
		llm.WithLogger(logger.Component("llm")),
	)

	var chatLimiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		chatLimiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RPS:     cfg.RateLimit.RequestsPerSecond,
			Burst:   cfg.RateLimit.Burst,
			IdleTTL: cfg.RateLimit.IdleTTL,
		})
	}

	// The registry entry shares the chat routes' limiter.
	chatH := chatHandler.NewHandler(llmRouter, catalog, cfg.LLM.Assignments)
	chatServe = chatLimiter.Guard(chatH.Serve())

	var (
		authMiddleware *middleware.AuthMiddleware
		authH          router.Handler
	)
	if cfg.Auth.Enabled {
		jwtSvc := auth.NewJWTService(cfg.Auth.JWTSecret, "detailing-api", cfg.Auth.TokenTTL)
		authMiddleware = middleware.NewAuthMiddleware(jwtSvc)
		authH = authHandler.NewHandler(authService.NewService(
			cfg.Auth.Username, cfg.Auth.PasswordHash, cfg.Auth.TokenTTL, jwtSvc, security.NewBcryptHasher(0),
		))
	}

	// Setup router
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.CORS.AllowOrigins
	cors.MaxAge = cfg.CORS.MaxAge
	sizeLimit := middleware.DefaultSizeLimitConfig()
	sizeLimit.MaxBodySize = cfg.Server.MaxBodyBytes

	r := router.NewRouter(router.RouterConfig{
		CORS:           cors,
		Security:       middleware.DefaultSecurityConfig(),
		SizeLimit:      sizeLimit,
		RequestTimeout: cfg.LLM.Timeout + 5*time.Second,
		MetricsPath:    cfg.Metrics.Path,
		Logger:         appLog,
		Metrics:        m,
	}, router.Handlers{
		Health:    handler.NewHandler(db, promRegistry),
		Auth:      authH,
		Services:  catalogH,
		Customers: customerH,
		Registry:  registryHandler.NewHandler(reg),
		Chat:      chatH,
	}, authMiddleware, chatLimiter)
	r.Setup()

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("env", cfg.Env).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := publisher.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close publisher")
	}
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close database")
	}
	log.Info().Msg("server exited")
}

// newPublisher connects to Redis, falling back to a no-op publisher when
// Redis is not configured or unreachable.
func newPublisher(cfg *config.Config) messaging.Publisher {
	if cfg.Redis.URL == "" {
		return messaging.Noop{}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := redis.NewRedisBroker(ctx, redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
	}, logger.Component("redis"))
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, change events will not be published")
		return messaging.Noop{}
	}
	return p
}

func llmBackends(in []config.BackendConfig) []llm.Backend {
	out := make([]llm.Backend, 0, len(in))
	for _, b := range in {
		out = append(out, llm.Backend{
			ID:       b.ID,
			Name:     b.Name,
			Kind:     llm.Kind(b.Kind),
			Endpoint: b.Endpoint,
			Model:    b.Model,
			APIKey:   b.APIKey,
			Enabled:  b.Enabled,
		})
	}
	return out
}
