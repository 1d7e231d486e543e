package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/pmitsakas/thesisflow/internal/config"
	"github.com/pmitsakas/thesisflow/internal/database"
	"github.com/pmitsakas/thesisflow/internal/delivery/httpd"
	"github.com/pmitsakas/thesisflow/internal/metrics"
	"github.com/pmitsakas/thesisflow/internal/middleware"
	"github.com/pmitsakas/thesisflow/internal/repository"
	"github.com/pmitsakas/thesisflow/internal/repository/memory"
	"github.com/pmitsakas/thesisflow/internal/service"
	"github.com/pmitsakas/thesisflow/internal/service/integration"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type App struct {
	server    *http.Server
	logger    zerolog.Logger
	config    *config.Config
	store     repository.Store
	publisher integration.NotificationPublisher
	redis     *redis.Client
}

func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	publisher := integration.NewNoopPublisher()
	if cfg.RabbitMQ.Enabled {
		publisher, err = integration.NewRabbitMQClient(integration.RabbitMQOptions{
			URL:              cfg.RabbitMQ.URL,
			Exchange:         cfg.RabbitMQ.Exchange,
			RoutingKeyPrefix: cfg.RabbitMQ.RoutingKeyPrefix,
			QueueName:        cfg.RabbitMQ.QueueName,
			PublishTimeout:   cfg.RabbitMQ.PublishTimeout,
		}, log)
		if err != nil {
			// notifications are still stored without the broker
			log.Error().Err(err).Msg("Failed to create RabbitMQ client, continuing without event fan-out")
			publisher = integration.NewNoopPublisher()
		}
	}

	collector := metrics.NewCollector()

	var (
		redisClient *redis.Client
		throttle    func(http.Handler) http.Handler
	)
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unreachable, rate limiting fails open")
		}
		throttle = middleware.RateLimit(
			middleware.NewRedisLimiter(redisClient),
			"create",
			cfg.Redis.ApplyLimit,
			cfg.Redis.ApplyWindow,
			collector,
			log,
		)
	}

	notificationService := service.NewNotificationService(store, publisher, collector, log)
	dissertationService := service.NewDissertationService(store, notificationService, collector, log)
	applicationService := service.NewApplicationService(store, collector, log)
	orchestrator := service.NewAssignmentOrchestrator(store, notificationService, collector, log)

	handler := httpd.NewHandler(
		dissertationService,
		applicationService,
		orchestrator,
		notificationService,
		store,
		log,
	)

	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.NewCORS(cfg.CORS))
	if cfg.Server.RequestTimeout > 0 {
		router.Use(chimiddleware.Timeout(cfg.Server.RequestTimeout))
	}
	router.Use(collector.Middleware)
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Recovery(log))

	router.Method(http.MethodGet, "/metrics", collector.Handler())
	handler.RegisterRoutes(router, middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer), throttle)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &App{
		server:    server,
		logger:    log,
		config:    cfg,
		store:     store,
		publisher: publisher,
		redis:     redisClient,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (repository.Store, error) {
	if cfg.Storage.Driver == config.StorageDriverMemory {
		log.Warn().Msg("Using in-memory storage; data is lost on restart")
		return memory.NewStore(), nil
	}

	db, err := database.NewPostgres(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return repository.NewPostgresStore(db, log), nil
}

func (a *App) Handler() http.Handler {
	return a.server.Handler
}

func (a *App) Run() error {
	a.logger.Info().
		Str("address", a.config.Server.Address).
		Str("storage", a.config.Storage.Driver).
		Msg("Starting thesisflow")

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info().Msg("Shutting down thesisflow...")

	err := a.server.Shutdown(ctx)

	if err := a.publisher.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close RabbitMQ connection")
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close Redis client")
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close database connection")
	}

	return err
}
