package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fluxpro/relay-server-go/internal/config"
	"github.com/fluxpro/relay-server-go/internal/database"
	"github.com/fluxpro/relay-server-go/internal/events"
	"github.com/fluxpro/relay-server-go/internal/handler"
	"github.com/fluxpro/relay-server-go/internal/jobs"
	"github.com/fluxpro/relay-server-go/internal/middleware"
	"github.com/fluxpro/relay-server-go/internal/redis"
	"github.com/fluxpro/relay-server-go/internal/repository"
	"github.com/fluxpro/relay-server-go/internal/service"
	"github.com/fluxpro/relay-server-go/internal/sse"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	healthChecks := make(map[string]handler.Pinger)

	repos, closeStore := openStore(cfg, healthChecks)
	defer closeStore()

	// Redis is optional: without it the broker delivers in-process, rate
	// limits are per instance and inbound de-duplication is off.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		healthChecks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
		log.Info().Msg("redis connected")
	} else {
		log.Warn().Msg("REDIS_URL not set: running single-instance without de-duplication")
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to amqp broker")
		}
		publisher = amqpPublisher
	}
	defer publisher.Close()

	broker := sse.NewBroker(redisClient)

	cache := service.NewCredentialCache()
	store := service.NewCredentialStore(repos.Accounts, repos.Settings, cache, cfg.EncryptionKey)

	startCtx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	store.LoadFallback(startCtx, cfg.PageAccessToken)
	cancel()

	// Inbound entries use their stored account first; these sources serve
	// accounts that are unknown or carry no usable credential.
	inboundCredentials := service.NewCredentialResolver(
		service.NewCacheSource(cache),
		service.NewStaticSource(cfg.PageAccessToken),
	)
	outboundCredentials := service.NewCredentialResolver(
		service.NewCacheSource(cache),
		service.NewAnyAccountSource(store, cache),
		service.NewStaticSource(cfg.PageAccessToken),
	)
	statusCredentials := service.NewCredentialResolver(
		service.NewCacheSource(cache),
		service.NewAnyAccountSource(store, nil),
		service.NewStaticSource(cfg.PageAccessToken),
	)

	graphClient := service.NewGraphClient(cfg)
	profileResolver := service.NewProfileResolver(graphClient)

	var dedup service.Deduplicator
	var limiter middleware.Limiter
	if redisClient != nil {
		dedup = service.NewRedisDeduplicator(redisClient.Client)
		limiter = service.NewRateLimiter(redisClient.Client)
	} else {
		limiter = middleware.NewMemoryRateLimiter()
	}

	inboundRouter := service.NewInboundRouter(store, inboundCredentials, profileResolver, broker, dedup, publisher)
	outboundSender := service.NewOutboundSender(outboundCredentials, graphClient)
	coordinator := service.NewOAuthCoordinator(
		cfg,
		service.NewStateSigner(cfg.StateSecret),
		store,
		statusCredentials,
		repos.ProviderCredentials,
		graphClient,
		broker,
	)
	paymentService := service.NewPaymentService(repos.Payments)

	signatureMiddleware := middleware.NewWebhookSignatureMiddleware(cfg.MetaAppSecret)
	paymentTokenMiddleware := middleware.NewPaymentTokenMiddleware(cfg.PaymentWebhookToken)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(cfg.IsProduction())
	pageSecurityHeadersMiddleware := middleware.NewPageSecurityHeadersMiddleware(cfg.IsProduction())
	sendRateLimit := middleware.NewIPRateLimitMiddleware(
		limiter, config.SendMessageRateLimit, config.RateLimitWindow, "ratelimit:send:",
	)
	authRateLimit := middleware.NewIPRateLimitMiddleware(
		limiter, config.AuthRateLimit, config.RateLimitWindow, "ratelimit:auth:",
	)

	webhookHandler := handler.NewWebhookHandler(inboundRouter, cfg.VerifyToken)
	sendHandler := handler.NewSendHandler(outboundSender)
	authHandler := handler.NewAuthHandler(coordinator)
	statusHandler := handler.NewStatusHandler(coordinator)
	eventsHandler := handler.NewEventsHandler(broker)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	healthHandler := handler.NewHealthHandler(healthChecks)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/webhook", func(r chi.Router) {
		r.Get("/", webhookHandler.Verify)
		r.With(signatureMiddleware.Handler).Post("/", webhookHandler.Receive)
	})

	// SSE streams are long-lived and must not inherit the request timeout.
	r.Route("/events", func(r chi.Router) {
		r.Use(securityHeadersMiddleware.Handler)
		r.Get("/", eventsHandler.ServeHTTP)
		r.With(chimiddleware.Timeout(config.ServerRequestTimeout)).Post("/join", eventsHandler.Join)
	})

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Use(securityHeadersMiddleware.Handler)

		r.With(sendRateLimit.Handler).Post("/api/send-message", sendHandler.SendMessage)
		r.With(sendRateLimit.Handler).Post("/api/enviar-instagram", sendHandler.SendMessage)
		r.Get("/status/{provider}", statusHandler.Status)
		r.With(paymentTokenMiddleware.Handler).Post("/webhooks/payment", paymentHandler.Webhook)
	})

	r.Route("/auth", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Use(pageSecurityHeadersMiddleware.Handler)
		r.Use(authRateLimit.Handler)
		r.Mount("/", authHandler.Routes())
	})

	refreshJob := jobs.NewRefreshJob(coordinator, config.CredentialRefreshInterval, config.CredentialRefreshWindow)
	refreshJob.Start()
	defer refreshJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().
			Str("addr", cfg.Addr()).
			Str("store", cfg.StoreDriver).
			Bool("redis", redisClient != nil).
			Bool("eventExport", cfg.AMQPURL != "").
			Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	// Close SSE streams first so Shutdown does not wait on them.
	broker.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// openStore connects the configured document store and registers its health
// check. An unreachable store is logged, not fatal: the relay starts in
// fallback mode and the store is used once it comes back. The returned func
// releases the connection.
func openStore(cfg *config.Config, healthChecks map[string]handler.Pinger) (*repository.Repositories, func()) {
	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	defer cancel()

	switch cfg.StoreDriver {
	case config.StoreDriverFirestore:
		client, err := database.ConnectFirestore(ctx, cfg.FirestoreProjectID, cfg.FirestoreCredentialsFile)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to firestore")
		}
		healthChecks["store"] = handler.PingFunc(func(ctx context.Context) error {
			return database.PingFirestore(ctx, client)
		})
		if err := database.PingFirestore(ctx, client); err != nil {
			log.Error().Err(err).Msg("firestore unreachable at startup, running in fallback mode")
		} else {
			log.Info().Str("project", cfg.FirestoreProjectID).Msg("firestore connected")
		}
		return repository.NewFirestoreRepositories(client), func() { client.Close() }

	default:
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open database")
		}
		healthChecks["store"] = db

		migrateCtx, stopMigrate := context.WithCancel(context.Background())
		if err := db.Migrate(ctx); err != nil {
			log.Error().Err(err).Msg("database unreachable at startup, running in fallback mode")
			go db.MigrateUntilReady(migrateCtx, config.DBMigrateRetryInterval)
		} else {
			log.Info().Msg("database connected")
		}

		return repository.NewPostgresRepositories(db.DB), func() {
			stopMigrate()
			db.Close()
		}
	}
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
