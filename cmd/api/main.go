package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/medqueue/backend/internal/adapters/cache"
	"github.com/medqueue/backend/internal/adapters/events"
	"github.com/medqueue/backend/internal/adapters/memory"
	"github.com/medqueue/backend/internal/adapters/providers/directory"
	"github.com/medqueue/backend/internal/adapters/search"
	"github.com/medqueue/backend/internal/api/handlers"
	"github.com/medqueue/backend/internal/api/middleware"
	"github.com/medqueue/backend/internal/api/routes"
	"github.com/medqueue/backend/internal/application/services"
	"github.com/medqueue/backend/internal/domain/providers"
	"github.com/medqueue/backend/internal/domain/repositories"
	"github.com/medqueue/backend/internal/infrastructure/clients/mlservice"
	"github.com/medqueue/backend/internal/infrastructure/clients/openai"
	"github.com/medqueue/backend/internal/infrastructure/clients/redis"
	"github.com/medqueue/backend/internal/infrastructure/clients/typesense"
	"github.com/medqueue/backend/internal/infrastructure/notifications"
	"github.com/medqueue/backend/internal/infrastructure/observability"
	"github.com/medqueue/backend/internal/seed"
	"github.com/medqueue/backend/pkg/config"
	"github.com/medqueue/backend/pkg/retry"
)

const (
	eventBufferSize = 100
	lruCacheSize    = 1000
	lruCacheTTL     = 5 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Logging.Environment, cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, &cfg.OTEL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("failed to shut down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize metrics")
	}

	// Event bus and cache: Redis when enabled, in-process otherwise
	var (
		eventBus      providers.EventBus
		cacheProvider providers.CacheProvider
	)
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer redisClient.Close()
		eventBus = events.NewRedisEventBus(redisClient.Client())
		cacheProvider = cache.NewRedisAdapter(redisClient.Client(), "medqueue:")
		log.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("using Redis event bus and cache")
	} else {
		eventBus = events.NewMemoryEventBus(eventBufferSize)
		cacheProvider = cache.NewLRUAdapter(lruCacheSize, lruCacheTTL)
	}
	defer eventBus.Close()

	store := memory.NewHospitalStore()

	var searchRepo repositories.HospitalSearchRepository
	if cfg.Typesense.URL != "" {
		tsClient, err := typesense.NewClient(ctx, &cfg.Typesense, retry.DefaultConfig())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Typesense")
		}
		if err := tsClient.InitSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to initialize Typesense schema")
		}
		searchRepo = search.NewTypesenseAdapter(tsClient)
	} else {
		searchRepo = search.NewMemorySearch(store)
	}

	seedValue := cfg.Simulation.Seed
	if seedValue == 0 {
		seedValue = uint64(time.Now().UnixNano())
	}
	rng := services.NewSeededGenerator(seedValue)

	hub := services.NewRealtimeHub(store, eventBus, eventBufferSize)
	hospitalService := services.NewHospitalService(store, searchRepo, hub, rng)
	if cfg.Directory.DirectoryEnabled() {
		places := directory.NewGooglePlacesProvider(cfg.Directory.APIKey, directory.Options{
			BaseURL:   cfg.Directory.BaseURL,
			Cache:     cacheProvider,
			CacheTTL:  cfg.Directory.CacheTTL,
			RateLimit: cfg.Directory.RateLimit,
		})
		hospitalService.WithDirectory(services.DirectoryOptions{
			Directory:    places,
			RadiusMeters: cfg.Directory.RadiusM,
			PerCity:      cfg.Directory.PerCity,
		})
	}

	loc := cfg.Simulation.Location()
	simulator := services.NewQueueSimulator(store, hub, rng, cfg.Simulation.Interval)
	simulator.SetClock(func() time.Time { return time.Now().In(loc) })

	var chat providers.ChatProvider
	if cfg.OpenAI.HealthAPIKey != "" || cfg.OpenAI.EducationAPIKey != "" {
		chat = openai.NewClient(&cfg.OpenAI, cfg.Server.UpstreamTimeout)
	} else {
		log.Warn().Msg("no OpenAI keys configured, chat runs in offline mode")
	}
	predictor := mlservice.NewClient(cfg.MLService.URL, cfg.Server.UpstreamTimeout)

	var sms providers.SMSSender
	if cfg.Twilio.Configured() {
		sender, err := notifications.NewTwilioSender(&cfg.Twilio, cfg.Server.UpstreamTimeout)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure Twilio")
		}
		sms = sender
	} else {
		log.Warn().Msg("Twilio not configured, notifications return mock references")
	}

	assistantService := services.NewAssistantService(chat, predictor)
	notificationService := services.NewNotificationService(sms, rng)

	realtimeHandler := handlers.NewRealtimeHandler(hub, hospitalService, metrics, cfg.Server.AllowedOrigins)
	router := routes.NewRouter(routes.Options{
		Hospitals:       handlers.NewHospitalHandler(hospitalService),
		Assistant:       handlers.NewAssistantHandler(assistantService, metrics),
		Notifications:   handlers.NewNotificationHandler(notificationService, metrics),
		Realtime:        realtimeHandler,
		Diagnostics:     handlers.NewDiagnosticsHandler(hospitalService, realtimeHandler),
		CacheMiddleware: middleware.NewCacheMiddleware(cacheProvider),
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		Metrics:         metrics,
	})

	if err := hub.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start realtime hub")
	}

	// Seed the roster before accepting traffic
	roster, err := seed.Load(cfg.Simulation.RosterPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load hospital roster")
	}
	if err := hospitalService.Initialize(ctx, roster); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize hospitals")
	}
	log.Info().Int("hospitals", hospitalService.Count(ctx)).Msg("hospital roster initialized")

	if err := mlPing(ctx, predictor); err != nil {
		log.Warn().Err(err).Str("url", cfg.MLService.URL).Msg("ML service unreachable, wait-time predictions use the local estimate")
	}

	// Streams stay open indefinitely, so there is no write timeout
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if err := simulator.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start queue simulator")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")

		simulator.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("server exited")
}

func mlPing(ctx context.Context, client *mlservice.Client) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return client.Ping(pingCtx)
}
