package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/medqueue/backend/internal/api/middleware"
	"github.com/medqueue/backend/internal/application/services"
	"github.com/medqueue/backend/internal/infrastructure/observability"
	"github.com/medqueue/backend/internal/mlcore"
	"github.com/medqueue/backend/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	observability.InitLogger("medqueue-ml", cfg.Logging.Environment, cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize metrics")
	}

	seedValue := cfg.Simulation.Seed
	if seedValue == 0 {
		seedValue = uint64(time.Now().UnixNano())
	}
	models := mlcore.NewModels(services.NewSeededGenerator(seedValue))

	var handler http.Handler = mlcore.NewHandler(models).Routes()
	handler = middleware.CORS([]string{"*"})(handler)
	handler = middleware.Logging(handler)
	handler = middleware.Observability(metrics)(handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.MLService.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Strs("models", mlcore.ModelNames).Msg("starting ML service")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ML service failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down ML service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("ML service forced to shutdown")
	}
	log.Info().Msg("ML service exited")
}
