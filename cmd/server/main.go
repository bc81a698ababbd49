package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carmen/internal/config"
	"carmen/internal/infra"
	"carmen/internal/metrics"
	"carmen/internal/router"
	"carmen/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := worker.NewDispatcher(rdb)
	svcs, err := router.NewServices(cfg, db, rdb, dispatcher)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire services")
	}

	// Worker handlers are wired here (composition root) so that the pool
	// reaches the same services the HTTP layer uses.
	mailer := infra.NewMailer(cfg)
	bulkWorker := worker.NewBulkWorker(svcs.Bulk, rdb, cfg.BulkResultTTL)
	pool := worker.NewPool(rdb)
	pool.Handle(worker.JobTypeBulkAssignment, bulkWorker.Process)
	pool.Handle(worker.JobTypeEmail, worker.NewEmailWorker(mailer).Process)
	pool.OnDeadLetter(worker.JobTypeBulkAssignment, func(ctx context.Context, payload json.RawMessage) {
		worker.MarkBulkFailed(ctx, rdb, payload, cfg.BulkResultTTL)
	})
	pool.Start(ctx, cfg.WorkerPoolSize)

	feedCB := infra.NewCircuitBreaker(infra.DefaultCBConfig("rate_feed"))
	if cfg.FXFeedURL != "" {
		worker.StartRateRefreshCron(ctx, worker.RateRefreshConfig{
			Feed:         infra.NewRateFeedClient(cfg.FXFeedURL),
			Recorder:     svcs.Rates,
			CB:           feedCB,
			BaseCurrency: cfg.BaseCurrency,
			Interval:     cfg.FXRefreshInterval,
		})
	} else {
		log.Info().Msg("FX_FEED_URL not set, rate refresher disabled")
	}

	r := router.New(cfg, db, rdb, svcs, feedCB)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("price assignment engine listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	cancel()
	log.Info().Msg("server exited")
}

// setupLogger: dev gets the pretty console writer, production plain JSON.
func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.IsProduction() {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
