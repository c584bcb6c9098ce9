package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"schedule-bridge-backend/internal/api"
	"schedule-bridge-backend/internal/bridge"
	"schedule-bridge-backend/internal/db"
	"schedule-bridge-backend/internal/logging"
	"schedule-bridge-backend/internal/mw"
	"schedule-bridge-backend/internal/notification"
	"schedule-bridge-backend/internal/schedule"
	"schedule-bridge-backend/internal/solver"
	"schedule-bridge-backend/internal/store"
	"schedule-bridge-backend/internal/timetable"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server, the solver queue and the notification workers",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.Server.Environment)
	logger.Info().Str("path", path).Msg("configuration loaded")
	if cfg.Server.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	tt, err := timetable.Parse(cfg.Timetable.ClassStarts, time.Duration(cfg.Timetable.GraceMinutes)*time.Minute)
	if err != nil {
		return err
	}
	clock, err := timetable.NewZoneClock(cfg.Timetable.Timezone)
	if err != nil {
		return err
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database, cfg.Server.Environment)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	appStore := store.NewGormStore(gormDB)

	// Stopped on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cache, err := mw.NewResponseCache(ctx, cfg.Cache, cfg.Server.CacheTTL, logging.Component(logger, "cache"))
	if err != nil {
		return err
	}

	queue := solver.NewQueue(solver.Options{
		Addr:          cfg.Solver.Addr(),
		TotalTimeout:  cfg.Solver.TotalTimeout,
		SocketTimeout: cfg.Solver.SocketTimeout,
		Capacity:      cfg.Solver.QueueCapacity,
	}, logger)
	logger.Info().Str("addr", queue.Addr()).Msg("solver queue started")

	var (
		webpushOptions *webpush.Options
		notifier       bridge.Notifier
		workers        *notification.WorkerPool
		workersCtx     context.Context
		stopWorkers    context.CancelFunc = func() {}
	)
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		workers = notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions, logger)
		workersCtx, stopWorkers = context.WithCancel(context.Background())
		workers.Start(workersCtx)
		notifier = workers
		logger.Info().Int("workers", cfg.WorkerPool.Size).Msg("push notifications enabled")
	} else {
		logger.Warn().Msg("VAPID keys are not configured; cancellation notices are disabled")
	}

	bridgeSvc := bridge.NewService(queue, appStore, bridge.Options{
		Timetable:        tt,
		Clock:            clock,
		Locations:        cfg.Timetable.Locations,
		DefaultCorpus:    cfg.Timetable.DefaultCorpus,
		CancelScope:      cfg.Bridge.CancelScope,
		CancelTimeStatus: cfg.Bridge.CancelTimeStatus,
		Notifier:         notifier,
	}, logger)

	handler := api.NewHandler(api.Deps{
		Bridge:      bridgeSvc,
		Schedule:    schedule.NewService(appStore, logger),
		Store:       appStore,
		Solver:      queue,
		Cache:       cache,
		Webpush:     webpushOptions,
		PushTimeout: cfg.Solver.SocketTimeout,
		Logger:      logger,
	})
	router := api.NewRouter(handler, api.RouterConfig{
		RateLimitPerSec: cfg.Server.RateLimitPerSec,
		RateLimitBurst:  cfg.Server.RateLimitBurst,
		CacheTTL:        cfg.Server.CacheTTL,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	logger.Info().Int("port", cfg.Server.Port).Msg("HTTP server starting")
	httpErr := serveHTTP(ctx, server, logger)

	// HTTP is down, so no new solver calls arrive; drain the queue.
	queueCtx, cancelQueue := context.WithTimeout(context.Background(), cfg.Solver.ShutdownWait)
	defer cancelQueue()
	if err := queue.Shutdown(queueCtx); err != nil {
		logger.Warn().Err(err).Int64("pending", queue.Pending()).Msg("solver queue did not drain in time")
	}

	stopWorkers()
	if workers != nil {
		workers.Wait()
	}

	if httpErr != nil {
		return fmt.Errorf("HTTP server: %w", httpErr)
	}
	logger.Info().Msg("server gracefully stopped")
	return nil
}

// serveHTTP runs srv until ctx is done or the listener fails, then shuts the
// server down. A listener failure is returned.
func serveHTTP(ctx context.Context, srv *http.Server, logger zerolog.Logger) error {
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var failed error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received, stopping services")
	case err := <-serveErr:
		if err != nil {
			logger.Error().Err(err).Msg("HTTP server failed")
			failed = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown")
	}
	return failed
}
