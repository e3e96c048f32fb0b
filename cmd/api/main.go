package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"routeopt/internal/api"
	"routeopt/internal/buildinfo"
	"routeopt/internal/config"
	"routeopt/internal/maintenance"
	"routeopt/internal/metrics"
	"routeopt/internal/worker"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("cannot read .env")
	}
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}
	zerolog.SetGlobalLevel(cfg.Level())
	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log.Info().Interface("build", buildinfo.Info()).Str("env", cfg.Environment).Msg("starting route optimizer")

	metrics.RegisterDefault()

	srv, err := api.NewServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot create server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	waitGroup, ctx := errgroup.WithContext(ctx)
	runTaskProcessor(ctx, waitGroup, cfg, srv)
	runCacheScheduler(ctx, waitGroup, cfg, srv)
	runHTTPServer(ctx, waitGroup, cfg, srv)

	if err := waitGroup.Wait(); err != nil {
		log.Fatal().Err(err).Msg("error from wait group")
	}
	log.Info().Msg("stopped")
}

func runTaskProcessor(ctx context.Context, waitGroup *errgroup.Group, cfg config.Config, srv *api.Server) {
	if srv.RedisOpt == nil {
		log.Warn().Msg("REDIS_URL not set, async optimization disabled")
		return
	}
	processor := worker.NewRedisTaskProcessor(srv.RedisOpt, cfg.Worker.Concurrency, srv.Runner)
	log.Info().Int("concurrency", cfg.Worker.Concurrency).Msg("start task processor")

	waitGroup.Go(func() error {
		return processor.Start()
	})
	waitGroup.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("graceful shutdown task processor")
		processor.Shutdown()
		return nil
	})
}

func runCacheScheduler(ctx context.Context, waitGroup *errgroup.Group, cfg config.Config, srv *api.Server) {
	var shared maintenance.SharedCache
	if srv.Shared != nil {
		shared = srv.Shared
	}
	scheduler := maintenance.NewScheduler(srv.Solver, shared, cfg.Cache.ClearSchedule, cfg.Cache.MaxPairs)
	if err := scheduler.Start(); err != nil {
		log.Error().Err(err).Msg("failed to start cache scheduler")
		return
	}
	waitGroup.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("graceful shutdown cache scheduler")
		scheduler.Stop()
		return nil
	})
}

func runHTTPServer(ctx context.Context, waitGroup *errgroup.Group, cfg config.Config, srv *api.Server) {
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	waitGroup.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Msg("start HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	waitGroup.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("graceful shutdown HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown HTTP server")
			return err
		}
		if srv.Tasks != nil {
			if c, ok := srv.Tasks.(interface{ Close() error }); ok {
				_ = c.Close()
			}
		}
		return nil
	})
}
