// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"research-orchestrator/internal/application"
	"research-orchestrator/internal/config"
	"research-orchestrator/internal/domain/ports/adapter"
	"research-orchestrator/internal/infra/adapters/agent"
	"research-orchestrator/internal/infra/api"
	"research-orchestrator/internal/infra/logging"
	"research-orchestrator/internal/infra/metrics"
	red "research-orchestrator/internal/infra/redis"
	"research-orchestrator/internal/infra/sched"
	"research-orchestrator/internal/infra/scheduler"
	"research-orchestrator/internal/infra/worker"
	"research-orchestrator/internal/usecase"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, default secrets)")
	noopDispatch := flag.Bool("noop-dispatch", false, "accept jobs without calling the worker (dev only)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Storage ----
	store, err := application.OpenStorage(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("storage")
	}
	defer store.Close()

	// ---- Redis (optional) ----
	var (
		locker  adapter.Locker = red.NopLocker{}
		limiter api.RateLimiter
	)
	if cfg.Redis.Enabled() {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()

		store.WithJobCache(redisClient, cfg.Redis.TTL, logger)
		locker = red.NewLocker(redisClient)
		limiter = red.NewRateLimiter(redisClient)
		logger.Info().Str("addr", cfg.Redis.URL).Msg("redis enabled: job cache, reset lock, rate limiter")
	}

	// ---- Worker dispatch ----
	var dispatcher adapter.WorkerDispatcher
	if *noopDispatch && cfg.Runtime.Dev {
		dispatcher = agent.NewNoopDispatcher(logger)
		logger.Warn().Msg("worker dispatch disabled (noop)")
	} else {
		dispatcher, err = agent.NewHTTPDispatcher(cfg.Worker.BaseURL, cfg.Worker.Timeout)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker dispatcher")
		}
	}

	opts := usecase.ResearchOptions{
		MaxQueryLength:    cfg.Research.MaxQueryLength,
		DispatchTimeout:   cfg.Worker.Timeout,
		StrictTransitions: cfg.Research.StrictTransitions,
	}
	var pool *worker.Pool
	if cfg.Worker.Async {
		pool = worker.NewPool(cfg.Worker.PoolSize, logger)
		pool.Start(context.WithoutCancel(ctx))
		opts.Async = pool
	}

	// ---- Use cases ----
	researchUC := usecase.NewResearchUseCase(store.Jobs, dispatcher, opts, logger)
	creditUC := usecase.NewCreditUseCase(store.Ledgers, cfg.Credits.FreeDailyCredits, logger)
	accountUC := usecase.NewAccountUseCase(store.Ledgers, store.Keys, store.Tx, cfg.Credits.FreeDailyCredits, logger)

	// ---- HTTP ----
	server := api.NewServer(cfg.Server, cfg.Worker.CallbackToken, api.Deps{
		Research: researchUC,
		Credits:  creditUC,
		Accounts: accountUC,
		Tokens:   api.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Limiter:  limiter,
	}, logger)

	loc, _ := time.LoadLocation(cfg.Credits.ResetTimezone) // validated by config
	resetWorker := sched.NewCreditResetWorker(creditUC, locker, loc, cfg.Credits.ResetLockTTL, logger)

	poolStats := scheduler.NewScheduler("db_pool_stats", 15*time.Second, time.Second, func(context.Context) error {
		metrics.SetDBPoolStats(store.PoolStats())
		return nil
	}, logger)
	poolStats.Start(ctx)
	defer poolStats.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		if err := resetWorker.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown requested")
		return server.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
	}
	if pool != nil {
		pool.Stop()
	}
	logger.Info().Msg("bye")
}
