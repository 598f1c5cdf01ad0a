// Package main is the entry point of the leaderboard API server.
//
// The server exposes the REST API used by the web client and runs the
// reconciliation scheduler that keeps every student's solved count in step
// with LeetCode.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rmkec/leetcode-leaderboard/config"
	"github.com/rmkec/leetcode-leaderboard/internal/application/command"
	"github.com/rmkec/leetcode-leaderboard/internal/application/eventhandler"
	"github.com/rmkec/leetcode-leaderboard/internal/application/query"
	"github.com/rmkec/leetcode-leaderboard/internal/infrastructure/external/leetcode"
	"github.com/rmkec/leetcode-leaderboard/internal/infrastructure/messaging"
	"github.com/rmkec/leetcode-leaderboard/internal/infrastructure/persistence"
	"github.com/rmkec/leetcode-leaderboard/internal/infrastructure/persistence/redis"
	"github.com/rmkec/leetcode-leaderboard/internal/infrastructure/scheduler"
	"github.com/rmkec/leetcode-leaderboard/internal/infrastructure/scheduler/jobs"
	httpserver "github.com/rmkec/leetcode-leaderboard/internal/interface/http"
	"github.com/rmkec/leetcode-leaderboard/internal/interface/http/handlers"
	"github.com/rmkec/leetcode-leaderboard/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION & LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Options{
		Level:     cfg.Log.Level,
		Format:    logger.Format(cfg.Log.Format),
		AddSource: !cfg.IsProduction(),
		Service:   cfg.App.Name,
	})
	log.Info("starting leaderboard API", "version", version, "config", cfg.String())

	// ─────────────────────────────────────────────────────────────────────────
	// 2. STUDENT STORE
	// ─────────────────────────────────────────────────────────────────────────
	store, err := persistence.OpenStore(ctx, cfg.Store, log)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		log.Info("closing student store")
		if err := store.Close(); err != nil {
			log.Warn("failed to close store", logger.Err(err))
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	// The bus drains before the cache its handlers write to is closed.
	bus := messaging.NewBus(messaging.Options{Workers: 4, Logger: log})
	var redisCache *redis.Cache
	defer func() {
		log.Info("closing event bus")
		_ = bus.Close()
		if redisCache != nil {
			_ = redisCache.Close()
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. LEADERBOARD CACHE (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		leaderboardCache *redis.LeaderboardCache
		queryCache       query.LeaderboardCache
	)
	if cfg.Redis.Enabled {
		redisCfg := redis.DefaultConfig()
		redisCfg.Addr = cfg.Redis.Addr
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			redisCache = nil
			log.Warn("failed to connect to Redis, caching disabled", logger.Err(err))
		} else {
			leaderboardCache = redis.NewLeaderboardCache(redisCache, cfg.Redis.LeaderboardTTL)
			queryCache = leaderboardCache
			if err := eventhandler.NewOnStudentChangedHandler(leaderboardCache, log).Register(bus); err != nil {
				return fmt.Errorf("failed to register cache handler: %w", err)
			}
			log.Info("leaderboard cache enabled", "addr", cfg.Redis.Addr)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. STATS PROVIDER
	// ─────────────────────────────────────────────────────────────────────────
	provider := leetcode.NewClient(leetcode.ClientConfig{
		GraphQLURL:  cfg.LeetCode.GraphQLURL,
		Timeout:     cfg.LeetCode.RequestTimeout,
		MaxAttempts: cfg.LeetCode.MaxAttempts,
		RateLimit:   cfg.LeetCode.RateLimit,
		RateBurst:   cfg.LeetCode.RateBurst,
		UserAgent:   cfg.LeetCode.UserAgent,
		Logger:      log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 6. APPLICATION HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	addStudent := command.NewAddStudentHandler(store, provider, bus, log)
	leaderboard := query.NewGetLeaderboardHandler(store, queryCache, log)
	studentRank := query.NewGetStudentRankHandler(store, leaderboard)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(scheduler.Options{
		Logger:   log,
		Location: cfg.App.Location(),
	})

	reconcile := jobs.NewReconcileStudentsJob(store, provider, bus, log, jobs.ReconcileConfig{
		Concurrency:    cfg.Sync.Concurrency,
		PerCallTimeout: cfg.Sync.PerCallTimeout,
		CycleTimeout:   cfg.Sync.CycleTimeout,
	})
	schedule, err := scheduler.NewSyncSchedule(cfg, time.Now())
	if err != nil {
		return fmt.Errorf("invalid sync schedule: %w", err)
	}
	if err := sched.Register(reconcile, schedule); err != nil {
		return err
	}
	if !cfg.Sync.Enabled {
		// Registered but disabled keeps the manual endpoint usable.
		_ = sched.DisableJob(jobs.ReconcileJobName)
	}
	log.Info("reconciliation scheduled", "enabled", cfg.Sync.Enabled, "schedule", schedule.String())

	if leaderboardCache != nil {
		every := cfg.Redis.LeaderboardTTL / 2
		if every <= 0 {
			every = 5 * time.Minute
		}
		rebuild := jobs.NewRebuildLeaderboardJob(store, leaderboardCache, log, time.Minute)
		if err := sched.Register(rebuild, scheduler.NewIntervalSchedule(every)); err != nil {
			return err
		}
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	if cfg.Sync.Enabled && cfg.Sync.RunOnStart {
		go func() {
			if _, err := sched.RunNow(ctx, jobs.ReconcileJobName); err != nil {
				log.Warn("startup reconciliation failed", logger.Err(err))
			}
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewHealth(version)
	health.Require("store", handlers.PingProbe(store))
	health.Require("scheduler", handlers.RunningProbe(sched))
	health.Optional("leetcode", handlers.CircuitProbe(provider))
	if redisCache != nil {
		health.Optional("redis", handlers.PingProbe(redisCache))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	server := httpserver.NewServer(httpserver.Config{
		Addr:                  cfg.Server.Addr,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		MaxHeaderBytes:        1 << 20,
		AllowedOrigins:        cfg.Server.CORSAllowedOrigins,
		RateLimitRPS:          cfg.Server.RateLimitRPS,
		RateLimitBurst:        cfg.Server.RateLimitBurst,
		EnableManualReconcile: cfg.Server.EnableManualReconcile,
	}, httpserver.Dependencies{
		AddStudentHandler:     addStudent,
		GetLeaderboardHandler: leaderboard,
		GetStudentRankHandler: studentRank,
		Reconciler:            sched,
		HealthChecker:         health,
		Logger:                log,
	})
	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("leaderboard API is running", "addr", cfg.Server.Addr)

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			log.Error("http server failed", logger.Err(err))
			runErr = err
		}
	}

	log.Info("starting graceful shutdown", "timeout", cfg.App.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	var shutdownErr error
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		shutdownErr = errors.Join(shutdownErr, err)
	}
	if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
		log.Error("failed to stop scheduler", logger.Err(err))
		shutdownErr = errors.Join(shutdownErr, err)
	}

	if shutdownErr != nil {
		log.Warn("shutdown completed with errors")
	} else {
		log.Info("shutdown completed successfully")
	}
	return runErr
}
