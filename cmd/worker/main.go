// Package main is the entry point of the background reconciliation worker.
//
// The worker runs only the reconciliation scheduler, for deployments that
// keep the API stateless. With -once it runs a single cycle and exits, which
// suits an external cron.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rmkec/leetcode-leaderboard/config"
	"github.com/rmkec/leetcode-leaderboard/internal/domain/shared"
	"github.com/rmkec/leetcode-leaderboard/internal/infrastructure/external/leetcode"
	"github.com/rmkec/leetcode-leaderboard/internal/infrastructure/persistence"
	"github.com/rmkec/leetcode-leaderboard/internal/infrastructure/scheduler"
	"github.com/rmkec/leetcode-leaderboard/internal/infrastructure/scheduler/jobs"
	"github.com/rmkec/leetcode-leaderboard/pkg/logger"
)

func main() {
	once := flag.Bool("once", false, "run a single reconciliation cycle and exit")
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *once); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, once bool) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION & LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Options{
		Level:     cfg.Log.Level,
		Format:    logger.Format(cfg.Log.Format),
		AddSource: !cfg.IsProduction(),
		Service:   cfg.App.Name + "-worker",
	})
	log.Info("starting reconciliation worker", "once", once, "config", cfg.String())

	// ─────────────────────────────────────────────────────────────────────────
	// 2. STORE & PROVIDER
	// ─────────────────────────────────────────────────────────────────────────
	store, err := persistence.OpenStore(ctx, cfg.Store, log)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	provider := leetcode.NewClient(leetcode.ClientConfig{
		GraphQLURL:  cfg.LeetCode.GraphQLURL,
		Timeout:     cfg.LeetCode.RequestTimeout,
		MaxAttempts: cfg.LeetCode.MaxAttempts,
		RateLimit:   cfg.LeetCode.RateLimit,
		RateBurst:   cfg.LeetCode.RateBurst,
		UserAgent:   cfg.LeetCode.UserAgent,
		Logger:      log,
	})

	// The worker has no cache to keep warm, so events go nowhere.
	reconcile := jobs.NewReconcileStudentsJob(store, provider, shared.NopPublisher{}, log, jobs.ReconcileConfig{
		Concurrency:    cfg.Sync.Concurrency,
		PerCallTimeout: cfg.Sync.PerCallTimeout,
		CycleTimeout:   cfg.Sync.CycleTimeout,
	})

	if once {
		return runOnce(ctx, reconcile, log)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	if !cfg.Sync.Enabled {
		return errors.New("sync is disabled (SYNC_ENABLED=false); use -once for a single cycle")
	}

	sched := scheduler.NewScheduler(scheduler.Options{
		Logger:   log,
		Location: cfg.App.Location(),
	})
	schedule, err := scheduler.NewSyncSchedule(cfg, time.Now())
	if err != nil {
		return fmt.Errorf("invalid sync schedule: %w", err)
	}
	if err := sched.Register(reconcile, schedule); err != nil {
		return err
	}

	sched.OnJobComplete(func(result scheduler.JobResult) {
		log.Info("job finished",
			"job", result.JobName,
			"success", result.Success,
			"duration", result.Duration.String(),
			"stats", result.Metadata,
		)
	})

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	if st, err := sched.Status(jobs.ReconcileJobName); err == nil {
		log.Info("reconciliation scheduled",
			"schedule", st.Schedule,
			"next_run", st.NextRun.Format(time.RFC3339),
		)
	}

	if cfg.Sync.RunOnStart {
		if _, err := sched.RunNow(ctx, jobs.ReconcileJobName); err != nil {
			log.Warn("startup reconciliation failed", logger.Err(err))
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info("received shutdown signal, waiting for running jobs")

	if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
		return err
	}
	log.Info("shutdown completed successfully")
	return nil
}

// runOnce runs one cycle and reports it.
func runOnce(ctx context.Context, job *jobs.ReconcileStudentsJob, log *slog.Logger) error {
	stats, err := job.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}
	log.Info("reconciliation finished",
		"total", stats.Total,
		"updated", stats.Updated,
		"unchanged", stats.Unchanged,
		"failed", stats.Failed,
		"duration", stats.Duration.String(),
	)
	return nil
}
