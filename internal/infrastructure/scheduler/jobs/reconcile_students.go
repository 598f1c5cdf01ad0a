// Package jobs contains the scheduled jobs of the leaderboard service.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rmkec/leetcode-leaderboard/internal/domain/shared"
	"github.com/rmkec/leetcode-leaderboard/internal/domain/student"
	"github.com/rmkec/leetcode-leaderboard/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE STUDENTS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileJobName is the scheduler name of ReconcileStudentsJob.
const ReconcileJobName = "reconcile_students"

// ErrCycleInProgress is returned when a cycle starts while another one runs.
var ErrCycleInProgress = errors.New("reconciliation cycle already in progress")

// ReconcileStudentsJob refreshes every stored solved count from the stats
// provider. A failed fetch keeps the stored value and the next cycle retries
// it. Only changed values are written.
type ReconcileStudentsJob struct {
	// Dependencies
	store     student.Store
	provider  student.StatsProvider
	publisher shared.EventPublisher
	logger    *slog.Logger
	now       func() time.Time

	// Configuration
	config ReconcileConfig

	// State
	inProgress atomic.Bool
	lastStats  atomic.Pointer[ReconcileStats]
}

// ReconcileConfig contains configuration for the reconcile job.
type ReconcileConfig struct {
	// Concurrency is the number of profiles fetched in parallel.
	Concurrency int

	// PerCallTimeout bounds one provider call.
	PerCallTimeout time.Duration

	// CycleTimeout bounds the whole cycle; zero means no bound.
	CycleTimeout time.Duration
}

// DefaultReconcileConfig returns sensible defaults.
func DefaultReconcileConfig() ReconcileConfig {
	return ReconcileConfig{
		Concurrency:    5,
		PerCallTimeout: 10 * time.Second,
		CycleTimeout:   30 * time.Minute,
	}
}

// ReconcileStats contains statistics from one cycle.
type ReconcileStats struct {
	StartedAt   time.Time     `json:"startedAt"`
	CompletedAt time.Time     `json:"completedAt"`
	Duration    time.Duration `json:"duration"`
	Total       int           `json:"total"`
	Fetched     int           `json:"fetched"`
	Updated     int           `json:"updated"`
	Unchanged   int           `json:"unchanged"`
	Failed      int           `json:"failed"`
}

// NewReconcileStudentsJob creates a new reconcile job.
func NewReconcileStudentsJob(
	store student.Store,
	provider student.StatsProvider,
	publisher shared.EventPublisher,
	logger *slog.Logger,
	config ReconcileConfig,
) *ReconcileStudentsJob {
	defaults := DefaultReconcileConfig()
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.PerCallTimeout <= 0 {
		config.PerCallTimeout = defaults.PerCallTimeout
	}

	return &ReconcileStudentsJob{
		store:     store,
		provider:  provider,
		publisher: publisher,
		logger:    logger.With("job", ReconcileJobName),
		now:       time.Now,
		config:    config,
	}
}

// Name returns the job name.
func (j *ReconcileStudentsJob) Name() string {
	return ReconcileJobName
}

// Description returns a human-readable description.
func (j *ReconcileStudentsJob) Description() string {
	return "Refreshes every student's solved count from LeetCode"
}

// Run executes one cycle.
func (j *ReconcileStudentsJob) Run(ctx context.Context) error {
	_, err := j.Reconcile(ctx)
	return err
}

// Reconcile executes one cycle and returns its statistics. It fails only
// when the records cannot be listed or ctx ends; per-student failures are
// logged and counted.
func (j *ReconcileStudentsJob) Reconcile(ctx context.Context) (ReconcileStats, error) {
	if !j.inProgress.CompareAndSwap(false, true) {
		return ReconcileStats{}, ErrCycleInProgress
	}
	defer j.inProgress.Store(false)

	startedAt := j.now()

	if j.config.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.CycleTimeout)
		defer cancel()
	}

	records, err := j.store.ListAll(ctx)
	if err != nil {
		return ReconcileStats{}, fmt.Errorf("failed to list students: %w", err)
	}

	j.logger.Info("starting reconciliation", "students", len(records))

	var fetched, updated, unchanged, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(j.config.Concurrency)

	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			switch j.reconcileOne(ctx, rec) {
			case outcomeUpdated:
				fetched.Add(1)
				updated.Add(1)
			case outcomeUnchanged:
				fetched.Add(1)
				unchanged.Add(1)
			case outcomeWriteFailed:
				fetched.Add(1)
				failed.Add(1)
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	completedAt := j.now()
	stats := ReconcileStats{
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(startedAt),
		Total:       len(records),
		Fetched:     int(fetched.Load()),
		Updated:     int(updated.Load()),
		Unchanged:   int(unchanged.Load()),
		Failed:      int(failed.Load()),
	}
	j.lastStats.Store(&stats)

	if err := ctx.Err(); err != nil {
		j.logger.Warn("reconciliation interrupted",
			"processed", stats.Fetched+stats.Failed,
			"total", stats.Total,
			"error", err,
		)
		return stats, fmt.Errorf("reconciliation interrupted: %w", err)
	}

	if stats.Updated > 0 {
		j.logger.Info("update complete",
			"total", stats.Total,
			"updated", stats.Updated,
			"unchanged", stats.Unchanged,
			"failed", stats.Failed,
			"duration", stats.Duration.String(),
		)
	} else {
		j.logger.Info("no changes detected",
			"total", stats.Total,
			"failed", stats.Failed,
			"duration", stats.Duration.String(),
		)
	}

	j.publish(shared.NewReconcileCompletedEvent(stats.Total, stats.Updated, stats.Failed, stats.Duration))

	return stats, nil
}

type outcome int

const (
	outcomeFetchFailed outcome = iota
	outcomeUnchanged
	outcomeUpdated
	outcomeWriteFailed
)

// reconcileOne refreshes one record.
func (j *ReconcileStudentsJob) reconcileOne(ctx context.Context, rec student.Record) outcome {
	callCtx, cancel := context.WithTimeout(ctx, j.config.PerCallTimeout)
	count, err := j.provider.FetchSolvedCount(callCtx, rec.ProfileID())
	cancel()
	if err != nil {
		j.logger.Warn("failed to fetch solved count",
			logger.RegNo(rec.RegNo),
			logger.ProfileID(rec.ProfileID()),
			logger.Err(err),
		)
		return outcomeFetchFailed
	}

	if count == rec.SolvedCount {
		return outcomeUnchanged
	}

	j.logger.Info("updating solved count",
		"name", rec.Name,
		"reg_no", rec.RegNo,
		"old", rec.SolvedCount,
		"new", count,
	)

	if err := j.store.Update(ctx, rec.RegNo, count); err != nil {
		j.logger.Error("failed to update solved count",
			logger.RegNo(rec.RegNo),
			logger.Err(err),
		)
		return outcomeWriteFailed
	}

	j.publish(shared.NewSolvedCountChangedEvent(rec.RegNo, rec.SolvedCount, count))
	return outcomeUpdated
}

func (j *ReconcileStudentsJob) publish(event shared.Event) {
	if err := j.publisher.Publish(event); err != nil {
		j.logger.Warn("failed to publish event",
			"event_type", event.EventType(),
			"error", err,
		)
	}
}

// LastStats returns statistics from the last cycle, or nil before the first.
func (j *ReconcileStudentsJob) LastStats() *ReconcileStats {
	return j.lastStats.Load()
}

// InProgress reports whether a cycle is running.
func (j *ReconcileStudentsJob) InProgress() bool {
	return j.inProgress.Load()
}

// Metadata implements scheduler.MetadataReporter.
func (j *ReconcileStudentsJob) Metadata() map[string]any {
	stats := j.LastStats()
	if stats == nil {
		return nil
	}
	return map[string]any{
		"total":     stats.Total,
		"fetched":   stats.Fetched,
		"updated":   stats.Updated,
		"unchanged": stats.Unchanged,
		"failed":    stats.Failed,
		"duration":  stats.Duration.String(),
	}
}
