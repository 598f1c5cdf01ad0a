package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rmkec/leetcode-leaderboard/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD CACHE JOB
// ══════════════════════════════════════════════════════════════════════════════

// RebuildLeaderboardJobName is the scheduler name of RebuildLeaderboardJob.
const RebuildLeaderboardJobName = "rebuild_leaderboard_cache"

// LeaderboardSnapshotWriter replaces the cached leaderboard snapshot.
type LeaderboardSnapshotWriter interface {
	Rebuild(ctx context.Context, records []student.Record) error
}

// RebuildLeaderboardJob reloads the leaderboard cache from the store so that
// incremental cache updates dropped while it was cold are recovered.
type RebuildLeaderboardJob struct {
	store  student.Store
	cache  LeaderboardSnapshotWriter
	logger *slog.Logger

	timeout     time.Duration
	lastRebuild atomic.Pointer[RebuildStats]
}

// RebuildStats contains statistics from a rebuild run.
type RebuildStats struct {
	CompletedAt time.Time
	Duration    time.Duration
	Students    int
}

// NewRebuildLeaderboardJob creates a new rebuild job.
func NewRebuildLeaderboardJob(store student.Store, cache LeaderboardSnapshotWriter, logger *slog.Logger, timeout time.Duration) *RebuildLeaderboardJob {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &RebuildLeaderboardJob{
		store:   store,
		cache:   cache,
		logger:  logger.With("job", RebuildLeaderboardJobName),
		timeout: timeout,
	}
}

// Name returns the job name.
func (j *RebuildLeaderboardJob) Name() string {
	return RebuildLeaderboardJobName
}

// Description returns a human-readable description.
func (j *RebuildLeaderboardJob) Description() string {
	return "Reloads the cached leaderboard snapshot from the store"
}

// Run executes the rebuild.
func (j *RebuildLeaderboardJob) Run(ctx context.Context) error {
	startedAt := time.Now()

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	records, err := j.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list students: %w", err)
	}

	if err := j.cache.Rebuild(ctx, records); err != nil {
		return fmt.Errorf("failed to rebuild leaderboard cache: %w", err)
	}

	stats := &RebuildStats{
		CompletedAt: time.Now(),
		Duration:    time.Since(startedAt),
		Students:    len(records),
	}
	j.lastRebuild.Store(stats)

	j.logger.Debug("leaderboard cache rebuilt",
		"students", stats.Students,
		"duration", stats.Duration.String(),
	)
	return nil
}

// LastRebuild returns statistics from the last successful rebuild.
func (j *RebuildLeaderboardJob) LastRebuild() *RebuildStats {
	return j.lastRebuild.Load()
}
