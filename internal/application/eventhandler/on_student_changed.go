// Package eventhandler contains domain event handlers. They are the reactive
// part of the system: they keep derived state such as the leaderboard cache
// in step with the student records.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rmkec/leetcode-leaderboard/internal/domain/shared"
	"github.com/rmkec/leetcode-leaderboard/internal/domain/student"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON STUDENT CHANGED HANDLER
// Applies intake and reconciliation writes to the leaderboard cache. A cold
// cache ignores the updates and is rebuilt from the store on the next read.
// ═══════════════════════════════════════════════════════════════════════════

// LeaderboardCacheWriter is the incremental write side of the cache.
type LeaderboardCacheWriter interface {
	Upsert(ctx context.Context, r student.Record) (bool, error)
	UpdateScore(ctx context.Context, regNo string, solvedCount int) (bool, error)
	Invalidate(ctx context.Context) error
}

// OnStudentChangedHandler keeps the leaderboard cache current.
type OnStudentChangedHandler struct {
	cache   LeaderboardCacheWriter
	logger  *slog.Logger
	timeout time.Duration
}

// NewOnStudentChangedHandler creates a new handler.
func NewOnStudentChangedHandler(cache LeaderboardCacheWriter, logger *slog.Logger) *OnStudentChangedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnStudentChangedHandler{
		cache:   cache,
		logger:  logger.With("handler", "on_student_changed"),
		timeout: 5 * time.Second,
	}
}

// Register subscribes the handler to the events it reacts to.
func (h *OnStudentChangedHandler) Register(bus shared.EventSubscriber) error {
	if err := bus.Subscribe(shared.EventStudentAdded, h.Handle); err != nil {
		return err
	}
	return bus.Subscribe(shared.EventSolvedCountChanged, h.Handle)
}

// Handle applies one event to the cache.
func (h *OnStudentChangedHandler) Handle(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	var (
		written bool
		err     error
	)

	switch e := event.(type) {
	case shared.StudentAddedEvent:
		written, err = h.cache.Upsert(ctx, student.Record{
			RegNo:       e.AggregateID(),
			Name:        e.Name,
			Department:  student.Department(e.Department),
			Year:        student.Year(e.Year),
			ProfileURL:  e.ProfileURL,
			SolvedCount: e.SolvedCount,
			CreatedAt:   e.OccurredAt(),
			UpdatedAt:   e.OccurredAt(),
		})
	case shared.SolvedCountChangedEvent:
		written, err = h.cache.UpdateScore(ctx, e.AggregateID(), e.NewCount)
	default:
		return nil
	}

	if err != nil {
		// A stale snapshot must not outlive a failed write.
		if invErr := h.cache.Invalidate(ctx); invErr != nil {
			h.logger.Warn("failed to invalidate leaderboard cache", "error", invErr)
		}
		return fmt.Errorf("apply %s for %s: %w", event.EventType(), event.AggregateID(), err)
	}

	h.logger.Debug("leaderboard cache updated",
		"event_type", event.EventType(),
		"reg_no", event.AggregateID(),
		"written", written,
	)
	return nil
}
