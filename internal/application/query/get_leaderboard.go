// Package query contains read operations following CQRS pattern.
// Queries never modify student records and never trigger reconciliation.
package query

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rmkec/leetcode-leaderboard/internal/domain/shared"
	"github.com/rmkec/leetcode-leaderboard/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Returns the ranked list of students, optionally filtered by a search text,
// department and year. Ranks are positions in the filtered list.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery contains the filters. Empty fields do not filter.
type GetLeaderboardQuery struct {
	// SearchText matches the name case-insensitively or the registration
	// number case-sensitively, as a substring.
	SearchText string

	// Department must match exactly.
	Department string

	// Year must match exactly.
	Year string
}

// LeaderboardEntry is one ranked student.
type LeaderboardEntry struct {
	// Rank is the 1-based position in the filtered list.
	Rank int

	student.Record
}

// GetLeaderboardResult contains the ranked entries.
type GetLeaderboardResult struct {
	Entries []LeaderboardEntry

	// TotalCount is the number of students before filtering.
	TotalCount int

	GeneratedAt time.Time
}

// sharedLoadTimeout bounds a store read that concurrent misses wait on.
const sharedLoadTimeout = 10 * time.Second

// LeaderboardCache is an optional read-through snapshot of every record.
// Any Get error is treated as a miss.
type LeaderboardCache interface {
	Get(ctx context.Context) ([]student.Record, error)
	Rebuild(ctx context.Context, records []student.Record) error
}

// GetLeaderboardHandler handles leaderboard queries.
type GetLeaderboardHandler struct {
	store  student.Store
	cache  LeaderboardCache
	logger *slog.Logger
	now    func() time.Time

	loads singleflight.Group
}

// NewGetLeaderboardHandler creates a new handler. cache may be nil.
func NewGetLeaderboardHandler(store student.Store, cache LeaderboardCache, logger *slog.Logger) *GetLeaderboardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetLeaderboardHandler{
		store:  store,
		cache:  cache,
		logger: logger.With("handler", "get_leaderboard"),
		now:    time.Now,
	}
}

// Handle executes the query.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	records, err := h.loadRecords(ctx)
	if err != nil {
		return nil, err
	}

	SortRecords(records)
	filter := newRecordFilter(q)

	entries := make([]LeaderboardEntry, 0, len(records))
	for _, r := range records {
		if !filter.matches(r) {
			continue
		}
		entries = append(entries, LeaderboardEntry{Rank: len(entries) + 1, Record: r})
	}

	return &GetLeaderboardResult{
		Entries:     entries,
		TotalCount:  len(records),
		GeneratedAt: h.now().UTC(),
	}, nil
}

// loadRecords reads the cache and falls back to the store. Concurrent
// misses share one store read and one cache rebuild.
func (h *GetLeaderboardHandler) loadRecords(ctx context.Context) ([]student.Record, error) {
	if h.cache != nil {
		records, err := h.cache.Get(ctx)
		if err == nil {
			return records, nil
		}
		h.logger.Debug("leaderboard cache miss", "error", err)
	}

	v, err, _ := h.loads.Do("all", func() (any, error) {
		// Shared by every waiter, so one caller going away must not fail the rest.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
		defer cancel()

		records, err := h.store.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		if h.cache != nil {
			if err := h.cache.Rebuild(ctx, records); err != nil {
				h.logger.Warn("failed to rebuild leaderboard cache", "error", err)
			}
		}
		return records, nil
	})
	if err != nil {
		return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrStoreUnavailable, "failed to load students", err)
	}

	// callers sort in place; every caller gets its own copy
	loaded := v.([]student.Record)
	out := make([]student.Record, len(loaded))
	copy(out, loaded)
	return out, nil
}

// SortRecords orders records by solved count, highest first, breaking ties
// by registration number ascending.
func SortRecords(records []student.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].SolvedCount != records[j].SolvedCount {
			return records[i].SolvedCount > records[j].SolvedCount
		}
		return records[i].RegNo < records[j].RegNo
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// FILTERING
// ══════════════════════════════════════════════════════════════════════════════

type recordFilter struct {
	search      string
	searchLower string
	department  student.Department
	year        student.Year
}

func newRecordFilter(q GetLeaderboardQuery) recordFilter {
	search := strings.TrimSpace(q.SearchText)
	return recordFilter{
		search:      search,
		searchLower: strings.ToLower(search),
		department:  student.Department(strings.TrimSpace(q.Department)),
		year:        student.Year(strings.TrimSpace(q.Year)),
	}
}

func (f recordFilter) matches(r student.Record) bool {
	if f.search != "" &&
		!strings.Contains(strings.ToLower(r.Name), f.searchLower) &&
		!strings.Contains(r.RegNo, f.search) {
		return false
	}
	if f.department != "" && r.Department != f.department {
		return false
	}
	if f.year != "" && r.Year != f.year {
		return false
	}
	return true
}
