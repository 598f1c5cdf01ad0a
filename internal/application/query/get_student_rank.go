package query

import (
	"context"
	"strings"

	"github.com/rmkec/leetcode-leaderboard/internal/domain/shared"
	"github.com/rmkec/leetcode-leaderboard/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT RANK QUERY
// Returns one student together with the overall (unfiltered) rank.
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentRankQuery identifies the student.
type GetStudentRankQuery struct {
	RegNo string
}

// StudentRankResult contains the record and its position.
type StudentRankResult struct {
	Student       student.Record
	Rank          int
	TotalStudents int

	// Percentile is the share of students ranked at or below this one, 0-100.
	Percentile float64
}

// GetStudentRankHandler handles GetStudentRankQuery.
type GetStudentRankHandler struct {
	store       student.Store
	leaderboard *GetLeaderboardHandler
}

// NewGetStudentRankHandler creates a new handler that shares the leaderboard
// handler's cache.
func NewGetStudentRankHandler(store student.Store, leaderboard *GetLeaderboardHandler) *GetStudentRankHandler {
	return &GetStudentRankHandler{store: store, leaderboard: leaderboard}
}

// Handle executes the query. Returns shared.ErrStudentNotFound if absent.
func (h *GetStudentRankHandler) Handle(ctx context.Context, q GetStudentRankQuery) (*StudentRankResult, error) {
	regNo := strings.TrimSpace(q.RegNo)
	if regNo == "" {
		return nil, shared.ErrEmptyRegNo
	}

	rec, err := h.store.Get(ctx, regNo)
	if err != nil {
		return nil, err
	}

	records, err := h.leaderboard.loadRecords(ctx)
	if err != nil {
		return nil, err
	}

	// Position the stored record among the others; the snapshot may lag
	// behind the store for a freshly added student.
	rank, total := 1, 1
	for _, r := range records {
		if r.RegNo == regNo {
			continue
		}
		total++
		if r.SolvedCount > rec.SolvedCount || (r.SolvedCount == rec.SolvedCount && r.RegNo < rec.RegNo) {
			rank++
		}
	}

	return &StudentRankResult{
		Student:       rec,
		Rank:          rank,
		TotalStudents: total,
		Percentile:    float64(total-rank+1) / float64(total) * 100,
	}, nil
}
