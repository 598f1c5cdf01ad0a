package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rmkec/leetcode-leaderboard/internal/application/command"
	"github.com/rmkec/leetcode-leaderboard/internal/application/query"
	"github.com/rmkec/leetcode-leaderboard/internal/domain/shared"
	"github.com/rmkec/leetcode-leaderboard/internal/domain/student"
	"github.com/rmkec/leetcode-leaderboard/internal/infrastructure/scheduler"
	"github.com/rmkec/leetcode-leaderboard/internal/infrastructure/scheduler/jobs"
	"github.com/rmkec/leetcode-leaderboard/pkg/logger"
)

// maxBodyBytes caps the add-student request body.
const maxBodyBytes = 64 << 10

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST / RESPONSE DTOs
// ══════════════════════════════════════════════════════════════════════════════

// studentResponse is the wire form of a student record.
type studentResponse struct {
	RegNo       string    `json:"regNo"`
	Name        string    `json:"name"`
	Department  string    `json:"department"`
	Year        string    `json:"year"`
	LeetcodeURL string    `json:"leetcodeUrl"`
	TotalSolved int       `json:"totalSolved"`
	Rank        int       `json:"rank,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func newStudentResponse(r student.Record, rank int) studentResponse {
	return studentResponse{
		RegNo:       r.RegNo,
		Name:        r.Name,
		Department:  r.Department.String(),
		Year:        r.Year.String(),
		LeetcodeURL: r.ProfileURL,
		TotalSolved: r.SolvedCount,
		Rank:        rank,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type addStudentRequest struct {
	RegNo       string `json:"regNo"`
	Name        string `json:"name"`
	Department  string `json:"department"`
	Year        string `json:"year"`
	LeetcodeURL string `json:"leetcodeUrl"`
}

type addStudentResponse struct {
	Message string          `json:"message"`
	Student studentResponse `json:"student"`
}

type studentDetailResponse struct {
	studentResponse
	TotalStudents int     `json:"totalStudents"`
	Percentile    float64 `json:"percentile"`
}

type metaResponse struct {
	Departments []string `json:"departments"`
	Years       []string `json:"years"`
}

type reconcileResponse struct {
	Job         string         `json:"job"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt time.Time      `json:"completedAt"`
	Duration    string         `json:"duration"`
	Stats       map[string]any `json:"stats,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListStudents handles GET /students.
func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := s.deps.GetLeaderboardHandler.Handle(r.Context(), query.GetLeaderboardQuery{
		SearchText: q.Get("search"),
		Department: q.Get("department"),
		Year:       q.Get("year"),
	})
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to load leaderboard", logger.Err(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch students")
		return
	}

	out := make([]studentResponse, 0, len(result.Entries))
	for _, e := range result.Entries {
		out = append(out, newStudentResponse(e.Record, e.Rank))
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(result.TotalCount))
	writeJSON(w, http.StatusOK, out)
}

// handleGetStudent handles GET /students/{regNo}.
func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	regNo := chi.URLParam(r, "regNo")

	result, err := s.deps.GetStudentRankHandler.Handle(r.Context(), query.GetStudentRankQuery{RegNo: regNo})
	switch {
	case err == nil:
	case shared.IsNotFound(err), shared.IsValidation(err):
		writeError(w, http.StatusNotFound, "Student not found")
		return
	default:
		logger.FromContext(r.Context()).Error("failed to load student", logger.RegNo(regNo), logger.Err(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch student")
		return
	}

	writeJSON(w, http.StatusOK, studentDetailResponse{
		studentResponse: newStudentResponse(result.Student, result.Rank),
		TotalStudents:   result.TotalStudents,
		Percentile:      result.Percentile,
	})
}

// handleMeta handles GET /meta.
func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	resp := metaResponse{
		Departments: make([]string, 0, len(student.Departments)),
		Years:       make([]string, 0, len(student.Years)),
	}
	for _, d := range student.Departments {
		resp.Departments = append(resp.Departments, d.String())
	}
	for _, y := range student.Years {
		resp.Years = append(resp.Years, y.String())
	}
	writeJSON(w, http.StatusOK, resp)
}

// ══════════════════════════════════════════════════════════════════════════════
// INTAKE HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// handleAddStudent handles POST /add-student.
func (s *Server) handleAddStudent(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req addStudentRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.deps.AddStudentHandler.Handle(r.Context(), command.AddStudentCommand{
		RegNo:      req.RegNo,
		Name:       req.Name,
		Department: req.Department,
		Year:       req.Year,
		ProfileURL: req.LeetcodeURL,
	})
	if err != nil {
		status, message := addStudentError(err)
		if status >= http.StatusInternalServerError {
			log.Error("failed to add student", logger.RegNo(req.RegNo), logger.Err(err))
		} else {
			log.Info("add student rejected", logger.RegNo(req.RegNo), logger.Err(err))
		}
		writeError(w, status, message)
		return
	}

	writeJSON(w, http.StatusOK, addStudentResponse{
		Message: "Student added successfully",
		Student: newStudentResponse(result.Student, 0),
	})
}

// addStudentError maps an intake failure to its status and client message.
func addStudentError(err error) (int, string) {
	switch {
	case shared.IsInvalidProfile(err):
		return http.StatusBadRequest, "Invalid LeetCode profile"
	case shared.IsValidation(err):
		var de *shared.DomainError
		if errors.As(err, &de) {
			return http.StatusBadRequest, capitalize(de.Message)
		}
		return http.StatusBadRequest, "Invalid request"
	case shared.IsDuplicateKey(err):
		return http.StatusConflict, "Student already exists"
	default:
		return http.StatusInternalServerError, "Failed to add student"
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleReconcile handles POST /admin/reconcile.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	// The cycle outlives a disconnected client, and the response outlives the
	// server's WriteTimeout, which a full cycle can exceed.
	ctx := context.WithoutCancel(r.Context())
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		logger.FromContext(r.Context()).Warn("cannot lift write deadline", logger.Err(err))
	}

	result, err := s.deps.Reconciler.RunNow(ctx, jobs.ReconcileJobName)
	switch {
	case errors.Is(err, scheduler.ErrJobRunning), errors.Is(err, jobs.ErrCycleInProgress):
		writeError(w, http.StatusConflict, "Reconciliation already in progress")
		return
	case errors.Is(err, scheduler.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "Reconciliation is not configured")
		return
	case err != nil:
		logger.FromContext(r.Context()).Error("manual reconcile failed", logger.Err(err))
		writeError(w, http.StatusInternalServerError, "Reconciliation failed")
		return
	}

	writeJSON(w, http.StatusOK, reconcileResponse{
		Job:         result.JobName,
		StartedAt:   result.StartedAt,
		CompletedAt: result.CompletedAt,
		Duration:    result.Duration.String(),
		Stats:       result.Metadata,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles GET /health with the full check breakdown.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// handleLive handles GET /health/live. It only proves the process serves.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleReady handles GET /health/ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "not ready",
			"message": status.Message,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
