package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmkec/leetcode-leaderboard/internal/application/command"
	"github.com/rmkec/leetcode-leaderboard/internal/application/query"
	"github.com/rmkec/leetcode-leaderboard/internal/domain/student"
	"github.com/rmkec/leetcode-leaderboard/internal/infrastructure/persistence/storetest"
	"github.com/rmkec/leetcode-leaderboard/internal/infrastructure/scheduler"
	"github.com/rmkec/leetcode-leaderboard/internal/infrastructure/scheduler/jobs"
	"github.com/rmkec/leetcode-leaderboard/internal/interface/http/handlers"
	"github.com/rmkec/leetcode-leaderboard/pkg/logger"
)

type testEnv struct {
	server   *Server
	store    *storetest.MemoryStore
	provider *storetest.StubProvider
	sched    *scheduler.Scheduler
}

func newTestEnv(t *testing.T, records ...student.Record) *testEnv {
	t.Helper()

	store := storetest.NewMemoryStore(records...)
	provider := storetest.NewStubProvider(nil)
	log := logger.Discard()

	leaderboard := query.NewGetLeaderboardHandler(store, nil, log)

	sched := scheduler.NewScheduler(scheduler.Options{Logger: log})
	job := jobs.NewReconcileStudentsJob(store, provider, nil, log, jobs.DefaultReconcileConfig())
	require.NoError(t, sched.Register(job, scheduler.NewIntervalSchedule(time.Hour)))

	health := handlers.NewHealth("test")
	health.Require("store", handlers.PingProbe(store))

	cfg := DefaultConfig()
	cfg.RateLimitRPS = 0
	cfg.EnableManualReconcile = true

	srv := NewServer(cfg, Dependencies{
		AddStudentHandler:     command.NewAddStudentHandler(store, provider, nil, log),
		GetLeaderboardHandler: leaderboard,
		GetStudentRankHandler: query.NewGetStudentRankHandler(store, leaderboard),
		Reconciler:            sched,
		HealthChecker:         health,
		Logger:                log,
	})

	return &testEnv{server: srv, store: store, provider: provider, sched: sched}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

// ══════════════════════════════════════════════════════════════════════════════
// GET /students
// ══════════════════════════════════════════════════════════════════════════════

func TestListStudents_Ordered(t *testing.T) {
	env := newTestEnv(t,
		storetest.Record("A1", "Asha", 10),
		storetest.Record("A2", "Bala", 25),
	)

	rr := env.do(t, http.MethodGet, "/students", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "2", rr.Header().Get("X-Total-Count"))
	assert.NotEmpty(t, rr.Header().Get(handlers.RequestIDHeader))

	got := decode[[]map[string]any](t, rr)
	require.Len(t, got, 2)
	assert.Equal(t, "A2", got[0]["regNo"])
	assert.EqualValues(t, 25, got[0]["totalSolved"])
	assert.EqualValues(t, 1, got[0]["rank"])
	assert.Equal(t, "https://leetcode.com/u/A2/", got[0]["leetcodeUrl"])
	assert.Equal(t, "A1", got[1]["regNo"])
	assert.EqualValues(t, 2, got[1]["rank"])
}

func TestListStudents_Empty(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/students", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestListStudents_Filters(t *testing.T) {
	it := storetest.Record("21IT002", "Rajesh Kumar", 150)
	it.Department = student.DepartmentIT
	env := newTestEnv(t,
		it,
		storetest.Record("21CSE004", "Priya Raj", 210),
		storetest.Record("22CSE010", "Anand", 150),
	)

	rr := env.do(t, http.MethodGet, "/students?search=raj", "")
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[[]studentResponse](t, rr)
	require.Len(t, got, 2)
	assert.Equal(t, "21CSE004", got[0].RegNo)
	assert.Equal(t, "21IT002", got[1].RegNo)
	assert.Equal(t, "3", rr.Header().Get("X-Total-Count"))

	rr = env.do(t, http.MethodGet, "/students?department=CSE", "")
	got = decode[[]studentResponse](t, rr)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Rank)
	assert.Equal(t, "22CSE010", got[1].RegNo)
	assert.Equal(t, 2, got[1].Rank)
}

func TestListStudents_StoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.store.ListErr = errors.New("disk on fire")

	rr := env.do(t, http.MethodGet, "/students", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch students"}`, rr.Body.String())
}

// ══════════════════════════════════════════════════════════════════════════════
// POST /add-student
// ══════════════════════════════════════════════════════════════════════════════

const validBody = `{"regNo":"21CSE004","name":"Priya","department":"CSE","year":"Second Year","leetcodeUrl":"https://leetcode.com/u/priya/"}`

func TestAddStudent_Success(t *testing.T) {
	env := newTestEnv(t)
	env.provider.Set("priya", 212)

	rr := env.do(t, http.MethodPost, "/add-student", validBody)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	got := decode[addStudentResponse](t, rr)
	assert.Equal(t, "Student added successfully", got.Message)
	assert.Equal(t, "21CSE004", got.Student.RegNo)
	assert.Equal(t, 212, got.Student.TotalSolved)
	assert.Equal(t, "Second Year", got.Student.Year)
	assert.Equal(t, 1, env.store.Len())
}

func TestAddStudent_InvalidProfile(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/add-student", validBody)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"Invalid LeetCode profile"}`, rr.Body.String())
	assert.Equal(t, 0, env.store.Len())
}

func TestAddStudent_Duplicate(t *testing.T) {
	env := newTestEnv(t, storetest.Record("21CSE004", "Someone", 3))
	env.provider.Set("priya", 212)

	rr := env.do(t, http.MethodPost, "/add-student", validBody)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rec, err := env.store.Get(context.Background(), "21CSE004")
	require.NoError(t, err)
	assert.Equal(t, "Someone", rec.Name)
	assert.Equal(t, 3, rec.SolvedCount)
}

func TestAddStudent_ValidationAndMalformed(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/add-student", `{"regNo":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPost, "/add-student",
		`{"regNo":"X1","name":"","department":"CSE","year":"First Year","leetcodeUrl":"https://leetcode.com/u/x/"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Name is required", decode[errorResponse](t, rr).Error)

	rr = env.do(t, http.MethodPost, "/add-student",
		`{"regNo":"X1","name":"X","department":"MBA","year":"First Year","leetcodeUrl":"https://leetcode.com/u/x/"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Unknown department MBA", decode[errorResponse](t, rr).Error)
	assert.Zero(t, env.provider.Calls("x"))
}

func TestAddStudent_StoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.provider.Set("priya", 1)
	env.store.CreateErr = errors.New("connection reset")

	rr := env.do(t, http.MethodPost, "/add-student", validBody)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"Failed to add student"}`, rr.Body.String())
}

// ══════════════════════════════════════════════════════════════════════════════
// OTHER ROUTES
// ══════════════════════════════════════════════════════════════════════════════

func TestGetStudent(t *testing.T) {
	env := newTestEnv(t,
		storetest.Record("A1", "Asha", 10),
		storetest.Record("A2", "Bala", 25),
	)

	rr := env.do(t, http.MethodGet, "/students/A1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[map[string]any](t, rr)
	assert.Equal(t, "A1", got["regNo"])
	assert.EqualValues(t, 2, got["rank"])
	assert.EqualValues(t, 2, got["totalStudents"])

	rr = env.do(t, http.MethodGet, "/students/nobody", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"Student not found"}`, rr.Body.String())
}

func TestMeta(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/meta", "")
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[metaResponse](t, rr)
	assert.Len(t, got.Departments, len(student.Departments))
	assert.Equal(t, []string{"First Year", "Second Year", "Third Year", "Fourth Year"}, got.Years)
}

func TestReconcileEndpoint(t *testing.T) {
	env := newTestEnv(t,
		storetest.Record("A1", "Asha", 10),
		storetest.Record("A2", "Bala", 25),
	)
	env.provider.Set("A1", 14)
	env.provider.Set("A2", 25)

	rr := env.do(t, http.MethodPost, "/admin/reconcile", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	got := decode[reconcileResponse](t, rr)
	assert.Equal(t, jobs.ReconcileJobName, got.Job)
	assert.EqualValues(t, 2, got.Stats["total"])
	assert.EqualValues(t, 1, got.Stats["updated"])
	assert.EqualValues(t, 1, got.Stats["unchanged"])

	rec, err := env.store.Get(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, 14, rec.SolvedCount)
}

func TestReconcileEndpoint_Busy(t *testing.T) {
	env := newTestEnv(t, storetest.Record("A1", "Asha", 10))
	env.provider.Set("A1", 11)

	entered := make(chan struct{})
	release := make(chan struct{})
	env.provider.Hook = func(ctx context.Context, _ string) error {
		close(entered)
		<-release
		return nil
	}

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- env.do(t, http.MethodPost, "/admin/reconcile", "") }()
	<-entered

	rr := env.do(t, http.MethodPost, "/admin/reconcile", "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	close(release)
	assert.Equal(t, http.StatusOK, (<-done).Code)
}

func TestReconcileEndpoint_OutlivesWriteTimeout(t *testing.T) {
	env := newTestEnv(t, storetest.Record("A1", "Asha", 10))
	env.provider.Set("A1", 12)
	env.provider.Hook = func(ctx context.Context, _ string) error {
		time.Sleep(400 * time.Millisecond)
		return nil
	}

	cfg := env.server.config
	cfg.WriteTimeout = 200 * time.Millisecond
	srv := NewServer(cfg, env.server.deps)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()
	defer srv.Shutdown(context.Background())

	resp, err := http.Post("http://"+ln.Addr().String()+"/admin/reconcile", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got reconcileResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.EqualValues(t, 1, got.Stats["updated"])
}

func TestReconcileEndpoint_Disabled(t *testing.T) {
	env := newTestEnv(t)
	srv := NewServer(DefaultConfig(), Dependencies{
		GetLeaderboardHandler: env.server.deps.GetLeaderboardHandler,
		Reconciler:            env.sched,
		Logger:                logger.Discard(),
	})
	defer srv.Shutdown(context.Background())

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/reconcile", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/live", "").Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/ready", "").Code)

	env.store.PingErr = errors.New("down")
	rr := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.False(t, decode[handlers.Report](t, rr).Healthy)
	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodGet, "/health/ready", "").Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/live", "").Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/add-student", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimitRPS = 1
	cfg.RateLimitBurst = 2
	env := newTestEnv(t)
	srv := NewServer(cfg, env.server.deps)
	defer srv.Shutdown(context.Background())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/meta", nil))
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
