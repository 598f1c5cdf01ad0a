// Package scheduler implements background job scheduling. It drives the
// periodic reconciliation of solved counts and supports manual runs.
package scheduler

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

var (
	ErrNilJob                  = errors.New("scheduler: nil job")
	ErrNilSchedule             = errors.New("scheduler: nil schedule")
	ErrJobAlreadyExists        = errors.New("scheduler: job already registered")
	ErrJobNotFound             = errors.New("scheduler: job not found")
	ErrJobRunning              = errors.New("scheduler: job is already running")
	ErrSchedulerAlreadyRunning = errors.New("scheduler: already started")
	ErrSchedulerNotRunning     = errors.New("scheduler: not started")
)

// ══════════════════════════════════════════════════════════════════════════════
// JOBS AND SCHEDULES
// ══════════════════════════════════════════════════════════════════════════════

// Job is a unit of background work. Run's context ends when the scheduler
// stops or the manual caller gives up.
type Job interface {
	Name() string
	Description() string
	Run(ctx context.Context) error
}

// MetadataReporter is implemented by jobs that summarise their last run.
// The summary is copied into the JobResult.
type MetadataReporter interface {
	Metadata() map[string]any
}

// Schedule yields trigger instants.
type Schedule interface {
	// Next returns the first trigger strictly after t.
	Next(t time.Time) time.Time
	String() string
}

// JobResult describes one finished run.
type JobResult struct {
	JobName     string         `json:"job_name"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
	Duration    time.Duration  `json:"duration"`
	Success     bool           `json:"success"`
	Error       error          `json:"-"`
	Manual      bool           `json:"manual"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// JobStatus is a snapshot of one registered job.
type JobStatus struct {
	Name       string     `json:"name"`
	Schedule   string     `json:"schedule"`
	Enabled    bool       `json:"enabled"`
	Running    bool       `json:"running"`
	NextRun    time.Time  `json:"next_run"`
	Runs       int64      `json:"runs"`
	Failures   int64      `json:"failures"`
	Skipped    int64      `json:"skipped"`
	LastResult *JobResult `json:"last_result,omitempty"`
}

type entry struct {
	job      Job
	schedule Schedule
	disabled bool
	busy     bool
	next     time.Time
	runs     int64
	failures int64
	skipped  int64
	last     *JobResult
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Options configures a Scheduler. Zero fields take defaults.
type Options struct {
	Logger *slog.Logger

	// Location is the zone schedules are evaluated in (UTC).
	Location *time.Location

	// Now is the clock (time.Now).
	Now func() time.Time

	// TickInterval is how often due jobs are looked for (1s).
	TickInterval time.Duration
}

// Scheduler runs registered jobs on their schedules. A job never overlaps
// itself: a trigger that fires while the previous run is still going is
// skipped, and RunNow on a busy job fails with ErrJobRunning.
type Scheduler struct {
	logger   *slog.Logger
	location *time.Location
	now      func() time.Time
	tick     time.Duration

	mu         sync.Mutex
	entries    map[string]*entry
	onComplete func(JobResult)
	ctx        context.Context
	cancel     context.CancelFunc
	startedAt  time.Time

	loopDone chan struct{}
	inflight sync.WaitGroup
}

// NewScheduler returns a stopped scheduler.
func NewScheduler(opts Options) *Scheduler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}

	return &Scheduler{
		logger:   opts.Logger.With("component", "scheduler"),
		location: opts.Location,
		now:      opts.Now,
		tick:     opts.TickInterval,
		entries:  make(map[string]*entry),
		ctx:      context.Background(),
	}
}

func (s *Scheduler) clock() time.Time {
	return s.now().In(s.location)
}

// Register adds job, first due at schedule.Next(now).
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}
	e := &entry{job: job, schedule: schedule, next: schedule.Next(s.clock())}
	s.entries[name] = e

	s.logger.Info("job registered",
		"job", name,
		"schedule", schedule.String(),
		"next_run", e.next.Format(time.RFC3339),
	)
	return nil
}

// DisableJob stops scheduled triggers for a job. RunNow still works.
func (s *Scheduler) DisableJob(name string) error {
	return s.setEnabled(name, false)
}

// EnableJob resumes scheduled triggers from now.
func (s *Scheduler) EnableJob(name string) error {
	return s.setEnabled(name, true)
}

func (s *Scheduler) setEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if enabled && e.disabled {
		e.next = e.schedule.Next(s.clock())
	}
	e.disabled = !enabled
	s.logger.Info("job toggled", "job", name, "enabled", enabled)
	return nil
}

// OnJobComplete sets a callback run after every job, scheduled or manual.
func (s *Scheduler) OnJobComplete(fn func(JobResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onComplete = fn
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start launches the tick loop. Jobs inherit ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loopDone != nil {
		return ErrSchedulerAlreadyRunning
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.startedAt = s.now()
	s.loopDone = make(chan struct{})

	go s.loop(s.ctx, s.loopDone)

	s.logger.Info("scheduler started", "jobs", len(s.entries), "tick", s.tick.String())
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.loopDone == nil {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	done := s.loopDone
	s.loopDone = nil
	s.cancel()
	s.mu.Unlock()

	<-done
	s.inflight.Wait()

	s.logger.Info("scheduler stopped", "uptime", s.now().Sub(s.startedAt).String())
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loopDone != nil
}

// Wait blocks until every run started so far has returned.
func (s *Scheduler) Wait() {
	s.inflight.Wait()
}

func (s *Scheduler) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(s.clock())
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCH
// ══════════════════════════════════════════════════════════════════════════════

// Tick starts every enabled job due at or before now. Each due job is marked
// busy and its next trigger moved past now under the lock, so no trigger is
// dispatched twice. Triggers missed while the process was down collapse into
// one run.
func (s *Scheduler) Tick(now time.Time) {
	now = now.In(s.location)

	s.mu.Lock()
	ctx := s.ctx
	var due []*entry
	for name, e := range s.entries {
		if e.disabled || e.next.IsZero() || now.Before(e.next) {
			continue
		}
		e.next = e.schedule.Next(now)
		if e.busy {
			e.skipped++
			s.logger.Warn("job still running, trigger skipped",
				"job", name,
				"next_run", e.next.Format(time.RFC3339),
			)
			continue
		}
		e.busy = true
		e.runs++
		due = append(due, e)
	}
	s.inflight.Add(len(due))
	s.mu.Unlock()

	for _, e := range due {
		go func() {
			defer s.inflight.Done()
			s.run(ctx, e, false)
		}()
	}
}

// RunNow runs a job in the caller's goroutine, ignoring its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) (*JobResult, error) {
	s.mu.Lock()
	e, ok := s.entries[name]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if e.busy {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	e.busy = true
	e.runs++
	s.inflight.Add(1)
	s.mu.Unlock()

	defer s.inflight.Done()
	result := s.run(ctx, e, true)
	return &result, result.Error
}

// run executes a job already marked busy and records its result.
func (s *Scheduler) run(ctx context.Context, e *entry, manual bool) JobResult {
	name := e.job.Name()
	log := s.logger.With("job", name, "manual", manual)
	log.Info("job started")

	started := s.now()
	err := e.job.Run(ctx)
	completed := s.now()

	result := JobResult{
		JobName:     name,
		StartedAt:   started,
		CompletedAt: completed,
		Duration:    completed.Sub(started),
		Success:     err == nil,
		Error:       err,
		Manual:      manual,
	}
	if r, ok := e.job.(MetadataReporter); ok {
		result.Metadata = r.Metadata()
	}

	s.mu.Lock()
	e.busy = false
	e.last = &result
	if err != nil {
		e.failures++
	}
	onComplete := s.onComplete
	s.mu.Unlock()

	if err != nil {
		log.Error("job failed", "duration", result.Duration.String(), "error", err)
	} else {
		log.Info("job completed", "duration", result.Duration.String())
	}
	if onComplete != nil {
		onComplete(result)
	}
	return result
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

func (e *entry) status() JobStatus {
	return JobStatus{
		Name:       e.job.Name(),
		Schedule:   e.schedule.String(),
		Enabled:    !e.disabled,
		Running:    e.busy,
		NextRun:    e.next,
		Runs:       e.runs,
		Failures:   e.failures,
		Skipped:    e.skipped,
		LastResult: e.last,
	}
}

// Status reports one job.
func (s *Scheduler) Status(name string) (JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return JobStatus{}, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return e.status(), nil
}

// Jobs reports every job, ordered by name.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	out := make([]JobStatus, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.status())
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b JobStatus) int { return cmp.Compare(a.Name, b.Name) })
	return out
}
