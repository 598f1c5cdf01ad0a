package handlers

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// Checker produces a health report on demand.
type Checker interface {
	Check(ctx context.Context) Report
}

// Probe checks one dependency; a non-nil error marks it down.
type Probe func(ctx context.Context) error

// Report is the body of GET /health.
type Report struct {
	// Status is "ok", "degraded" (an optional probe failed) or "down".
	Status    string                 `json:"status"`
	Healthy   bool                   `json:"healthy"`
	Ready     bool                   `json:"ready"`
	Message   string                 `json:"message,omitempty"`
	Checks    map[string]ProbeResult `json:"checks,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
}

type ProbeResult struct {
	Healthy  bool   `json:"healthy"`
	Optional bool   `json:"optional,omitempty"`
	Message  string `json:"message"`
	Duration string `json:"duration"`
}

type probe struct {
	name     string
	fn       Probe
	optional bool
}

// Health runs registered probes in parallel, each under its own timeout.
// A failing required probe takes the service out of rotation; a failing
// optional one only degrades it.
type Health struct {
	mu      sync.RWMutex
	probes  []probe
	started time.Time
	version string
	timeout time.Duration
}

var _ Checker = (*Health)(nil)

func NewHealth(version string) *Health {
	return &Health{
		started: time.Now(),
		version: version,
		timeout: 5 * time.Second,
	}
}

// WithTimeout sets the per-probe deadline.
func (h *Health) WithTimeout(d time.Duration) *Health {
	h.timeout = d
	return h
}

// Require registers a probe that gates readiness.
func (h *Health) Require(name string, fn Probe) {
	h.add(probe{name: name, fn: fn})
}

// Optional registers a probe that can only degrade the report.
func (h *Health) Optional(name string, fn Probe) {
	h.add(probe{name: name, fn: fn, optional: true})
}

func (h *Health) add(p probe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes = append(h.probes, p)
}

// Check runs every probe and folds the results into one report.
func (h *Health) Check(ctx context.Context) Report {
	h.mu.RLock()
	probes := slices.Clone(h.probes)
	h.mu.RUnlock()

	results := make([]ProbeResult, len(probes))
	var g errgroup.Group
	for i, p := range probes {
		g.Go(func() error {
			results[i] = h.run(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Status:    "ok",
		Healthy:   true,
		Ready:     true,
		Message:   "all checks passed",
		Checks:    make(map[string]ProbeResult, len(probes)),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	}

	var down, degraded []string
	for i, p := range probes {
		r := results[i]
		report.Checks[p.name] = r
		switch {
		case r.Healthy:
		case p.optional:
			degraded = append(degraded, p.name)
		default:
			down = append(down, p.name)
		}
	}
	slices.Sort(down)
	slices.Sort(degraded)

	switch {
	case len(down) > 0:
		report.Status = "down"
		report.Healthy = false
		report.Ready = false
		report.Message = "failing: " + strings.Join(down, ", ")
	case len(degraded) > 0:
		report.Status = "degraded"
		report.Message = "degraded: " + strings.Join(degraded, ", ")
	}
	return report
}

func (h *Health) run(ctx context.Context, p probe) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	err := p.fn(ctx)
	r := ProbeResult{
		Healthy:  err == nil,
		Optional: p.optional,
		Message:  "ok",
		Duration: time.Since(start).Round(time.Millisecond).String(),
	}
	if err != nil {
		r.Message = err.Error()
	}
	return r
}

// ══════════════════════════════════════════════════════════════════════════════
// PROBES
// ══════════════════════════════════════════════════════════════════════════════

// Pinger is implemented by the store and the cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

func PingProbe(p Pinger) Probe {
	return p.Ping
}

// RunningProbe fails once a background component has stopped.
func RunningProbe(c interface{ IsRunning() bool }) Probe {
	return func(context.Context) error {
		if !c.IsRunning() {
			return errors.New("not running")
		}
		return nil
	}
}

// CircuitProbe fails while the provider's circuit breaker is open.
func CircuitProbe(c interface{ IsHealthy() bool }) Probe {
	return func(context.Context) error {
		if !c.IsHealthy() {
			return errors.New("circuit open")
		}
		return nil
	}
}
