package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/rmkec/leetcode-leaderboard/internal/domain/shared"
	"github.com/rmkec/leetcode-leaderboard/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// MEMORY STORE
// ══════════════════════════════════════════════════════════════════════════════

// MemoryStore is an in-memory student.Store for tests of the layers above
// the store. Setting one of the Err fields makes that operation fail.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]student.Record

	ListErr   error
	CreateErr error
	UpdateErr error
	PingErr   error

	Updates int
}

var _ student.Store = (*MemoryStore)(nil)

// NewMemoryStore returns a store holding records.
func NewMemoryStore(records ...student.Record) *MemoryStore {
	m := &MemoryStore{records: make(map[string]student.Record, len(records))}
	for _, r := range records {
		m.records[r.RegNo] = r
	}
	return m
}

// Create implements student.Store.
func (m *MemoryStore) Create(_ context.Context, r student.Record) (student.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateErr != nil {
		return student.Record{}, m.CreateErr
	}
	if _, ok := m.records[r.RegNo]; ok {
		return student.Record{}, shared.ErrStudentAlreadyExists
	}
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	m.records[r.RegNo] = r
	return r, nil
}

// ListAll implements student.Store.
func (m *MemoryStore) ListAll(context.Context) ([]student.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]student.Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	return out, nil
}

// Update implements student.Store.
func (m *MemoryStore) Update(_ context.Context, regNo string, solvedCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	if solvedCount < 0 {
		return shared.ErrNegativeSolvedCount
	}
	r, ok := m.records[regNo]
	if !ok {
		return shared.ErrStudentNotFound
	}
	r.SolvedCount = solvedCount
	r.UpdatedAt = time.Now().UTC()
	m.records[regNo] = r
	m.Updates++
	return nil
}

// Get implements student.Store.
func (m *MemoryStore) Get(_ context.Context, regNo string) (student.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[regNo]
	if !ok {
		return student.Record{}, shared.ErrStudentNotFound
	}
	return r, nil
}

// Ping implements student.Store.
func (m *MemoryStore) Ping(context.Context) error {
	return m.PingErr
}

// Close implements student.Store.
func (m *MemoryStore) Close() error {
	return nil
}

// Len returns the number of records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// UpdateCount returns the number of successful updates.
func (m *MemoryStore) UpdateCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Updates
}

// ══════════════════════════════════════════════════════════════════════════════
// STUB PROVIDER
// ══════════════════════════════════════════════════════════════════════════════

// StubProvider is a student.StatsProvider answering from a map. Unknown
// profiles fail with shared.ErrProviderUnavailable.
type StubProvider struct {
	mu     sync.Mutex
	counts map[string]int
	calls  map[string]int

	// Hook, when set, runs before every lookup.
	Hook func(ctx context.Context, profileID string) error
}

var _ student.StatsProvider = (*StubProvider)(nil)

// NewStubProvider returns a provider that knows counts.
func NewStubProvider(counts map[string]int) *StubProvider {
	if counts == nil {
		counts = make(map[string]int)
	}
	return &StubProvider{counts: counts, calls: make(map[string]int)}
}

// FetchSolvedCount implements student.StatsProvider.
func (p *StubProvider) FetchSolvedCount(ctx context.Context, profileID string) (int, error) {
	p.mu.Lock()
	p.calls[profileID]++
	hook := p.Hook
	p.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, profileID); err != nil {
			return 0, shared.WrapError("leetcode", "FetchSolvedCount", shared.ErrProviderUnavailable, "stub failure", err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	count, ok := p.counts[profileID]
	if !ok {
		return 0, shared.NewDomainError("leetcode", "FetchSolvedCount", shared.ErrProviderUnavailable, "user not found: "+profileID)
	}
	return count, nil
}

// Set changes the count reported for profileID.
func (p *StubProvider) Set(profileID string, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[profileID] = count
}

// Calls returns how often profileID was fetched.
func (p *StubProvider) Calls(profileID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[profileID]
}
