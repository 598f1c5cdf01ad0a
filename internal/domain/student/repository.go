package student

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// STORE INTERFACE
// This interface defines the persistence contract for student records.
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Store is the durable mapping from registration number to Record.
//
// Writes are durable before the call returns and readers never observe a
// partially written record. Infrastructure failures are reported as
// errors matching shared.ErrStoreUnavailable.
type Store interface {
	// Create persists a new record and returns it as stored.
	// Returns shared.ErrStudentAlreadyExists if the RegNo is taken.
	Create(ctx context.Context, record Record) (Record, error)

	// ListAll returns every record. Order is unspecified.
	ListAll(ctx context.Context) ([]Record, error)

	// Update overwrites the solved count of one record in a single atomic
	// write, leaving every other field untouched.
	// Returns shared.ErrStudentNotFound if no record has this RegNo.
	Update(ctx context.Context, regNo string, solvedCount int) error

	// Get returns one record.
	// Returns shared.ErrStudentNotFound if no record has this RegNo.
	Get(ctx context.Context, regNo string) (Record, error)

	// Ping verifies the backing medium is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying resources.
	Close() error
}

// ══════════════════════════════════════════════════════════════════════════════
// STATS PROVIDER
// ══════════════════════════════════════════════════════════════════════════════

// StatsProvider resolves the current solved-problem count of a profile.
//
// Every failure (transport, missing profile, malformed payload) matches
// shared.ErrProviderUnavailable. Callers treat all failures alike.
type StatsProvider interface {
	FetchSolvedCount(ctx context.Context, profileID string) (int, error)
}
