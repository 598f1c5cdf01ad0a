package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/rmkec/leetcode-leaderboard/internal/domain/shared"
	"github.com/rmkec/leetcode-leaderboard/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT STORE IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const studentColumns = `reg_no, name, department, year, leetcode_url, total_solved, created_at, updated_at`

// StudentStore implements student.Store for PostgreSQL.
type StudentStore struct {
	conn *Connection
}

var _ student.Store = (*StudentStore)(nil)

// NewStudentStore creates a new StudentStore.
func NewStudentStore(conn *Connection) *StudentStore {
	return &StudentStore{conn: conn}
}

// Open connects to databaseURL, applies pending migrations and returns a
// ready store. The store owns the connection.
func Open(ctx context.Context, databaseURL string, opts PoolOptions) (*StudentStore, error) {
	conn, err := NewConnection(ctx, databaseURL, opts)
	if err != nil {
		return nil, shared.WrapError("postgres", "Open", shared.ErrStoreUnavailable, "connect", err)
	}
	if err := NewMigrator(conn).Migrate(ctx); err != nil {
		conn.Close()
		return nil, shared.WrapError("postgres", "Open", shared.ErrStoreUnavailable, "migrate", err)
	}
	return NewStudentStore(conn), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create inserts a new student and returns it with database timestamps.
func (s *StudentStore) Create(ctx context.Context, r student.Record) (student.Record, error) {
	query := `
		INSERT INTO students (reg_no, name, department, year, leetcode_url, total_solved)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + studentColumns

	row := s.conn.QueryRow(ctx, query,
		r.RegNo,
		r.Name,
		string(r.Department),
		string(r.Year),
		r.ProfileURL,
		r.SolvedCount,
	)

	created, err := scanRecord(row)
	if err != nil {
		if IsUniqueViolation(err) {
			return student.Record{}, shared.ErrStudentAlreadyExists
		}
		return student.Record{}, storeError("Create", "insert student", err)
	}
	return created, nil
}

// Get returns a student by registration number.
func (s *StudentStore) Get(ctx context.Context, regNo string) (student.Record, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE reg_no = $1`

	r, err := scanRecord(s.conn.QueryRow(ctx, query, regNo))
	if IsNoRows(err) {
		return student.Record{}, shared.ErrStudentNotFound
	}
	if err != nil {
		return student.Record{}, storeError("Get", "select student", err)
	}
	return r, nil
}

// ListAll returns every student.
func (s *StudentStore) ListAll(ctx context.Context) ([]student.Record, error) {
	query := `SELECT ` + studentColumns + ` FROM students ORDER BY reg_no`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, storeError("ListAll", "select students", err)
	}
	defer rows.Close()

	records := make([]student.Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, storeError("ListAll", "scan student", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("ListAll", "iterate students", err)
	}

	return records, nil
}

// Update overwrites the solved count of one student in a single statement.
func (s *StudentStore) Update(ctx context.Context, regNo string, solvedCount int) error {
	if solvedCount < 0 {
		return shared.ErrNegativeSolvedCount
	}

	query := `
		UPDATE students
		SET total_solved = $1, updated_at = NOW()
		WHERE reg_no = $2
	`

	result, err := s.conn.Exec(ctx, query, solvedCount, regNo)
	if err != nil {
		return storeError("Update", "update student", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrStudentNotFound
	}
	return nil
}

// Ping checks the database connection.
func (s *StudentStore) Ping(ctx context.Context) error {
	if err := s.conn.Ping(ctx); err != nil {
		return storeError("Ping", "ping", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *StudentStore) Close() error {
	s.conn.Close()
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func scanRecord(row pgx.Row) (student.Record, error) {
	var r student.Record
	var department, year string

	err := row.Scan(
		&r.RegNo,
		&r.Name,
		&department,
		&year,
		&r.ProfileURL,
		&r.SolvedCount,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return student.Record{}, err
	}

	r.Department = student.Department(department)
	r.Year = student.Year(year)
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, nil
}

func storeError(op, message string, err error) error {
	return shared.WrapError("postgres", op, shared.ErrStoreUnavailable, message, err)
}
