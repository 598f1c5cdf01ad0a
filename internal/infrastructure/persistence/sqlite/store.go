// Package sqlite provides the SQLite backend of the student store. It is the
// default for single-host deployments: one file, no server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/rmkec/leetcode-leaderboard/internal/domain/shared"
	"github.com/rmkec/leetcode-leaderboard/internal/domain/student"
)

// Store persists student records in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ student.Store = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the database at path, creating parent directories, and applies
// pending migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, storeError("Open", "create data directory", err)
		}
	}

	dsn := "file:" + cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storeError("Open", "open sqlite db", err)
	}
	// one writer at a time; busy_timeout covers readers from other processes
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, storeError("Open", "ping sqlite db", err)
	}
	if err := migrate(context.Background(), sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, storeError("Open", "run migrations", err)
	}

	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.sqlDB.PingContext(ctx); err != nil {
		return storeError("Ping", "ping", err)
	}
	return nil
}

// Create inserts one student record.
func (s *Store) Create(ctx context.Context, r student.Record) (student.Record, error) {
	if err := ctx.Err(); err != nil {
		return student.Record{}, err
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO students (
		   reg_no,
		   name,
		   department,
		   year,
		   leetcode_url,
		   total_solved,
		   created_at,
		   updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RegNo,
		r.Name,
		string(r.Department),
		string(r.Year),
		r.ProfileURL,
		r.SolvedCount,
		toMillis(r.CreatedAt),
		toMillis(r.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return student.Record{}, shared.ErrStudentAlreadyExists
		}
		return student.Record{}, storeError("Create", "insert student", err)
	}
	return r, nil
}

// Get returns one student record.
func (s *Store) Get(ctx context.Context, regNo string) (student.Record, error) {
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT reg_no, name, department, year, leetcode_url, total_solved, created_at, updated_at
		 FROM students
		 WHERE reg_no = ?`,
		regNo,
	)

	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return student.Record{}, shared.ErrStudentNotFound
	}
	if err != nil {
		return student.Record{}, storeError("Get", "select student", err)
	}
	return r, nil
}

// ListAll returns every student record.
func (s *Store) ListAll(ctx context.Context) ([]student.Record, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT reg_no, name, department, year, leetcode_url, total_solved, created_at, updated_at
		 FROM students
		 ORDER BY reg_no`,
	)
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

// Update overwrites the solved count of one record in a single statement.
func (s *Store) Update(ctx context.Context, regNo string, solvedCount int) error {
	if solvedCount < 0 {
		return shared.ErrNegativeSolvedCount
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE students SET total_solved = ?, updated_at = ? WHERE reg_no = ?`,
		solvedCount,
		toMillis(s.now()),
		regNo,
	)
	if err != nil {
		return storeError("Update", "update student", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storeError("Update", "rows affected", err)
	}
	if affected == 0 {
		return shared.ErrStudentNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (student.Record, error) {
	var (
		r                    student.Record
		department, year     string
		createdAt, updatedAt int64
	)
	if err := row.Scan(
		&r.RegNo,
		&r.Name,
		&department,
		&year,
		&r.ProfileURL,
		&r.SolvedCount,
		&createdAt,
		&updatedAt,
	); err != nil {
		return student.Record{}, err
	}
	r.Department = student.Department(department)
	r.Year = student.Year(year)
	r.CreatedAt = fromMillis(createdAt)
	r.UpdatedAt = fromMillis(updatedAt)
	return r, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "students.reg_no")
}

func storeError(op, message string, err error) error {
	return shared.WrapError("sqlite", op, shared.ErrStoreUnavailable, message, err)
}
