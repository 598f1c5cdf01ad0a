package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmkec/leetcode-leaderboard/internal/domain/student"
	"github.com/rmkec/leetcode-leaderboard/internal/infrastructure/persistence/storetest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "leaderboard.db"))
	require.NoError(t, err)
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) student.Store {
		return openTestStore(t)
	})
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "leaderboard.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestOpen_ReopenKeepsDataAndMigrations(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "leaderboard.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Create(ctx, storetest.Record("A1", "Asha", 10))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, 10, got.SolvedCount)

	var applied int
	require.NoError(t, s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&applied))
	assert.Equal(t, len(migrations), applied)
}

func TestIsUniqueViolation(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	defer s.Close()

	_, err := s.sqlDB.ExecContext(ctx, `INSERT INTO students (reg_no, name, department, year, leetcode_url, total_solved, created_at, updated_at) VALUES ('X', 'n', 'IT', 'First Year', 'u', 0, 0, 0)`)
	require.NoError(t, err)
	_, err = s.sqlDB.ExecContext(ctx, `INSERT INTO students (reg_no, name, department, year, leetcode_url, total_solved, created_at, updated_at) VALUES ('X', 'n', 'IT', 'First Year', 'u', 0, 0, 0)`)
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))
	assert.False(t, isUniqueViolation(nil))
}
