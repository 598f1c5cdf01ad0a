package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmkec/leetcode-leaderboard/config"
	"github.com/rmkec/leetcode-leaderboard/internal/infrastructure/persistence/filestore"
	"github.com/rmkec/leetcode-leaderboard/internal/infrastructure/persistence/sqlite"
	"github.com/rmkec/leetcode-leaderboard/pkg/logger"
)

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenStore(ctx, config.StoreConfig{Driver: config.StoreDriverSQLite, SQLitePath: filepath.Join(dir, "db.sqlite")}, logger.Discard())
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, s)
	require.NoError(t, s.Close())

	s, err = OpenStore(ctx, config.StoreConfig{Driver: config.StoreDriverFile, FilePath: filepath.Join(dir, "students.json")}, logger.Discard())
	require.NoError(t, err)
	assert.IsType(t, &filestore.Store{}, s)
	require.NoError(t, s.Close())

	_, err = OpenStore(ctx, config.StoreConfig{Driver: "mysql"}, logger.Discard())
	assert.Error(t, err)
}
