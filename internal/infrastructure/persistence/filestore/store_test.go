package filestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmkec/leetcode-leaderboard/internal/domain/shared"
	"github.com/rmkec/leetcode-leaderboard/internal/domain/student"
	"github.com/rmkec/leetcode-leaderboard/internal/infrastructure/persistence/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) student.Store {
		s, err := Open(filepath.Join(t.TempDir(), "students.json"))
		require.NoError(t, err)
		return s
	})
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "students.json")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Create(ctx, storetest.Record("A1", "Asha", 10))
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, "A1", 12))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	got, err := s.Get(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, 12, got.SolvedCount)
	assert.Equal(t, "Asha", got.Name)
}

func TestDocumentLayout(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "students.json")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Create(ctx, storetest.Record("B2", "Bala", 5))
	require.NoError(t, err)
	_, err = s.Create(ctx, storetest.Record("A1", "Asha", 10))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Version  int              `json:"version"`
		Students []map[string]any `json:"students"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 1, doc.Version)
	require.Len(t, doc.Students, 2)
	assert.Equal(t, "A1", doc.Students[0]["regNo"])
	assert.Equal(t, float64(10), doc.Students[0]["totalSolved"])
	assert.Contains(t, doc.Students[0], "leetcodeUrl")

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temp files are cleaned up")
}

func TestOpen_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "students.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Open(path)
	require.Error(t, err)
	assert.True(t, shared.IsStoreUnavailable(err))
}

func TestUpdate_FailedWriteKeepsState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "students.json")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Create(ctx, storetest.Record("A1", "Asha", 10))
	require.NoError(t, err)

	// point the store at a directory that no longer exists
	s.path = filepath.Join(dir, "gone", "students.json")
	err = s.Update(ctx, "A1", 99)
	require.Error(t, err)
	assert.True(t, shared.IsStoreUnavailable(err))
	s.path = path

	got, err := s.Get(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, 10, got.SolvedCount)
}

func TestClosedStore(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "students.json"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.ListAll(context.Background())
	assert.True(t, shared.IsStoreUnavailable(err))
}

func TestSharedDocument_WritesFromOtherStoreAreVisible(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "students.json")

	api, err := Open(path)
	require.NoError(t, err)
	_, err = api.Create(ctx, storetest.Record("A1", "Asha", 10))
	require.NoError(t, err)

	worker, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, worker.Update(ctx, "A1", 50))

	got, err := api.Get(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, 50, got.SolvedCount)

	// an intake on the stale side must not roll the update back
	_, err = api.Create(ctx, storetest.Record("B2", "Bala", 5))
	require.NoError(t, err)

	reopened, err := Open(path)
	require.NoError(t, err)
	got, err = reopened.Get(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, 50, got.SolvedCount)

	all, err := worker.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSharedDocument_DuplicateAcrossStores(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "students.json")

	a, err := Open(path)
	require.NoError(t, err)
	b, err := Open(path)
	require.NoError(t, err)

	_, err = a.Create(ctx, storetest.Record("A1", "Asha", 10))
	require.NoError(t, err)

	_, err = b.Create(ctx, storetest.Record("A1", "Other", 1))
	assert.True(t, shared.IsDuplicateKey(err))
}

func TestSharedDocument_ConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "students.json")

	seed, err := Open(path)
	require.NoError(t, err)
	regNos := []string{"A1", "B2", "C3", "D4", "E5", "F6"}
	for _, regNo := range regNos {
		_, err := seed.Create(ctx, storetest.Record(regNo, "S "+regNo, 0))
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i, regNo := range regNos {
		s, err := Open(path)
		require.NoError(t, err)
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Update(ctx, regNo, i+100))
		}()
	}
	wg.Wait()

	all, err := seed.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, len(regNos))
	for _, r := range all {
		assert.GreaterOrEqual(t, r.SolvedCount, 100, r.RegNo)
	}
}
