// Package storetest holds the behaviour every student.Store backend must
// share. Backend test files call Run with a factory for an empty store.
package storetest

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmkec/leetcode-leaderboard/internal/domain/shared"
	"github.com/rmkec/leetcode-leaderboard/internal/domain/student"
)

// Factory returns a new, empty store. The store is closed by the suite.
type Factory func(t *testing.T) student.Store

// Record builds a valid record for tests.
func Record(regNo, name string, solved int) student.Record {
	return student.Record{
		RegNo:       regNo,
		Name:        name,
		Department:  student.DepartmentCSE,
		Year:        student.YearThird,
		ProfileURL:  "https://leetcode.com/u/" + regNo + "/",
		SolvedCount: solved,
	}
}

// Run executes the shared store suite.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	open := func(t *testing.T) student.Store {
		s := newStore(t)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}

	t.Run("CreateAndGet", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)

		in := Record("A1", "Asha", 10)
		in.Department = student.DepartmentECE
		in.Year = student.YearFirst

		created, err := s.Create(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, "A1", created.RegNo)
		assert.Equal(t, 10, created.SolvedCount)
		assert.False(t, created.CreatedAt.IsZero())
		assert.False(t, created.UpdatedAt.IsZero())

		got, err := s.Get(ctx, "A1")
		require.NoError(t, err)
		assert.Equal(t, in.Name, got.Name)
		assert.Equal(t, student.DepartmentECE, got.Department)
		assert.Equal(t, student.YearFirst, got.Year)
		assert.Equal(t, in.ProfileURL, got.ProfileURL)
		assert.Equal(t, 10, got.SolvedCount)
	})

	t.Run("CreateDuplicate", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)

		_, err := s.Create(ctx, Record("A1", "Asha", 10))
		require.NoError(t, err)

		_, err = s.Create(ctx, Record("A1", "Someone Else", 99))
		require.Error(t, err)
		assert.True(t, shared.IsDuplicateKey(err))

		got, err := s.Get(ctx, "A1")
		require.NoError(t, err)
		assert.Equal(t, "Asha", got.Name, "duplicate create must not mutate")
		assert.Equal(t, 10, got.SolvedCount)
	})

	t.Run("ListAll", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)

		all, err := s.ListAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)

		for _, r := range []student.Record{Record("A1", "Asha", 10), Record("A2", "Bala", 25), Record("B7", "Chitra", 0)} {
			_, err := s.Create(ctx, r)
			require.NoError(t, err)
		}

		all, err = s.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)

		regNos := make([]string, 0, len(all))
		for _, r := range all {
			regNos = append(regNos, r.RegNo)
		}
		sort.Strings(regNos)
		assert.Equal(t, []string{"A1", "A2", "B7"}, regNos)
	})

	t.Run("Update", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)

		created, err := s.Create(ctx, Record("A1", "Asha", 10))
		require.NoError(t, err)

		require.NoError(t, s.Update(ctx, "A1", 42))
		got, err := s.Get(ctx, "A1")
		require.NoError(t, err)
		assert.Equal(t, 42, got.SolvedCount)
		assert.Equal(t, created.Name, got.Name)
		assert.Equal(t, created.ProfileURL, got.ProfileURL)
		assert.False(t, got.UpdatedAt.Before(created.UpdatedAt))

		// counts mirror the provider and may go down
		require.NoError(t, s.Update(ctx, "A1", 3))
		got, err = s.Get(ctx, "A1")
		require.NoError(t, err)
		assert.Equal(t, 3, got.SolvedCount)
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		s := open(t)

		err := s.Update(context.Background(), "nope", 1)
		require.Error(t, err)
		assert.True(t, shared.IsNotFound(err))
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := open(t)

		_, err := s.Get(context.Background(), "nope")
		require.Error(t, err)
		assert.True(t, shared.IsNotFound(err))
	})

	t.Run("ConcurrentUpdates", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)

		const n = 8
		for i := 0; i < n; i++ {
			_, err := s.Create(ctx, Record(string(rune('A'+i)), "Student", 0))
			require.NoError(t, err)
		}

		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, s.Update(ctx, string(rune('A'+i)), i+1))
			}(i)
		}
		wg.Wait()

		all, err := s.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, n)
		for _, r := range all {
			assert.Equal(t, int(r.RegNo[0]-'A')+1, r.SolvedCount, r.RegNo)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		s := open(t)
		assert.NoError(t, s.Ping(context.Background()))
	})
}
