package eventhandler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmkec/leetcode-leaderboard/internal/domain/shared"
	"github.com/rmkec/leetcode-leaderboard/internal/domain/student"
	"github.com/rmkec/leetcode-leaderboard/internal/infrastructure/messaging"
	"github.com/rmkec/leetcode-leaderboard/internal/infrastructure/persistence/redis"
	"github.com/rmkec/leetcode-leaderboard/pkg/logger"
)

func setup(t *testing.T) (*redis.LeaderboardCache, *messaging.Bus, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := redis.NewLeaderboardCache(redis.NewCacheFromClient(client), time.Minute)

	bus := messaging.NewBus(messaging.Options{Logger: logger.Discard()})
	require.NoError(t, NewOnStudentChangedHandler(cache, logger.Discard()).Register(bus))

	return cache, bus, mr
}

func TestOnStudentChanged_WarmCache(t *testing.T) {
	ctx := context.Background()
	cache, bus, _ := setup(t)

	require.NoError(t, cache.Rebuild(ctx, []student.Record{{
		RegNo: "A1", Name: "Asha", Department: student.DepartmentCSE, Year: student.YearFirst, SolvedCount: 10,
	}}))

	require.NoError(t, bus.Publish(shared.NewStudentAddedEvent("B2", "Bala", "IT", "Second Year", "https://leetcode.com/u/bala", 30)))
	require.NoError(t, bus.Publish(shared.NewSolvedCountChangedEvent("A1", 10, 45)))

	got, err := cache.Get(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A1", got[0].RegNo)
	assert.Equal(t, 45, got[0].SolvedCount)
	assert.Equal(t, "B2", got[1].RegNo)
	assert.Equal(t, student.DepartmentIT, got[1].Department)
}

func TestOnStudentChanged_ColdCacheIgnored(t *testing.T) {
	ctx := context.Background()
	cache, bus, _ := setup(t)

	require.NoError(t, bus.Publish(shared.NewStudentAddedEvent("B2", "Bala", "IT", "Second Year", "https://leetcode.com/u/bala", 30)))

	_, err := cache.Get(ctx)
	assert.ErrorIs(t, err, redis.ErrCacheMiss)
}

func TestOnStudentChanged_FailureInvalidates(t *testing.T) {
	ctx := context.Background()
	cache, _, mr := setup(t)
	h := NewOnStudentChangedHandler(cache, logger.Discard())

	require.NoError(t, cache.Rebuild(ctx, []student.Record{{RegNo: "A1", Name: "Asha", SolvedCount: 10}}))

	// corrupt the scores key so the write fails with WRONGTYPE
	mr.Del("leaderboard:scores")
	require.NoError(t, mr.Set("leaderboard:scores", "oops"))

	err := h.Handle(shared.NewSolvedCountChangedEvent("A1", 10, 11))
	require.Error(t, err)

	_, err = cache.Get(ctx)
	assert.ErrorIs(t, err, redis.ErrCacheMiss)
}

func TestOnStudentChanged_IgnoresOtherEvents(t *testing.T) {
	cache, _, _ := setup(t)
	h := NewOnStudentChangedHandler(cache, logger.Discard())

	assert.NoError(t, h.Handle(shared.NewReconcileCompletedEvent(1, 0, 0, time.Second)))
}
