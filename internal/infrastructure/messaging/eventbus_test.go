package messaging

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmkec/leetcode-leaderboard/internal/domain/shared"
	"github.com/rmkec/leetcode-leaderboard/pkg/logger"
)

func newSyncBus() *Bus {
	return NewBus(Options{Logger: logger.Discard()})
}

func TestBus_DeliversByType(t *testing.T) {
	bus := newSyncBus()

	var added, changed, all int
	require.NoError(t, bus.Subscribe(shared.EventStudentAdded, func(e shared.Event) error {
		added++
		assert.Equal(t, "A1", e.AggregateID())
		return nil
	}))
	require.NoError(t, bus.Subscribe(shared.EventSolvedCountChanged, func(shared.Event) error {
		changed++
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		all++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewStudentAddedEvent("A1", "Asha", "CSE", "First Year", "https://leetcode.com/u/asha", 3)))
	require.NoError(t, bus.Publish(shared.NewSolvedCountChangedEvent("A1", 3, 4)))
	require.NoError(t, bus.Publish(shared.NewReconcileCompletedEvent(1, 1, 0, 0)))

	assert.Equal(t, 1, added)
	assert.Equal(t, 1, changed)
	assert.Equal(t, 3, all)
	assert.Equal(t, Stats{Published: 3, Delivered: 5}, bus.Stats())
}

func TestBus_HandlerFailuresAreContained(t *testing.T) {
	bus := newSyncBus()

	var after bool
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { return errors.New("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("bad handler") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		after = true
		return nil
	}))

	assert.NoError(t, bus.Publish(shared.NewSolvedCountChangedEvent("A1", 1, 2)))
	assert.True(t, after)
	assert.Equal(t, int64(2), bus.Stats().Failed)
}

func TestBus_Background(t *testing.T) {
	bus := NewBus(Options{Workers: 2, Logger: logger.Discard()})

	var (
		mu   sync.Mutex
		seen []string
	)
	require.NoError(t, bus.Subscribe(shared.EventSolvedCountChanged, func(e shared.Event) error {
		mu.Lock()
		seen = append(seen, e.AggregateID())
		mu.Unlock()
		return nil
	}))

	for _, regNo := range []string{"A1", "A2", "A3", "A4", "A5"} {
		require.NoError(t, bus.Publish(shared.NewSolvedCountChangedEvent(regNo, 0, 1)))
	}
	bus.Wait()

	assert.ElementsMatch(t, []string{"A1", "A2", "A3", "A4", "A5"}, seen)
	assert.Equal(t, int64(5), bus.Stats().Delivered)
	require.NoError(t, bus.Close())
}

func TestBus_Closed(t *testing.T) {
	bus := newSyncBus()
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(shared.NewSolvedCountChangedEvent("A1", 0, 1)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventStudentAdded, func(shared.Event) error { return nil }), ErrEventBusClosed)
}

func TestBus_Validation(t *testing.T) {
	bus := newSyncBus()

	assert.ErrorIs(t, bus.Subscribe(shared.EventStudentAdded, nil), ErrNilHandler)
	assert.ErrorIs(t, bus.SubscribeAll(nil), ErrNilHandler)
	assert.Error(t, bus.Subscribe("", func(shared.Event) error { return nil }))
	assert.ErrorIs(t, bus.Publish(nil), ErrNilEvent)
}
