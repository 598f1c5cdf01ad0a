// Package messaging implements the in-process event bus that connects intake
// and reconciliation to the read side (the leaderboard cache).
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/rmkec/leetcode-leaderboard/internal/domain/shared"
)

var (
	ErrEventBusClosed = errors.New("messaging: event bus is closed")
	ErrHandlerPanic   = errors.New("messaging: handler panicked")
	ErrNilHandler     = errors.New("messaging: nil handler")
	ErrNilEvent       = errors.New("messaging: nil event")
)

// ══════════════════════════════════════════════════════════════════════════════
// BUS
// ══════════════════════════════════════════════════════════════════════════════

// Options configures a Bus.
type Options struct {
	// Workers bounds how many handlers run at once in the background.
	// Zero delivers synchronously inside Publish.
	Workers int64

	Logger *slog.Logger
}

// subscription with an empty eventType receives every event.
type subscription struct {
	eventType shared.EventType
	handler   shared.EventHandler
}

// Bus is an in-process shared.EventBus. A failing or panicking handler is
// logged and counted; it never fails the publisher or other handlers.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	closed bool

	workers *semaphore.Weighted
	stop    context.Context
	cancel  context.CancelFunc
	pending sync.WaitGroup

	logger *slog.Logger
	stats  counters
}

var _ shared.EventBus = (*Bus)(nil)

// NewBus returns an open bus.
func NewBus(opts Options) *Bus {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	stop, cancel := context.WithCancel(context.Background())

	b := &Bus{
		stop:   stop,
		cancel: cancel,
		logger: opts.Logger.With("component", "event_bus"),
	}
	if opts.Workers > 0 {
		b.workers = semaphore.NewWeighted(opts.Workers)
	}
	return b
}

// Subscribe delivers events of one type to handler.
func (b *Bus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if eventType == "" {
		return fmt.Errorf("messaging: empty event type")
	}
	return b.add(subscription{eventType: eventType, handler: handler})
}

// SubscribeAll delivers every event to handler.
func (b *Bus) SubscribeAll(handler shared.EventHandler) error {
	return b.add(subscription{handler: handler})
}

func (b *Bus) add(sub subscription) error {
	if sub.handler == nil {
		return ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}
	b.subs = append(b.subs, sub)
	return nil
}

// Publish hands event to its subscribers. In background mode it returns
// before the handlers run.
func (b *Bus) Publish(event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	var matched []shared.EventHandler
	for _, sub := range b.subs {
		if sub.eventType == "" || sub.eventType == event.EventType() {
			matched = append(matched, sub.handler)
		}
	}
	// Registered under the read lock so Close waits for them.
	if b.workers != nil {
		b.pending.Add(len(matched))
	}
	b.mu.RUnlock()

	b.stats.published.Add(1)

	for _, handler := range matched {
		if b.workers == nil {
			b.deliver(event, handler)
			continue
		}
		go func() {
			defer b.pending.Done()
			if err := b.workers.Acquire(b.stop, 1); err != nil {
				b.stats.dropped.Add(1)
				return
			}
			defer b.workers.Release(1)
			b.deliver(event, handler)
		}()
	}
	return nil
}

func (b *Bus) deliver(event shared.Event, handler shared.EventHandler) {
	b.stats.delivered.Add(1)
	if err := invoke(event, handler); err != nil {
		b.stats.failed.Add(1)
		b.logger.Error("event handler failed",
			"event_type", event.EventType(),
			"event", event,
			"error", err,
		)
	}
}

func invoke(event shared.Event, handler shared.EventHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return handler(event)
}

// Wait blocks until every background delivery started so far has finished.
func (b *Bus) Wait() {
	b.pending.Wait()
}

// Close rejects further use, drops deliveries still queued for a worker and
// waits for the running ones.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.pending.Wait()

	s := b.Stats()
	b.logger.Info("event bus closed",
		"published", s.Published,
		"failed", s.Failed,
		"dropped", s.Dropped,
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STATS
// ══════════════════════════════════════════════════════════════════════════════

type counters struct {
	published atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// Stats counts events since the bus was created.
type Stats struct {
	Published int64 `json:"published"`
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

func (b *Bus) Stats() Stats {
	return Stats{
		Published: b.stats.published.Load(),
		Delivered: b.stats.delivered.Load(),
		Failed:    b.stats.failed.Load(),
		Dropped:   b.stats.dropped.Load(),
	}
}
