package shared

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// EventType names a domain event.
type EventType string

const (
	EventStudentAdded       EventType = "student.added"
	EventSolvedCountChanged EventType = "student.solved_count_changed"
	EventReconcileCompleted EventType = "system.reconcile_completed"
)

// Event is something that already happened. Events are values; handlers
// switch on the concrete type.
type Event interface {
	EventType() EventType
	OccurredAt() time.Time

	// AggregateID is the registration number, or "system" for cycle events.
	AggregateID() string
}

// Envelope carries the fields every event shares.
type Envelope struct {
	ID      string    `json:"id"`
	Type    EventType `json:"type"`
	At      time.Time `json:"at"`
	Subject string    `json:"subject"`
}

func newEnvelope(t EventType, subject string) Envelope {
	return Envelope{ID: uuid.NewString(), Type: t, At: time.Now(), Subject: subject}
}

func (e Envelope) EventType() EventType { return e.Type }
func (e Envelope) OccurredAt() time.Time { return e.At }
func (e Envelope) AggregateID() string { return e.Subject }

// ─────────────────────────────────────────────────────────────────────────────
// Student
// ─────────────────────────────────────────────────────────────────────────────

// StudentAddedEvent follows a successful intake. It carries the whole record
// so the read side can insert it without a store round trip.
type StudentAddedEvent struct {
	Envelope
	Name        string `json:"name"`
	Department  string `json:"department"`
	Year        string `json:"year"`
	ProfileURL  string `json:"profile_url"`
	SolvedCount int    `json:"solved_count"`
}

func NewStudentAddedEvent(regNo, name, department, year, profileURL string, solvedCount int) StudentAddedEvent {
	return StudentAddedEvent{
		Envelope:    newEnvelope(EventStudentAdded, regNo),
		Name:        name,
		Department:  department,
		Year:        year,
		ProfileURL:  profileURL,
		SolvedCount: solvedCount,
	}
}

func (e StudentAddedEvent) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("reg_no", e.Subject),
		slog.String("department", e.Department),
		slog.String("year", e.Year),
		slog.Int("solved_count", e.SolvedCount),
	)
}

// SolvedCountChangedEvent follows a reconciliation write.
type SolvedCountChangedEvent struct {
	Envelope
	OldCount int `json:"old_count"`
	NewCount int `json:"new_count"`
}

func NewSolvedCountChangedEvent(regNo string, oldCount, newCount int) SolvedCountChangedEvent {
	return SolvedCountChangedEvent{
		Envelope: newEnvelope(EventSolvedCountChanged, regNo),
		OldCount: oldCount,
		NewCount: newCount,
	}
}

func (e SolvedCountChangedEvent) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("reg_no", e.Subject),
		slog.Int("old_count", e.OldCount),
		slog.Int("new_count", e.NewCount),
	)
}

// ─────────────────────────────────────────────────────────────────────────────
// System
// ─────────────────────────────────────────────────────────────────────────────

// ReconcileCompletedEvent closes one reconciliation cycle.
type ReconcileCompletedEvent struct {
	Envelope
	Total    int           `json:"total"`
	Updated  int           `json:"updated"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

func NewReconcileCompletedEvent(total, updated, failed int, duration time.Duration) ReconcileCompletedEvent {
	return ReconcileCompletedEvent{
		Envelope: newEnvelope(EventReconcileCompleted, "system"),
		Total:    total,
		Updated:  updated,
		Failed:   failed,
		Duration: duration,
	}
}

func (e ReconcileCompletedEvent) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("total", e.Total),
		slog.Int("updated", e.Updated),
		slog.Int("failed", e.Failed),
		slog.String("duration", e.Duration.String()),
	)
}

// ─────────────────────────────────────────────────────────────────────────────
// Bus
// ─────────────────────────────────────────────────────────────────────────────

type EventHandler func(event Event) error

type EventPublisher interface {
	Publish(event Event) error
}

type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
}

type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher discards every event. The standalone worker uses it.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) error { return nil }
