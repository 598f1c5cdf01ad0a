// Package command contains write operations (CQRS - Commands).
// Commands are responsible for changing the state of the system.
package command

import (
	"context"
	"log/slog"

	"github.com/rmkec/leetcode-leaderboard/internal/domain/shared"
	"github.com/rmkec/leetcode-leaderboard/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADD STUDENT COMMAND
// Registers a student on the leaderboard. The profile must resolve at the
// stats provider; its current solved count becomes the initial value.
// ══════════════════════════════════════════════════════════════════════════════

// AddStudentCommand contains the intake submission.
type AddStudentCommand struct {
	RegNo      string
	Name       string
	Department string
	Year       string
	ProfileURL string
}

// AddStudentResult contains the stored record.
type AddStudentResult struct {
	Student student.Record
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// AddStudentHandler handles the AddStudentCommand.
type AddStudentHandler struct {
	store          student.Store
	provider       student.StatsProvider
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewAddStudentHandler creates a new AddStudentHandler.
func NewAddStudentHandler(
	store student.Store,
	provider student.StatsProvider,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
) *AddStudentHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AddStudentHandler{
		store:          store,
		provider:       provider,
		eventPublisher: eventPublisher,
		logger:         logger.With("handler", "add_student"),
	}
}

// Handle validates the submission, resolves the profile and creates the
// record. Nothing is stored unless every step succeeds.
//
// Errors:
//   - shared.ErrValidation: malformed submission
//   - shared.ErrInvalidProfile: no username in the URL or provider failure
//   - shared.ErrDuplicateKey: the registration number is taken
//   - shared.ErrStoreUnavailable: the store failed
func (h *AddStudentHandler) Handle(ctx context.Context, cmd AddStudentCommand) (*AddStudentResult, error) {
	rec, err := student.NewRecord(student.NewRecordParams{
		RegNo:      cmd.RegNo,
		Name:       cmd.Name,
		Department: cmd.Department,
		Year:       cmd.Year,
		ProfileURL: cmd.ProfileURL,
	})
	if err != nil {
		return nil, err
	}

	profileID := rec.ProfileID()
	if profileID == "" {
		return nil, shared.ErrEmptyProfileID
	}

	count, err := h.provider.FetchSolvedCount(ctx, profileID)
	if err != nil {
		h.logger.Warn("profile lookup failed",
			"reg_no", rec.RegNo,
			"profile", profileID,
			"error", err,
		)
		return nil, shared.WrapError("student", "AddStudent", shared.ErrInvalidProfile,
			"profile "+profileID+" could not be resolved", err)
	}

	created, err := h.store.Create(ctx, rec.WithSolvedCount(count))
	if err != nil {
		return nil, err
	}

	h.logger.Info("student added",
		"reg_no", created.RegNo,
		"profile", profileID,
		"solved", created.SolvedCount,
	)

	event := shared.NewStudentAddedEvent(
		created.RegNo,
		created.Name,
		string(created.Department),
		string(created.Year),
		created.ProfileURL,
		created.SolvedCount,
	)
	if err := h.eventPublisher.Publish(event); err != nil {
		h.logger.Warn("failed to publish StudentAdded event",
			"reg_no", created.RegNo,
			"error", err,
		)
	}

	return &AddStudentResult{Student: created}, nil
}
