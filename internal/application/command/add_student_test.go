package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmkec/leetcode-leaderboard/internal/domain/shared"
	"github.com/rmkec/leetcode-leaderboard/internal/domain/student"
	"github.com/rmkec/leetcode-leaderboard/internal/infrastructure/persistence/storetest"
	"github.com/rmkec/leetcode-leaderboard/pkg/logger"
)

type capturePublisher struct {
	events []shared.Event
}

func (p *capturePublisher) Publish(e shared.Event) error {
	p.events = append(p.events, e)
	return nil
}

func validCommand() AddStudentCommand {
	return AddStudentCommand{
		RegNo:      " 21IT001 ",
		Name:       "Rajesh Kumar",
		Department: "IT",
		Year:       "Second Year",
		ProfileURL: "https://leetcode.com/u/rajesh_k/",
	}
}

func TestAddStudent_Success(t *testing.T) {
	store := storetest.NewMemoryStore()
	provider := storetest.NewStubProvider(map[string]int{"rajesh_k": 137})
	pub := &capturePublisher{}
	h := NewAddStudentHandler(store, provider, pub, logger.Discard())

	res, err := h.Handle(context.Background(), validCommand())
	require.NoError(t, err)

	assert.Equal(t, "21IT001", res.Student.RegNo)
	assert.Equal(t, 137, res.Student.SolvedCount)
	assert.Equal(t, student.DepartmentIT, res.Student.Department)
	assert.False(t, res.Student.CreatedAt.IsZero())

	stored, err := store.Get(context.Background(), "21IT001")
	require.NoError(t, err)
	assert.Equal(t, 137, stored.SolvedCount)

	require.Len(t, pub.events, 1)
	added, ok := pub.events[0].(shared.StudentAddedEvent)
	require.True(t, ok)
	assert.Equal(t, "21IT001", added.AggregateID())
	assert.Equal(t, 137, added.SolvedCount)
}

func TestAddStudent_ProviderFailureIsInvalidProfile(t *testing.T) {
	store := storetest.NewMemoryStore()
	provider := storetest.NewStubProvider(nil)
	pub := &capturePublisher{}
	h := NewAddStudentHandler(store, provider, pub, logger.Discard())

	cmd := validCommand()
	cmd.ProfileURL = "https://leetcode.com/ghost"

	_, err := h.Handle(context.Background(), cmd)
	require.Error(t, err)
	assert.True(t, shared.IsInvalidProfile(err))
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, pub.events)
	assert.Equal(t, 1, provider.Calls("ghost"))
}

func TestAddStudent_EmptyProfileIDSkipsProvider(t *testing.T) {
	store := storetest.NewMemoryStore()
	provider := storetest.NewStubProvider(nil)
	h := NewAddStudentHandler(store, provider, nil, logger.Discard())

	cmd := validCommand()
	cmd.ProfileURL = "///"

	_, err := h.Handle(context.Background(), cmd)
	assert.True(t, shared.IsInvalidProfile(err))
	assert.Equal(t, 0, provider.Calls(""))
	assert.Equal(t, 0, store.Len())
}

func TestAddStudent_Duplicate(t *testing.T) {
	existing := storetest.Record("21IT001", "Original", 5)
	store := storetest.NewMemoryStore(existing)
	provider := storetest.NewStubProvider(map[string]int{"rajesh_k": 137})
	pub := &capturePublisher{}
	h := NewAddStudentHandler(store, provider, pub, logger.Discard())

	_, err := h.Handle(context.Background(), validCommand())
	require.Error(t, err)
	assert.True(t, shared.IsDuplicateKey(err))

	got, err := store.Get(context.Background(), "21IT001")
	require.NoError(t, err)
	assert.Equal(t, "Original", got.Name)
	assert.Equal(t, 5, got.SolvedCount)
	assert.Empty(t, pub.events)
}

func TestAddStudent_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AddStudentCommand)
	}{
		{"missing reg no", func(c *AddStudentCommand) { c.RegNo = "  " }},
		{"missing name", func(c *AddStudentCommand) { c.Name = "" }},
		{"missing url", func(c *AddStudentCommand) { c.ProfileURL = "" }},
		{"unknown department", func(c *AddStudentCommand) { c.Department = "Physics" }},
		{"department is case sensitive", func(c *AddStudentCommand) { c.Department = "cse" }},
		{"unknown year", func(c *AddStudentCommand) { c.Year = "Fifth Year" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storetest.NewMemoryStore()
			provider := storetest.NewStubProvider(map[string]int{"rajesh_k": 1})
			h := NewAddStudentHandler(store, provider, nil, logger.Discard())

			cmd := validCommand()
			tt.mutate(&cmd)

			_, err := h.Handle(context.Background(), cmd)
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err))
			assert.Equal(t, 0, provider.Calls("rajesh_k"))
			assert.Equal(t, 0, store.Len())
		})
	}
}

func TestAddStudent_StoreFailure(t *testing.T) {
	store := storetest.NewMemoryStore()
	store.CreateErr = shared.WrapError("file", "Create", shared.ErrStoreUnavailable, "failed to persist", errors.New("read-only file system"))
	provider := storetest.NewStubProvider(map[string]int{"rajesh_k": 1})
	h := NewAddStudentHandler(store, provider, nil, logger.Discard())

	_, err := h.Handle(context.Background(), validCommand())
	require.Error(t, err)
	assert.True(t, shared.IsStoreUnavailable(err))
	assert.False(t, shared.IsInvalidProfile(err))
}
