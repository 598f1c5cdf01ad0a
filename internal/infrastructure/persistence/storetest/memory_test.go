package storetest

import (
	"testing"

	"github.com/rmkec/leetcode-leaderboard/internal/domain/student"
)

func TestMemoryStore(t *testing.T) {
	Run(t, func(t *testing.T) student.Store {
		return NewMemoryStore()
	})
}
