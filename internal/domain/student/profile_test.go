package student

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractProfileID(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"plain profile url", "https://leetcode.com/alice", "alice"},
		{"trailing slash", "https://leetcode.com/alice/", "alice"},
		{"many trailing slashes", "https://leetcode.com/alice///", "alice"},
		{"new u/ style url", "https://leetcode.com/u/alice/", "alice"},
		{"bare username", "alice", "alice"},
		{"surrounding whitespace", "  https://leetcode.com/u/bob/  ", "bob"},
		{"query string kept in segment", "https://leetcode.com/u/bob?tab=1", "bob?tab=1"},
		{"empty input", "", ""},
		{"only slashes", "///", ""},
		{"host only", "https://leetcode.com/", "leetcode.com"},
		{"case preserved", "https://leetcode.com/u/Raj_K", "Raj_K"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractProfileID(tt.url))
		})
	}
}

func TestRecord_ProfileID(t *testing.T) {
	r := Record{ProfileURL: "https://leetcode.com/u/asha/"}
	assert.Equal(t, "asha", r.ProfileID())
}
