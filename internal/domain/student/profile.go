package student

import "strings"

// ExtractProfileID returns the external username encoded in a profile URL:
// the last "/"-separated segment once surrounding whitespace and all trailing
// slashes are removed.
//
//	"https://leetcode.com/u/alice/" -> "alice"
//	"https://leetcode.com/alice"    -> "alice"
//	"alice"                         -> "alice"
//	"" or "///"                     -> ""
//
// No host or path shape is checked. An unrelated URL still yields its last
// segment and is rejected later by the provider.
func ExtractProfileID(profileURL string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(profileURL), "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}
