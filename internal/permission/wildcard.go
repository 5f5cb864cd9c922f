package permission

import "github.com/bmatcuk/doublestar/v4"

// MatchToolPattern reports whether tool matches pattern. Patterns are
// doublestar globs over the tool name ("*" matches everything, "git_*"
// matches any tool name with that prefix); a pattern with no glob
// metacharacters must match the tool name exactly.
func MatchToolPattern(pattern, tool string) bool {
	if pattern == "*" {
		return true
	}
	ok, err := doublestar.Match(pattern, tool)
	if err != nil {
		return pattern == tool
	}
	return ok
}
