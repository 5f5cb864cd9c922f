package sessionlog

import "errors"

// ErrEntryNotFound is returned by operations that navigate to an id absent
// from the log.
var ErrEntryNotFound = errors.New("entry not found")

// ErrEmptyBranch is returned by summarize_current_branch when the branch
// carries no message entries.
var ErrEmptyBranch = errors.New("empty branch")
