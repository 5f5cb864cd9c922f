package types

import "time"

// Budget is stored as side-data on a run record. A zero
// ceiling field (MaxTokens etc. nil) means unlimited.
type Budget struct {
	MaxTokens      *int64 `json:"maxTokens,omitempty"`
	MaxCost        *float64 `json:"maxCost,omitempty"`
	MaxChildren    *int   `json:"maxChildren,omitempty"`
	UsedTokens     int64  `json:"usedTokens"`
	UsedCost       float64 `json:"usedCost"`
	ActiveChildren int    `json:"activeChildren"`
	CreatedAt      time.Time `json:"createdAt"`
}

// RunStatus is the lifecycle state of a RunRecord.
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunError     RunStatus = "error"
	RunLost      RunStatus = "lost"
	RunKilled    RunStatus = "killed"
	RunCancelled RunStatus = "cancelled"
)

// Terminal reports whether the status is a sink state.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunError, RunLost, RunKilled, RunCancelled:
		return true
	default:
		return false
	}
}

// RunRecord is a single entry in the process-wide run graph.
type RunRecord struct {
	ID          string         `json:"id"`
	Status      RunStatus      `json:"status"`
	ParentID    string         `json:"parentId,omitempty"`
	SessionKey  string         `json:"sessionKey,omitempty"`
	Children    []string       `json:"children,omitempty"`
	InsertedAt  time.Time      `json:"insertedAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	StartedAt   *time.Time     `json:"startedAt,omitempty"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	Budget      *Budget        `json:"budget,omitempty"`
}
