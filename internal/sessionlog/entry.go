// Package sessionlog implements the append-only, branching session log:
// a tree of entries keyed by short hex ids, durable as a
// line-delimited JSON file, with compaction-aware context reconstruction.
package sessionlog

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/agentcore-dev/runtime/pkg/types"
)

// EntryType discriminates the typed payload carried by an Entry.
type EntryType string

const (
	EntryMessage             EntryType = "message"
	EntryThinkingLevelChange EntryType = "thinkingLevelChange"
	EntryModelChange         EntryType = "modelChange"
	EntryCompaction          EntryType = "compaction"
	EntryBranchSummary       EntryType = "branchSummary"
	EntryLabel               EntryType = "label"
	EntrySessionInfo         EntryType = "sessionInfo"
	EntryCustom              EntryType = "custom"
)

// Entry is a single node in the branching log tree.
type Entry struct {
	ID        string    `json:"id"`
	ParentID  string    `json:"parentId,omitempty"`
	Timestamp int64     `json:"timestamp"`
	Type      EntryType `json:"type"`

	// type == message
	Message *types.Message `json:"message,omitempty"`

	// type == thinkingLevelChange
	ThinkingLevel types.ThinkingLevel `json:"thinkingLevel,omitempty"`

	// type == modelChange
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	// type == compaction
	Summary           string         `json:"summary,omitempty"`
	FirstKeptEntryID  string         `json:"firstKeptEntryId,omitempty"`
	TokensBefore      int            `json:"tokensBefore,omitempty"`
	Details           map[string]any `json:"details,omitempty"`
	FromHook          bool           `json:"fromHook,omitempty"`

	// type == branchSummary
	FromID string `json:"fromId,omitempty"`

	// type == label
	TargetID string  `json:"targetId,omitempty"`
	Label    *string `json:"label,omitempty"`

	// type == sessionInfo
	Name string `json:"name,omitempty"`

	// type == custom
	CustomType string         `json:"customType,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// newEntryID returns a fresh 8-hex-char id. Collision checking against the
// log's index happens in Log.Append.
func newEntryID() (string, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("sessionlog: generate id: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}

// clone returns a shallow copy of e. Nothing in the package calls it;
// Log.SetLabel records labels as fresh appended entries.
func (e Entry) clone() Entry {
	return e
}

// UnmarshalJSON decodes an entry; entries with an unrecognized Type are
// read back as EntryCustom, so unknown entry types round-trip as custom.
func (e *Entry) UnmarshalJSON(data []byte) error {
	type alias Entry
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = Entry(a)
	switch e.Type {
	case EntryMessage, EntryThinkingLevelChange, EntryModelChange, EntryCompaction,
		EntryBranchSummary, EntryLabel, EntrySessionInfo, EntryCustom:
	default:
		e.CustomType = string(e.Type)
		e.Type = EntryCustom
	}
	return nil
}
