package sessionlog

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentcore-dev/runtime/pkg/types"
)

// headerVersion is the current on-disk format version; see migrate.go for
// the forward-only migration chain applied on Load.
const headerVersion = 3

// Header is the first line of a session log file.
type Header struct {
	Type          string `json:"type"` // always "session"
	Version       int    `json:"version"`
	ID            string `json:"id"`
	Timestamp     int64  `json:"timestamp"`
	Cwd           string `json:"cwd"`
	ParentSession string `json:"parentSession,omitempty"`
}

// Context is the reconstructed view of a branch returned by BuildContext:
// the message list to hand the LLM driver, plus the resolved thinking level
// and model as of the leaf.
type Context struct {
	Messages      []*types.Message
	ThinkingLevel types.ThinkingLevel
	Provider      string
	Model         string
}

// Log is an append-only tree of entries for a single session. It is never
// concurrently accessed from more than one orchestrator goroutine, but the
// mutex guards against the rare case of a concurrent read (e.g. a
// diagnostic dump) racing an append.
type Log struct {
	mu      sync.RWMutex
	header  Header
	entries []Entry
	index   map[string]int // id -> index into entries
	leafID  string
}

// New creates a fresh, empty log rooted at cwd.
func New(cwd string, id string, parentSession string) *Log {
	if id == "" {
		id = uuid.NewString()
	}
	return &Log{
		header: Header{
			Type:          "session",
			Version:       headerVersion,
			ID:            id,
			Timestamp:     time.Now().UnixMilli(),
			Cwd:           cwd,
			ParentSession: parentSession,
		},
		index: make(map[string]int),
	}
}

// Header returns the log's header.
func (l *Log) Header() Header {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.header
}

// LeafID returns the current cursor position.
func (l *Log) LeafID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.leafID
}

// Append assigns the entry an id (collision-checked) if it has none, sets
// its parent to the current leaf if unset, and advances the leaf to it.
func (l *Log) Append(e Entry) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.ID == "" {
		for {
			id, err := newEntryID()
			if err != nil {
				return Entry{}, err
			}
			if _, exists := l.index[id]; !exists {
				e.ID = id
				break
			}
		}
	} else if _, exists := l.index[e.ID]; exists {
		return Entry{}, fmt.Errorf("sessionlog: id %q already present", e.ID)
	}
	if e.ParentID == "" && l.leafID != "" {
		e.ParentID = l.leafID
	}
	if e.ParentID != "" {
		if _, ok := l.index[e.ParentID]; !ok {
			return Entry{}, fmt.Errorf("sessionlog: parent %q not found", e.ParentID)
		}
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}

	l.entries = append(l.entries, e)
	l.index[e.ID] = len(l.entries) - 1
	l.leafID = e.ID
	return e, nil
}

// SetLeaf moves the cursor to id without mutating any entry. It does not by
// itself rebuild anything; callers that need the derived message list call
// BuildContext afterward.
func (l *Log) SetLeaf(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.index[id]; !ok {
		return fmt.Errorf("sessionlog: %w: %s", ErrEntryNotFound, id)
	}
	l.leafID = id
	return nil
}

// Get returns the entry with the given id, or false if absent.
func (l *Log) Get(id string) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.index[id]
	if !ok {
		return Entry{}, false
	}
	return l.entries[idx], true
}

// Branch returns the ordered root-to-leaf path ending at leafID (or the
// log's current leaf if leafID is empty).
func (l *Log) Branch(leafID string) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.branchLocked(leafID)
}

func (l *Log) branchLocked(leafID string) ([]Entry, error) {
	if leafID == "" {
		leafID = l.leafID
	}
	if leafID == "" {
		return nil, nil
	}
	idx, ok := l.index[leafID]
	if !ok {
		return nil, fmt.Errorf("sessionlog: %w: %s", ErrEntryNotFound, leafID)
	}

	var path []Entry
	cur := l.entries[idx]
	for {
		path = append(path, cur)
		if cur.ParentID == "" {
			break
		}
		pIdx, ok := l.index[cur.ParentID]
		if !ok {
			return nil, fmt.Errorf("sessionlog: dangling parent %q", cur.ParentID)
		}
		cur = l.entries[pIdx]
	}
	// reverse to root-to-leaf order
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// Len returns the number of entries in the log.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// All returns every entry in append order (for diagnostics/export; callers
// must not retain it across further Appends).
func (l *Log) All() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}
