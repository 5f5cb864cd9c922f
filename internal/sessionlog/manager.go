package sessionlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// Manager owns the on-disk directory of session log files and provides
// creation, lookup and forking across sessions. It is a thin layer over
// Log/Load/Save keyed by session id.
type Manager struct {
	mu  sync.Mutex
	dir string
}

// NewManager returns a Manager rooted at dir, creating it if necessary.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sessionlog: create manager dir: %w", err)
	}
	return &Manager{dir: dir}, nil
}

func (m *Manager) path(id string) string {
	return filepath.Join(m.dir, id+".jsonl")
}

// Create starts a brand-new session log and persists its header.
func (m *Manager) Create(cwd, parentSession string) (*Log, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := New(cwd, "", parentSession)
	if err := l.Save(m.path(l.Header().ID)); err != nil {
		return nil, err
	}
	return l, nil
}

// Open loads an existing session log by id.
func (m *Manager) Open(id string) (*Log, error) {
	return Load(m.path(id))
}

// Save persists l to its canonical path.
func (m *Manager) Save(l *Log) error {
	return l.Save(m.path(l.Header().ID))
}

// List returns the ids of every session log in the directory.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) == ".jsonl" {
			ids = append(ids, name[:len(name)-len(".jsonl")])
		}
	}
	return ids, nil
}

// ForkFrom creates a brand-new session whose log is seeded by replaying the
// branch ending at leafID (or the source's current leaf) from src, giving
// the fork an independent id and file while sharing no mutable state with
// the source. This is a full replay, not a copy-on-write reference, so the
// fork may diverge freely (navigate_tree, further appends) without
// affecting the original.
func (m *Manager) ForkFrom(src *Log, leafID string, cwd string) (*Log, error) {
	branch, err := src.Branch(leafID)
	if err != nil {
		return nil, err
	}

	fork := New(cwd, "", src.Header().ID)
	idRemap := make(map[string]string, len(branch))
	for _, e := range branch {
		orig := e
		e.ID = ""
		if e.ParentID != "" {
			if remapped, ok := idRemap[e.ParentID]; ok {
				e.ParentID = remapped
			}
		}
		appended, err := fork.Append(e)
		if err != nil {
			return nil, fmt.Errorf("sessionlog: fork replay of %s: %w", orig.ID, err)
		}
		idRemap[orig.ID] = appended.ID
	}

	if err := m.Save(fork); err != nil {
		return nil, err
	}
	log.Debug().Str("source", src.Header().ID).Str("fork", fork.Header().ID).
		Int("entries", len(branch)).Msg("sessionlog: forked session")
	return fork, nil
}
