// Package rungraph implements the process-wide run graph: a
// single-writer, disk-backed table of run records with lifecycle
// transitions, wait-primitives and TTL cleanup.
package rungraph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/agentcore-dev/runtime/internal/event"
	"github.com/agentcore-dev/runtime/internal/storage"
	"github.com/agentcore-dev/runtime/pkg/types"
)

// ErrInvalidTransition is returned by AtomicTransition when the requested
// status is not reachable from the record's current status.
var ErrInvalidTransition = errors.New("rungraph: invalid transition")

// ErrNotFound is returned when a run id is absent from the index.
var ErrNotFound = errors.New("rungraph: run not found")

// allowedTransitions encodes the run-record lifecycle's state machine.
var allowedTransitions = map[types.RunStatus]map[types.RunStatus]bool{
	types.RunQueued: {
		types.RunRunning:   true,
		types.RunCancelled: true,
		types.RunKilled:    true,
	},
	types.RunRunning: {
		types.RunCompleted: true,
		types.RunError:     true,
		types.RunKilled:    true,
		types.RunCancelled: true,
		types.RunLost:      true,
	},
}

// command is a mutating operation funneled through the single writer
// goroutine; it is the graph's only critical section.
type command struct {
	run  func(g *Graph) error
	done chan error
}

// Graph is the process-wide run-record registry. Writes are serialized on
// a single goroutine; reads hit the in-memory index directly without
// waiting on the writer.
type Graph struct {
	mu    sync.RWMutex
	index map[string]*types.RunRecord

	store *storage.Storage
	bus   *event.Bus

	cmds chan command

	loadedOnce sync.Once
	loadedCh   chan struct{}

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
}

// New creates a Graph backed by store for persistence and bus for
// state-change notifications. Call Start to begin the writer and async
// disk load.
func New(store *storage.Storage, bus *event.Bus) *Graph {
	return &Graph{
		index:           make(map[string]*types.RunRecord),
		store:           store,
		bus:             bus,
		cmds:            make(chan command, 256),
		loadedCh:        make(chan struct{}),
		cleanupInterval: time.Minute,
		stopCleanup:     make(chan struct{}),
	}
}

// Start launches the writer goroutine, kicks off the asynchronous disk
// load, and starts the periodic cleanup timer.
func (g *Graph) Start(ctx context.Context) {
	go g.writerLoop(ctx)
	go g.loadFromDisk(ctx)
	go g.cleanupLoop(ctx)
}

// Stop halts the cleanup timer. The writer loop exits when ctx is done.
func (g *Graph) Stop() {
	select {
	case <-g.stopCleanup:
	default:
		close(g.stopCleanup)
	}
}

// writerLoop is the graph's single serialization point.
func (g *Graph) writerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-g.cmds:
			c.done <- c.run(g)
		}
	}
}

// exec submits fn to the writer and blocks for its result.
func (g *Graph) exec(ctx context.Context, fn func(g *Graph) error) error {
	done := make(chan error, 1)
	select {
	case g.cmds <- command{run: fn, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// loadFromDisk populates the index from the disk store. Any record found
// in RunRunning is rewritten to RunLost before callers observe it, since
// after a process restart no goroutine is actually driving it anymore.
func (g *Graph) loadFromDisk(ctx context.Context) {
	defer g.loadedOnce.Do(func() { close(g.loadedCh) })

	ids, err := g.store.List(ctx, []string{"runs"})
	if err != nil {
		log.Warn().Err(err).Msg("rungraph: list on load")
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	for _, id := range ids {
		var rec types.RunRecord
		if err := g.store.Get(ctx, []string{"runs", id}, &rec); err != nil {
			log.Warn().Err(err).Str("run_id", id).Msg("rungraph: load record")
			continue
		}
		if rec.Status == types.RunRunning {
			rec.Status = types.RunLost
			rec.Error = "lost_on_restart"
			rec.CompletedAt = &now
			rec.UpdatedAt = now
			_ = g.store.Put(ctx, []string{"runs", id}, rec)
		}
		r := rec
		g.index[id] = &r
	}
}

// EnsureLoaded blocks until the initial disk load has completed.
func (g *Graph) EnsureLoaded(ctx context.Context) error {
	select {
	case <-g.loadedCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NewRun inserts a fresh record with status queued and returns its id.
func (g *Graph) NewRun(ctx context.Context, parentID, sessionKey string, budget *types.Budget) (string, error) {
	id := ulid.Make().String()
	now := time.Now()
	rec := &types.RunRecord{
		ID:         id,
		Status:     types.RunQueued,
		ParentID:   parentID,
		SessionKey: sessionKey,
		InsertedAt: now,
		UpdatedAt:  now,
		Budget:     budget,
	}
	err := g.exec(ctx, func(g *Graph) error {
		return g.persistAndIndex(ctx, rec, "created")
	})
	if err != nil {
		return "", err
	}
	if parentID != "" {
		if err := g.AddChild(ctx, parentID, id); err != nil {
			return "", err
		}
	}
	return id, nil
}

// AddChild links parent and child bidirectionally.
func (g *Graph) AddChild(ctx context.Context, parentID, childID string) error {
	return g.exec(ctx, func(g *Graph) error {
		g.mu.Lock()
		parent, ok := g.index[parentID]
		g.mu.Unlock()
		if !ok {
			return fmt.Errorf("%w: parent %s", ErrNotFound, parentID)
		}
		updated := *parent
		updated.Children = append(append([]string{}, parent.Children...), childID)
		updated.UpdatedAt = time.Now()
		return g.persistAndIndex(ctx, &updated, "child_added")
	})
}

// Get performs a lock-free (read-lock only) index read.
func (g *Graph) Get(id string) (types.RunRecord, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rec, ok := g.index[id]
	if !ok {
		return types.RunRecord{}, false
	}
	return *rec, true
}

// AtomicTransition validates target against the current status's allowed
// transitions and, if valid, applies update to a copy and persists it.
// Invalid transitions return ErrInvalidTransition without mutation.
func (g *Graph) AtomicTransition(ctx context.Context, id string, target types.RunStatus, update func(*types.RunRecord)) error {
	return g.exec(ctx, func(g *Graph) error {
		g.mu.RLock()
		current, ok := g.index[id]
		g.mu.RUnlock()
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if current.Status.Terminal() {
			return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, current.Status)
		}
		if !allowedTransitions[current.Status][target] {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, target)
		}
		updated := *current
		updated.Status = target
		updated.UpdatedAt = time.Now()
		if update != nil {
			update(&updated)
		}
		return g.persistAndIndex(ctx, &updated, string(target))
	})
}

// MarkRunning transitions a queued run to running.
func (g *Graph) MarkRunning(ctx context.Context, id string) error {
	now := time.Now()
	return g.AtomicTransition(ctx, id, types.RunRunning, func(r *types.RunRecord) {
		r.StartedAt = &now
	})
}

// Finish transitions a running run to completed with the given result.
func (g *Graph) Finish(ctx context.Context, id string, result map[string]any) error {
	now := time.Now()
	return g.AtomicTransition(ctx, id, types.RunCompleted, func(r *types.RunRecord) {
		r.Result = result
		r.CompletedAt = &now
	})
}

// Fail transitions a running run to error with the given message.
func (g *Graph) Fail(ctx context.Context, id string, reason string) error {
	now := time.Now()
	return g.AtomicTransition(ctx, id, types.RunError, func(r *types.RunRecord) {
		r.Error = reason
		r.CompletedAt = &now
	})
}

// persistAndIndex writes rec to disk and the in-memory index, then
// publishes one RunStateChanged event carrying the run's id and, if
// present, its parent's.
func (g *Graph) persistAndIndex(ctx context.Context, rec *types.RunRecord, eventName string) error {
	if err := g.store.Put(ctx, []string{"runs", rec.ID}, *rec); err != nil {
		return fmt.Errorf("rungraph: persist %s: %w", rec.ID, err)
	}
	g.mu.Lock()
	g.index[rec.ID] = rec
	g.mu.Unlock()

	data := event.RunStateChangedData{
		RunID: rec.ID, ParentRunID: rec.ParentID, SessionKey: rec.SessionKey,
		Status: string(rec.Status), Event: eventName, TimestampMs: time.Now().UnixMilli(),
	}
	g.bus.Publish(event.Event{Type: event.RunStateChanged, Data: data})
	return nil
}
