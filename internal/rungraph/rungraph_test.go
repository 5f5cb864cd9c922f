package rungraph

import (
	"context"
	"testing"
	"time"

	"github.com/agentcore-dev/runtime/internal/event"
	"github.com/agentcore-dev/runtime/internal/storage"
	"github.com/agentcore-dev/runtime/pkg/types"
)

func newTestGraph(t *testing.T) (*Graph, context.Context) {
	t.Helper()
	dir := t.TempDir()
	bus := event.NewBus()
	g := New(storage.New(dir), bus)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	g.Start(ctx)
	if err := g.EnsureLoaded(ctx); err != nil {
		t.Fatalf("EnsureLoaded: %v", err)
	}
	return g, ctx
}

func TestNewRun_StartsQueued(t *testing.T) {
	g, ctx := newTestGraph(t)

	id, err := g.NewRun(ctx, "", "session-1", nil)
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	rec, ok := g.Get(id)
	if !ok {
		t.Fatalf("expected record for %s", id)
	}
	if rec.Status != types.RunQueued {
		t.Fatalf("expected queued, got %s", rec.Status)
	}
}

func TestAtomicTransition_RejectsInvalidMove(t *testing.T) {
	g, ctx := newTestGraph(t)

	id, err := g.NewRun(ctx, "", "session-1", nil)
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	if err := g.Finish(ctx, id, nil); err == nil {
		t.Fatal("expected error transitioning queued -> completed directly")
	}

	if err := g.MarkRunning(ctx, id); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if err := g.Finish(ctx, id, map[string]any{"ok": true}); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	rec, _ := g.Get(id)
	if rec.Status != types.RunCompleted {
		t.Fatalf("expected completed, got %s", rec.Status)
	}

	if err := g.MarkRunning(ctx, id); err == nil {
		t.Fatal("expected error transitioning out of a terminal state")
	}
}

func TestAddChild_LinksParent(t *testing.T) {
	g, ctx := newTestGraph(t)

	parent, err := g.NewRun(ctx, "", "session-1", nil)
	if err != nil {
		t.Fatalf("NewRun parent: %v", err)
	}
	child, err := g.NewRun(ctx, parent, "session-1", nil)
	if err != nil {
		t.Fatalf("NewRun child: %v", err)
	}

	rec, _ := g.Get(parent)
	if len(rec.Children) != 1 || rec.Children[0] != child {
		t.Fatalf("expected parent to list child %s, got %v", child, rec.Children)
	}
}

func TestAwait_ReturnsOnceAllTerminal(t *testing.T) {
	g, ctx := newTestGraph(t)

	idA, _ := g.NewRun(ctx, "", "s", nil)
	idB, _ := g.NewRun(ctx, "", "s", nil)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = g.MarkRunning(ctx, idA)
		_ = g.Finish(ctx, idA, nil)
		time.Sleep(20 * time.Millisecond)
		_ = g.MarkRunning(ctx, idB)
		_ = g.Fail(ctx, idB, "boom")
	}()

	done, err := g.Await(ctx, []string{idA, idB}, WaitAll, 2*time.Second)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if !done[idA] || !done[idB] {
		t.Fatalf("expected both runs terminal, got %v", done)
	}
}

func TestAwait_AnyReturnsOnFirstTerminal(t *testing.T) {
	g, ctx := newTestGraph(t)

	idA, _ := g.NewRun(ctx, "", "s", nil)
	idB, _ := g.NewRun(ctx, "", "s", nil)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = g.MarkRunning(ctx, idA)
		_ = g.Finish(ctx, idA, nil)
	}()

	done, err := g.Await(ctx, []string{idA, idB}, WaitAny, 2*time.Second)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if !done[idA] {
		t.Fatalf("expected idA terminal, got %v", done)
	}
}

func TestAwait_TimesOutWhenNothingFinishes(t *testing.T) {
	g, ctx := newTestGraph(t)
	id, _ := g.NewRun(ctx, "", "s", nil)

	_, err := g.Await(ctx, []string{id}, WaitAll, 30*time.Millisecond)
	if err != ErrAwaitTimeout {
		t.Fatalf("expected ErrAwaitTimeout, got %v", err)
	}
}

func TestLoadFromDisk_RewritesRunningToLost(t *testing.T) {
	dir := t.TempDir()
	bus1 := event.NewBus()
	g1 := New(storage.New(dir), bus1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g1.Start(ctx)
	if err := g1.EnsureLoaded(ctx); err != nil {
		t.Fatalf("EnsureLoaded: %v", err)
	}

	id, err := g1.NewRun(ctx, "", "s", nil)
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	if err := g1.MarkRunning(ctx, id); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}

	bus2 := event.NewBus()
	g2 := New(storage.New(dir), bus2)
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	g2.Start(ctx2)
	if err := g2.EnsureLoaded(ctx2); err != nil {
		t.Fatalf("EnsureLoaded: %v", err)
	}

	rec, ok := g2.Get(id)
	if !ok {
		t.Fatalf("expected run %s to be loaded", id)
	}
	if rec.Status != types.RunLost {
		t.Fatalf("expected lost, got %s", rec.Status)
	}
	if rec.Error != "lost_on_restart" {
		t.Fatalf("expected lost_on_restart error, got %q", rec.Error)
	}
}

func TestCleanup_RemovesExpiredTerminalRuns(t *testing.T) {
	g, ctx := newTestGraph(t)

	id, _ := g.NewRun(ctx, "", "s", nil)
	_ = g.MarkRunning(ctx, id)
	_ = g.Finish(ctx, id, nil)

	g.mu.Lock()
	g.index[id].UpdatedAt = time.Now().Add(-48 * time.Hour)
	g.mu.Unlock()

	if err := g.Cleanup(ctx, 24*time.Hour); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	if _, ok := g.Get(id); ok {
		t.Fatalf("expected %s to be removed by cleanup", id)
	}
}
