package coordinator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore-dev/runtime/internal/budget"
	"github.com/agentcore-dev/runtime/internal/lanequeue"
)

type fakeRunner struct {
	mu       sync.Mutex
	sessions map[string]chan RunnerEvent
	next     int
	onStart  func(spec Spec, sessionID string, events chan RunnerEvent)
	aborted  map[string]bool
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{sessions: make(map[string]chan RunnerEvent), aborted: make(map[string]bool)}
}

func (f *fakeRunner) Start(ctx context.Context, spec Spec, parentRunID string) (string, error) {
	f.mu.Lock()
	f.next++
	sessionID := fmt.Sprintf("session-%d", f.next)
	events := make(chan RunnerEvent, 1)
	f.sessions[sessionID] = events
	f.mu.Unlock()

	if f.onStart != nil {
		f.onStart(spec, sessionID, events)
	}
	return sessionID, nil
}

func (f *fakeRunner) Events(sessionID string) <-chan RunnerEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[sessionID]
}

func (f *fakeRunner) Abort(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborted[sessionID] = true
}

func newTestCoordinator(runner SessionRunner) (*Coordinator, *budget.Tracker) {
	lanes := lanequeue.New(nil)
	bud := budget.New()
	return New(runner, lanes, bud, nil), bud
}

func TestRunSubagents_CollectsResultsInOrder(t *testing.T) {
	runner := newFakeRunner()
	runner.onStart = func(spec Spec, sessionID string, events chan RunnerEvent) {
		go func() {
			events <- RunnerEvent{Kind: EventAgentEnd, Text: "done:" + spec.ID}
		}()
	}
	c, bud := newTestCoordinator(runner)
	bud.Create("parent", budget.Options{}, "")

	specs := []Spec{{ID: "a", Prompt: "one"}, {ID: "b", Prompt: "two"}, {ID: "c", Prompt: "three"}}
	results := c.RunSubagents(context.Background(), "parent", specs, time.Second)

	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "b", results[1].ID)
	assert.Equal(t, "c", results[2].ID)
	for _, r := range results {
		assert.Equal(t, StatusCompleted, r.Status)
		assert.Equal(t, "done:"+r.ID, r.Result)
	}
}

func TestRunSubagents_ErrorEventBecomesErrorResult(t *testing.T) {
	runner := newFakeRunner()
	runner.onStart = func(spec Spec, sessionID string, events chan RunnerEvent) {
		go func() {
			events <- RunnerEvent{Kind: EventError, Err: "boom"}
		}()
	}
	c, bud := newTestCoordinator(runner)
	bud.Create("parent", budget.Options{}, "")

	results := c.RunSubagents(context.Background(), "parent", []Spec{{ID: "a"}}, time.Second)

	require.Len(t, results, 1)
	assert.Equal(t, StatusError, results[0].Status)
	assert.Equal(t, "boom", results[0].Error)
}

func TestRunSubagents_TimeoutAbortsPendingChildren(t *testing.T) {
	runner := newFakeRunner()
	// Never send an event; child hangs until the deadline.
	c, bud := newTestCoordinator(runner)
	bud.Create("parent", budget.Options{}, "")

	start := time.Now()
	results := c.RunSubagents(context.Background(), "parent", []Spec{{ID: "a"}}, 50*time.Millisecond)
	elapsed := time.Since(start)

	require.Len(t, results, 1)
	assert.Equal(t, StatusTimeout, results[0].Status)
	assert.Less(t, elapsed, 2*time.Second)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.True(t, runner.aborted[results[0].SessionID])
}

func TestRunSubagents_RejectsBeyondChildCap(t *testing.T) {
	runner := newFakeRunner()
	runner.onStart = func(spec Spec, sessionID string, events chan RunnerEvent) {
		go func() {
			events <- RunnerEvent{Kind: EventAgentEnd, Text: "ok"}
		}()
	}
	c, bud := newTestCoordinator(runner)
	maxChildren := 1
	bud.Create("parent", budget.Options{MaxChildren: &maxChildren}, "")

	results := c.RunSubagents(context.Background(), "parent", []Spec{{ID: "a"}, {ID: "b"}}, time.Second)

	require.Len(t, results, 2)
	assert.Equal(t, StatusCompleted, results[0].Status)
	assert.Equal(t, StatusError, results[1].Status)
}
