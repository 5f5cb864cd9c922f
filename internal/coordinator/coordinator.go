// Package coordinator fans child sessions out from a parent run, monitors
// them concurrently under a shared deadline, and collects their results
// back in the caller's original submission order.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/agentcore-dev/runtime/internal/budget"
	"github.com/agentcore-dev/runtime/internal/lanequeue"
	"github.com/agentcore-dev/runtime/internal/rungraph"
)

// Status is the terminal disposition of one subagent run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusTimeout   Status = "timeout"
	StatusAborted   Status = "aborted"
)

// Spec describes one child session to fan out. ID is assigned by RunSubagents
// when empty.
type Spec struct {
	ID           string
	SubagentName string
	Prompt       string
}

// Result is the outcome of one Spec, always returned even on failure.
type Result struct {
	ID        string
	Status    Status
	Result    string
	Error     string
	SessionID string
}

// EventKind discriminates a RunnerEvent.
type EventKind string

const (
	EventAgentEnd EventKind = "agent_end"
	EventError    EventKind = "error"
)

// RunnerEvent reports a child session's terminal lifecycle event.
type RunnerEvent struct {
	Kind EventKind
	Text string // final assistant text, for EventAgentEnd
	Err  string // failure reason, for EventError
}

// SessionRunner is the external collaborator a Coordinator dispatches
// child sessions to. It is narrow by design: the coordinator only needs to
// start a child session for a spec, watch it for a terminal event, and
// abort it early if the shared deadline passes.
type SessionRunner interface {
	// Start begins a child session for spec and returns its session id.
	Start(ctx context.Context, spec Spec, parentRunID string) (sessionID string, err error)
	// Events returns a channel that receives exactly one RunnerEvent when
	// sessionID reaches a terminal state, then closes.
	Events(sessionID string) <-chan RunnerEvent
	// Abort cancels a still-running child session.
	Abort(sessionID string)
}

// Coordinator runs fan-out/collect over a SessionRunner, using a lane queue
// to bound concurrent child-session starts and a budget tracker to enforce
// per-parent child limits.
type Coordinator struct {
	runner SessionRunner
	lanes  *lanequeue.Queue
	budget *budget.Tracker
	graph  *rungraph.Graph
}

// New constructs a Coordinator. graph may be nil when run lineage tracking
// is not needed (e.g. in tests).
func New(runner SessionRunner, lanes *lanequeue.Queue, bud *budget.Tracker, graph *rungraph.Graph) *Coordinator {
	return &Coordinator{runner: runner, lanes: lanes, budget: bud, graph: graph}
}

type pending struct {
	spec       Spec
	sessionID  string
	childRunID string
	events     <-chan RunnerEvent
	result     Result
}

// RunSubagents spawns one child session per spec, waits for all of them to
// reach a terminal state or for timeout to elapse, then returns results in
// the same order as specs. Specs with an empty ID are assigned a fresh one.
func (c *Coordinator) RunSubagents(ctx context.Context, parentRunID string, specs []Spec, timeout time.Duration) []Result {
	order := make([]string, len(specs))
	byID := make(map[string]*pending, len(specs))

	for i, spec := range specs {
		if spec.ID == "" {
			spec.ID = ulid.Make().String()
		}
		order[i] = spec.ID
		byID[spec.ID] = &pending{spec: spec, result: Result{ID: spec.ID}}
	}

	deadline := time.Now().Add(timeout)
	runCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	lane := lanequeue.SessionLane("subagent", parentRunID)

	for _, id := range order {
		p := byID[id]
		if c.budget != nil {
			decision, err := c.budget.SubagentSpawn(parentRunID, budget.Policy{})
			if err != nil {
				p.result.Status = StatusError
				p.result.Error = err.Error()
				continue
			}
			if decision.Action == budget.ActionError {
				p.result.Status = StatusError
				p.result.Error = decision.Message
				continue
			}
		}

		sessionID, childRunID, err := c.start(runCtx, lane, p.spec, parentRunID)
		if err != nil {
			p.result.Status = StatusError
			p.result.Error = err.Error()
			continue
		}
		p.sessionID = sessionID
		p.childRunID = childRunID
		p.result.SessionID = sessionID
		p.events = c.runner.Events(sessionID)

		if c.budget != nil {
			if err := c.budget.ChildStarted(parentRunID, childRunID); err != nil {
				log.Warn().Err(err).Str("child_run_id", childRunID).Msg("coordinator: budget child-started bookkeeping failed")
			}
		}
	}

	c.collect(runCtx, parentRunID, byID)

	results := make([]Result, len(order))
	for i, id := range order {
		results[i] = byID[id].result
	}
	return results
}

func (c *Coordinator) start(ctx context.Context, lane lanequeue.Lane, spec Spec, parentRunID string) (sessionID, childRunID string, err error) {
	v, err := c.lanes.Run(ctx, lane, func(ctx context.Context) (any, error) {
		sid, err := c.runner.Start(ctx, spec, parentRunID)
		if err != nil {
			return nil, err
		}
		return sid, nil
	}, map[string]any{"spec_id": spec.ID})
	if err != nil {
		return "", "", err
	}
	sessionID = v.(string)

	if c.graph != nil {
		childRunID, err = c.graph.NewRun(ctx, parentRunID, sessionID, nil)
		if err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("coordinator: failed to register child run")
		}
	}
	if childRunID == "" {
		childRunID = sessionID
	}
	return sessionID, childRunID, nil
}

// collect waits on every pending child's event channel until each has a
// terminal event or the context deadline passes, at which point remaining
// children are marked timeout and aborted.
func (c *Coordinator) collect(ctx context.Context, parentRunID string, byID map[string]*pending) {
	type arrival struct {
		id  string
		evt RunnerEvent
		ok  bool
	}
	arrivals := make(chan arrival, len(byID))
	waiting := 0

	for id, p := range byID {
		if p.events == nil {
			continue // already failed to start
		}
		waiting++
		go func(id string, events <-chan RunnerEvent) {
			evt, ok := <-events
			arrivals <- arrival{id: id, evt: evt, ok: ok}
		}(id, p.events)
	}

	for waiting > 0 {
		select {
		case a := <-arrivals:
			waiting--
			p := byID[a.id]
			if c.budget != nil {
				if err := c.budget.ChildCompleted(parentRunID, p.childRunID); err != nil {
					log.Warn().Err(err).Str("child_run_id", p.childRunID).Msg("coordinator: budget child-completed bookkeeping failed")
				}
			}
			if !a.ok {
				p.result.Status = StatusError
				p.result.Error = "runner event channel closed without a terminal event"
				continue
			}
			switch a.evt.Kind {
			case EventAgentEnd:
				p.result.Status = StatusCompleted
				p.result.Result = a.evt.Text
			case EventError:
				p.result.Status = StatusError
				p.result.Error = a.evt.Err
			default:
				p.result.Status = StatusError
				p.result.Error = fmt.Sprintf("unrecognized event kind %q", a.evt.Kind)
			}
		case <-ctx.Done():
			c.abortRemaining(byID)
			return
		}
	}
}

func (c *Coordinator) abortRemaining(byID map[string]*pending) {
	for _, p := range byID {
		if p.sessionID == "" || p.result.Status != "" {
			continue
		}
		c.runner.Abort(p.sessionID)
		p.result.Status = StatusTimeout
		p.result.Error = "subagent deadline exceeded"
	}
}
