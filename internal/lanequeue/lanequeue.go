// Package lanequeue turns synchronous-looking calls into supervised async
// work: FIFO queues keyed by lane, each with its own concurrency cap, so
// unrelated lanes make progress independently while work within a lane
// stays ordered.
package lanequeue

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Lane identifies an independent FIFO queue. A plain string names a
// global lane; a composite key (built with SessionLane) scopes ordering
// to one session.
type Lane string

// SessionLane builds a lane key scoped to one session, letting per-session
// ordering coexist with other sessions' lanes under the same base name.
func SessionLane(base, sessionID string) Lane {
	return Lane(fmt.Sprintf("%s:%s", base, sessionID))
}

// Result is the outcome routed back to the caller of Run.
type Result struct {
	Value any
	Err   error
}

// Job is a unit of lane work. Fn runs on a supervised goroutine; Meta is
// opaque caller data surfaced to observers (logging, metrics) but not
// interpreted by the queue itself.
type Job struct {
	Lane Lane
	Fn   func(ctx context.Context) (any, error)
	Meta map[string]any
}

type job struct {
	Job
	id   uint64
	done chan Result
}

type laneState struct {
	running int
	cap     int
	pending []*job
}

// Queue schedules Jobs across lanes with per-lane concurrency caps. The
// zero value is not usable; construct with New.
type Queue struct {
	mu        sync.Mutex
	lanes     map[Lane]*laneState
	defaultCap int
	caps      map[Lane]int
	limiters  map[Lane]*rate.Limiter
	nextID    uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Queue. caps maps lane name to its concurrency cap; any
// lane absent from caps falls back to 1 (spec default for unknown lanes).
func New(caps map[string]int) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(map[Lane]int, len(caps))
	for name, n := range caps {
		c[Lane(name)] = n
	}
	return &Queue{
		lanes:      make(map[Lane]*laneState),
		defaultCap: 1,
		caps:       c,
		limiters:   make(map[Lane]*rate.Limiter),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SetLaneRate paces job starts on lane to at most rps per second, with
// burst allowed to run immediately. It layers on top of the concurrency
// cap rather than replacing it: a lane can be capped at 4 concurrent jobs
// and still throttled to 2 starts/sec. A non-positive rps removes pacing.
func (q *Queue) SetLaneRate(lane Lane, rps float64, burst int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if rps <= 0 {
		delete(q.limiters, lane)
		return
	}
	if burst < 1 {
		burst = 1
	}
	q.limiters[lane] = rate.NewLimiter(rate.Limit(rps), burst)
}

// Close cancels all in-flight jobs' contexts and waits for their
// goroutines to return.
func (q *Queue) Close() {
	q.cancel()
	q.wg.Wait()
}

func (q *Queue) capFor(lane Lane) int {
	if n, ok := q.caps[lane]; ok && n > 0 {
		return n
	}
	return q.defaultCap
}

// Run enqueues fn on lane and blocks until it completes, the queue is
// closed, or ctx is cancelled. This is the `run(lane, fn, meta)` contract:
// synchronous from the caller's view, but the job itself executes on a
// supervised goroutine governed by the lane's concurrency cap.
func (q *Queue) Run(ctx context.Context, lane Lane, fn func(ctx context.Context) (any, error), meta map[string]any) (any, error) {
	j := &job{
		Job:  Job{Lane: lane, Fn: fn, Meta: meta},
		done: make(chan Result, 1),
	}

	q.mu.Lock()
	j.id = q.nextID
	q.nextID++
	state, ok := q.lanes[lane]
	if !ok {
		state = &laneState{cap: q.capFor(lane)}
		q.lanes[lane] = state
	}
	state.pending = append(state.pending, j)
	q.drainLocked(lane)
	q.mu.Unlock()

	select {
	case r := <-j.done:
		return r.Value, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.ctx.Done():
		return nil, fmt.Errorf("lanequeue: closed")
	}
}

// drainLocked must be called with q.mu held. While the lane is below its
// cap and has pending work, it pops the head job and starts it on a
// supervised goroutine; the goroutine re-triggers drain on completion so
// the next queued job (if any) starts immediately.
func (q *Queue) drainLocked(lane Lane) {
	state := q.lanes[lane]
	for state.running < state.cap && len(state.pending) > 0 {
		j := state.pending[0]
		state.pending = state.pending[1:]
		state.running++
		q.wg.Add(1)
		go q.execute(lane, j)
	}
}

// execute runs one job to completion, recovering a panicking Fn into an
// {error, reason} result so a crashing job never cascades to the queue or
// to other lanes.
func (q *Queue) execute(lane Lane, j *job) {
	defer q.wg.Done()

	q.mu.Lock()
	limiter := q.limiters[lane]
	q.mu.Unlock()
	if limiter != nil {
		if err := limiter.Wait(q.ctx); err != nil {
			j.done <- Result{Err: fmt.Errorf("lanequeue: rate wait: %w", err)}
			q.mu.Lock()
			state := q.lanes[lane]
			state.running--
			q.drainLocked(lane)
			q.mu.Unlock()
			return
		}
	}

	result := func() (res Result) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("lane", string(lane)).
					Uint64("job_id", j.id).Msg("lanequeue: job panicked")
				res = Result{Err: fmt.Errorf("lanequeue: job panicked: %v", r)}
			}
		}()
		value, err := j.Fn(q.ctx)
		return Result{Value: value, Err: err}
	}()

	j.done <- result

	q.mu.Lock()
	state := q.lanes[lane]
	state.running--
	q.drainLocked(lane)
	q.mu.Unlock()
}

// Stats reports a lane's current running count and queue depth, for
// diagnostics.
func (q *Queue) Stats(lane Lane) (running, queued int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	state, ok := q.lanes[lane]
	if !ok {
		return 0, 0
	}
	return state.running, len(state.pending)
}
