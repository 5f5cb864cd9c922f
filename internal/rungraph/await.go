package rungraph

import (
	"context"
	"errors"
	"time"

	"github.com/agentcore-dev/runtime/internal/event"
)

// ErrAwaitTimeout is returned by Await when the deadline elapses before the
// wait condition is satisfied.
var ErrAwaitTimeout = errors.New("rungraph: await timed out")

// WaitMode selects whether Await resolves on the first terminal run (Any)
// or requires every run in the set to reach a terminal status (All).
type WaitMode string

const (
	WaitAll WaitMode = "all"
	WaitAny WaitMode = "any"
)

// fallbackPollInterval bounds how long Await can go without rechecking the
// index even if no RunStateChanged notification arrives, guarding against a
// missed event between the initial snapshot and the subscription taking
// effect.
const fallbackPollInterval = 2 * time.Second

// Await blocks until ids satisfy mode (all terminal, or any terminal) or
// timeout elapses. It subscribes to RunStateChanged rather than busy-waiting
// and rechecks the in-memory index on each notification.
func (g *Graph) Await(ctx context.Context, ids []string, mode WaitMode, timeout time.Duration) (map[string]bool, error) {
	if len(ids) == 0 {
		return map[string]bool{}, nil
	}

	deadline := time.Now().Add(timeout)
	if timeout <= 0 {
		deadline = time.Time{}
	}

	check := func() (map[string]bool, bool) {
		done := make(map[string]bool, len(ids))
		satisfiedCount := 0
		for _, id := range ids {
			rec, ok := g.Get(id)
			terminal := ok && rec.Status.Terminal()
			done[id] = terminal
			if terminal {
				satisfiedCount++
			}
		}
		switch mode {
		case WaitAny:
			return done, satisfiedCount > 0
		default:
			return done, satisfiedCount == len(ids)
		}
	}

	if done, ok := check(); ok {
		return done, nil
	}

	wake := make(chan struct{}, 1)
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}
	unsub := g.bus.Subscribe(event.RunStateChanged, func(e event.Event) {
		data, ok := e.Data.(event.RunStateChangedData)
		if !ok || !idSet[data.RunID] {
			return
		}
		select {
		case wake <- struct{}{}:
		default:
		}
	})
	defer unsub()

	poll := time.NewTicker(fallbackPollInterval)
	defer poll.Stop()

	for {
		var timeoutCh <-chan time.Time
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				done, _ := check()
				return done, ErrAwaitTimeout
			}
			timer := time.NewTimer(remaining)
			defer timer.Stop()
			timeoutCh = timer.C
		}

		select {
		case <-ctx.Done():
			done, _ := check()
			return done, ctx.Err()
		case <-timeoutCh:
			done, _ := check()
			return done, ErrAwaitTimeout
		case <-wake:
		case <-poll.C:
		}

		if done, ok := check(); ok {
			return done, nil
		}
	}
}
