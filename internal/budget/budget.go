// Package budget tracks and enforces token/cost/child-count ceilings
// attached to run records, folding child usage into parents as subagents
// complete.
package budget

import (
	"fmt"
	"sync"
	"time"

	"github.com/agentcore-dev/runtime/pkg/types"
)

// Options are the caller-requested ceilings for a new budget. A nil field
// means "inherit from parent, or unlimited if there is no parent".
type Options struct {
	MaxTokens   *int64
	MaxCost     *float64
	MaxChildren *int
}

// ResponseUsage is the subset of an LLM response the tracker extracts
// usage from. Providers report usage in slightly different shapes, so the
// caller-facing API accepts totals and a split and lets RecordResponse
// pick whichever is present.
type ResponseUsage struct {
	TotalTokens *int64
	InputTokens *int64
	OutputTokens *int64
	Cost        *float64
}

// Tracker owns budgets keyed by run id. It is safe for concurrent use;
// RecordUsage/ChildStarted/ChildCompleted all take the same lock since
// they mutate shared accounting data in place.
type Tracker struct {
	mu      sync.Mutex
	budgets map[string]*types.Budget
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{budgets: make(map[string]*types.Budget)}
}

// Create installs a budget for runID. Any Options field left nil inherits
// the same field from the parent's budget (if parentID is non-empty and
// known); if there is no parent or the parent has no ceiling on that axis,
// the field stays nil (unlimited).
func (t *Tracker) Create(runID string, opts Options, parentID string) *types.Budget {
	t.mu.Lock()
	defer t.mu.Unlock()

	b := &types.Budget{CreatedAt: time.Now()}
	parent := t.budgets[parentID]

	b.MaxTokens = firstNonNil(opts.MaxTokens, parentField(parent, func(p *types.Budget) *int64 { return p.MaxTokens }))
	b.MaxCost = firstNonNilFloat(opts.MaxCost, parentField(parent, func(p *types.Budget) *float64 { return p.MaxCost }))
	b.MaxChildren = firstNonNilInt(opts.MaxChildren, parentField(parent, func(p *types.Budget) *int { return p.MaxChildren }))

	t.budgets[runID] = b
	return b
}

// CreateSubagent installs a child budget that tightens the parent's
// ceilings: each axis becomes min(parent_value, opts_value), treating an
// absent (unlimited) value on either side as "no constraint from that
// side" rather than zero.
func (t *Tracker) CreateSubagent(parentID string, opts Options) (string, *types.Budget, error) {
	t.mu.Lock()
	parent, ok := t.budgets[parentID]
	t.mu.Unlock()
	if !ok {
		return "", nil, fmt.Errorf("budget: unknown parent run %s", parentID)
	}

	tightened := Options{
		MaxTokens:   tighten(parent.MaxTokens, opts.MaxTokens),
		MaxCost:     tightenFloat(parent.MaxCost, opts.MaxCost),
		MaxChildren: tightenInt(parent.MaxChildren, opts.MaxChildren),
	}
	childID := fmt.Sprintf("%s/child-%d", parentID, time.Now().UnixNano())
	b := t.Create(childID, tightened, "")
	return childID, b, nil
}

// Get returns the budget for runID, if tracked.
func (t *Tracker) Get(runID string) (types.Budget, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.budgets[runID]
	if !ok {
		return types.Budget{}, false
	}
	return *b, true
}

// RecordUsage atomically adds tokens and cost to runID's budget.
func (t *Tracker) RecordUsage(runID string, tokens int64, cost float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.budgets[runID]
	if !ok {
		return fmt.Errorf("budget: unknown run %s", runID)
	}
	b.UsedTokens += tokens
	b.UsedCost += cost
	return nil
}

// RecordResponse extracts usage from an LLM response shape and folds it
// in. TotalTokens wins if present; otherwise input+output are summed.
func (t *Tracker) RecordResponse(runID string, usage ResponseUsage) error {
	var tokens int64
	switch {
	case usage.TotalTokens != nil:
		tokens = *usage.TotalTokens
	case usage.InputTokens != nil || usage.OutputTokens != nil:
		if usage.InputTokens != nil {
			tokens += *usage.InputTokens
		}
		if usage.OutputTokens != nil {
			tokens += *usage.OutputTokens
		}
	}
	var cost float64
	if usage.Cost != nil {
		cost = *usage.Cost
	}
	return t.RecordUsage(runID, tokens, cost)
}

// ChildStarted increments the parent's active-child count and seeds the
// child's budget inheriting from the parent, per Create's inheritance
// rule, if the child has not already been created with CreateSubagent.
func (t *Tracker) ChildStarted(parentID, childID string) error {
	t.mu.Lock()
	parent, ok := t.budgets[parentID]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("budget: unknown parent run %s", parentID)
	}
	parent.ActiveChildren++
	_, childExists := t.budgets[childID]
	t.mu.Unlock()

	if !childExists {
		t.Create(childID, Options{}, parentID)
	}
	return nil
}

// ChildCompleted decrements the parent's active-child count (clamped at
// zero) and folds the child's used tokens/cost into the parent.
func (t *Tracker) ChildCompleted(parentID, childID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	parent, ok := t.budgets[parentID]
	if !ok {
		return fmt.Errorf("budget: unknown parent run %s", parentID)
	}
	if parent.ActiveChildren > 0 {
		parent.ActiveChildren--
	}
	if child, ok := t.budgets[childID]; ok {
		parent.UsedTokens += child.UsedTokens
		parent.UsedCost += child.UsedCost
	}
	return nil
}

func firstNonNil(a, b *int64) *int64 {
	if a != nil {
		return a
	}
	return b
}

func firstNonNilFloat(a, b *float64) *float64 {
	if a != nil {
		return a
	}
	return b
}

func firstNonNilInt(a, b *int) *int {
	if a != nil {
		return a
	}
	return b
}

func parentField[T any](parent *types.Budget, get func(*types.Budget) *T) *T {
	if parent == nil {
		return nil
	}
	return get(parent)
}

// tighten returns min(parent, opt), treating a nil side as unconstrained.
func tighten(parent, opt *int64) *int64 {
	switch {
	case parent == nil:
		return opt
	case opt == nil:
		return parent
	case *opt < *parent:
		return opt
	default:
		return parent
	}
}

func tightenFloat(parent, opt *float64) *float64 {
	switch {
	case parent == nil:
		return opt
	case opt == nil:
		return parent
	case *opt < *parent:
		return opt
	default:
		return parent
	}
}

func tightenInt(parent, opt *int) *int {
	switch {
	case parent == nil:
		return opt
	case opt == nil:
		return parent
	case *opt < *parent:
		return opt
	default:
		return parent
	}
}
