package budget

import "fmt"

// Action is what an enforcement hook recommends when a budget is
// exceeded or about to be.
type Action string

const (
	ActionNone    Action = ""
	ActionCancel  Action = "cancel"
	ActionCompact Action = "compact"
	ActionNotify  Action = "notify"
	ActionError   Action = "error"
)

// Decision pairs a recommended Action with a human-readable message,
// returned by the enforcement hooks below.
type Decision struct {
	Action  Action
	Message string
}

// Policy selects which Action an exceeded budget maps to. The zero value
// (all empty) makes every hook choose ActionError.
type Policy struct {
	OnTokensExceeded Action
	OnCostExceeded   Action
	OnChildrenLimit  Action
}

func (p Policy) actionOr(a Action) Action {
	if a == ActionNone {
		return ActionError
	}
	return a
}

// PreAPI is the pre-API-call hook: reject if used+estimated would exceed
// the token ceiling.
func (t *Tracker) PreAPI(runID string, estimatedTokens int64, pol Policy) (Decision, error) {
	b, ok := t.Get(runID)
	if !ok {
		return Decision{}, fmt.Errorf("budget: unknown run %s", runID)
	}
	if b.MaxTokens != nil && b.UsedTokens+estimatedTokens > *b.MaxTokens {
		return Decision{
			Action:  pol.actionOr(pol.OnTokensExceeded),
			Message: fmt.Sprintf("projected usage %d exceeds token budget %d", b.UsedTokens+estimatedTokens, *b.MaxTokens),
		}, nil
	}
	if b.MaxCost != nil && b.UsedCost >= *b.MaxCost {
		return Decision{
			Action:  pol.actionOr(pol.OnCostExceeded),
			Message: fmt.Sprintf("cost usage %.4f has reached budget %.4f", b.UsedCost, *b.MaxCost),
		}, nil
	}
	return Decision{}, nil
}

// SubagentSpawn is the subagent-spawn hook: reject if the parent is
// already at its active-children cap or its own budget is exhausted.
func (t *Tracker) SubagentSpawn(parentID string, pol Policy) (Decision, error) {
	b, ok := t.Get(parentID)
	if !ok {
		return Decision{}, fmt.Errorf("budget: unknown run %s", parentID)
	}
	if b.MaxChildren != nil && b.ActiveChildren >= *b.MaxChildren {
		return Decision{
			Action:  pol.actionOr(pol.OnChildrenLimit),
			Message: fmt.Sprintf("active children %d has reached the limit %d", b.ActiveChildren, *b.MaxChildren),
		}, nil
	}
	if b.MaxTokens != nil && b.UsedTokens >= *b.MaxTokens {
		return Decision{
			Action:  pol.actionOr(pol.OnTokensExceeded),
			Message: fmt.Sprintf("parent run %s has exhausted its token budget", parentID),
		}, nil
	}
	return Decision{}, nil
}
