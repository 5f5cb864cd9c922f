package permission

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/agentcore-dev/runtime/internal/event"
)

// Checker tracks standing approvals and brokers interactive approval
// requests for tool calls a Policy marked require_approval.
type Checker struct {
	mu       sync.RWMutex
	approved map[string]map[string]bool // sessionID -> tool -> approved
	patterns map[string]map[string]bool // sessionID -> pattern -> approved
	pending  map[string]chan Response   // requestID -> response channel
}

// NewChecker creates a new permission checker.
func NewChecker() *Checker {
	return &Checker{
		approved: make(map[string]map[string]bool),
		patterns: make(map[string]map[string]bool),
		pending:  make(map[string]chan Response),
	}
}

// Check resolves decision and, for DecisionRequireApproval, blocks on Ask.
func (c *Checker) Check(ctx context.Context, req Request, decision Decision) error {
	switch decision {
	case DecisionAllow:
		return nil
	case DecisionDeny:
		return &RejectedError{
			SessionID: req.SessionID,
			Tool:      req.Tool,
			CallID:    req.CallID,
			Metadata:  req.Metadata,
			Message:   "tool call denied by policy",
		}
	case DecisionRequireApproval:
		return c.Ask(ctx, req)
	}
	return nil
}

// Ask prompts the user for approval, short-circuiting if the tool or any
// of req.Pattern already has a standing "always" approval for the session.
func (c *Checker) Ask(ctx context.Context, req Request) error {
	c.mu.RLock()
	if c.approved[req.SessionID][req.Tool] {
		c.mu.RUnlock()
		return nil
	}
	if len(req.Pattern) > 0 {
		allApproved := true
		for _, p := range req.Pattern {
			if !c.patterns[req.SessionID][p] {
				allApproved = false
				break
			}
		}
		if allApproved {
			c.mu.RUnlock()
			return nil
		}
	}
	c.mu.RUnlock()

	if req.ID == "" {
		req.ID = ulid.Make().String()
	}

	respChan := make(chan Response, 1)
	c.mu.Lock()
	c.pending[req.ID] = respChan
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	event.Publish(event.Event{
		Type: event.PermissionRequired,
		Data: event.PermissionUpdatedData{
			ID:        req.ID,
			SessionID: req.SessionID,
			AgentName: req.AgentName,
			Tool:      req.Tool,
			Pattern:   req.Pattern,
			Title:     req.Title,
		},
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case resp := <-respChan:
		switch resp.Action {
		case "once":
			return nil
		case "always":
			c.approve(req.SessionID, req.Tool, req.Pattern)
			return nil
		case "reject":
			return &RejectedError{
				SessionID: req.SessionID,
				Tool:      req.Tool,
				CallID:    req.CallID,
				Metadata:  req.Metadata,
				Message:   "permission rejected by user",
			}
		}
	}
	return nil
}

// Respond handles a user's response to a pending approval request.
func (c *Checker) Respond(requestID string, action string) {
	c.mu.RLock()
	ch, ok := c.pending[requestID]
	c.mu.RUnlock()

	if ok {
		ch <- Response{RequestID: requestID, Action: action}
	}

	event.Publish(event.Event{
		Type: event.PermissionResolved,
		Data: event.PermissionRepliedData{
			PermissionID: requestID,
			Response:     action,
		},
	})
}

func (c *Checker) approve(sessionID, tool string, patterns []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.approved[sessionID] == nil {
		c.approved[sessionID] = make(map[string]bool)
	}
	c.approved[sessionID][tool] = true

	if len(patterns) > 0 {
		if c.patterns[sessionID] == nil {
			c.patterns[sessionID] = make(map[string]bool)
		}
		for _, p := range patterns {
			c.patterns[sessionID][p] = true
		}
	}
}

// IsApproved reports whether tool has a standing approval for sessionID.
func (c *Checker) IsApproved(sessionID, tool string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.approved[sessionID][tool]
}

// IsPatternApproved reports whether pattern has a standing approval for
// sessionID.
func (c *Checker) IsPatternApproved(sessionID, pattern string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.patterns[sessionID][pattern]
}

// ClearSession discards all standing approvals for sessionID.
func (c *Checker) ClearSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.approved, sessionID)
	delete(c.patterns, sessionID)
}

// ApprovePattern explicitly approves pattern for sessionID.
func (c *Checker) ApprovePattern(sessionID, pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.patterns[sessionID] == nil {
		c.patterns[sessionID] = make(map[string]bool)
	}
	c.patterns[sessionID][pattern] = true
}
