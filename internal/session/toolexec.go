package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/agentcore-dev/runtime/internal/agent"
	"github.com/agentcore-dev/runtime/internal/permission"
	"github.com/agentcore-dev/runtime/internal/tool"
	"github.com/agentcore-dev/runtime/pkg/types"
)

// executeTool resolves the permission decision for a requested tool call,
// blocks on interactive approval if required, and runs it. Returns a
// *permission.RejectedError (wrapped) when the call is denied so the loop
// can fold it into a tool_result rather than aborting the turn.
func (o *Orchestrator) executeTool(ctx context.Context, sessionID string, ag *agent.Agent, call *types.ToolCallContent) (*types.Message, error) {
	if !ag.ToolEnabled(call.Name) {
		return nil, &permission.RejectedError{
			SessionID: sessionID,
			Tool:      call.Name,
			CallID:    call.ID,
			Message:   fmt.Sprintf("tool %q is disabled for agent %q", call.Name, ag.Name),
		}
	}

	decision := ag.Permission(call.Name)
	req := permission.Request{
		ID:        newEntryLikeID(),
		Tool:      call.Name,
		SessionID: sessionID,
		AgentName: ag.Name,
		CallID:    call.ID,
		Title:     fmt.Sprintf("run %s", call.Name),
		Metadata:  call.Arguments,
	}
	if err := o.perms.Check(ctx, req, decision); err != nil {
		return nil, err
	}

	t, ok := o.tools.Get(call.Name)
	if !ok {
		return nil, fmt.Errorf("session: unknown tool %q", call.Name)
	}

	input, err := json.Marshal(call.Arguments)
	if err != nil {
		return nil, fmt.Errorf("session: marshal tool arguments: %w", err)
	}

	l, err := o.logForSession(sessionID)
	if err != nil {
		return nil, err
	}

	abortCh := make(chan struct{})
	toolCtx := &tool.Context{
		SessionID: sessionID,
		CallID:    call.ID,
		Agent:     ag.Name,
		WorkDir:   l.Header().Cwd,
		AbortCh:   abortCh,
		OnMetadata: func(title string, meta map[string]any) {
			o.emit(sessionID, "tool_execution_start", map[string]any{"tool": call.Name, "callId": call.ID, "title": title, "metadata": meta})
		},
	}

	o.emit(sessionID, "tool_execution_start", map[string]any{"tool": call.Name, "callId": call.ID})
	result, execErr := t.Execute(ctx, input, toolCtx)
	o.emit(sessionID, "tool_execution_end", map[string]any{"tool": call.Name, "callId": call.ID, "error": execErr != nil})

	msg := &types.Message{
		Kind:       types.MessageToolResult,
		Timestamp:  time.Now().UnixMilli(),
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Trust:      toolResultTrust(call.Name),
	}
	if execErr != nil {
		msg.IsError = true
		msg.Content = []types.ContentBlock{&types.TextContent{Type: "text", Text: execErr.Error()}}
		return msg, nil
	}

	msg.IsError = result.Error != nil
	text := result.Output
	if result.Error != nil {
		text = result.Error.Error()
	}
	msg.Content = []types.ContentBlock{&types.TextContent{Type: "text", Text: text}}
	if diff, ok := result.Metadata["diff"].(string); ok && diff != "" {
		msg.Content = append(msg.Content, &types.TextContent{Type: "text", Text: diff})
	}
	return msg, nil
}

// toolResultTrust marks content fetched from outside the workspace (e.g.
// web fetches) as untrusted, so downstream prompt-injection-aware steps
// can treat it with suspicion.
func toolResultTrust(toolName string) types.Trust {
	switch toolName {
	case "webfetch", "web_fetch":
		return types.TrustUntrusted
	default:
		return types.TrustTrusted
	}
}

// computeDiff returns a unified diff between before and after, titled by
// path, using the same diff engine the rest of the tool surface already
// depends on for patch-style output.
func computeDiff(path, before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return generateUnifiedDiff(path, diffs)
}

// generateUnifiedDiff renders a diffmatchpatch diff sequence as a minimal
// unified-diff-style text block: a path header followed by +/- lines.
func generateUnifiedDiff(path string, diffs []diffmatchpatch.Diff) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- %s\n+++ %s\n", path, path)

	removed, added := 0, 0
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			removed += countLines(d.Text)
		case diffmatchpatch.DiffInsert:
			added += countLines(d.Text)
		}
	}
	fmt.Fprintf(&b, "@@ -%d +%d @@\n", removed, added)

	for _, d := range diffs {
		lines := strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n")
		for _, line := range lines {
			switch d.Type {
			case diffmatchpatch.DiffDelete:
				b.WriteString("-" + line + "\n")
			case diffmatchpatch.DiffInsert:
				b.WriteString("+" + line + "\n")
			case diffmatchpatch.DiffEqual:
				b.WriteString(" " + line + "\n")
			}
		}
	}
	return b.String()
}

// countLines returns one more than the number of newlines in s (0 for an
// empty s), so a trailing newline counts as an extra empty line.
func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}
