package session

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/agentcore-dev/runtime/internal/provider"
	"github.com/agentcore-dev/runtime/internal/sessionlog"
	"github.com/agentcore-dev/runtime/pkg/types"
)

// Compaction tuning constants. No tokenizer library exists anywhere in
// this module's dependency surface, so token counts are always estimated
// from character length; see estimateTokens.
const (
	DefaultContextWindow   = 200000
	DefaultReserveTokens   = 16384
	DefaultKeepRecentTokens = 20000
	DefaultMinKeepMessages = 5
	MessageCountTriggerRatio = 0.9
)

// CompactResult describes an applied compaction, returned to the caller so
// it can surface the summary and token count in a lifecycle event.
type CompactResult struct {
	Summary      string
	TokensBefore int
	FirstKeptID  string
}

// Compactor decides when a branch has grown too large, picks a safe cut
// point, and replaces its tail with a generated summary message.
type Compactor struct {
	providers *provider.Registry
}

// NewCompactor constructs a Compactor against the shared provider registry,
// used only to run the (non-streaming) summarization call.
func NewCompactor(providers *provider.Registry) *Compactor {
	return &Compactor{providers: providers}
}

// estimateTokens approximates token count from character length, the same
// heuristic used throughout this codebase in the absence of a real
// tokenizer.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// ShouldTrigger reports whether ctx's message list has grown past either
// the token-budget signal or the message-count signal.
func (c *Compactor) ShouldTrigger(messages []*types.Message, messageCountLimit int) bool {
	total := contextTokenEstimate(messages)
	if total > DefaultContextWindow-DefaultReserveTokens {
		return true
	}
	if messageCountLimit > 0 && len(messages) >= int(float64(messageCountLimit)*MessageCountTriggerRatio) {
		return true
	}
	return false
}

// Compact evaluates l's current branch against the trigger signals (unless
// force is set) and, if compaction should run, picks a cut point,
// generates a summary, and appends the resulting compaction entry. Returns
// nil, nil when the trigger was not met and force was false.
func (c *Compactor) Compact(ctx context.Context, l *sessionlog.Log, force bool) (*CompactResult, error) {
	branch, err := l.Branch(l.LeafID())
	if err != nil {
		return nil, fmt.Errorf("session: compaction branch: %w", err)
	}

	sctx, err := l.BuildContext(l.LeafID())
	if err != nil {
		return nil, err
	}
	if !force && !c.ShouldTrigger(sctx.Messages, 0) {
		return nil, nil
	}

	cutID, tokensBefore, err := findCutPoint(branch, force)
	if err != nil {
		return nil, err
	}

	preCut, postCut := splitAtEntry(branch, cutID)
	summary, err := c.Summarize(ctx, entriesToMessages(preCut))
	if err != nil {
		return nil, fmt.Errorf("session: generate summary: %w", err)
	}

	details := extractFileOps(preCut)
	entry := sessionlog.Entry{
		Type:             sessionlog.EntryCompaction,
		Summary:          summary,
		FirstKeptEntryID: cutID,
		TokensBefore:     tokensBefore,
		Details:          details,
	}
	if _, err := l.Append(entry); err != nil {
		return nil, fmt.Errorf("session: append compaction entry: %w", err)
	}
	_ = postCut // context is rebuilt lazily from the log on next read

	return &CompactResult{Summary: summary, TokensBefore: tokensBefore, FirstKeptID: cutID}, nil
}

// findCutPoint walks branch backward accumulating estimated tokens until
// the running total reaches DefaultKeepRecentTokens, identifying the entry
// that crossed the threshold as the *target*, then searches backward from
// just before it for the first valid cut point. A forced call that finds
// no valid point falls back to keeping at least DefaultMinKeepMessages and,
// failing that, the first valid point found scanning forward from the head.
func findCutPoint(branch []sessionlog.Entry, force bool) (string, int, error) {
	if len(branch) == 0 {
		return "", 0, fmt.Errorf("session: cannot_compact: empty branch")
	}

	accumulated := 0
	targetIdx := -1
	for i := len(branch) - 1; i >= 0; i-- {
		accumulated += estimateEntryTokens(branch[i])
		if accumulated >= DefaultKeepRecentTokens {
			targetIdx = i
			break
		}
	}
	if targetIdx == -1 {
		targetIdx = 0
	}

	for i := targetIdx - 1; i >= 0; i-- {
		if isValidCutPoint(branch, i) {
			return branch[i].ID, accumulated, nil
		}
	}

	if !force {
		return "", 0, fmt.Errorf("session: cannot_compact: no valid cut point")
	}

	minKeepIdx := len(branch) - DefaultMinKeepMessages
	if minKeepIdx < 0 {
		minKeepIdx = 0
	}
	for i := minKeepIdx; i >= 0; i-- {
		if isValidCutPoint(branch, i) {
			return branch[i].ID, accumulated, nil
		}
	}
	for i := 0; i < len(branch); i++ {
		if isValidCutPoint(branch, i) {
			return branch[i].ID, accumulated, nil
		}
	}
	return "", 0, fmt.Errorf("session: cannot_compact: no valid cut point even forced")
}

// isValidCutPoint reports whether branch[i] can serve as the first kept
// entry: a user/custom/bash_execution message, or an assistant message
// whose every tool_call has a matching tool_result later on the branch.
func isValidCutPoint(branch []sessionlog.Entry, i int) bool {
	e := branch[i]
	if e.Type != sessionlog.EntryMessage || e.Message == nil {
		return false
	}
	switch e.Message.Kind {
	case types.MessageUser, types.MessageCustom, types.MessageBashExecution:
		return true
	case types.MessageAssistant:
		ids := e.Message.ToolCallIDs()
		if len(ids) == 0 {
			return true
		}
		for _, id := range ids {
			if !hasMatchingToolResult(branch, i+1, id) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func hasMatchingToolResult(branch []sessionlog.Entry, from int, toolCallID string) bool {
	for i := from; i < len(branch); i++ {
		e := branch[i]
		if e.Type == sessionlog.EntryMessage && e.Message != nil &&
			e.Message.Kind == types.MessageToolResult && e.Message.ToolCallID == toolCallID {
			return true
		}
	}
	return false
}

func estimateEntryTokens(e sessionlog.Entry) int {
	if e.Type != sessionlog.EntryMessage || e.Message == nil {
		return 0
	}
	total := 0
	for _, c := range e.Message.Content {
		if tc, ok := c.(*types.TextContent); ok {
			total += estimateTokens(tc.Text)
		}
	}
	return total
}

func splitAtEntry(branch []sessionlog.Entry, cutID string) (pre, post []sessionlog.Entry) {
	for i, e := range branch {
		if e.ID == cutID {
			return branch[:i], branch[i:]
		}
	}
	return branch, nil
}

func entriesToMessages(entries []sessionlog.Entry) []*types.Message {
	msgs := make([]*types.Message, 0, len(entries))
	for _, e := range entries {
		if e.Type == sessionlog.EntryMessage && e.Message != nil {
			msgs = append(msgs, e.Message)
		}
	}
	return msgs
}

// summarizationSystemPrompt instructs the model to preserve the details
// compaction otherwise loses: touched files, decisions, and task context.
const summarizationSystemPrompt = `You are compacting a coding assistant conversation. Summarize the
conversation so far, preserving: every file read, written, or edited (with paths), key
decisions made and their rationale, and the current task context. Be concise. Do not
include pleasantries or restate tool output verbatim.`

// Summarize generates a short summary of messages via a single
// non-streaming completion against the default model. Returns the summary
// text, or propagates ctx.Err() if the caller aborts mid-call.
func (c *Compactor) Summarize(ctx context.Context, messages []*types.Message) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if len(messages) == 0 {
		return "", nil
	}

	model, err := c.providers.DefaultModel()
	if err != nil {
		return "", err
	}
	prov, err := c.providers.Get(model.ProviderID)
	if err != nil {
		return "", err
	}

	wire := make([]*schema.Message, 0, len(messages)+1)
	wire = append(wire, schema.SystemMessage(summarizationSystemPrompt))
	wire = append(wire, schema.UserMessage(renderMessagesAsText(messages)))

	stream, err := prov.CreateCompletion(ctx, &provider.CompletionRequest{
		Model:     model.ID,
		Messages:  wire,
		MaxTokens: 1024,
	})
	if err != nil {
		return "", err
	}
	defer stream.Close()

	result, _, err := accumulateStream(stream)
	if err != nil {
		return "", err
	}
	return textOf(result), nil
}

func textOf(msg *types.Message) string {
	var b strings.Builder
	for _, c := range msg.Content {
		if tc, ok := c.(*types.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// renderMessagesAsText flattens messages into a plain-text transcript for
// the summarization prompt.
func renderMessagesAsText(messages []*types.Message) string {
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "[%s]\n", m.Kind)
		for _, c := range m.Content {
			switch v := c.(type) {
			case *types.TextContent:
				b.WriteString(v.Text)
				b.WriteString("\n")
			case *types.ToolCallContent:
				fmt.Fprintf(&b, "tool_call %s(%v)\n", v.Name, v.Arguments)
			}
		}
	}
	return b.String()
}

// extractFileOps scans pre-cut entries for read/write/edit tool calls and
// records the distinct paths touched, surfaced on the compaction entry so
// a later summary can explain what happened to the session's files.
func extractFileOps(entries []sessionlog.Entry) map[string]any {
	paths := map[string]struct{}{}
	for _, e := range entries {
		if e.Type != sessionlog.EntryMessage || e.Message == nil {
			continue
		}
		for _, c := range e.Message.Content {
			tc, ok := c.(*types.ToolCallContent)
			if !ok {
				continue
			}
			switch tc.Name {
			case "read", "write", "edit":
				if p, ok := tc.Arguments["path"].(string); ok && p != "" {
					paths[p] = struct{}{}
				} else if p, ok := tc.Arguments["file_path"].(string); ok && p != "" {
					paths[p] = struct{}{}
				}
			}
		}
	}
	if len(paths) == 0 {
		return nil
	}
	list := make([]string, 0, len(paths))
	for p := range paths {
		list = append(list, p)
	}
	sort.Strings(list)
	return map[string]any{"filesTouched": list}
}

// IsOverflowError reports whether an agent-reported error's reason text
// matches one of the provider-agnostic context-overflow substrings that
// trigger automatic recovery compaction.
func IsOverflowError(reason string) bool {
	lower := strings.ToLower(reason)
	for _, needle := range []string{
		"context_length_exceeded",
		"context length exceeded",
		"context window",
		"maximum context length",
	} {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return false
}
