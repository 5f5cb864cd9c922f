package sessionlog

import (
	"github.com/agentcore-dev/runtime/pkg/types"
)

// BuildContext reconstructs the message list, thinking level and model for
// the branch ending at leafID. It finds the last
// compaction entry on the branch; if present, emits a synthetic summary
// user-message followed by entries from FirstKeptEntryID forward; otherwise
// every message/custom_message/branch_summary entry on the branch is
// emitted. thinking_level and model resolve to the last respective change
// entry on the branch.
func (l *Log) BuildContext(leafID string) (*Context, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	branch, err := l.branchLocked(leafID)
	if err != nil {
		return nil, err
	}

	ctx := &Context{}

	var lastCompaction *Entry
	firstKeptIdx := 0
	for i := range branch {
		e := &branch[i]
		switch e.Type {
		case EntryCompaction:
			lastCompaction = e
		case EntryThinkingLevelChange:
			ctx.ThinkingLevel = e.ThinkingLevel
		case EntryModelChange:
			ctx.Provider, ctx.Model = e.Provider, e.Model
		}
	}

	if lastCompaction != nil {
		for i, e := range branch {
			if e.ID == lastCompaction.FirstKeptEntryID {
				firstKeptIdx = i
				break
			}
		}
		ctx.Messages = append(ctx.Messages, &types.Message{
			Kind:      types.MessageCompactionSummary,
			Timestamp: lastCompaction.Timestamp,
			Content:   []types.ContentBlock{&types.TextContent{Type: "text", Text: lastCompaction.Summary}},
		})
		for _, e := range branch[firstKeptIdx:] {
			appendContextEntry(ctx, e)
		}
		return ctx, nil
	}

	for _, e := range branch {
		appendContextEntry(ctx, e)
	}
	return ctx, nil
}

func appendContextEntry(ctx *Context, e Entry) {
	switch e.Type {
	case EntryMessage:
		if e.Message != nil {
			ctx.Messages = append(ctx.Messages, e.Message)
		}
	case EntryBranchSummary:
		ctx.Messages = append(ctx.Messages, &types.Message{
			Kind:      types.MessageBranchSummary,
			Timestamp: e.Timestamp,
			Content:   []types.ContentBlock{&types.TextContent{Type: "text", Text: e.Summary}},
		})
	case EntryCustom:
		ctx.Messages = append(ctx.Messages, &types.Message{
			Kind:       types.MessageCustom,
			Timestamp:  e.Timestamp,
			CustomType: e.CustomType,
			Data:       e.Data,
		})
	}
}

// SetLabel appends a label entry targeting id; a nil label unsets it.
func (l *Log) SetLabel(id string, label *string) (Entry, error) {
	l.mu.RLock()
	_, ok := l.index[id]
	l.mu.RUnlock()
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return l.Append(Entry{Type: EntryLabel, TargetID: id, Label: label})
}

// SummarizeCurrentBranch appends a branch_summary entry for the current
// branch. Callers supply the generated summary text; ErrEmptyBranch is
// returned if the branch carries no message entries to summarize.
func (l *Log) SummarizeCurrentBranch(summary string, details map[string]any, fromHook bool) (Entry, error) {
	branch, err := l.Branch("")
	if err != nil {
		return Entry{}, err
	}
	hasMessage := false
	for _, e := range branch {
		if e.Type == EntryMessage {
			hasMessage = true
			break
		}
	}
	if !hasMessage {
		return Entry{}, ErrEmptyBranch
	}
	return l.Append(Entry{
		Type:     EntryBranchSummary,
		FromID:   l.LeafID(),
		Summary:  summary,
		Details:  details,
		FromHook: fromHook,
	})
}
