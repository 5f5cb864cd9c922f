package extension

import (
	"context"
	"encoding/json"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/agentcore-dev/runtime/internal/permission"
	"github.com/agentcore-dev/runtime/internal/tool"
	"github.com/agentcore-dev/runtime/pkg/types"
)

// winner identifies who provided a tool_name in the composed set, for
// conflict reporting.
type winner struct {
	Kind   string // "builtin" | "extension"
	Module string // module name, empty for builtin
}

// ConflictEntry records one tool_name contested by more than one source.
type ConflictEntry struct {
	ToolName string
	Winner   winner
	Shadowed []winner
}

// ConflictReport summarizes one composition pass.
type ConflictReport struct {
	Conflicts  []ConflictEntry
	LoadErrors int
}

// ComposeOptions controls filtering applied after the fixed builtin-then-
// extension composition order.
type ComposeOptions struct {
	Disabled    map[string]bool // tool names never registered
	EnabledOnly map[string]bool // if non-empty, only these tool names register
	Policy      types.Policy
	Checker     *permission.Checker
	Approvals   *permission.ApprovalContext
	ApprovalKey permission.ApprovalKey
	// MCPTools carries tools surfaced by configured MCP servers (see
	// ComposeMCPTools). They compose last, behind .so-module extensions,
	// so a native or WASM tool of the same name always wins.
	MCPTools []tool.Tool
}

// Compose builds the final tool set: builtins first in their given order,
// then extension tools from modules already sorted by name (Discover's
// contract), then MCP server tools, first registration of a tool name
// wins. Shadowed registrations are recorded, not dropped silently. The
// disabled/enabled-only sets and policy are applied last, and any tool a
// policy resolves to require_approval is wrapped so Execute asks before
// running.
func Compose(builtins []tool.Tool, modules []*LoadedModule, loadErrors int, opts ComposeOptions) ([]tool.Tool, *ConflictReport) {
	report := &ConflictReport{LoadErrors: loadErrors}
	claimed := map[string]winner{}
	conflictIndex := map[string]int{}
	var ordered []tool.Tool

	for _, t := range builtins {
		claimed[t.ID()] = winner{Kind: "builtin"}
		ordered = append(ordered, t)
	}

	claim := func(source winner, t tool.Tool) {
		w, exists := claimed[t.ID()]
		if exists {
			if idx, ok := conflictIndex[t.ID()]; ok {
				report.Conflicts[idx].Shadowed = append(report.Conflicts[idx].Shadowed, source)
			} else {
				conflictIndex[t.ID()] = len(report.Conflicts)
				report.Conflicts = append(report.Conflicts, ConflictEntry{
					ToolName: t.ID(),
					Winner:   w,
					Shadowed: []winner{source},
				})
			}
			return
		}
		claimed[t.ID()] = source
		ordered = append(ordered, t)
	}

	for _, m := range modules {
		w := winner{Kind: "extension", Module: m.Module.Name()}
		if tp, ok := m.Module.(ToolProvider); ok {
			for _, t := range tp.Tools() {
				claim(w, t)
			}
		}
		if ws, ok := m.Module.(WASMToolSource); ok {
			for _, spec := range ws.WASMTools() {
				wt, err := NewWASMTool(spec)
				if err != nil {
					report.LoadErrors++
					continue
				}
				claim(w, wt)
			}
		}
	}

	for _, t := range opts.MCPTools {
		claim(winner{Kind: "extension", Module: "mcp"}, t)
	}

	filtered := make([]tool.Tool, 0, len(ordered))
	for _, t := range ordered {
		if opts.Disabled[t.ID()] {
			continue
		}
		if len(opts.EnabledOnly) > 0 && !opts.EnabledOnly[t.ID()] {
			continue
		}
		if permission.Resolve(opts.Policy, t.ID()) == permission.DecisionDeny {
			continue
		}
		filtered = append(filtered, wrapWithApproval(t, opts))
	}
	return filtered, report
}

// wrapWithApproval wraps t so Execute checks the approval context before
// delegating, remembering "always" decisions the checker records.
func wrapWithApproval(t tool.Tool, opts ComposeOptions) tool.Tool {
	if opts.Checker == nil {
		return t
	}
	decision := permission.Resolve(opts.Policy, t.ID())
	if decision != permission.DecisionRequireApproval {
		return t
	}
	return &approvalGatedTool{inner: t, opts: opts}
}

type approvalGatedTool struct {
	inner tool.Tool
	opts  ComposeOptions
}

func (g *approvalGatedTool) ID() string                  { return g.inner.ID() }
func (g *approvalGatedTool) Description() string         { return g.inner.Description() }
func (g *approvalGatedTool) Parameters() json.RawMessage { return g.inner.Parameters() }

func (g *approvalGatedTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *tool.Context) (*tool.Result, error) {
	if g.opts.Approvals != nil && g.opts.Approvals.Check(g.opts.ApprovalKey, g.inner.ID()) {
		return g.inner.Execute(ctx, input, toolCtx)
	}
	req := permission.Request{
		Tool:      g.inner.ID(),
		SessionID: toolCtx.SessionID,
		AgentName: toolCtx.Agent,
		CallID:    toolCtx.CallID,
		Title:     "Run " + g.inner.ID() + "?",
	}
	if err := g.opts.Checker.Ask(ctx, req); err != nil {
		return nil, err
	}
	if g.opts.Approvals != nil {
		g.opts.Approvals.Remember(g.opts.ApprovalKey, g.inner.ID())
	}
	return g.inner.Execute(ctx, input, toolCtx)
}

func (g *approvalGatedTool) EinoTool() einotool.InvokableTool {
	return &approvalGatedEinoTool{tool: g}
}

type approvalGatedEinoTool struct {
	tool tool.Tool
}

func (w *approvalGatedEinoTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return w.tool.EinoTool().Info(ctx)
}

func (w *approvalGatedEinoTool) InvokableRun(ctx context.Context, argsJSON string, opts ...einotool.Option) (string, error) {
	toolCtx := &tool.Context{}
	result, err := w.tool.Execute(ctx, json.RawMessage(argsJSON), toolCtx)
	if err != nil {
		return "", err
	}
	return result.Output, nil
}
