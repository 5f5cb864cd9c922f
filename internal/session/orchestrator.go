package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/agentcore-dev/runtime/internal/agent"
	"github.com/agentcore-dev/runtime/internal/budget"
	"github.com/agentcore-dev/runtime/internal/event"
	"github.com/agentcore-dev/runtime/internal/guardrail"
	"github.com/agentcore-dev/runtime/internal/permission"
	"github.com/agentcore-dev/runtime/internal/provider"
	"github.com/agentcore-dev/runtime/internal/rungraph"
	"github.com/agentcore-dev/runtime/internal/sessionlog"
	"github.com/agentcore-dev/runtime/internal/tool"
	"github.com/agentcore-dev/runtime/pkg/types"
)

// PromptDispatchDelay is how long Prompt waits before actually starting the
// agentic loop, giving a burst of Steer calls a chance to land in the same
// turn instead of racing a second one.
const PromptDispatchDelay = 10 * time.Millisecond

// MaxSteps bounds one dispatch's tool-call/response iterations.
const MaxSteps = 50

// PromptRequest is the input to Prompt/FollowUp.
type PromptRequest struct {
	Text       string
	Images     []types.ContentBlock
	AgentName  string
	ProviderID string
	ModelID    string
}

// Orchestrator drives the agentic loop for every session: appending to its
// sessionlog, streaming completions, executing tools, and publishing
// lifecycle events. One Orchestrator serves every session in the process.
type Orchestrator struct {
	mu    sync.Mutex
	logs  *sessionlog.Manager
	cache map[string]*sessionlog.Log
	runs  map[string]*activeRun

	providers *provider.Registry
	tools     *tool.Registry
	agents    *agent.Registry
	perms     *permission.Checker
	budget    *budget.Tracker
	graph     *rungraph.Graph
	compactor *Compactor

	instructions []string
	guardrailCfg guardrail.Config
}

// activeRun tracks the in-flight or pending-dispatch state for one session.
type activeRun struct {
	cancel  context.CancelFunc
	done    chan struct{}
	timer   *time.Timer
	pending PromptRequest
}

// New constructs an Orchestrator. graph may be nil when run-graph lineage
// tracking is not wired (e.g. in tests).
func New(
	logs *sessionlog.Manager,
	providers *provider.Registry,
	tools *tool.Registry,
	agents *agent.Registry,
	perms *permission.Checker,
	bud *budget.Tracker,
	graph *rungraph.Graph,
	cfg *types.Config,
) *Orchestrator {
	o := &Orchestrator{
		logs:      logs,
		cache:     make(map[string]*sessionlog.Log),
		runs:      make(map[string]*activeRun),
		providers: providers,
		tools:     tools,
		agents:    agents,
		perms:     perms,
		budget:    bud,
		graph:     graph,
	}
	o.guardrailCfg = guardrail.DefaultConfig()
	if cfg != nil {
		o.instructions = cfg.Instructions
		if g := cfg.Guardrails; g != (types.GuardrailsConfig{}) {
			o.guardrailCfg = guardrail.Config{
				MaxThinkingBytes:          g.MaxThinkingBytes,
				MaxToolCallArgStringBytes: nonZeroOr(g.MaxToolCallArgStringBytes, o.guardrailCfg.MaxToolCallArgStringBytes),
				MaxToolResultBytes:        nonZeroOr(g.MaxToolResultBytes, o.guardrailCfg.MaxToolResultBytes),
				MaxToolResultImages:       g.MaxToolResultImages,
				SpillDir:                  g.SpillDir,
			}
		}
	}
	o.compactor = NewCompactor(providers)
	return o
}

func nonZeroOr(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}

// Create starts a brand-new session rooted at cwd and installs its budget.
func (o *Orchestrator) Create(ctx context.Context, cwd, parentSession string) (string, error) {
	l, err := o.logs.Create(cwd, parentSession)
	if err != nil {
		return "", fmt.Errorf("session: create: %w", err)
	}
	id := l.Header().ID

	o.mu.Lock()
	o.cache[id] = l
	o.mu.Unlock()

	o.budget.Create(id, budget.Options{}, "")
	if o.graph != nil {
		if _, err := o.graph.NewRun(ctx, "", id, nil); err != nil {
			log.Warn().Err(err).Str("session_id", id).Msg("session: failed to register root run")
		}
	}
	event.Publish(event.Event{Type: event.SessionCreated, Data: event.SessionCreatedData{SessionID: id, Cwd: cwd, ParentSession: parentSession}})
	return id, nil
}

// logForSession returns the cached log for sessionID, loading it from disk
// on first use.
func (o *Orchestrator) logForSession(sessionID string) (*sessionlog.Log, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if l, ok := o.cache[sessionID]; ok {
		return l, nil
	}
	l, err := o.logs.Open(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session: open %s: %w", sessionID, err)
	}
	o.cache[sessionID] = l
	return l, nil
}

// Fork creates a brand-new session that replays the branch ending at
// leafID (or src's current leaf, if empty) from sessionID.
func (o *Orchestrator) Fork(ctx context.Context, sessionID, leafID, cwd string) (string, error) {
	src, err := o.logForSession(sessionID)
	if err != nil {
		return "", err
	}
	fork, err := o.logs.ForkFrom(src, leafID, cwd)
	if err != nil {
		return "", fmt.Errorf("session: fork: %w", err)
	}
	id := fork.Header().ID

	o.mu.Lock()
	o.cache[id] = fork
	o.mu.Unlock()

	o.budget.Create(id, budget.Options{}, sessionID)
	event.Publish(event.Event{Type: event.SessionCreated, Data: event.SessionCreatedData{SessionID: id, Cwd: cwd, ParentSession: sessionID}})
	return id, nil
}

// Prompt appends a user message and arms the dispatch timer. A Steer call
// landing before the timer fires folds into the same dispatch.
func (o *Orchestrator) Prompt(ctx context.Context, sessionID string, req PromptRequest) error {
	if err := o.appendUserMessage(sessionID, req.Text, req.Images); err != nil {
		return err
	}
	o.scheduleDispatch(sessionID, req)
	return nil
}

// FollowUp behaves exactly like Prompt; the distinct name marks call sites
// that are continuing a finished turn rather than starting a fresh one.
func (o *Orchestrator) FollowUp(ctx context.Context, sessionID, text string) error {
	return o.Prompt(ctx, sessionID, PromptRequest{Text: text})
}

// Steer appends additional user content mid-turn. If a dispatch is already
// pending for sessionID its timer is rearmed instead of a second one being
// scheduled; if a turn is already running, the steered message lands in
// the log and is picked up the next time the loop rebuilds its context.
func (o *Orchestrator) Steer(ctx context.Context, sessionID, text string) error {
	if err := o.appendUserMessage(sessionID, text, nil); err != nil {
		return err
	}

	o.mu.Lock()
	run, pending := o.runs[sessionID]
	o.mu.Unlock()
	if pending && run.timer != nil {
		o.scheduleDispatch(sessionID, run.pending)
	}
	return nil
}

func (o *Orchestrator) appendUserMessage(sessionID, text string, extra []types.ContentBlock) error {
	l, err := o.logForSession(sessionID)
	if err != nil {
		return err
	}
	content := []types.ContentBlock{&types.TextContent{Type: "text", Text: text}}
	content = append(content, extra...)
	msg := &types.Message{Kind: types.MessageUser, Timestamp: time.Now().UnixMilli(), Content: content}
	if _, err := l.Append(sessionlog.Entry{Type: sessionlog.EntryMessage, Message: msg}); err != nil {
		return fmt.Errorf("session: append user message: %w", err)
	}
	return o.logs.Save(l)
}

// scheduleDispatch (re)arms the deferred-dispatch timer for sessionID.
func (o *Orchestrator) scheduleDispatch(sessionID string, req PromptRequest) {
	o.mu.Lock()
	defer o.mu.Unlock()

	run, ok := o.runs[sessionID]
	if !ok {
		run = &activeRun{}
		o.runs[sessionID] = run
	}
	run.pending = req
	if run.timer != nil {
		run.timer.Stop()
	}
	run.timer = time.AfterFunc(PromptDispatchDelay, func() {
		o.dispatch(sessionID)
	})
}

// dispatch fires once the deferred-dispatch timer elapses: it starts the
// agentic loop on its own cancelable context.
func (o *Orchestrator) dispatch(sessionID string) {
	o.mu.Lock()
	run, ok := o.runs[sessionID]
	if !ok {
		o.mu.Unlock()
		return
	}
	req := run.pending
	runCtx, cancel := context.WithCancel(context.Background())
	run.cancel = cancel
	run.timer = nil
	run.done = make(chan struct{})
	done := run.done
	o.mu.Unlock()

	go func() {
		defer close(done)
		if err := o.runTurn(runCtx, sessionID, req); err != nil && runCtx.Err() == nil {
			log.Error().Err(err).Str("session_id", sessionID).Msg("session: turn failed")
			o.emit(sessionID, "error", map[string]any{"message": err.Error()})
		}
		o.mu.Lock()
		delete(o.runs, sessionID)
		o.mu.Unlock()
	}()
}

// Abort cancels sessionID's pending or in-flight run.
func (o *Orchestrator) Abort(sessionID string) error {
	o.mu.Lock()
	run, ok := o.runs[sessionID]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("session: no active run for %s", sessionID)
	}
	if run.timer != nil {
		run.timer.Stop()
	}
	if run.cancel != nil {
		run.cancel()
	}
	o.emit(sessionID, "canceled", nil)
	return nil
}

// Reset discards any in-flight or pending run for sessionID and returns
// the branch cursor to the session's root, without deleting any entry.
func (o *Orchestrator) Reset(sessionID string) error {
	o.mu.Lock()
	run, ok := o.runs[sessionID]
	o.mu.Unlock()
	if ok {
		if run.timer != nil {
			run.timer.Stop()
		}
		if run.cancel != nil {
			run.cancel()
		}
		o.mu.Lock()
		delete(o.runs, sessionID)
		o.mu.Unlock()
	}

	l, err := o.logForSession(sessionID)
	if err != nil {
		return err
	}
	all := l.All()
	if len(all) == 0 {
		return nil
	}
	return l.SetLeaf(all[0].ID)
}

// NavigateTree moves sessionID's branch cursor to leafID. When
// summarizeAbandoned is true and leafID isn't reachable from the current
// leaf by walking a single branch (a genuine branch switch, not just
// moving the cursor within the current branch), the branch being left is
// summarized first and a branch_summarized event names it as from_id.
func (o *Orchestrator) NavigateTree(ctx context.Context, sessionID, leafID string, summarizeAbandoned bool) error {
	l, err := o.logForSession(sessionID)
	if err != nil {
		return err
	}

	oldLeaf := l.LeafID()
	if summarizeAbandoned && oldLeaf != "" && oldLeaf != leafID && !onSameBranch(l, oldLeaf, leafID) {
		sctx, err := l.BuildContext(oldLeaf)
		if err != nil {
			return err
		}
		summary, err := o.compactor.Summarize(ctx, sctx.Messages)
		if err != nil {
			return err
		}
		switch _, err := l.SummarizeCurrentBranch(summary, nil, false); {
		case err == sessionlog.ErrEmptyBranch:
			// nothing worth recording on the abandoned branch
		case err != nil:
			return err
		default:
			o.emit(sessionID, "branch_summarized", map[string]any{"from_id": oldLeaf, "summary": summary})
		}
	}

	if err := l.SetLeaf(leafID); err != nil {
		return err
	}
	return o.logs.Save(l)
}

// onSameBranch reports whether a and b lie on a single root-to-leaf path,
// i.e. one is an ancestor of the other.
func onSameBranch(l *sessionlog.Log, a, b string) bool {
	if branch, err := l.Branch(b); err == nil {
		for _, e := range branch {
			if e.ID == a {
				return true
			}
		}
	}
	if branch, err := l.Branch(a); err == nil {
		for _, e := range branch {
			if e.ID == b {
				return true
			}
		}
	}
	return false
}

// SwitchModel appends a model_change entry to sessionID's branch.
func (o *Orchestrator) SwitchModel(sessionID, providerID, modelID string) error {
	l, err := o.logForSession(sessionID)
	if err != nil {
		return err
	}
	if _, err := l.Append(sessionlog.Entry{Type: sessionlog.EntryModelChange, Provider: providerID, Model: modelID}); err != nil {
		return fmt.Errorf("session: switch model: %w", err)
	}
	if err := o.logs.Save(l); err != nil {
		return err
	}
	o.emit(sessionID, "model_changed", map[string]any{"provider": providerID, "model": modelID})
	return nil
}

// SetThinkingLevel appends a thinking_level_change entry.
func (o *Orchestrator) SetThinkingLevel(sessionID string, level types.ThinkingLevel) error {
	l, err := o.logForSession(sessionID)
	if err != nil {
		return err
	}
	if _, err := l.Append(sessionlog.Entry{Type: sessionlog.EntryThinkingLevelChange, ThinkingLevel: level}); err != nil {
		return fmt.Errorf("session: set thinking level: %w", err)
	}
	if err := o.logs.Save(l); err != nil {
		return err
	}
	o.emit(sessionID, "thinking_level_changed", map[string]any{"level": string(level)})
	return nil
}

// Compact runs the compaction pipeline over sessionID's current branch.
// force bypasses the token/message-count trigger check.
func (o *Orchestrator) Compact(ctx context.Context, sessionID string, force bool) error {
	l, err := o.logForSession(sessionID)
	if err != nil {
		return err
	}
	result, err := o.compactor.Compact(ctx, l, force)
	if err != nil {
		return err
	}
	if result == nil {
		return nil // trigger not met and not forced
	}
	if err := o.logs.Save(l); err != nil {
		return err
	}
	o.emit(sessionID, "compaction_complete", map[string]any{
		"tokensBefore": result.TokensBefore,
		"summary":      result.Summary,
	})
	return nil
}

// SummarizeCurrentBranch generates a summary of sessionID's current branch
// and appends it as a branch_summary entry.
func (o *Orchestrator) SummarizeCurrentBranch(ctx context.Context, sessionID string) error {
	l, err := o.logForSession(sessionID)
	if err != nil {
		return err
	}
	sctx, err := l.BuildContext("")
	if err != nil {
		return err
	}
	summary, err := o.compactor.Summarize(ctx, sctx.Messages)
	if err != nil {
		return err
	}
	if _, err := l.SummarizeCurrentBranch(summary, nil, false); err != nil {
		return err
	}
	if err := o.logs.Save(l); err != nil {
		return err
	}
	o.emit(sessionID, "branch_summarized", map[string]any{"summary": summary})
	return nil
}

// ReloadExtensions re-announces the currently registered tool set. Full
// discovery/conflict resolution lives in the extension package; this is
// the orchestrator-side hook extension.Manager.OnReload installs as its
// callback, so sessions observe the new tool surface immediately after a
// reload completes.
func (o *Orchestrator) ReloadExtensions(registered []string, conflicts, loadErrors int) {
	event.Publish(event.Event{
		Type: event.ExtensionStatusReport,
		Data: event.ExtensionStatusReportData{
			Registered: registered,
			Conflicts:  conflicts,
			LoadErrors: loadErrors,
			TotalTools: len(o.tools.List()),
		},
	})
}

// Subscribe returns a bounded channel of sessionID's lifecycle events and
// an unsubscribe function. A slow reader drops the oldest queued event
// rather than blocking the loop that publishes them.
func (o *Orchestrator) Subscribe(sessionID string) (<-chan event.SessionEventData, func()) {
	const bufferSize = 64
	ch := make(chan event.SessionEventData, bufferSize)
	unsub := event.Subscribe(event.SessionEvent, func(e event.Event) {
		data, ok := e.Data.(event.SessionEventData)
		if !ok || data.SessionID != sessionID {
			return
		}
		select {
		case ch <- data:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- data:
			default:
			}
		}
	})
	return ch, unsub
}

func (o *Orchestrator) emit(sessionID, kind string, payload map[string]any) {
	event.Publish(event.Event{Type: event.SessionEvent, Data: event.SessionEventData{SessionID: sessionID, Kind: kind, Payload: payload}})
}

// newEntryLikeID returns a ULID, used for tool-call ids minted locally
// rather than echoed back from the provider.
func newEntryLikeID() string {
	return ulid.Make().String()
}
