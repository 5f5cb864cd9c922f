package session

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"github.com/agentcore-dev/runtime/internal/agent"
	"github.com/agentcore-dev/runtime/internal/budget"
	"github.com/agentcore-dev/runtime/internal/guardrail"
	"github.com/agentcore-dev/runtime/internal/permission"
	"github.com/agentcore-dev/runtime/internal/provider"
	"github.com/agentcore-dev/runtime/internal/sessionlog"
	"github.com/agentcore-dev/runtime/pkg/types"
)

// newRetryBackoff returns the exponential-backoff policy used for a single
// completion call: short initial delay, capped growth, bounded total
// retry window so a flaky provider never stalls a turn indefinitely.
func newRetryBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 2 * time.Minute
	return b
}

// runTurn drives one full agentic turn for sessionID: rebuild context from
// the branch, call the model, execute any requested tools, and repeat
// until the model stops asking for tools or a ceiling trips.
func (o *Orchestrator) runTurn(ctx context.Context, sessionID string, req PromptRequest) error {
	l, err := o.logForSession(sessionID)
	if err != nil {
		return err
	}

	ag, err := o.resolveAgent(req.AgentName)
	if err != nil {
		return err
	}
	providerID, modelID, err := o.resolveModel(ag, req.ProviderID, req.ModelID)
	if err != nil {
		return err
	}
	prov, err := o.providers.Get(providerID)
	if err != nil {
		return fmt.Errorf("session: provider %s: %w", providerID, err)
	}
	model, err := o.providers.GetModel(providerID, modelID)
	if err != nil {
		return fmt.Errorf("session: model %s/%s: %w", providerID, modelID, err)
	}

	o.emit(sessionID, "agent_start", map[string]any{"agent": ag.Name, "provider": providerID, "model": modelID})

	callCounts := map[string]int{}
	overflowRecovered := false

	for step := 0; step < MaxSteps; step++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		sctx, err := l.BuildContext(l.LeafID())
		if err != nil {
			return fmt.Errorf("session: build context: %w", err)
		}

		systemPrompt := o.buildSystemPrompt(l, ag)
		guarded := guardrail.ApplyToMessages(sctx.Messages, o.guardrailCfg)
		messages := provider.ConvertToEinoMessages(guarded)
		wireMessages := make([]*schema.Message, 0, len(messages)+1)
		wireMessages = append(wireMessages, schema.SystemMessage(systemPrompt))
		wireMessages = append(wireMessages, messages...)

		toolInfos, err := o.tools.ToolInfos()
		if err != nil {
			return fmt.Errorf("session: tool infos: %w", err)
		}

		estTokens := estimateTokens(systemPrompt) + contextTokenEstimate(guarded)
		decision, err := o.budget.PreAPI(sessionID, int64(estTokens), budget.Policy{OnTokensExceeded: budget.ActionCompact})
		if err != nil {
			return fmt.Errorf("session: budget check: %w", err)
		}
		switch decision.Action {
		case budget.ActionCancel, budget.ActionError:
			o.emit(sessionID, "error", map[string]any{"message": decision.Message})
			return fmt.Errorf("session: budget exceeded: %s", decision.Message)
		case budget.ActionCompact:
			if _, err := o.compactor.Compact(ctx, l, true); err != nil {
				return fmt.Errorf("session: forced compaction: %w", err)
			}
			if err := o.logs.Save(l); err != nil {
				return err
			}
			o.emit(sessionID, "compaction_complete", map[string]any{"reason": decision.Message})
			continue
		case budget.ActionNotify:
			o.emit(sessionID, "error", map[string]any{"message": decision.Message, "notify_only": true})
		}

		assistantMsg, usage, err := o.callWithRetry(ctx, prov, &provider.CompletionRequest{
			Model:       model.ID,
			Messages:    wireMessages,
			Tools:       toolInfos,
			MaxTokens:   model.MaxOutputTokens,
			Temperature: ag.Temperature,
			TopP:        ag.TopP,
		})
		if err != nil {
			if !overflowRecovered && IsOverflowError(err.Error()) {
				overflowRecovered = true
				if recErr := o.recoverFromOverflow(ctx, sessionID, l, err); recErr != nil {
					return recErr
				}
				step--
				continue
			}
			return fmt.Errorf("session: completion: %w", err)
		}

		o.budget.RecordResponse(sessionID, usage)

		assistantMsg.Provider = providerID
		assistantMsg.Model = modelID
		if _, err := l.Append(sessionlog.Entry{Type: sessionlog.EntryMessage, Message: assistantMsg}); err != nil {
			return fmt.Errorf("session: append assistant message: %w", err)
		}
		if err := o.logs.Save(l); err != nil {
			return err
		}
		o.emit(sessionID, "message_end", map[string]any{"kind": string(assistantMsg.Kind)})

		toolCalls := extractToolCalls(assistantMsg)
		if len(toolCalls) == 0 {
			o.emit(sessionID, "turn_end", map[string]any{"step": step})
			break
		}

		for _, call := range toolCalls {
			key := call.Name + ":" + fmt.Sprint(call.Arguments)
			callCounts[key]++
			if callCounts[key] > DoomLoopThreshold {
				result := &types.Message{
					Kind:      types.MessageToolResult,
					Timestamp: time.Now().UnixMilli(),
					ToolCallID: call.ID,
					ToolName:   call.Name,
					IsError:    true,
					Content:    []types.ContentBlock{&types.TextContent{Type: "text", Text: "aborted: identical tool call repeated too many times"}},
				}
				if _, err := l.Append(sessionlog.Entry{Type: sessionlog.EntryMessage, Message: result}); err != nil {
					return err
				}
				continue
			}

			result, err := o.executeTool(ctx, sessionID, ag, call)
			if err != nil {
				if permission.IsRejectedError(err) {
					result = rejectedResult(call, err)
				} else {
					return fmt.Errorf("session: execute tool %s: %w", call.Name, err)
				}
			}
			if _, err := l.Append(sessionlog.Entry{Type: sessionlog.EntryMessage, Message: result}); err != nil {
				return err
			}
		}
		if err := o.logs.Save(l); err != nil {
			return err
		}

		if step == MaxSteps-1 {
			o.emit(sessionID, "error", map[string]any{"message": "step ceiling reached"})
		}
	}

	o.emit(sessionID, "agent_end", map[string]any{"agent": ag.Name})
	return nil
}

// DoomLoopThreshold is the number of identical tool calls (same name and
// arguments) allowed within one run of the loop before it refuses to repeat it.
const DoomLoopThreshold = 3

// OverflowRecoveryTimeout bounds the forced compaction triggered by a
// context-overflow completion error.
const OverflowRecoveryTimeout = 120 * time.Second

// recoverFromOverflow runs one forced compaction pass after a completion
// call fails with a context-overflow error, so the turn can retry with a
// shorter context instead of surfacing the error to subscribers. Called at
// most once per turn by runTurn. On failure it forwards origErr.
func (o *Orchestrator) recoverFromOverflow(ctx context.Context, sessionID string, l *sessionlog.Log, origErr error) error {
	start := time.Now()
	o.emit(sessionID, "overflow_recovery", map[string]any{"phase": "attempt", "reason": origErr.Error()})

	recCtx, cancel := context.WithTimeout(ctx, OverflowRecoveryTimeout)
	defer cancel()

	if _, err := o.compactor.Compact(recCtx, l, true); err != nil {
		o.emit(sessionID, "overflow_recovery", map[string]any{
			"phase":       "failure",
			"duration_ms": time.Since(start).Milliseconds(),
			"reason":      err.Error(),
		})
		o.emit(sessionID, "error", map[string]any{"message": origErr.Error()})
		return fmt.Errorf("session: completion: %w", origErr)
	}
	if err := o.logs.Save(l); err != nil {
		return err
	}
	o.emit(sessionID, "overflow_recovery", map[string]any{
		"phase":       "success",
		"duration_ms": time.Since(start).Milliseconds(),
	})
	o.emit(sessionID, "compaction_complete", map[string]any{"reason": "overflow_recovery"})
	return nil
}

// callWithRetry wraps a single completion call with exponential backoff,
// accumulating the streamed response into one assistant message.
func (o *Orchestrator) callWithRetry(ctx context.Context, prov provider.Provider, req *provider.CompletionRequest) (*types.Message, budget.ResponseUsage, error) {
	var msg *types.Message
	var usage budget.ResponseUsage

	operation := func() error {
		stream, err := prov.CreateCompletion(ctx, req)
		if err != nil {
			return err
		}
		defer stream.Close()

		accum, u, err := accumulateStream(stream)
		if err != nil {
			return err
		}
		msg = accum
		usage = u
		return nil
	}

	bo := backoff.WithContext(newRetryBackoff(), ctx)
	err := backoff.RetryNotify(operation, bo, func(err error, d time.Duration) {
		log.Warn().Err(err).Dur("retry_in", d).Msg("session: completion call failed, retrying")
	})
	return msg, usage, err
}

func extractToolCalls(msg *types.Message) []*types.ToolCallContent {
	var calls []*types.ToolCallContent
	for _, c := range msg.Content {
		if tc, ok := c.(*types.ToolCallContent); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}

func rejectedResult(call *types.ToolCallContent, err error) *types.Message {
	return &types.Message{
		Kind:       types.MessageToolResult,
		Timestamp:  time.Now().UnixMilli(),
		ToolCallID: call.ID,
		ToolName:   call.Name,
		IsError:    true,
		Content:    []types.ContentBlock{&types.TextContent{Type: "text", Text: err.Error()}},
	}
}

func (o *Orchestrator) resolveAgent(name string) (*agent.Agent, error) {
	if name == "" {
		name = "build"
	}
	return o.agents.Get(name)
}

func (o *Orchestrator) resolveModel(ag *agent.Agent, providerID, modelID string) (string, string, error) {
	if providerID != "" && modelID != "" {
		return providerID, modelID, nil
	}
	if ag.Model != nil {
		return ag.Model.ProviderID, ag.Model.ModelID, nil
	}
	model, err := o.providers.DefaultModel()
	if err != nil {
		return "", "", err
	}
	return model.ProviderID, model.ID, nil
}

func contextTokenEstimate(messages []*types.Message) int {
	total := 0
	for _, m := range messages {
		for _, c := range m.Content {
			if tc, ok := c.(*types.TextContent); ok {
				total += estimateTokens(tc.Text)
			}
		}
	}
	return total
}
