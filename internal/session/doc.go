// Package session implements the orchestrator that drives one branching
// conversation: turning a prompt into a sequence of LLM calls and tool
// executions, appending every step to its sessionlog, and streaming
// lifecycle events to subscribers.
//
// # Architecture Overview
//
// The package is built around three collaborators:
//
//   - Orchestrator: owns the public operation surface (prompt, steer,
//     follow_up, abort, reset, subscribe, switch_model, set_thinking_level,
//     compact, navigate_tree, reload_extensions, summarize_current_branch)
//     and the bookkeeping for one in-flight run per session.
//   - the agentic loop (loop.go/stream.go): pulls the branch's reconstructed
//     context from sessionlog, builds a completion request, streams the
//     response, executes any requested tools, and repeats until the model
//     stops or a budget/step ceiling trips.
//   - Compactor (compact.go): decides when a branch's context has grown too
//     large, picks a safe cut point, and replaces the tail with a generated
//     summary.
//
// # Deferred dispatch
//
// Prompt does not start the loop synchronously. It appends the user message
// to the log and arms a short timer (PromptDispatchDelay); a Steer call
// arriving before the timer fires appends its own entry and reschedules
// the same timer rather than starting a second run. This gives a burst of
// rapid user input - e.g. a paste immediately followed by "actually, also
// do X" - one LLM turn instead of two races.
//
// # Events
//
// Every lifecycle step is published as an event.SessionEvent with a Kind
// (agent_start, message_end, turn_end, tool_execution_start,
// tool_execution_end, agent_end, canceled, error, overflow_recovery,
// compaction_complete, branch_summarized, model_changed,
// thinking_level_changed) and a free-form Payload.
// Subscribe returns a bounded channel of these; a slow subscriber drops
// oldest-first rather than blocking the loop.
//
// # Persistence
//
// Every message, thinking-level change, model change, compaction, and
// branch summary is appended to the session's sessionlog.Log, which is
// durable as line-delimited JSON. The orchestrator never holds the
// canonical conversation state anywhere else; replaying a log fully
// reconstructs a branch via sessionlog.BuildContext.
package session
