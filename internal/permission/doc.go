// Package permission resolves whether a tool call is allowed, denied, or
// requires interactive approval, and brokers that approval through an
// event-driven request/response flow.
//
// # Overview
//
// Resolve takes a types.Policy and a tool name and returns one of three
// decisions: allow, deny, or require_approval. Deny patterns always win
// over allow patterns, which win over a policy's AllowAll flag; a tool
// that matches neither Allow nor AllowAll is denied by default.
//
//	decision := Resolve(policy, "bash")
//	err := checker.Check(ctx, req, decision)
//
// # Pattern matching
//
// Tool patterns are doublestar globs over the tool name:
//
//	"*"        matches any tool
//	"mcp_*"    matches any extension-provided tool with that prefix
//	"bash"     matches exactly
//
// # Checker
//
// Checker brokers require_approval decisions: it tracks standing
// per-session approvals, publishes a permission.required event, and waits
// on the caller's Respond to unblock. "always" responses are remembered
// both for the exact tool and for any patterns supplied on the request.
//
// # Approval context
//
// ApprovalContext offers a lighter-weight, non-blocking alternative for
// callers (such as the extension loader) that need to check or record a
// standing approval keyed by session+agent without going through the
// full request/response event flow.
package permission
