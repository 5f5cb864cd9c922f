// Package guardrail implements the two boundary-safety layers every
// outbound path through this module crosses: message truncation before
// content reaches the LLM, and SSRF-safe HTTP fetching before a tool's
// GET reaches the network.
//
// Neither concern has a third-party library anywhere in this module's
// dependency surface - truncation-with-content-addressed-spill and
// private-IP-range vetting are both bespoke policy, not a transport or
// parsing problem a library solves - so this package is deliberately
// built on net/http and net/netip alone.
package guardrail
