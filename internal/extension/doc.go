// Package extension discovers Go-plugin modules on disk, validates their
// shape, composes them with the built-in tool set under a deterministic
// first-wins ordering, and wires the result into a permission policy. It
// also registers the provider declarations extensions contribute.
//
// # Module shape
//
// A module is anything exported under Symbol from a *.so built with
// `go build -buildmode=plugin` that implements Module (Name, Version) and
// at least one of ToolProvider, HookProvider, ProviderSource,
// ConfigSchemaSource, or WASMToolSource. Discover captures everything
// else — a missing symbol, a shape mismatch, a .so that fails to open — as
// a LoadError rather than aborting the scan.
//
// # WASM-backed tools
//
// A module implementing WASMToolSource declares tools backed by a compiled
// .wasm binary instead of Go code compiled into the module itself. Compose
// instantiates each one with WASMTool, which runs the guest in a wazero
// sandbox and exchanges a JSON request/response pair through its linear
// memory. A WASM tool that fails to load counts toward the reload's
// LoadErrors total rather than aborting composition.
//
// # MCP servers
//
// MCP servers are the second extension source kind, configured rather
// than discovered from disk: ComposeMCPTools connects to each entry in a
// types.Config.MCP map via an internal/mcp.Client and wraps the tools it
// reports so Compose can fold them in through ComposeOptions.MCPTools. A
// server that fails to connect counts toward the reload's LoadErrors
// total but never blocks the rest of the set from composing.
//
// # Composition order
//
// Compose always places built-in tools first, in the order the caller's
// registry already holds them, then extension tools from modules sorted
// by name, then MCP server tools. The first registration of a tool name
// wins; every later one is recorded in a ConflictReport rather than
// silently dropped.
//
// # Manager
//
// Manager ties discovery, composition, MCP server connections, and an
// fsnotify watch into one reload cycle: purge -> rediscover -> reconnect
// MCP servers -> rebuild -> swap into the shared *tool.Registry ->
// publish a status report through an installed ReloadCallback.
package extension
