// Package extension discovers, validates, and composes loadable modules
// that extend the tool registry, hook pipeline, and provider set at
// runtime. Modules are Go plugins (built with `go build -buildmode=plugin`)
// discovered on disk; this package never compiles source itself — compiling
// a .so ahead of time is the deployment step, discovery only loads and
// validates what's already built.
package extension

import (
	"encoding/json"

	"github.com/agentcore-dev/runtime/internal/tool"
)

// Symbol is the exported plugin symbol every extension .so must provide.
const Symbol = "OpencodeExtension"

// Module is the required shape: a name, a version, and at least one of the
// optional hook interfaces below. A .so that exports a value under Symbol
// which does not implement Module fails validation, not discovery.
type Module interface {
	Name() string
	Version() string
}

// ToolProvider is an optional hook: a module may contribute tools.
type ToolProvider interface {
	Tools() []tool.Tool
}

// HookProvider is an optional hook: a module may subscribe to lifecycle
// events (session created, turn started, tool executed, ...).
type HookProvider interface {
	Hooks() []Hook
}

// Hook is one lifecycle subscription a module registers.
type Hook struct {
	Event   string
	Handler func(payload map[string]any)
}

// ProviderDeclaration describes one LLM provider a module registers. Type
// is currently always "model" per the supported provider kind.
type ProviderDeclaration struct {
	Type string
	Name string
	// Factory builds the provider.Provider for this declaration on demand,
	// kept as `any` here to avoid an import cycle with internal/provider;
	// callers that consume ProviderDeclarations know the concrete type.
	Factory any
}

// ProviderSource is an optional hook: a module may contribute providers.
type ProviderSource interface {
	Providers() []ProviderDeclaration
}

// ConfigSchemaSource is an optional hook: a module may publish a JSON
// Schema describing its configuration shape, validated with the same
// jsonschema engine used to validate values against it.
type ConfigSchemaSource interface {
	ConfigSchema() json.RawMessage
}

// WASMToolSource is an optional hook: a module may declare sidecar tools
// backed by a compiled WebAssembly binary rather than native Go code built
// into the module's own .so. This lets an extension ship a tool once as
// target-independent .wasm and run it sandboxed, instead of rebuilding a Go
// plugin per host architecture.
type WASMToolSource interface {
	WASMTools() []WASMToolSpec
}

// hasOptionalHook reports whether m implements at least one of the five
// optional interfaces, the second half of the required module shape.
func hasOptionalHook(m Module) bool {
	if _, ok := m.(ToolProvider); ok {
		return true
	}
	if _, ok := m.(HookProvider); ok {
		return true
	}
	if _, ok := m.(ProviderSource); ok {
		return true
	}
	if _, ok := m.(ConfigSchemaSource); ok {
		return true
	}
	if _, ok := m.(WASMToolSource); ok {
		return true
	}
	return false
}
