package extension

import (
	"encoding/json"
	"testing"
)

type fakeSchemaModule struct {
	name   string
	schema json.RawMessage
}

func (m *fakeSchemaModule) Name() string                 { return m.name }
func (m *fakeSchemaModule) Version() string               { return "0.0.1" }
func (m *fakeSchemaModule) ConfigSchema() json.RawMessage { return m.schema }

func TestValidateConfig_AcceptsValidConfig(t *testing.T) {
	mod := &fakeSchemaModule{name: "alpha", schema: json.RawMessage(`{
		"type": "object",
		"properties": {"apiKey": {"type": "string"}},
		"required": ["apiKey"]
	}`)}

	err := ValidateConfig(mod, map[string]any{"apiKey": "sk-test"})
	if err != nil {
		t.Fatalf("expected valid config to pass, got %v", err)
	}
}

func TestValidateConfig_RejectsMissingRequiredField(t *testing.T) {
	mod := &fakeSchemaModule{name: "alpha", schema: json.RawMessage(`{
		"type": "object",
		"properties": {"apiKey": {"type": "string"}},
		"required": ["apiKey"]
	}`)}

	err := ValidateConfig(mod, map[string]any{})
	if err == nil {
		t.Fatal("expected missing required field to fail validation")
	}
}

func TestValidateConfig_ModuleWithoutSchemaAcceptsAnyConfig(t *testing.T) {
	mod := &fakeModule{name: "beta"}
	if err := ValidateConfig(mod, map[string]any{"anything": true}); err != nil {
		t.Fatalf("expected module without ConfigSchemaSource to accept any config, got %v", err)
	}
}

func TestCompileSchema_CachesCompiledSchema(t *testing.T) {
	raw := json.RawMessage(`{"type": "object"}`)

	first, err := compileSchema(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := compileSchema(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Error("expected compileSchema to return the cached pointer on repeat calls")
	}
}
