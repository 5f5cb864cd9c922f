package extension

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var schemaCache sync.Map

// ValidateConfig validates config against m's declared config_schema, when
// it has one. Modules without a ConfigSchemaSource accept any config.
func ValidateConfig(m Module, config map[string]any) error {
	cs, ok := m.(ConfigSchemaSource)
	if !ok {
		return nil
	}
	raw := cs.ConfigSchema()
	if len(raw) == 0 {
		return nil
	}

	compiled, err := compileSchema(raw)
	if err != nil {
		return fmt.Errorf("extension: compile config schema for %s: %w", m.Name(), err)
	}

	payload, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("extension: encode config for %s: %w", m.Name(), err)
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("extension: decode config for %s: %w", m.Name(), err)
	}
	if err := compiled.Validate(decoded); err != nil {
		return fmt.Errorf("extension: config for %s is invalid: %w", m.Name(), err)
	}
	return nil
}

func compileSchema(raw json.RawMessage) (*jsonschema.Schema, error) {
	key := string(raw)
	if cached, ok := schemaCache.Load(key); ok {
		return cached.(*jsonschema.Schema), nil
	}
	compiled, err := jsonschema.CompileString("extension.schema.json", key)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}
