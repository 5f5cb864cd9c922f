package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"

	"github.com/joho/godotenv"

	"github.com/agentcore-dev/runtime/pkg/types"
)

// Load loads configuration from multiple sources (priority order):
// 1. .env file in the project directory (provider API keys)
// 2. Global config (~/.config/agentcore/)
// 3. Project config (.agentcore/)
// 4. OPENCODE_CONFIG (explicit file path) or OPENCODE_CONFIG_CONTENT (inline JSON)
// 5. Environment variables
//
// OPENCODE_CONFIG_CONTENT, when set, is loaded instead of any file-based
// config; OPENCODE_CONFIG adds one more file on top of the global/project
// layers.
func Load(directory string) (*types.Config, error) {
	if directory != "" {
		_ = godotenv.Load(filepath.Join(directory, ".env"))
	}

	config := &types.Config{
		Provider: make(map[string]types.ProviderConfig),
		Agent:    make(map[string]types.AgentConfig),
	}

	if inline := os.Getenv("OPENCODE_CONFIG_CONTENT"); inline != "" {
		if err := mergeConfigBytes([]byte(inline), directory, config); err != nil {
			return nil, err
		}
		applyEnvOverrides(config)
		return config, nil
	}

	// 1. Global config
	globalPath := GetPaths().Config
	loadConfigFile(filepath.Join(globalPath, "config.json"), config)
	loadConfigFile(filepath.Join(globalPath, "config.jsonc"), config)

	// 2. Project config
	if directory != "" {
		loadConfigFile(filepath.Join(directory, "."+appDirName, "config.json"), config)
		loadConfigFile(filepath.Join(directory, "."+appDirName, "config.jsonc"), config)
	}

	// 3. Explicit config path override
	if explicit := os.Getenv("OPENCODE_CONFIG"); explicit != "" {
		loadConfigFile(explicit, config)
	}

	// 4. Environment variables
	applyEnvOverrides(config)

	return config, nil
}

// loadConfigFile loads a single config file.
func loadConfigFile(path string, config *types.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err // File doesn't exist, skip
	}
	return mergeConfigBytes(data, filepath.Dir(path), config)
}

// mergeConfigBytes strips JSONC comments, resolves {env:}/{file:}
// placeholders relative to baseDir, and merges the result into config.
func mergeConfigBytes(data []byte, baseDir string, config *types.Config) error {
	data = stripJSONComments(data)
	data = interpolate(data, baseDir)

	var fileConfig types.Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return err
	}

	mergeConfig(config, &fileConfig)
	return nil
}

// interpolatePattern matches {env:NAME} and {file:path} placeholders in
// raw config JSON, resolved before unmarshalling.
var interpolatePattern = regexp.MustCompile(`\{(env|file):([^}]+)\}`)

// interpolate resolves {env:NAME} to the named environment variable
// (empty string if unset) and {file:path} to the contents of path
// (resolved relative to baseDir), trimmed of surrounding whitespace. A
// {file:...} placeholder whose file can't be read is left untouched so
// the caller sees the original text rather than a silently empty value.
func interpolate(data []byte, baseDir string) []byte {
	return interpolatePattern.ReplaceAllFunc(data, func(match []byte) []byte {
		groups := interpolatePattern.FindSubmatch(match)
		kind, arg := string(groups[1]), string(groups[2])
		switch kind {
		case "env":
			return []byte(os.Getenv(arg))
		case "file":
			path := arg
			if !filepath.IsAbs(path) {
				path = filepath.Join(baseDir, path)
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return match
			}
			return bytes.TrimSpace(content)
		default:
			return match
		}
	})
}

// stripJSONComments removes // and /* */ comments from JSONC.
func stripJSONComments(data []byte) []byte {
	// Remove single-line comments
	singleLine := regexp.MustCompile(`//.*$`)
	lines := bytes.Split(data, []byte("\n"))
	for i, line := range lines {
		lines[i] = singleLine.ReplaceAll(line, nil)
	}
	data = bytes.Join(lines, []byte("\n"))

	// Remove multi-line comments
	multiLine := regexp.MustCompile(`/\*[\s\S]*?\*/`)
	data = multiLine.ReplaceAll(data, nil)

	return data
}

// mergeConfig merges source config into target.
func mergeConfig(target, source *types.Config) {
	if source.Model != "" {
		target.Model = source.Model
	}
	if source.SmallModel != "" {
		target.SmallModel = source.SmallModel
	}

	// Merge providers
	if source.Provider != nil {
		if target.Provider == nil {
			target.Provider = make(map[string]types.ProviderConfig)
		}
		for k, v := range source.Provider {
			target.Provider[k] = v
		}
	}

	// Merge agents
	if source.Agent != nil {
		if target.Agent == nil {
			target.Agent = make(map[string]types.AgentConfig)
		}
		for k, v := range source.Agent {
			target.Agent[k] = v
		}
	}

	// Merge permission config
	if source.Permission != nil {
		target.Permission = source.Permission
	}

	// Merge MCP server configs
	if source.MCP != nil {
		if target.MCP == nil {
			target.MCP = make(map[string]types.MCPConfig)
		}
		for k, v := range source.MCP {
			target.MCP[k] = v
		}
	}

	// Merge extension dirs and watch flag
	if len(source.ExtensionDirs) > 0 {
		target.ExtensionDirs = source.ExtensionDirs
	}
	if source.WatchExtensions {
		target.WatchExtensions = source.WatchExtensions
	}

	// Merge lane concurrency caps
	if source.Lanes != nil {
		if target.Lanes == nil {
			target.Lanes = make(map[string]int)
		}
		for k, v := range source.Lanes {
			target.Lanes[k] = v
		}
	}

	// Merge compaction, budget, and guardrails config (whole-struct override
	// when the source sets a non-zero context window, any budget limit, or a
	// non-zero tool-result byte cap, respectively).
	if source.Compaction.ContextWindow > 0 {
		target.Compaction = source.Compaction
	}
	if source.Budget.MaxTokens != nil || source.Budget.MaxCost != nil || source.Budget.MaxChildren != nil {
		target.Budget = source.Budget
	}
	if source.Guardrails.MaxToolResultBytes > 0 {
		target.Guardrails = source.Guardrails
	}

	// Merge experimental config
	if source.Experimental != nil {
		target.Experimental = source.Experimental
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(config *types.Config) {
	// Provider API keys
	providerEnvMap := map[string]string{
		"anthropic": "ANTHROPIC_API_KEY",
		"openai":    "OPENAI_API_KEY",
		"google":    "GOOGLE_API_KEY",
		"bedrock":   "AWS_ACCESS_KEY_ID",
	}

	for provider, envVar := range providerEnvMap {
		if apiKey := os.Getenv(envVar); apiKey != "" {
			if config.Provider == nil {
				config.Provider = make(map[string]types.ProviderConfig)
			}
			p := config.Provider[provider]
			if p.APIKey == "" {
				p.APIKey = apiKey
				config.Provider[provider] = p
			}
		}
	}

	// Model override
	if model := os.Getenv("OPENCODE_MODEL"); model != "" {
		config.Model = model
	}

	// Small model override
	if smallModel := os.Getenv("OPENCODE_SMALL_MODEL"); smallModel != "" {
		config.SmallModel = smallModel
	}
}

// Save saves the configuration to a file.
func Save(config *types.Config, path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
