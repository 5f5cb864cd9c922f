package types

// Config represents the OpenCode configuration.
type Config struct {
	// Schema reference (for editor support)
	Schema string `json:"$schema,omitempty"`

	// User identification
	Username string `json:"username,omitempty"`

	// Model selection
	Model      string `json:"model,omitempty"`       // "anthropic/claude-sonnet-4"
	SmallModel string `json:"small_model,omitempty"` // For fast tasks

	// Theme (TUI only, for compatibility)
	Theme string `json:"theme,omitempty"`

	// Sharing behavior
	Share string `json:"share,omitempty"` // "manual"|"auto"|"disabled"

	// Global tools enable/disable
	Tools map[string]bool `json:"tools,omitempty"`

	// Additional instruction files
	Instructions []string `json:"instructions,omitempty"`

	// Custom prompt variables
	PromptVariables map[string]string `json:"promptVariables,omitempty"`

	// Provider configs
	Provider map[string]ProviderConfig `json:"provider,omitempty"`

	// Agent configs
	Agent map[string]AgentConfig `json:"agent,omitempty"`

	// Global permission settings
	Permission *PermissionConfig `json:"permission,omitempty"`

	// MCP server configs
	MCP map[string]MCPConfig `json:"mcp,omitempty"`

	// Extension directories to scan for loadable tool/provider modules.
	ExtensionDirs []string `json:"extensionDirs,omitempty"`

	// Watches extension directories for changes and triggers reload_extensions.
	WatchExtensions bool `json:"watchExtensions,omitempty"`

	// Context window accounting and compaction thresholds.
	Compaction CompactionConfig `json:"compaction,omitempty"`

	// Budget ceilings applied at session/subagent creation.
	Budget BudgetConfig `json:"budget,omitempty"`

	// Context guardrails applied to outgoing LLM payloads.
	Guardrails GuardrailsConfig `json:"guardrails,omitempty"`

	// Lane concurrency caps for the background scheduler.
	Lanes map[string]int `json:"lanes,omitempty"`

	// Experimental features
	Experimental *ExperimentalConfig `json:"experimental,omitempty"`
}

// CompactionConfig configures the compaction pipeline's trigger and
// cut-point selection.
type CompactionConfig struct {
	ContextWindow            int     `json:"context_window,omitempty"`
	ReserveTokens            int     `json:"reserve_tokens,omitempty"`
	KeepRecentTokens         int     `json:"keep_recent_tokens,omitempty"`
	MinKeepMessages          int     `json:"min_keep_messages,omitempty"`
	MessageLimitTriggerRatio float64 `json:"message_limit_trigger_ratio,omitempty"`
	MessageLimitKeepRatio    float64 `json:"message_limit_keep_ratio,omitempty"`
	MessageLimit             int     `json:"message_limit,omitempty"`
	SummaryMaxTokens         int     `json:"summary_max_tokens,omitempty"`
}

// BudgetConfig carries default ceilings for newly created runs.
type BudgetConfig struct {
	MaxTokens   *int64   `json:"max_tokens,omitempty"`
	MaxCost     *float64 `json:"max_cost,omitempty"`
	MaxChildren *int     `json:"max_children,omitempty"`
}

// GuardrailsConfig configures boundary truncation of outgoing LLM payloads.
type GuardrailsConfig struct {
	MaxToolResultBytes       int    `json:"max_tool_result_bytes,omitempty"`
	MaxToolResultImages      int    `json:"max_tool_result_images,omitempty"`
	MaxThinkingBytes         int    `json:"max_thinking_bytes,omitempty"`
	MaxToolCallArgStringBytes int   `json:"max_tool_call_arg_string_bytes,omitempty"`
	SpillDir                 string `json:"spill_dir,omitempty"`
}

// ProviderConfig holds configuration for a specific provider.
type ProviderConfig struct {
	// npm package backing this provider (TypeScript-config compatibility);
	// inferred from the provider name when empty.
	Npm string `json:"npm,omitempty"`

	// Direct API key
	APIKey  string `json:"apiKey,omitempty"`
	BaseURL string `json:"baseURL,omitempty"`

	// Model/Endpoint ID (for providers like ARK that require endpoint specification)
	Model string `json:"model,omitempty"`

	// Nested options
	Options *ProviderOptions `json:"options,omitempty"`

	// Model filtering
	Whitelist []string `json:"whitelist,omitempty"`
	Blacklist []string `json:"blacklist,omitempty"`

	// Per-model overrides/declarations, keyed by model id.
	Models map[string]ProviderModelConfig `json:"models,omitempty"`

	// Disable provider
	Disable bool `json:"disable,omitempty"`
}

// ProviderModelConfig declares or overrides capabilities for one model
// under a provider, for models the built-in catalog doesn't know about
// (e.g. OpenAI-compatible providers fronting a custom deployment).
type ProviderModelConfig struct {
	ID        string `json:"id,omitempty"`
	Reasoning bool   `json:"reasoning,omitempty"`
	ToolCall  bool   `json:"tool_call,omitempty"`
}

// ProviderOptions holds nested provider options.
type ProviderOptions struct {
	APIKey        string `json:"apiKey,omitempty"`
	BaseURL       string `json:"baseURL,omitempty"`
	EnterpriseURL string `json:"enterpriseUrl,omitempty"`
	Timeout       *int   `json:"timeout,omitempty"` // ms, nil = default, 0 = disabled
}

// AgentConfig holds configuration for an agent.
type AgentConfig struct {
	// Model override for this agent
	Model string `json:"model,omitempty"`

	// Generation parameters
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"` // Changed to match TS (was topP)

	// Custom system prompt
	Prompt string `json:"prompt,omitempty"`

	// Tool configuration
	Tools map[string]bool `json:"tools,omitempty"`

	// Permission settings
	Permission *PermissionConfig `json:"permission,omitempty"`

	// Agent metadata
	Description string `json:"description,omitempty"`
	Mode        string `json:"mode,omitempty"`  // "subagent"|"primary"|"all"
	Color       string `json:"color,omitempty"` // Hex color

	// Disable this agent
	Disable bool `json:"disable,omitempty"`
}

// PermissionConfig holds permission settings.
type PermissionConfig struct {
	Edit        string      `json:"edit,omitempty"`               // "allow"|"deny"|"ask"
	Bash        interface{} `json:"bash,omitempty"`               // string or map[string]string
	WebFetch    string      `json:"webfetch,omitempty"`           // "allow"|"deny"|"ask"
	ExternalDir string      `json:"external_directory,omitempty"` // "allow"|"deny"|"ask"
	DoomLoop    string      `json:"doom_loop,omitempty"`          // "allow"|"deny"|"ask"
}

// Deprecated: Use PermissionConfig instead
type AgentPermissionConfig = PermissionConfig

// MCPConfig holds MCP server configuration.
type MCPConfig struct {
	Type        string            `json:"type,omitempty"` // "local"|"remote"
	Command     []string          `json:"command,omitempty"`
	URL         string            `json:"url,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Enabled     *bool             `json:"enabled,omitempty"`
	Timeout     int               `json:"timeout,omitempty"`
}

// TodoInfo is one entry in a session's structured task list, managed by
// the todowrite/todoread tools.
type TodoInfo struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	Status   string `json:"status"`   // "pending"|"in_progress"|"completed"
	Priority string `json:"priority"` // "high"|"medium"|"low"
}

// ExperimentalConfig holds experimental feature flags.
type ExperimentalConfig struct {
	BatchTool bool `json:"batch_tool,omitempty"`
}

// Model represents an LLM model available from a provider.
type Model struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	ProviderID        string       `json:"providerID"`
	ContextLength     int          `json:"contextLength"`
	MaxOutputTokens   int          `json:"maxOutputTokens,omitempty"`
	SupportsTools     bool         `json:"supportsTools"`
	SupportsVision    bool         `json:"supportsVision"`
	SupportsReasoning bool         `json:"supportsReasoning,omitempty"`
	InputPrice        float64      `json:"inputPrice,omitempty"`  // per 1M tokens
	OutputPrice       float64      `json:"outputPrice,omitempty"` // per 1M tokens
	Options           ModelOptions `json:"options,omitempty"`
}

// ModelOptions contains model-specific options.
type ModelOptions struct {
	Temperature    *float64 `json:"temperature,omitempty"`
	TopP           *float64 `json:"topP,omitempty"`
	PromptCaching  bool     `json:"promptCaching,omitempty"`
	ExtendedOutput bool     `json:"extendedOutput,omitempty"`
}
