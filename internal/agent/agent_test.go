package agent

import (
	"testing"

	"github.com/agentcore-dev/runtime/internal/permission"
	"github.com/agentcore-dev/runtime/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgent_ToolEnabled(t *testing.T) {
	tests := []struct {
		name     string
		agent    *Agent
		toolID   string
		expected bool
	}{
		{
			name:     "exact match enabled",
			agent:    &Agent{Tools: map[string]bool{"read": true}},
			toolID:   "read",
			expected: true,
		},
		{
			name:     "exact match disabled",
			agent:    &Agent{Tools: map[string]bool{"write": false}},
			toolID:   "write",
			expected: false,
		},
		{
			name:     "wildcard all enabled",
			agent:    &Agent{Tools: map[string]bool{"*": true}},
			toolID:   "anytool",
			expected: true,
		},
		{
			name:     "prefix wildcard",
			agent:    &Agent{Tools: map[string]bool{"mcp_*": true}},
			toolID:   "mcp_server_tool",
			expected: true,
		},
		{
			name:     "default enabled when not specified",
			agent:    &Agent{Tools: map[string]bool{"other": true}},
			toolID:   "unknown",
			expected: true,
		},
		{
			name:     "nil tools map defaults to enabled",
			agent:    &Agent{Tools: nil},
			toolID:   "anything",
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.agent.ToolEnabled(tt.toolID)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestAgent_Permission(t *testing.T) {
	tests := []struct {
		name     string
		agent    *Agent
		tool     string
		expected permission.Decision
	}{
		{
			name:     "deny wins over allow-all",
			agent:    &Agent{Policy: types.Policy{AllowAll: true, Deny: map[string]bool{"bash": true}}},
			tool:     "bash",
			expected: permission.DecisionDeny,
		},
		{
			name:     "allow-all permits unlisted tool",
			agent:    &Agent{Policy: types.Policy{AllowAll: true}},
			tool:     "read",
			expected: permission.DecisionAllow,
		},
		{
			name:     "require approval applies after allow",
			agent:    &Agent{Policy: types.Policy{AllowAll: true, RequireApproval: map[string]bool{"bash": true}}},
			tool:     "bash",
			expected: permission.DecisionRequireApproval,
		},
		{
			name:     "default deny when not allowed",
			agent:    &Agent{Policy: types.Policy{Allow: map[string]bool{"read": true}}},
			tool:     "bash",
			expected: permission.DecisionDeny,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.agent.Permission(tt.tool))
		})
	}
}

func TestAgent_IsPrimaryAndIsSubagent(t *testing.T) {
	tests := []struct {
		mode       Mode
		isPrimary  bool
		isSubagent bool
	}{
		{ModePrimary, true, false},
		{ModeSubagent, false, true},
		{ModeAll, true, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			agent := &Agent{Mode: tt.mode}
			assert.Equal(t, tt.isPrimary, agent.IsPrimary())
			assert.Equal(t, tt.isSubagent, agent.IsSubagent())
		})
	}
}

func TestAgent_Clone(t *testing.T) {
	original := &Agent{
		Name:        "test",
		Description: "Test agent",
		Mode:        ModePrimary,
		BuiltIn:     true,
		Temperature: 0.7,
		TopP:        0.9,
		Prompt:      "You are a test agent",
		Color:       "#FF0000",
		Policy: types.Policy{
			AllowAll: true,
			Deny:     map[string]bool{"bash": true},
		},
		Tools: map[string]bool{
			"read":  true,
			"write": false,
		},
		Options: map[string]any{
			"key": "value",
		},
		Model: &ModelRef{
			ProviderID: "anthropic",
			ModelID:    "claude-3-sonnet",
		},
	}

	clone := original.Clone()

	assert.Equal(t, original.Name, clone.Name)
	assert.Equal(t, original.Description, clone.Description)
	assert.Equal(t, original.Mode, clone.Mode)
	assert.Equal(t, original.BuiltIn, clone.BuiltIn)
	assert.Equal(t, original.Temperature, clone.Temperature)
	assert.Equal(t, original.TopP, clone.TopP)
	assert.Equal(t, original.Prompt, clone.Prompt)
	assert.Equal(t, original.Color, clone.Color)
	assert.Equal(t, original.Policy.AllowAll, clone.Policy.AllowAll)
	assert.Equal(t, original.Model.ProviderID, clone.Model.ProviderID)
	assert.Equal(t, original.Model.ModelID, clone.Model.ModelID)

	clone.Tools["read"] = false
	assert.True(t, original.Tools["read"], "modifying clone should not affect original")

	clone.Policy.Deny["new"] = true
	_, exists := original.Policy.Deny["new"]
	assert.False(t, exists, "modifying clone should not affect original")

	clone.Options["new"] = "value"
	_, exists = original.Options["new"]
	assert.False(t, exists, "modifying clone should not affect original")
}

func TestMatchToolPattern(t *testing.T) {
	tests := []struct {
		pattern  string
		s        string
		expected bool
	}{
		{"*", "anything", true},
		{"*", "", true},
		{"mcp_*", "mcp_fetch", true},
		{"mcp_*", "other", false},
		{"exact", "exact", true},
		{"exact", "different", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"_"+tt.s, func(t *testing.T) {
			result := permission.MatchToolPattern(tt.pattern, tt.s)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestBuiltInAgents(t *testing.T) {
	agents := BuiltInAgents()

	expectedAgents := []string{"build", "plan", "general", "explore"}
	for _, name := range expectedAgents {
		agent, ok := agents[name]
		require.True(t, ok, "expected agent %s to exist", name)
		assert.True(t, agent.BuiltIn, "built-in agent should have BuiltIn=true")
	}

	build := agents["build"]
	assert.Equal(t, ModePrimary, build.Mode)
	assert.Equal(t, permission.DecisionAllow, build.Permission("edit"))

	plan := agents["plan"]
	assert.Equal(t, ModePrimary, plan.Mode)
	assert.Equal(t, permission.DecisionDeny, plan.Permission("edit"))
	assert.False(t, plan.Tools["edit"])
	assert.False(t, plan.Tools["write"])

	general := agents["general"]
	assert.Equal(t, ModeSubagent, general.Mode)
	assert.Equal(t, permission.DecisionDeny, general.Permission("bash"))

	explore := agents["explore"]
	assert.Equal(t, ModeSubagent, explore.Mode)
	assert.True(t, explore.Tools["read"])
	assert.True(t, explore.Tools["glob"])
}
