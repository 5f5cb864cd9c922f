// Package agent provides multi-agent configuration and management.
package agent

import (
	"github.com/agentcore-dev/runtime/internal/permission"
	"github.com/agentcore-dev/runtime/pkg/types"
)

// Agent represents an agent configuration.
type Agent struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Mode        Mode            `json:"mode"`
	BuiltIn     bool            `json:"builtIn"`
	Policy      types.Policy    `json:"policy"`
	Tools       map[string]bool `json:"tools"`
	Options     map[string]any  `json:"options,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	TopP        float64         `json:"topP,omitempty"`
	Model       *ModelRef       `json:"model,omitempty"`
	Prompt      string          `json:"prompt,omitempty"`
	Color       string          `json:"color,omitempty"`
}

// Mode represents the agent operation mode.
type Mode string

const (
	ModePrimary  Mode = "primary"
	ModeSubagent Mode = "subagent"
	ModeAll      Mode = "all"
)

// ModelRef references a specific model.
type ModelRef struct {
	ProviderID string `json:"providerID"`
	ModelID    string `json:"modelID"`
}

// ToolEnabled checks if a tool is enabled for this agent's Tools map,
// supporting doublestar glob patterns. Tools omitted from the map default
// to enabled; Policy.Resolve governs whether an enabled tool still
// requires approval or is denied outright.
func (a *Agent) ToolEnabled(toolID string) bool {
	if enabled, ok := a.Tools[toolID]; ok {
		return enabled
	}
	for pattern, enabled := range a.Tools {
		if permission.MatchToolPattern(pattern, toolID) {
			return enabled
		}
	}
	return true
}

// Permission resolves the permission decision for a tool under this
// agent's policy.
func (a *Agent) Permission(toolID string) permission.Decision {
	return permission.Resolve(a.Policy, toolID)
}

// IsPrimary returns true if the agent can be used as a primary agent.
func (a *Agent) IsPrimary() bool {
	return a.Mode == ModePrimary || a.Mode == ModeAll
}

// IsSubagent returns true if the agent can be used as a subagent.
func (a *Agent) IsSubagent() bool {
	return a.Mode == ModeSubagent || a.Mode == ModeAll
}

// Clone creates a deep copy of the agent.
func (a *Agent) Clone() *Agent {
	clone := &Agent{
		Name:        a.Name,
		Description: a.Description,
		Mode:        a.Mode,
		BuiltIn:     a.BuiltIn,
		Temperature: a.Temperature,
		TopP:        a.TopP,
		Prompt:      a.Prompt,
		Color:       a.Color,
	}

	clone.Policy = types.Policy{
		AllowAll: a.Policy.AllowAll,
		NoReply:  a.Policy.NoReply,
		Profile:  a.Policy.Profile,
	}
	if a.Policy.Allow != nil {
		clone.Policy.Allow = make(map[string]bool, len(a.Policy.Allow))
		for k, v := range a.Policy.Allow {
			clone.Policy.Allow[k] = v
		}
	}
	if a.Policy.Deny != nil {
		clone.Policy.Deny = make(map[string]bool, len(a.Policy.Deny))
		for k, v := range a.Policy.Deny {
			clone.Policy.Deny[k] = v
		}
	}
	if a.Policy.RequireApproval != nil {
		clone.Policy.RequireApproval = make(map[string]bool, len(a.Policy.RequireApproval))
		for k, v := range a.Policy.RequireApproval {
			clone.Policy.RequireApproval[k] = v
		}
	}

	if a.Tools != nil {
		clone.Tools = make(map[string]bool)
		for k, v := range a.Tools {
			clone.Tools[k] = v
		}
	}

	if a.Options != nil {
		clone.Options = make(map[string]any)
		for k, v := range a.Options {
			clone.Options[k] = v
		}
	}

	if a.Model != nil {
		clone.Model = &ModelRef{
			ProviderID: a.Model.ProviderID,
			ModelID:    a.Model.ModelID,
		}
	}

	return clone
}

// BuiltInAgents returns the default agent configurations.
func BuiltInAgents() map[string]*Agent {
	return map[string]*Agent{
		"build": {
			Name:        "build",
			Description: "Primary agent for executing tasks, writing code, and making changes",
			Mode:        ModePrimary,
			BuiltIn:     true,
			Policy:      types.BuiltinPolicy(types.ProfileFullAccess),
			Tools: map[string]bool{
				"*": true,
			},
		},
		"plan": {
			Name:        "plan",
			Description: "Planning agent for analysis and exploration without making changes",
			Mode:        ModePrimary,
			BuiltIn:     true,
			Policy:      types.BuiltinPolicy(types.ProfileReadOnly),
			Tools: map[string]bool{
				"read":  true,
				"glob":  true,
				"grep":  true,
				"ls":    true,
				"bash":  true,
				"edit":  false,
				"write": false,
			},
		},
		"general": {
			Name:        "general",
			Description: "General-purpose subagent for searches and exploration",
			Mode:        ModeSubagent,
			BuiltIn:     true,
			Policy:      types.BuiltinPolicy(types.ProfileSubagentRestricted),
			Tools: map[string]bool{
				"read":     true,
				"glob":     true,
				"grep":     true,
				"webfetch": true,
				"bash":     false,
				"edit":     false,
				"write":    false,
			},
		},
		"explore": {
			Name:        "explore",
			Description: "Fast agent specialized for codebase exploration",
			Mode:        ModeSubagent,
			BuiltIn:     true,
			Policy:      types.BuiltinPolicy(types.ProfileReadOnly),
			Tools: map[string]bool{
				"read": true,
				"glob": true,
				"grep": true,
				"ls":   true,
				"bash": false,
				"edit": false,
			},
		},
	}
}
