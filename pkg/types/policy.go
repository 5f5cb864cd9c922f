package types

// PolicyProfile names one of the predefined tool-access profiles.
type PolicyProfile string

const (
	ProfileFullAccess         PolicyProfile = "full_access"
	ProfileReadOnly           PolicyProfile = "read_only"
	ProfileSafeMode           PolicyProfile = "safe_mode"
	ProfileSubagentRestricted PolicyProfile = "subagent_restricted"
	ProfileNoExternal         PolicyProfile = "no_external"
)

// Policy governs which tools a session/agent may invoke and which require
// interactive approval. Allow is either "all" (AllowAll true) or an explicit
// set of tool names/patterns.
type Policy struct {
	AllowAll        bool            `json:"allowAll,omitempty"`
	Allow           map[string]bool `json:"allow,omitempty"`
	Deny            map[string]bool `json:"deny,omitempty"`
	RequireApproval map[string]bool `json:"requireApproval,omitempty"`
	NoReply         bool            `json:"noReply,omitempty"`
	Profile         PolicyProfile   `json:"profile,omitempty"`
}

// BuiltinPolicy returns the Policy for one of the predefined profiles.
func BuiltinPolicy(profile PolicyProfile) Policy {
	switch profile {
	case ProfileFullAccess:
		return Policy{AllowAll: true, Profile: profile}
	case ProfileReadOnly:
		return Policy{
			Profile: profile,
			Allow:   map[string]bool{"read": true, "glob": true, "grep": true, "list": true},
		}
	case ProfileSafeMode:
		return Policy{
			Profile:         profile,
			AllowAll:        true,
			RequireApproval: map[string]bool{"bash": true, "edit": true, "write": true, "webfetch": true},
		}
	case ProfileSubagentRestricted:
		return Policy{
			Profile: profile,
			Allow:   map[string]bool{"read": true, "glob": true, "grep": true, "list": true, "task": false},
			Deny:    map[string]bool{"bash": true, "webfetch": true},
		}
	case ProfileNoExternal:
		return Policy{
			Profile:  profile,
			AllowAll: true,
			Deny:     map[string]bool{"webfetch": true},
		}
	default:
		return Policy{AllowAll: true}
	}
}

// ExtensionMetadata describes a loaded extension module.
type ExtensionMetadata struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	SourcePath   string   `json:"sourcePath,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	ConfigSchema []byte   `json:"-"`
}

// ThinkingLevel is the reasoning-effort level recorded by a
// thinking_level_change entry.
type ThinkingLevel string

const (
	ThinkingOff     ThinkingLevel = "off"
	ThinkingMinimal ThinkingLevel = "minimal"
	ThinkingLow     ThinkingLevel = "low"
	ThinkingMedium  ThinkingLevel = "medium"
	ThinkingHigh    ThinkingLevel = "high"
	ThinkingXHigh   ThinkingLevel = "xhigh"
)
