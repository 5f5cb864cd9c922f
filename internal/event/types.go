package event

// SessionCreatedData is the data for session.created events.
type SessionCreatedData struct {
	SessionID     string `json:"sessionID"`
	Cwd           string `json:"cwd"`
	ParentSession string `json:"parentSession,omitempty"`
}

// SessionDeletedData is the data for session.deleted events.
type SessionDeletedData struct {
	SessionID string `json:"sessionID"`
}

// PermissionUpdatedData is the data for permission.required events: a tool
// call is awaiting an approval decision.
type PermissionUpdatedData struct {
	ID             string   `json:"id"`
	SessionID      string   `json:"sessionID"`
	AgentName      string   `json:"agentName,omitempty"`
	Tool           string   `json:"tool"`
	Pattern        []string `json:"pattern,omitempty"`
	Title          string   `json:"title"`
}

// Deprecated: Use PermissionUpdatedData instead
type PermissionRequiredData = PermissionUpdatedData

// PermissionRepliedData is the data for permission.resolved events.
type PermissionRepliedData struct {
	PermissionID string `json:"permissionID"`
	SessionID    string `json:"sessionID"`
	Response     string `json:"response"` // "once" | "always" | "reject"
}

// Deprecated: Use PermissionRepliedData instead
type PermissionResolvedData struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionID"`
	Granted   bool   `json:"granted"`
}

// RunStateChangedData is the payload for a RunStateChanged event.
// Subscribers awaiting a specific run filter on RunID/ParentRunID.
type RunStateChangedData struct {
	RunID       string `json:"runId"`
	ParentRunID string `json:"parentRunId,omitempty"`
	SessionKey  string `json:"sessionKey,omitempty"`
	Status      string `json:"status"`
	Event       string `json:"event"`
	TimestampMs int64  `json:"timestampMs"`
}

// SessionEventData envelopes one entry of the orchestrator's session event
// stream. Kind names the event
// (agent_start, message_end, tool_execution_end, agent_end, ...); Payload
// carries its kind-specific fields.
type SessionEventData struct {
	SessionID string         `json:"sessionID"`
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// ExtensionStatusReportData is the payload published after extension
// discovery or reload_extensions.
type ExtensionStatusReportData struct {
	Registered []string `json:"registered"`
	Conflicts  int      `json:"conflicts"`
	LoadErrors int      `json:"loadErrors"`
	TotalTools int      `json:"totalTools"`
}
