package types

import "encoding/json"

// MessageKind discriminates the tagged-variant Message type.
type MessageKind string

const (
	MessageUser               MessageKind = "user"
	MessageAssistant          MessageKind = "assistant"
	MessageToolResult         MessageKind = "tool_result"
	MessageBashExecution      MessageKind = "bash_execution"
	MessageCustom             MessageKind = "custom"
	MessageBranchSummary      MessageKind = "branch_summary"
	MessageCompactionSummary  MessageKind = "compaction_summary"
)

// StopReason is the terminal reason an assistant turn ended.
type StopReason string

const (
	StopReasonStop     StopReason = "stop"
	StopReasonLength   StopReason = "length"
	StopReasonToolUse  StopReason = "tool_use"
	StopReasonError    StopReason = "error"
	StopReasonAborted  StopReason = "aborted"
)

// Trust marks whether tool_result content should be treated as having come
// from a trusted or untrusted source (e.g. fetched web content).
type Trust string

const (
	TrustTrusted   Trust = "trusted"
	TrustUntrusted Trust = "untrusted"
)

// Usage is a token/cost accounting record. TotalTokens is computed from the
// four counters when the caller does not supply one explicitly.
type Usage struct {
	Input       int     `json:"input"`
	Output      int     `json:"output"`
	CacheRead   int     `json:"cacheRead,omitempty"`
	CacheWrite  int     `json:"cacheWrite,omitempty"`
	TotalTokens int     `json:"totalTokens,omitempty"`
	Cost        float64 `json:"cost,omitempty"`
}

// Total returns TotalTokens if it was explicitly set, otherwise the sum of
// the four counters.
func (u Usage) Total() int {
	if u.TotalTokens != 0 {
		return u.TotalTokens
	}
	return u.Input + u.Output + u.CacheRead + u.CacheWrite
}

// Message is the tagged-variant content-bearing record stored in a session
// log message entry. Fields not relevant to a given Kind are left zero.
type Message struct {
	Kind      MessageKind    `json:"kind"`
	Timestamp int64          `json:"timestamp"` // monotonic ms
	Content   []ContentBlock `json:"content,omitempty"`

	// assistant-only
	Provider   string     `json:"provider,omitempty"`
	Model      string     `json:"model,omitempty"`
	API        string     `json:"api,omitempty"`
	Usage      *Usage     `json:"usage,omitempty"`
	StopReason StopReason `json:"stopReason,omitempty"`

	// tool_result-only
	ToolCallID string `json:"toolCallId,omitempty"`
	ToolName   string `json:"toolName,omitempty"`
	IsError    bool   `json:"isError,omitempty"`
	Trust      Trust  `json:"trust,omitempty"`

	// bash_execution-only
	Command  string `json:"command,omitempty"`
	ExitCode *int   `json:"exitCode,omitempty"`

	// custom / branch_summary / compaction_summary
	CustomType string         `json:"customType,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// ToolCallIDs returns the ids of every tool_call content block in the
// message, used by the compaction pipeline's cut-point search.
func (m *Message) ToolCallIDs() []string {
	var ids []string
	for _, c := range m.Content {
		if tc, ok := c.(*ToolCallContent); ok {
			ids = append(ids, tc.ID)
		}
	}
	return ids
}

// wireMessage mirrors Message but with Content as raw JSON and both spellings
// of the tool-result call-id field (implementers
// accept either on read, emit one canonical field on write).
type wireMessage struct {
	Kind       MessageKind     `json:"kind"`
	Timestamp  int64           `json:"timestamp"`
	Content    json.RawMessage `json:"content,omitempty"`
	Provider   string          `json:"provider,omitempty"`
	Model      string          `json:"model,omitempty"`
	API        string          `json:"api,omitempty"`
	Usage      *Usage          `json:"usage,omitempty"`
	StopReason StopReason      `json:"stopReason,omitempty"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolUseID  string          `json:"toolUseId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	IsError    bool            `json:"isError,omitempty"`
	Trust      Trust           `json:"trust,omitempty"`
	Command    string          `json:"command,omitempty"`
	ExitCode   *int            `json:"exitCode,omitempty"`
	CustomType string          `json:"customType,omitempty"`
	Data       map[string]any  `json:"data,omitempty"`
}

// MarshalJSON emits the canonical toolCallId field only.
func (m *Message) MarshalJSON() ([]byte, error) {
	content, err := json.Marshal(m.Content)
	if err != nil {
		return nil, err
	}
	w := wireMessage{
		Kind: m.Kind, Timestamp: m.Timestamp, Content: content,
		Provider: m.Provider, Model: m.Model, API: m.API,
		Usage: m.Usage, StopReason: m.StopReason,
		ToolCallID: m.ToolCallID, ToolName: m.ToolName,
		IsError: m.IsError, Trust: m.Trust,
		Command: m.Command, ExitCode: m.ExitCode,
		CustomType: m.CustomType, Data: m.Data,
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts either toolCallId or the legacy toolUseId spelling.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	blocks, err := UnmarshalContentBlocks(w.Content)
	if err != nil {
		return err
	}
	callID := w.ToolCallID
	if callID == "" {
		callID = w.ToolUseID
	}
	*m = Message{
		Kind: w.Kind, Timestamp: w.Timestamp, Content: blocks,
		Provider: w.Provider, Model: w.Model, API: w.API,
		Usage: w.Usage, StopReason: w.StopReason,
		ToolCallID: callID, ToolName: w.ToolName,
		IsError: w.IsError, Trust: w.Trust,
		Command: w.Command, ExitCode: w.ExitCode,
		CustomType: w.CustomType, Data: w.Data,
	}
	return nil
}
