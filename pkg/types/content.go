package types

import "encoding/json"

// ContentBlock is a single piece of message content. Messages that carry
// content (user, assistant, tool_result) hold an ordered slice of these.
type ContentBlock interface {
	BlockType() string
}

// TextContent is plain text content.
type TextContent struct {
	Type string `json:"type"` // always "text"
	Text string `json:"text"`
}

func (c *TextContent) BlockType() string { return "text" }

// ImageContent is inline base64 image data.
type ImageContent struct {
	Type string `json:"type"` // always "image"
	Data string `json:"data"` // base64
	Mime string `json:"mime"`
}

func (c *ImageContent) BlockType() string { return "image" }

// ThinkingContent is an assistant extended-reasoning block.
type ThinkingContent struct {
	Type string `json:"type"` // always "thinking"
	Text string `json:"text"`
}

func (c *ThinkingContent) BlockType() string { return "thinking" }

// ToolCallContent is an assistant request to invoke a tool.
type ToolCallContent struct {
	Type      string         `json:"type"` // always "tool_call"
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (c *ToolCallContent) BlockType() string { return "tool_call" }

// UnmarshalContentBlock decodes a single content block, dispatching on its
// "type" discriminator. Unknown types decode as text rather than failing,
// matching the log's tolerant-replay contract.
func UnmarshalContentBlock(data []byte) (ContentBlock, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	switch head.Type {
	case "image":
		var c ImageContent
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return &c, nil
	case "thinking":
		var c ThinkingContent
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return &c, nil
	case "tool_call":
		var c ToolCallContent
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return &c, nil
	default:
		var c TextContent
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		c.Type = "text"
		return &c, nil
	}
}

// UnmarshalContentBlocks decodes a JSON array of content blocks.
func UnmarshalContentBlocks(data json.RawMessage) ([]ContentBlock, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	blocks := make([]ContentBlock, 0, len(raw))
	for _, r := range raw {
		b, err := UnmarshalContentBlock(r)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}
