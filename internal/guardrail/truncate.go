package guardrail

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/agentcore-dev/runtime/pkg/types"
)

// Config holds the configurable limits guardrail transforms enforce.
// Zero values are applied as given; DefaultConfig supplies the defaults.
type Config struct {
	// MaxThinkingBytes caps a thinking block's length; 0 drops it entirely.
	MaxThinkingBytes int
	// MaxToolCallArgStringBytes caps a single string argument value.
	MaxToolCallArgStringBytes int
	// MaxToolResultBytes caps concatenated tool_result text.
	MaxToolResultBytes int
	// MaxToolResultImages caps how many image blocks a tool_result keeps.
	MaxToolResultImages int
	// SpillDir, if set, persists truncated content content-addressed by
	// sha256 so a caller can retrieve the original later.
	SpillDir string
}

// DefaultConfig matches the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxThinkingBytes:          0,
		MaxToolCallArgStringBytes: 12000,
		MaxToolResultBytes:        60000,
		MaxToolResultImages:       0,
	}
}

// ApplyToMessages returns a copy of messages with every guardrail
// transform applied, leaving the originals (and the branching log they
// came from) untouched - guardrails only clamp the outgoing wire copy.
func ApplyToMessages(messages []*types.Message, cfg Config) []*types.Message {
	out := make([]*types.Message, len(messages))
	for i, m := range messages {
		out[i] = applyToMessage(m, cfg)
	}
	return out
}

func applyToMessage(m *types.Message, cfg Config) *types.Message {
	clone := *m
	clone.Content = make([]types.ContentBlock, 0, len(m.Content))

	imagesKept := 0
	var resultText string
	hasResultText := false

	for _, c := range m.Content {
		switch b := c.(type) {
		case *types.ThinkingContent:
			if cfg.MaxThinkingBytes == 0 {
				continue
			}
			clone.Content = append(clone.Content, truncateThinking(b, cfg))
		case *types.ToolCallContent:
			clone.Content = append(clone.Content, truncateToolCall(b, cfg))
		case *types.ImageContent:
			if m.Kind != types.MessageToolResult {
				clone.Content = append(clone.Content, b)
				continue
			}
			if imagesKept < cfg.MaxToolResultImages {
				clone.Content = append(clone.Content, b)
				imagesKept++
			} else {
				clone.Content = append(clone.Content, spillImagePlaceholder(b, cfg))
			}
		case *types.TextContent:
			if m.Kind == types.MessageToolResult {
				resultText += b.Text
				hasResultText = true
				continue
			}
			clone.Content = append(clone.Content, b)
		default:
			clone.Content = append(clone.Content, c)
		}
	}

	if hasResultText {
		clone.Content = append(clone.Content, truncateToolResultText(m.ToolName, resultText, cfg))
	}

	return &clone
}

// truncateThinking deterministically shortens a thinking block to the
// configured byte limit, cutting on a rune boundary.
func truncateThinking(b *types.ThinkingContent, cfg Config) types.ContentBlock {
	if len(b.Text) <= cfg.MaxThinkingBytes {
		return b
	}
	return &types.ThinkingContent{Type: "thinking", Text: truncateToValidUTF8(b.Text, cfg.MaxThinkingBytes) + "... [truncated]"}
}

// truncateToolCall recurses into a tool call's argument map, replacing any
// string value over the limit with a structured placeholder and leaving
// numbers/bools/null/nested containers under the limit untouched.
func truncateToolCall(b *types.ToolCallContent, cfg Config) *types.ToolCallContent {
	clone := *b
	clone.Arguments = truncateArgValue(b.Arguments, cfg).(map[string]any)
	return &clone
}

func truncateArgValue(v any, cfg Config) any {
	switch val := v.(type) {
	case string:
		if len(val) <= cfg.MaxToolCallArgStringBytes {
			return val
		}
		return truncatedStringPlaceholder(val, cfg)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[k] = truncateArgValue(v, cfg)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, v := range val {
			out[i] = truncateArgValue(v, cfg)
		}
		return out
	default:
		return v
	}
}

// truncatedStringPlaceholder matches the spec's {_truncated, bytes, sha256,
// spill_path?, head_tail_excerpt} shape for an over-limit argument string.
func truncatedStringPlaceholder(s string, cfg Config) map[string]any {
	sum := sha256Hex(s)
	placeholder := map[string]any{
		"_truncated":       true,
		"bytes":            len(s),
		"sha256":           sum,
		"head_tail_excerpt": headTailExcerpt(s, 200, 100),
	}
	if path, ok := spill(cfg.SpillDir, "args", sum, "txt", s); ok {
		placeholder["spill_path"] = path
	}
	return placeholder
}

// truncateToolResultText concatenates and, if over the limit, truncates
// the middle of a tool_result's text (≈70% head, 30% tail) behind a
// deterministic header.
func truncateToolResultText(toolName, text string, cfg Config) *types.TextContent {
	if len(text) <= cfg.MaxToolResultBytes {
		return &types.TextContent{Type: "text", Text: text}
	}

	sum := sha256Hex(text)
	headBytes := cfg.MaxToolResultBytes * 7 / 10
	tailBytes := cfg.MaxToolResultBytes - headBytes

	head := truncateToValidUTF8(text, headBytes)
	tailStart := len(text) - tailBytes
	if tailStart < 0 {
		tailStart = 0
	}
	tail := validUTF8Suffix(text[tailStart:])

	spillPath, _ := spill(cfg.SpillDir, "tool_results", sum, "txt", text)
	header := fmt.Sprintf(
		"[tool_result truncated] tool=%s original_bytes=%d sha256=%s spill_path=%s\n",
		toolName, len(text), sum, spillPath,
	)
	body := head + "\n...[truncated]...\n" + tail
	return &types.TextContent{Type: "text", Text: header + body}
}

// spillImagePlaceholder replaces a dropped image with a text placeholder
// carrying its content hash and mime type, spilling the raw data when a
// spill directory is configured.
func spillImagePlaceholder(b *types.ImageContent, cfg Config) *types.TextContent {
	sum := sha256Hex(b.Data)
	ext := extensionForMime(b.Mime)
	spillPath, _ := spill(cfg.SpillDir, "images", sum, ext, b.Data)
	return &types.TextContent{
		Type: "text",
		Text: fmt.Sprintf("[image omitted] mime=%s sha256=%s spill_path=%s", b.Mime, sum, spillPath),
	}
}

func extensionForMime(mime string) string {
	switch mime {
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "bin"
	}
}

// spill writes content content-addressed under <dir>/<label>/<sha>.<ext>,
// create-if-absent so retries never rewrite (and never need to rewrite)
// the same path. Returns ok=false when dir is unset.
func spill(dir, label, sha, ext, content string) (string, bool) {
	if dir == "" {
		return "", false
	}
	sub := filepath.Join(dir, label)
	if err := os.MkdirAll(sub, 0o755); err != nil {
		return "", false
	}
	path := filepath.Join(sub, sha+"."+ext)
	if _, err := os.Stat(path); err == nil {
		return path, true
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", false
	}
	return path, true
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// headTailExcerpt returns the first headLen and last tailLen valid-UTF8
// bytes of s, joined by an ellipsis marker, for a placeholder preview.
func headTailExcerpt(s string, headLen, tailLen int) string {
	head := truncateToValidUTF8(s, headLen)
	tailStart := len(s) - tailLen
	if tailStart < 0 {
		tailStart = 0
	}
	tail := validUTF8Suffix(s[tailStart:])
	if len(s) <= headLen+tailLen {
		return s
	}
	return head + "..." + tail
}

// truncateToValidUTF8 cuts s to at most n bytes, backing off until the cut
// lands on a rune boundary so the result is always valid UTF-8.
func truncateToValidUTF8(s string, n int) string {
	if n >= len(s) {
		return s
	}
	if n < 0 {
		n = 0
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// validUTF8Suffix advances past any partial rune at the start of s left
// over from a byte-offset slice.
func validUTF8Suffix(s string) string {
	for i := 0; i < len(s) && i < utf8.UTFMax; i++ {
		if utf8.RuneStart(s[i]) {
			return s[i:]
		}
	}
	return s
}
