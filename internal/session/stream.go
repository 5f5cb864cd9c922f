package session

import (
	"errors"
	"io"

	"github.com/cloudwego/eino/schema"

	"github.com/agentcore-dev/runtime/internal/budget"
	"github.com/agentcore-dev/runtime/internal/provider"
	"github.com/agentcore-dev/runtime/pkg/types"
)

// accumulateStream drains a completion stream into one assistant message,
// concatenating every chunk Eino hands back (text deltas, partial tool-call
// argument fragments) into the final wire message before converting it to
// the branching log's content-block model.
func accumulateStream(stream *provider.CompletionStream) (*types.Message, budget.ResponseUsage, error) {
	var chunks []*schema.Message
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, budget.ResponseUsage{}, err
		}
		chunks = append(chunks, chunk)
	}
	if len(chunks) == 0 {
		return nil, budget.ResponseUsage{}, errors.New("session: empty completion stream")
	}

	final, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, budget.ResponseUsage{}, err
	}

	msg := provider.ConvertFromEinoMessage(final)

	var usage budget.ResponseUsage
	if final.ResponseMeta != nil && final.ResponseMeta.Usage != nil {
		input := int64(final.ResponseMeta.Usage.PromptTokens)
		output := int64(final.ResponseMeta.Usage.CompletionTokens)
		total := int64(final.ResponseMeta.Usage.TotalTokens)
		usage = budget.ResponseUsage{InputTokens: &input, OutputTokens: &output, TotalTokens: &total}
		msg.Usage = &types.Usage{Input: int(input), Output: int(output), TotalTokens: int(total)}
	}
	if final.ResponseMeta != nil {
		msg.StopReason = stopReasonFromEino(final.ResponseMeta.FinishReason)
	}

	return msg, usage, nil
}

// stopReasonFromEino maps Eino's provider-agnostic finish reason string
// onto the branching log's closed StopReason enum, defaulting unrecognized
// values to "stop" rather than leaving them blank.
func stopReasonFromEino(reason string) types.StopReason {
	switch reason {
	case "tool_calls", "tool_use":
		return types.StopReasonToolUse
	case "length", "max_tokens":
		return types.StopReasonLength
	case "stop", "end_turn", "":
		return types.StopReasonStop
	default:
		return types.StopReasonStop
	}
}
