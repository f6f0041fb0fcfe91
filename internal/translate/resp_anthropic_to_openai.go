package translate

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// mapStopReason converts an Anthropic stop_reason into an OpenAI
// finish_reason. Only a natural end of turn maps to "stop"; everything else
// (max_tokens, stop_sequence) is reported as "length".
func mapStopReason(stopReason string) string {
	if stopReason == "end_turn" {
		return "stop"
	}
	return "length"
}

func newCompletionID() string {
	return "chatcmpl-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// AnthropicResponseToOpenAI translates a non-streaming Anthropic response
// into a chat.completion envelope. Text content blocks are concatenated;
// other block types are dropped.
func AnthropicResponseToOpenAI(resp *AnthropicResponse) *OpenAIResponse {
	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &OpenAIResponse{
		ID:      newCompletionID(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   resp.Model,
		Choices: []OpenAIChoice{{
			Index: 0,
			Message: OpenAIResponseMessage{
				Role:    "assistant",
				Content: content.String(),
			},
			FinishReason: mapStopReason(resp.StopReason),
		}},
		Usage: OpenAIUsage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
}
