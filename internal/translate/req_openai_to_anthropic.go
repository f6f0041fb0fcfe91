package translate

import (
	"encoding/json"
	"strings"

	"github.com/bytedance/sonic"
)

const defaultMaxTokens = 4096

// wrapperMarkers flag system/developer prompts injected by OpenAI-compatible
// client wrappers. Messages containing one are dropped outright; remaining
// system/developer messages are coerced to user turns because the upstream
// conversation owns its own system prompt.
var wrapperMarkers = []string{
	"current model:",
	"gpt",
	"you are a helpful assistant",
}

// MapModel resolves an OpenAI model name against the configured mapping.
// Unmapped names fall back to defaultModel when one is set, otherwise they
// pass through unchanged.
func MapModel(name string, models map[string]string, defaultModel string) string {
	if mapped, ok := models[name]; ok {
		return mapped
	}
	if defaultModel != "" {
		return defaultModel
	}
	return name
}

// OpenAIRequestToAnthropic translates an OpenAI /v1/chat/completions request
// into an Anthropic /v1/messages request. The model is copied as-is; callers
// apply MapModel first.
func OpenAIRequestToAnthropic(req *OpenAIRequest) (*AnthropicRequest, error) {
	out := &AnthropicRequest{
		Model:  req.Model,
		Stream: req.Stream,
	}

	for _, msg := range req.Messages {
		role := msg.Role
		if role == "system" || role == "developer" {
			if isWrapperPrompt(messageText(msg)) {
				continue
			}
			role = "user"
		}
		content := messageText(msg)
		raw, err := sonic.Marshal(content)
		if err != nil {
			return nil, err
		}
		out.Messages = append(out.Messages, AnthropicMessage{
			Role:    role,
			Content: json.RawMessage(raw),
		})
	}

	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	} else {
		out.MaxTokens = defaultMaxTokens // Anthropic requires max_tokens
	}
	out.Temperature = req.Temperature
	out.TopP = req.TopP

	if req.Stop != nil {
		switch v := req.Stop.(type) {
		case string:
			out.StopSequences = []string{v}
		case []any:
			for _, s := range v {
				if str, ok := s.(string); ok {
					out.StopSequences = append(out.StopSequences, str)
				}
			}
		}
	}

	return out, nil
}

func isWrapperPrompt(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range wrapperMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// messageText flattens an OpenAI message's content to plain text. Content is
// either a JSON string or an array of parts; non-text parts are skipped.
func messageText(msg OpenAIMessage) string {
	var s string
	if err := sonic.Unmarshal(msg.Content, &s); err == nil {
		return s
	}

	var parts []OpenAIContentPart
	if err := sonic.Unmarshal(msg.Content, &parts); err != nil {
		return ""
	}
	var b strings.Builder
	for _, p := range parts {
		if p.Type == "text" {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}
