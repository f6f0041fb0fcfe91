package translate

import (
	"encoding/json"
	"testing"
)

func textMsg(role, text string) OpenAIMessage {
	raw, _ := json.Marshal(text)
	return OpenAIMessage{Role: role, Content: json.RawMessage(raw)}
}

func TestMapModel(t *testing.T) {
	models := map[string]string{"gpt-5-mini": "claude-3-7-sonnet-20250219"}

	if got := MapModel("gpt-5-mini", models, "claude-3-5-haiku-20241022"); got != "claude-3-7-sonnet-20250219" {
		t.Fatalf("mapped model: got %q", got)
	}
	if got := MapModel("gpt-4o", models, "claude-3-5-haiku-20241022"); got != "claude-3-5-haiku-20241022" {
		t.Fatalf("default fallback: got %q", got)
	}
	if got := MapModel("claude-opus-4-20250514", nil, ""); got != "claude-opus-4-20250514" {
		t.Fatalf("passthrough: got %q", got)
	}
}

func TestRequestWrapperPromptsDropped(t *testing.T) {
	req := &OpenAIRequest{
		Model: "claude-3-5-haiku-20241022",
		Messages: []OpenAIMessage{
			textMsg("system", "You are a helpful assistant."),
			textMsg("developer", "Current model: GPT-5"),
			textMsg("system", "Answer in French."),
			textMsg("user", "bonjour"),
		},
	}

	out, err := OpenAIRequestToAnthropic(req)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if len(out.Messages) != 2 {
		t.Fatalf("expected wrapper prompts dropped, got %d messages", len(out.Messages))
	}
	// The surviving system message is coerced to a user turn.
	if out.Messages[0].Role != "user" {
		t.Fatalf("expected coerced role user, got %q", out.Messages[0].Role)
	}
	var content string
	if err := json.Unmarshal(out.Messages[0].Content, &content); err != nil || content != "Answer in French." {
		t.Fatalf("unexpected coerced content %q (%v)", content, err)
	}
}

func TestRequestScalars(t *testing.T) {
	temp := 0.7
	req := &OpenAIRequest{
		Model:       "claude-3-5-haiku-20241022",
		Messages:    []OpenAIMessage{textMsg("user", "hi")},
		Temperature: &temp,
		Stop:        "END",
		Stream:      true,
	}

	out, err := OpenAIRequestToAnthropic(req)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if out.MaxTokens != 4096 {
		t.Fatalf("expected default max_tokens 4096, got %d", out.MaxTokens)
	}
	if out.Temperature == nil || *out.Temperature != 0.7 {
		t.Fatalf("temperature not carried: %v", out.Temperature)
	}
	if len(out.StopSequences) != 1 || out.StopSequences[0] != "END" {
		t.Fatalf("expected scalar stop wrapped in a sequence, got %v", out.StopSequences)
	}
	if !out.Stream {
		t.Fatalf("stream flag not carried")
	}
}

func TestRequestStopList(t *testing.T) {
	maxTokens := 256
	req := &OpenAIRequest{
		Model:     "claude-3-5-haiku-20241022",
		Messages:  []OpenAIMessage{textMsg("user", "hi")},
		MaxTokens: &maxTokens,
		Stop:      []any{"a", "b"},
	}

	out, err := OpenAIRequestToAnthropic(req)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if out.MaxTokens != 256 {
		t.Fatalf("expected explicit max_tokens, got %d", out.MaxTokens)
	}
	if len(out.StopSequences) != 2 || out.StopSequences[0] != "a" || out.StopSequences[1] != "b" {
		t.Fatalf("unexpected stop_sequences %v", out.StopSequences)
	}
}

func TestRequestContentPartsFlattened(t *testing.T) {
	parts := json.RawMessage(`[{"type":"text","text":"see "},{"type":"image_url","image_url":{"url":"x"}},{"type":"text","text":"this"}]`)
	req := &OpenAIRequest{
		Model:    "claude-3-5-haiku-20241022",
		Messages: []OpenAIMessage{{Role: "user", Content: parts}},
	}

	out, err := OpenAIRequestToAnthropic(req)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	var content string
	if err := json.Unmarshal(out.Messages[0].Content, &content); err != nil {
		t.Fatalf("content not a string: %v", err)
	}
	if content != "see this" {
		t.Fatalf("expected text parts concatenated, got %q", content)
	}
}
