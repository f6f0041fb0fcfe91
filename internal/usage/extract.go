package usage

import (
	"bufio"
	"bytes"

	"github.com/tidwall/gjson"
)

// ExtractTokenUsage pulls token counts out of a complete upstream response
// body. The body is either a plain Anthropic JSON document with a top-level
// "usage" object, or an SSE stream whose message_start and message_delta
// events carry usage. Returns nil when no usage is present; the caller
// records zeros.
func ExtractTokenUsage(body []byte) *TokenUsage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}

	if trimmed[0] == '{' && gjson.ValidBytes(trimmed) {
		if u := gjson.GetBytes(trimmed, "usage"); u.Exists() && u.IsObject() {
			return usageFromJSON(u)
		}
		return nil
	}

	return extractFromSSE(body)
}

func usageFromJSON(u gjson.Result) *TokenUsage {
	return &TokenUsage{
		InputTokens:         u.Get("input_tokens").Int(),
		OutputTokens:        u.Get("output_tokens").Int(),
		CacheCreationTokens: u.Get("cache_creation_input_tokens").Int(),
		CacheReadTokens:     u.Get("cache_read_input_tokens").Int(),
	}
}

var (
	ssePrefixEvent = []byte("event:")
	ssePrefixData  = []byte("data:")
)

// extractFromSSE walks event/data line pairs. message_start carries the full
// initial usage under message.usage; a later message_delta carries the
// cumulative output-token count at the top level and overrides earlier
// values. The single space after the field colon is optional in SSE, so the
// prefix match is colon-only and the value is trimmed.
func extractFromSSE(body []byte) *TokenUsage {
	var (
		found bool
		usage TokenUsage
		event string
	)

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if rest, ok := bytes.CutPrefix(line, ssePrefixEvent); ok {
			event = string(bytes.TrimSpace(rest))
			continue
		}
		rest, ok := bytes.CutPrefix(line, ssePrefixData)
		if !ok {
			continue
		}
		data := bytes.TrimSpace(rest)
		if !gjson.ValidBytes(data) {
			continue
		}

		// Some upstreams omit event: lines; fall back to the payload type.
		kind := event
		if kind == "" {
			kind = gjson.GetBytes(data, "type").String()
		}

		switch kind {
		case "message_start":
			if u := gjson.GetBytes(data, "message.usage"); u.Exists() {
				usage.InputTokens = u.Get("input_tokens").Int()
				usage.OutputTokens = u.Get("output_tokens").Int()
				usage.CacheCreationTokens = u.Get("cache_creation_input_tokens").Int()
				usage.CacheReadTokens = u.Get("cache_read_input_tokens").Int()
				found = true
			}
		case "message_delta":
			if u := gjson.GetBytes(data, "usage"); u.Exists() && u.IsObject() {
				if v := u.Get("output_tokens"); v.Exists() {
					usage.OutputTokens = v.Int()
				}
				if v := u.Get("input_tokens"); v.Exists() && v.Int() > 0 {
					usage.InputTokens = v.Int()
				}
				found = true
			}
		}
		event = ""
	}

	if !found {
		return nil
	}
	return &usage
}
