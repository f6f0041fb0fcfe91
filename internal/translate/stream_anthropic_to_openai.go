package translate

import (
	"bytes"
	"io"
	"time"

	"github.com/bytedance/sonic"
	"github.com/tidwall/gjson"
)

// StreamTranslator rewrites an Anthropic SSE stream into OpenAI
// chat.completion.chunk frames as lines arrive. Feed it one SSE line at a
// time with Line and call Finish when the upstream stream ends; it never
// buffers more than the current event.
type StreamTranslator struct {
	w     io.Writer
	flush func()

	id      string
	created int64
	model   string

	event string
	done  bool
}

// NewStreamTranslator writes translated frames to w, calling flush (when
// non-nil) after each one. model is echoed in every chunk.
func NewStreamTranslator(w io.Writer, flush func(), model string) *StreamTranslator {
	return &StreamTranslator{
		w:       w,
		flush:   flush,
		id:      newCompletionID(),
		created: time.Now().Unix(),
		model:   model,
	}
}

// Line consumes one line of the upstream SSE stream (without its trailing
// newline) and emits zero or one OpenAI chunks.
func (t *StreamTranslator) Line(line []byte) error {
	line = bytes.TrimSuffix(line, []byte("\r"))

	if rest, ok := bytes.CutPrefix(line, []byte("event:")); ok {
		t.event = string(bytes.TrimSpace(rest))
		return nil
	}
	rest, ok := bytes.CutPrefix(line, []byte("data:"))
	if !ok {
		return nil
	}
	payload := bytes.TrimSpace(rest)

	evType := t.event
	t.event = ""
	if evType == "" {
		evType = gjson.GetBytes(payload, "type").String()
	}

	switch evType {
	case "message_start":
		empty := ""
		return t.writeChunk(OpenAIDelta{Role: "assistant", Content: &empty}, nil)
	case "content_block_delta":
		text := gjson.GetBytes(payload, "delta.text")
		if !text.Exists() {
			return nil
		}
		s := text.String()
		return t.writeChunk(OpenAIDelta{Content: &s}, nil)
	case "message_delta":
		stop := gjson.GetBytes(payload, "delta.stop_reason")
		if !stop.Exists() {
			return nil
		}
		reason := mapStopReason(stop.String())
		return t.writeChunk(OpenAIDelta{}, &reason)
	case "message_stop":
		reason := "stop"
		return t.writeChunk(OpenAIDelta{}, &reason)
	case "error":
		return t.writeError(payload)
	}
	return nil
}

// Finish terminates the OpenAI stream. Safe to call more than once.
func (t *StreamTranslator) Finish() error {
	if t.done {
		return nil
	}
	t.done = true
	if _, err := io.WriteString(t.w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	if t.flush != nil {
		t.flush()
	}
	return nil
}

func (t *StreamTranslator) writeChunk(delta OpenAIDelta, finishReason *string) error {
	chunk := OpenAIStreamChunk{
		ID:      t.id,
		Object:  "chat.completion.chunk",
		Created: t.created,
		Model:   t.model,
		Choices: []OpenAIStreamChoice{{Index: 0, Delta: delta, FinishReason: finishReason}},
	}
	return t.emit(chunk)
}

// writeError re-emits an upstream error event as a single OpenAI-shaped
// error frame; the caller is expected to Finish right after.
func (t *StreamTranslator) writeError(payload []byte) error {
	detail := OpenAIErrorDetail{
		Message: gjson.GetBytes(payload, "error.message").String(),
		Type:    gjson.GetBytes(payload, "error.type").String(),
	}
	if detail.Message == "" {
		detail.Message = "upstream error"
	}
	if detail.Type == "" {
		detail.Type = "api_error"
	}
	return t.emit(OpenAIError{Error: detail})
}

func (t *StreamTranslator) emit(v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(t.w, "data: "); err != nil {
		return err
	}
	if _, err := t.w.Write(data); err != nil {
		return err
	}
	if _, err := io.WriteString(t.w, "\n\n"); err != nil {
		return err
	}
	if t.flush != nil {
		t.flush()
	}
	return nil
}
