package proxy

import (
	"bytes"
	"net/http"

	json "github.com/bytedance/sonic"

	"github.com/sertdev/ccgate/internal/translate"
)

// streamSink is the http.ResponseWriter handed to HandleAnthropic for
// streaming OpenAI requests. It takes over status and headers from the
// Anthropic pipeline: success streams are rewritten line-by-line into
// chat.completion.chunk frames, error responses are buffered whole and
// re-shaped into the OpenAI error envelope. Headers reach the real writer
// exactly once either way.
type streamSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
	header  http.Header
	tr      *translate.StreamTranslator

	status  int
	started bool // SSE headers sent to the real writer
	failed  bool // buffering an error body instead of translating
	errBuf  bytes.Buffer
	pending []byte // trailing partial SSE line
}

func newStreamSink(w http.ResponseWriter, model string) *streamSink {
	s := &streamSink{w: w, header: make(http.Header)}
	s.flusher, _ = w.(http.Flusher)
	s.tr = translate.NewStreamTranslator(w, func() {
		if s.flusher != nil {
			s.flusher.Flush()
		}
	}, model)
	return s
}

// Header returns a scratch header; upstream headers never reach the client.
func (s *streamSink) Header() http.Header { return s.header }

func (s *streamSink) WriteHeader(code int) {
	if s.started || s.failed {
		return
	}
	s.status = code
	if code >= 400 {
		s.failed = true
		return
	}
	s.started = true
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	s.w.WriteHeader(http.StatusOK)
}

func (s *streamSink) Write(b []byte) (int, error) {
	if !s.started && !s.failed {
		s.WriteHeader(http.StatusOK)
	}
	if s.failed {
		return s.errBuf.Write(b)
	}

	s.pending = append(s.pending, b...)
	for {
		i := bytes.IndexByte(s.pending, '\n')
		if i < 0 {
			break
		}
		line := s.pending[:i]
		s.pending = s.pending[i+1:]
		if err := s.tr.Line(line); err != nil {
			return len(b), err
		}
	}
	return len(b), nil
}

// Flush is a no-op; the translator flushes after every emitted frame.
func (s *streamSink) Flush() {}

// finish completes the client response after HandleAnthropic returns.
func (s *streamSink) finish() {
	if s.failed {
		status := s.status
		writeJSON(s.w, status, translate.ErrorToOpenAI(status, s.errBuf.Bytes()))
		return
	}
	if !s.started {
		s.WriteHeader(http.StatusOK)
	}
	if len(s.pending) > 0 {
		s.tr.Line(s.pending)
		s.pending = nil
	}
	s.tr.Finish()
}

// bufferSink collects a non-streaming Anthropic response for one-shot
// translation.
type bufferSink struct {
	header http.Header
	status int
	buf    bytes.Buffer
}

func newBufferSink() *bufferSink {
	return &bufferSink{header: make(http.Header)}
}

func (s *bufferSink) Header() http.Header { return s.header }

func (s *bufferSink) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
}

func (s *bufferSink) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.buf.Write(b)
}

// respond translates the buffered response onto the real writer.
func (s *bufferSink) respond(w http.ResponseWriter) {
	status := s.status
	if status == 0 {
		status = http.StatusOK
	}
	if status >= 400 {
		writeJSON(w, status, translate.ErrorToOpenAI(status, s.buf.Bytes()))
		return
	}

	var aresp translate.AnthropicResponse
	if err := json.Unmarshal(s.buf.Bytes(), &aresp); err != nil {
		writeOpenAIError(w, http.StatusBadGateway, "api_error", "unreadable upstream response")
		return
	}
	writeJSON(w, http.StatusOK, translate.AnthropicResponseToOpenAI(&aresp))
}
