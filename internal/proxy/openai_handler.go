package proxy

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	json "github.com/bytedance/sonic"

	"github.com/sertdev/ccgate/internal/translate"
)

// frontUserAgent replaces whatever the OpenAI-side client sent; browser
// wrappers leak fingerprint headers the upstream has no business seeing.
const frontUserAgent = "ccgate/1.0"

// HandleOpenAI accepts an OpenAI /v1/chat/completions request, transcodes it
// to the Messages API, and runs it through the Anthropic pipeline with a
// translating response sink. Auth, limits, balancing and metering all happen
// in HandleAnthropic.
func (h *Handler) HandleOpenAI(w http.ResponseWriter, r *http.Request) {
	oc := h.cfg.Snapshot().Server.OpenAI
	if !oc.Enabled {
		writeOpenAIError(w, http.StatusServiceUnavailable, "service_unavailable", "OpenAI compatibility endpoint is disabled")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeOpenAIError(w, http.StatusBadRequest, "invalid_request_error", "failed to read request body")
		return
	}
	defer r.Body.Close()

	var oaiReq translate.OpenAIRequest
	if err := json.Unmarshal(body, &oaiReq); err != nil {
		writeOpenAIError(w, http.StatusBadRequest, "invalid_request_error", "invalid JSON in request body")
		return
	}
	if len(oaiReq.Messages) == 0 {
		writeOpenAIError(w, http.StatusBadRequest, "invalid_request_error", "messages is required")
		return
	}

	oaiReq.Model = translate.MapModel(oaiReq.Model, oc.Models, oc.DefaultModel)
	areq, err := translate.OpenAIRequestToAnthropic(&oaiReq)
	if err != nil {
		writeOpenAIError(w, http.StatusBadRequest, "invalid_request_error", "could not translate request")
		return
	}
	abody, err := json.Marshal(areq)
	if err != nil {
		writeOpenAIError(w, http.StatusInternalServerError, "api_error", "could not encode upstream request")
		return
	}

	req := r.Clone(r.Context())
	req.URL.Path = "/v1/messages"
	req.URL.RawQuery = ""
	req.Body = io.NopCloser(bytes.NewReader(abody))
	req.ContentLength = int64(len(abody))
	scrubHeaders(req.Header)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", frontUserAgent)

	if oaiReq.Stream {
		sink := newStreamSink(w, oaiReq.Model)
		h.HandleAnthropic(sink, req)
		sink.finish()
		return
	}

	sink := newBufferSink()
	h.HandleAnthropic(sink, req)
	sink.respond(w)
}

// scrubHeaders removes browser-origin headers before the request reaches the
// upstream.
func scrubHeaders(h http.Header) {
	h.Del("Referer")
	h.Del("Origin")
	for k := range h {
		if strings.HasPrefix(k, "Sec-Fetch-") || strings.HasPrefix(k, "Sec-Ch-Ua") {
			h.Del(k)
		}
	}
}

func writeOpenAIError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, &translate.OpenAIError{
		Error: translate.OpenAIErrorDetail{Type: errType, Message: message},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body, _ := json.Marshal(v)
	w.Write(body)
}
