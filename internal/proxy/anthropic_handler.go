package proxy

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sertdev/ccgate/internal/auth"
	"github.com/sertdev/ccgate/internal/usage"
)

// HandleAnthropic authenticates, limit-checks, and proxies a request to a
// selected upstream, streaming the response back while tee-ing it for usage
// metering. One usage record is appended per upstream round trip.
func (h *Handler) HandleAnthropic(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := newRequestID()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "failed to read request body", requestID)
		return
	}
	defer r.Body.Close()

	tenant, authErr := h.auth.Authenticate(r, body)
	if authErr != nil {
		slog.Warn("request rejected",
			"requestId", requestID, "kind", authErr.Kind, "path", r.URL.Path)
		writeError(w, authErr.Status, authErr.Kind, authErr.Message, requestID)
		return
	}

	model := auth.ExtractModel(body)
	if model != "" {
		decision, err := h.guard.CheckExceeded(tenant, model, usage.TokenUsage{})
		if err != nil {
			// A broken usage read must not take the proxy down with it.
			slog.Warn("limit check failed, allowing request",
				"requestId", requestID, "tenant", tenant.ID, "error", err)
		} else if decision.Exceeded {
			slog.Info("daily limit reached",
				"requestId", requestID, "tenant", tenant.ID, "model", model)
			h.metrics.LimitRejections.WithLabelValues(tenant.ID).Inc()
			writeError(w, http.StatusTooManyRequests, "limit_exceeded", decision.Message, requestID)
			return
		}
	}

	sel, err := h.balancer.Select()
	if err != nil {
		slog.Error("no upstream available", "requestId", requestID)
		writeError(w, http.StatusServiceUnavailable, "no_upstream", "no upstream available", requestID)
		return
	}
	client, err := h.clients.Get(sel)
	if err != nil {
		slog.Error("upstream client", "requestId", requestID, "upstream", sel.ID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "no_upstream", "upstream misconfigured", requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.Snapshot().ProxyTimeout())
	defer cancel()

	target := client.RewriteURL(r.URL.Path)
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, target, bytes.NewReader(body))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to build upstream request", requestID)
		return
	}
	req.Header = r.Header.Clone()
	req.Header.Del("Content-Length") // the client recomputes it from the body
	req.Host = client.Host()
	if sel.Key != "" {
		req.Header.Set("Authorization", "Bearer "+sel.Key)
		req.Header.Del("X-Api-Key")
	}

	resp, err := client.Do(req)
	if err != nil {
		slog.Error("upstream request failed",
			"requestId", requestID, "upstream", sel.ID, "error", err)
		writeError(w, http.StatusBadGateway, "upstream_error", "failed to reach upstream", requestID)
		h.record(requestID, tenant.ID, model, sel.ID, nil, http.StatusBadGateway, start, r)
		return
	}
	defer resp.Body.Close()

	streaming := strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream")
	if streaming {
		h.metrics.ActiveStreams.Inc()
		defer h.metrics.ActiveStreams.Dec()
	}

	for k, vv := range resp.Header {
		w.Header()[k] = vv
	}
	w.WriteHeader(resp.StatusCode)

	// Stream to the client while tee-ing into a buffer used only for usage
	// extraction; the first bytes flush before end-of-body.
	flusher, _ := w.(http.Flusher)
	var tee bytes.Buffer
	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			tee.Write(buf[:n])
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				// Headers are out; nothing to send the client but a log line.
				slog.Warn("client write failed mid-stream",
					"requestId", requestID, "error", writeErr)
				break
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			if readErr != io.EOF {
				slog.Warn("upstream read failed mid-stream",
					"requestId", requestID, "upstream", sel.ID, "error", readErr)
			}
			break
		}
	}

	h.record(requestID, tenant.ID, model, sel.ID, tee.Bytes(), resp.StatusCode, start, r)
}

// record prices the extracted usage and appends one record, swallowing store
// failures into a metric and a log line.
func (h *Handler) record(requestID, tenantID, model, upstreamID string, respBody []byte, status int, start time.Time, r *http.Request) {
	var tok usage.TokenUsage
	if extracted := usage.ExtractTokenUsage(respBody); extracted != nil {
		tok = *extracted
	}
	cost := h.pricer.Cost(model, tok)

	rec := &usage.Record{
		RequestID:           requestID,
		TenantID:            tenantID,
		Timestamp:           usage.Now(),
		Model:               model,
		InputTokens:         tok.InputTokens,
		OutputTokens:        tok.OutputTokens,
		CacheCreationTokens: tok.CacheCreationTokens,
		CacheReadTokens:     tok.CacheReadTokens,
		TotalTokens:         tok.Total(),
		InputCost:           cost.Input,
		OutputCost:          cost.Output,
		CacheCreationCost:   cost.CacheCreation,
		CacheReadCost:       cost.CacheRead,
		TotalCost:           cost.Total,
		Duration:            time.Since(start).Milliseconds(),
		StatusCode:          status,
		UpstreamID:          upstreamID,
		UserAgent:           r.UserAgent(),
		ClientIP:            clientIP(r),
	}

	if err := h.usage.Record(tenantID, rec); err != nil {
		slog.Error("usage record write failed",
			"requestId", requestID, "tenant", tenantID, "error", err)
		h.metrics.UsageWriteErrors.Inc()
	}
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the socket
// peer address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
