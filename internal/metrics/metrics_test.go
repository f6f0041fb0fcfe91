package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMiddlewareRecordsMetrics(t *testing.T) {
	m := New()

	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest("POST", "/anthropic/v1/messages", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	// Check counter was incremented.
	var metric dto.Metric
	counter := m.RequestsTotal.WithLabelValues("POST", "/anthropic/v1/messages", "200")
	counter.(prometheus.Metric).Write(&metric)

	if metric.GetCounter().GetValue() != 1 {
		t.Fatalf("expected counter=1, got %v", metric.GetCounter().GetValue())
	}
}

func TestMiddlewareRecords500(t *testing.T) {
	m := New()

	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	req := httptest.NewRequest("POST", "/openai/v1/chat/completions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var metric dto.Metric
	counter := m.RequestsTotal.WithLabelValues("POST", "/openai/v1/chat/completions", "500")
	counter.(prometheus.Metric).Write(&metric)

	if metric.GetCounter().GetValue() != 1 {
		t.Fatalf("expected counter=1, got %v", metric.GetCounter().GetValue())
	}
}

func TestSetUpstreamHealth(t *testing.T) {
	m := New()
	m.SetUpstreamHealth("primary", true)
	m.SetUpstreamHealth("backup", false)

	var metric dto.Metric
	m.UpstreamHealthy.WithLabelValues("primary").Write(&metric)
	if metric.GetGauge().GetValue() != 1 {
		t.Fatalf("expected healthy gauge 1, got %v", metric.GetGauge().GetValue())
	}
	m.UpstreamHealthy.WithLabelValues("backup").Write(&metric)
	if metric.GetGauge().GetValue() != 0 {
		t.Fatalf("expected unhealthy gauge 0, got %v", metric.GetGauge().GetValue())
	}
}
