package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sertdev/ccgate/internal/config"
	"github.com/sertdev/ccgate/internal/usage"
)

type usageHandler struct {
	cfg   *config.Store
	usage *usage.Store
}

// tenantSummary is the admin view of a tenant; the secret key stays out.
type tenantSummary struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Enabled       bool     `json:"enabled"`
	AllowedModels []string `json:"allowedModels"`
	MaxUSD        *float64 `json:"maxUSD"`
}

func (h *usageHandler) ListTenants(w http.ResponseWriter, r *http.Request) {
	snap := h.cfg.Snapshot()
	out := make([]tenantSummary, 0, len(snap.Tenants))
	for _, t := range snap.Tenants {
		out = append(out, tenantSummary{
			ID:            t.ID,
			Name:          t.Name,
			Enabled:       t.Enabled,
			AllowedModels: t.AllowedModels,
			MaxUSD:        t.MaxUSD(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// tenant resolves the {id} path parameter, or writes a 404.
func (h *usageHandler) tenant(w http.ResponseWriter, r *http.Request) *config.Tenant {
	id := chi.URLParam(r, "id")
	for i := range h.cfg.Snapshot().Tenants {
		t := &h.cfg.Snapshot().Tenants[i]
		if t.ID == id {
			return t
		}
	}
	writeError(w, http.StatusNotFound, "unknown_tenant", "no tenant with id "+id)
	return nil
}

// queryDay parses a YYYY-MM-DD query parameter, defaulting to fallback.
func queryDay(r *http.Request, key string, fallback time.Time) (time.Time, bool) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return fallback, true
	}
	day, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

func (h *usageHandler) Daily(w http.ResponseWriter, r *http.Request) {
	t := h.tenant(w, r)
	if t == nil {
		return
	}
	day, ok := queryDay(r, "date", time.Now().UTC())
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD")
		return
	}
	agg, err := h.usage.DailyUsage(t.ID, day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "failed to read usage")
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

func (h *usageHandler) Weekly(w http.ResponseWriter, r *http.Request) {
	t := h.tenant(w, r)
	if t == nil {
		return
	}
	start, ok := queryDay(r, "start", time.Now().UTC().AddDate(0, 0, -6))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "start must be YYYY-MM-DD")
		return
	}
	agg, err := h.usage.WeeklyUsage(t.ID, start)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "failed to read usage")
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

func (h *usageHandler) Monthly(w http.ResponseWriter, r *http.Request) {
	t := h.tenant(w, r)
	if t == nil {
		return
	}
	now := time.Now().UTC()
	year := now.Year()
	month := now.Month()
	if s := r.URL.Query().Get("year"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "year must be numeric")
			return
		}
		year = v
	}
	if s := r.URL.Query().Get("month"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 || v > 12 {
			writeError(w, http.StatusBadRequest, "invalid_request", "month must be 1-12")
			return
		}
		month = time.Month(v)
	}
	agg, err := h.usage.MonthlyUsage(t.ID, year, month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "failed to read usage")
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

func (h *usageHandler) Range(w http.ResponseWriter, r *http.Request) {
	t := h.tenant(w, r)
	if t == nil {
		return
	}
	start, okStart := queryDay(r, "start", time.Time{})
	end, okEnd := queryDay(r, "end", time.Time{})
	if !okStart || !okEnd || start.IsZero() || end.IsZero() {
		writeError(w, http.StatusBadRequest, "invalid_request", "start and end are required as YYYY-MM-DD")
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "invalid_request", "end must not precede start")
		return
	}
	agg, err := h.usage.RangeUsage(t.ID, start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "failed to read usage")
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

func (h *usageHandler) Limit(w http.ResponseWriter, r *http.Request) {
	t := h.tenant(w, r)
	if t == nil {
		return
	}
	status, err := h.usage.LimitStatus(t.ID, t.MaxUSD())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "failed to read usage")
		return
	}
	writeJSON(w, http.StatusOK, status)
}
