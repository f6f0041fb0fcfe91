package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sertdev/ccgate/internal/config"
	"github.com/sertdev/ccgate/internal/usage"
)

// NewRouter builds the admin router. Every route requires the basic-auth
// credentials from server.json's admin block.
func NewRouter(cfg *config.Store, u *usage.Store) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(basicAuth(cfg))

		h := &usageHandler{cfg: cfg, usage: u}
		r.Get("/tenants", h.ListTenants)
		r.Route("/tenants/{id}", func(r chi.Router) {
			r.Get("/usage/daily", h.Daily)
			r.Get("/usage/weekly", h.Weekly)
			r.Get("/usage/monthly", h.Monthly)
			r.Get("/usage/range", h.Range)
			r.Get("/limit", h.Limit)
		})
	})

	return r
}

// basicAuth compares credentials in constant time against the admin block of
// the current snapshot.
func basicAuth(cfg *config.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			admin := cfg.Snapshot().Server.Admin
			user, pass, ok := r.BasicAuth()
			if !ok ||
				subtle.ConstantTimeCompare([]byte(user), []byte(admin.Username)) != 1 ||
				subtle.ConstantTimeCompare([]byte(pass), []byte(admin.Password)) != 1 {
				w.Header().Set("WWW-Authenticate", `Basic realm="CCGate Admin"`)
				writeError(w, http.StatusUnauthorized, "unauthorized", "admin credentials required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
