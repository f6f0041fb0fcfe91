// Package server assembles the HTTP router: proxy routes, the OpenAI
// front-end, health, metrics, and the optional admin mount.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/sertdev/ccgate/internal/config"
	"github.com/sertdev/ccgate/internal/metrics"
)

// ProxyHandler defines the interface for the gateway proxy handler.
type ProxyHandler interface {
	HandleAnthropic(w http.ResponseWriter, r *http.Request)
	HandleOpenAI(w http.ResponseWriter, r *http.Request)
}

// New creates and configures the chi router with all routes mounted. The
// catch-all forwards everything that is not a local route to the Anthropic
// proxy, so clients can use either /anthropic-prefixed or bare API paths.
func New(cfg *config.Store, proxy ProxyHandler, m *metrics.Metrics, adminRouter chi.Router) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(metrics.Middleware(m))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "x-api-key", "anthropic-version"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", HealthHandler())
	r.Post("/openai/v1/chat/completions", proxy.HandleOpenAI)

	snap := cfg.Snapshot()
	if snap.Server.Metrics.Enabled {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}
	if snap.Server.Admin.Enabled && adminRouter != nil {
		path := snap.Server.Admin.Path
		if path == "" {
			path = "/admin"
		}
		r.Mount(path, adminRouter)
	}

	// The cors middleware only short-circuits real preflights (OPTIONS with
	// Access-Control-Request-Method); a bare OPTIONS would otherwise fall
	// through to the proxy and fail auth.
	r.MethodFunc(http.MethodOptions, "/*", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Everything else is upstream traffic: /anthropic/v1/messages,
	// /v1/messages, and whatever future API paths clients send.
	r.HandleFunc("/*", proxy.HandleAnthropic)

	return r
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}
