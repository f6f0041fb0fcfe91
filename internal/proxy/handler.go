// Package proxy forwards Messages API traffic to upstream providers, meters
// token usage per tenant, and exposes an OpenAI Chat Completions front-end
// that transcodes onto the same pipeline.
package proxy

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	json "github.com/bytedance/sonic"

	"github.com/sertdev/ccgate/internal/auth"
	"github.com/sertdev/ccgate/internal/balancer"
	"github.com/sertdev/ccgate/internal/billing"
	"github.com/sertdev/ccgate/internal/config"
	"github.com/sertdev/ccgate/internal/metrics"
	"github.com/sertdev/ccgate/internal/usage"
)

// maxBodyBytes caps buffered request bodies.
const maxBodyBytes = 10 << 20

// Handler contains the shared dependencies for the Anthropic and OpenAI proxy
// endpoints.
type Handler struct {
	cfg      *config.Store
	auth     *auth.Authenticator
	guard    *billing.LimitGuard
	pricer   *billing.Pricer
	balancer *balancer.Balancer
	usage    *usage.Store
	metrics  *metrics.Metrics
	clients  *ClientCache
}

// NewHandler creates a Handler wired up to the config store, authenticator,
// limit guard, pricer, balancer, usage store and metrics.
func NewHandler(cfg *config.Store, a *auth.Authenticator, guard *billing.LimitGuard, pricer *billing.Pricer, b *balancer.Balancer, u *usage.Store, m *metrics.Metrics) *Handler {
	return &Handler{
		cfg:      cfg,
		auth:     a,
		guard:    guard,
		pricer:   pricer,
		balancer: b,
		usage:    u,
		metrics:  m,
		clients:  NewClientCache(),
	}
}

// errorBody is the gateway's JSON error envelope.
type errorBody struct {
	Error     errorDetail `json:"error"`
	RequestID string      `json:"requestId"`
}

type errorDetail struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// newRequestID returns 8 random bytes as hex.
func newRequestID() string {
	var b [8]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func writeError(w http.ResponseWriter, status int, kind, message, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="CCGate API", charset="UTF-8"`)
	}
	w.WriteHeader(status)

	body, _ := json.Marshal(errorBody{
		Error: errorDetail{
			Type:      kind,
			Message:   message,
			Timestamp: time.Now().UTC().Format(usage.TimestampLayout),
		},
		RequestID: requestID,
	})
	w.Write(body)
}
