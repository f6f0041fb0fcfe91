// Package auth resolves inbound credentials to tenants and gates requests on
// tenant state and model allow-lists.
package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sertdev/ccgate/internal/config"
	"github.com/sertdev/ccgate/internal/wildcard"
)

// Error kinds. These are stable identifiers that appear in response bodies
// and logs.
const (
	KindMissingAuth     = "missing_auth"
	KindInvalidKey      = "invalid_key"
	KindTenantDisabled  = "tenant_disabled"
	KindModelNotAllowed = "model_not_allowed"
)

// Error is an authentication or authorization failure with its HTTP status.
type Error struct {
	Status  int
	Kind    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Authenticator resolves requests to tenants using the current config
// snapshot.
type Authenticator struct {
	cfg *config.Store
}

// New creates an Authenticator backed by cfg.
func New(cfg *config.Store) *Authenticator {
	return &Authenticator{cfg: cfg}
}

// Authenticate extracts the credential from r, resolves the tenant, and
// checks that the tenant is enabled and allowed to use the model named in
// body (when one is present). body is the already-buffered request body; a
// non-JSON body or one without a model field skips the model check — the
// upstream may still reject it.
func (a *Authenticator) Authenticate(r *http.Request, body []byte) (*config.Tenant, *Error) {
	key := ExtractCredential(r)
	if key == "" {
		return nil, &Error{Status: http.StatusUnauthorized, Kind: KindMissingAuth, Message: "missing credentials"}
	}

	tenant := a.cfg.Snapshot().TenantByKey(key)
	if tenant == nil {
		return nil, &Error{Status: http.StatusUnauthorized, Kind: KindInvalidKey, Message: "invalid API key"}
	}
	if !tenant.Enabled {
		return nil, &Error{Status: http.StatusForbidden, Kind: KindTenantDisabled, Message: "tenant disabled"}
	}

	if model := ExtractModel(body); model != "" {
		if !modelAllowed(tenant.AllowedModels, model) {
			return tenant, &Error{
				Status:  http.StatusForbidden,
				Kind:    KindModelNotAllowed,
				Message: fmt.Sprintf("model %s not permitted", model),
			}
		}
	}

	return tenant, nil
}

// ExtractCredential pulls the client key from, in order: Authorization
// "Bearer", Authorization "API-Key", the X-Api-Key header, and the api_key
// query parameter.
func ExtractCredential(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		}
		if strings.HasPrefix(auth, "API-Key ") {
			return strings.TrimSpace(strings.TrimPrefix(auth, "API-Key "))
		}
	}
	if key := r.Header.Get("X-Api-Key"); key != "" {
		return key
	}
	return r.URL.Query().Get("api_key")
}

// ExtractModel reads the "model" field from a JSON request body. Returns ""
// when the body is not JSON or carries no model.
func ExtractModel(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	return gjson.GetBytes(body, "model").String()
}

// modelAllowed matches model against the tenant's glob patterns. An empty
// allow-list permits every model.
func modelAllowed(patterns []string, model string) bool {
	if len(patterns) == 0 {
		return true
	}
	_, ok := wildcard.FindFirst(patterns, model)
	return ok
}
