package auth

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sertdev/ccgate/internal/config"
)

func testStore(t *testing.T) *config.Store {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"server.json":    `{"server":{"port":8080,"host":"0.0.0.0"}}`,
		"upstreams.json": `{"upstreams":[{"id":"up","name":"up","url":"https://api.example.com","enabled":true}],"loadBalancer":{"strategy":"round_robin"}}`,
		"tenants.json": `{"tenants":[
			{"id":"t1","name":"haiku-only","key":"ccg_live","enabled":true,"allowedModels":["*haiku*"]},
			{"id":"t2","name":"disabled","key":"ccg_off","enabled":false,"allowedModels":["*"]},
			{"id":"t3","name":"open","key":"ccg_open","enabled":true,"allowedModels":[]}
		]}`,
		"pricing.json": `{"modelPricing":{"*":{"input":0.001,"output":0.002,"cacheCreation":0,"cacheRead":0}}}`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	st, err := config.NewStore(dir, nil)
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	return st
}

func TestAuthenticateMissingCredential(t *testing.T) {
	a := New(testStore(t))
	r := httptest.NewRequest("POST", "/anthropic/v1/messages", nil)

	_, authErr := a.Authenticate(r, nil)
	if authErr == nil {
		t.Fatalf("expected error")
	}
	if authErr.Kind != KindMissingAuth || authErr.Status != 401 {
		t.Fatalf("expected 401 missing_auth, got %d %s", authErr.Status, authErr.Kind)
	}
}

func TestAuthenticateInvalidKey(t *testing.T) {
	a := New(testStore(t))
	r := httptest.NewRequest("POST", "/anthropic/v1/messages", nil)
	r.Header.Set("Authorization", "Bearer nope")

	_, authErr := a.Authenticate(r, nil)
	if authErr == nil || authErr.Kind != KindInvalidKey || authErr.Status != 401 {
		t.Fatalf("expected 401 invalid_key, got %+v", authErr)
	}
}

func TestAuthenticateDisabledTenant(t *testing.T) {
	a := New(testStore(t))
	r := httptest.NewRequest("POST", "/anthropic/v1/messages", nil)
	r.Header.Set("X-Api-Key", "ccg_off")

	_, authErr := a.Authenticate(r, nil)
	if authErr == nil || authErr.Kind != KindTenantDisabled || authErr.Status != 403 {
		t.Fatalf("expected 403 tenant_disabled, got %+v", authErr)
	}
}

func TestAuthenticateModelNotAllowed(t *testing.T) {
	a := New(testStore(t))
	r := httptest.NewRequest("POST", "/anthropic/v1/messages", nil)
	r.Header.Set("Authorization", "Bearer ccg_live")

	body := []byte(`{"model":"claude-sonnet-4-20250514","messages":[]}`)
	_, authErr := a.Authenticate(r, body)
	if authErr == nil || authErr.Kind != KindModelNotAllowed || authErr.Status != 403 {
		t.Fatalf("expected 403 model_not_allowed, got %+v", authErr)
	}
}

func TestAuthenticateAllowedModel(t *testing.T) {
	a := New(testStore(t))
	r := httptest.NewRequest("POST", "/anthropic/v1/messages", nil)
	r.Header.Set("Authorization", "Bearer ccg_live")

	body := []byte(`{"model":"claude-3-5-haiku-20241022","messages":[]}`)
	tenant, authErr := a.Authenticate(r, body)
	if authErr != nil {
		t.Fatalf("expected success, got %+v", authErr)
	}
	if tenant.ID != "t1" {
		t.Fatalf("expected tenant t1, got %q", tenant.ID)
	}
}

func TestAuthenticateSkipsModelCheckWithoutModel(t *testing.T) {
	a := New(testStore(t))
	r := httptest.NewRequest("POST", "/anthropic/v1/messages", nil)
	r.Header.Set("Authorization", "Bearer ccg_live")

	if _, authErr := a.Authenticate(r, []byte(`{"messages":[]}`)); authErr != nil {
		t.Fatalf("expected model check to be skipped without model, got %+v", authErr)
	}
	if _, authErr := a.Authenticate(r, []byte("not json")); authErr != nil {
		t.Fatalf("expected model check to be skipped for non-JSON body, got %+v", authErr)
	}
}

func TestAuthenticateEmptyAllowListPermitsAll(t *testing.T) {
	a := New(testStore(t))
	r := httptest.NewRequest("POST", "/anthropic/v1/messages", nil)
	r.Header.Set("Authorization", "Bearer ccg_open")

	body := []byte(`{"model":"claude-opus-4-20250514"}`)
	if _, authErr := a.Authenticate(r, body); authErr != nil {
		t.Fatalf("expected empty allow-list to permit every model, got %+v", authErr)
	}
}

func TestExtractCredentialOrder(t *testing.T) {
	r := httptest.NewRequest("POST", "/v1/messages?api_key=query-key", nil)
	r.Header.Set("Authorization", "Bearer bearer-key")
	r.Header.Set("X-Api-Key", "header-key")
	if got := ExtractCredential(r); got != "bearer-key" {
		t.Fatalf("expected Bearer to win, got %q", got)
	}

	r.Header.Set("Authorization", "API-Key scheme-key")
	if got := ExtractCredential(r); got != "scheme-key" {
		t.Fatalf("expected API-Key scheme, got %q", got)
	}

	r.Header.Del("Authorization")
	if got := ExtractCredential(r); got != "header-key" {
		t.Fatalf("expected X-Api-Key header, got %q", got)
	}

	r.Header.Del("X-Api-Key")
	if got := ExtractCredential(r); got != "query-key" {
		t.Fatalf("expected api_key query parameter, got %q", got)
	}
}
