// Package config loads the four gateway configuration documents
// (server.json, upstreams.json, tenants.json, pricing.json) into an immutable
// snapshot. Reload builds a fresh snapshot and swaps it atomically so readers
// always see a consistent view.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/tidwall/gjson"
)

// ServerConfig holds listener and proxy settings from server.json.
type ServerConfig struct {
	Server struct {
		Port int    `json:"port"`
		Host string `json:"host"`
	} `json:"server"`
	Proxy struct {
		// Timeout bounds a full upstream exchange, in milliseconds.
		Timeout int `json:"timeout"`
	} `json:"proxy"`
	Admin struct {
		Enabled  bool   `json:"enabled"`
		Path     string `json:"path"`
		Username string `json:"username"`
		Password string `json:"password"`
	} `json:"admin"`
	Logging struct {
		Directory     string `json:"directory"`
		MaxFileSize   int64  `json:"maxFileSize"`
		MaxFiles      int    `json:"maxFiles"`
		EnableConsole bool   `json:"enableConsole"`
	} `json:"logging"`
	Metrics struct {
		Enabled bool `json:"enabled"`
	} `json:"metrics"`
	OpenAI OpenAIConfig `json:"openai"`
}

// OpenAIConfig controls the OpenAI Chat Completions front-end.
type OpenAIConfig struct {
	Enabled      bool              `json:"enabled"`
	Models       map[string]string `json:"models"`
	DefaultModel string            `json:"defaultModel"`
}

// HealthCheck holds per-upstream probe settings.
type HealthCheck struct {
	Path string `json:"path"`
	// Timeout in milliseconds; 0 means the 5s default.
	Timeout int `json:"timeout"`
}

// Upstream is one backend Anthropic-API endpoint.
type Upstream struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	URL         string       `json:"url"`
	Key         string       `json:"key"`
	Weight      int          `json:"weight"`
	Enabled     bool         `json:"enabled"`
	HealthCheck *HealthCheck `json:"healthCheck,omitempty"`
}

// upstreamDoc shadows Weight with a pointer during decoding so an absent
// weight (defaulted to 100) stays distinguishable from an explicit zero.
type upstreamDoc struct {
	Upstream
	Weight *int `json:"weight"`
}

// LoadBalancerConfig selects the balancing strategy and toggles.
type LoadBalancerConfig struct {
	Strategy           string `json:"strategy"`
	HealthCheckEnabled bool   `json:"healthCheckEnabled"`
	FailoverEnabled    bool   `json:"failoverEnabled"`
}

// DailyLimit caps a tenant's spend per UTC day. A nil MaxUSD means unlimited.
type DailyLimit struct {
	MaxUSD *float64 `json:"maxUSD"`
}

// Limits groups tenant spend limits.
type Limits struct {
	Daily *DailyLimit `json:"daily"`
}

// Tenant is an authenticated consumer of the gateway.
type Tenant struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Key           string   `json:"key"`
	Enabled       bool     `json:"enabled"`
	AllowedModels []string `json:"allowedModels"`
	Limits        *Limits  `json:"limits,omitempty"`
}

// MaxUSD returns the tenant's daily cap, or nil when unlimited.
func (t *Tenant) MaxUSD() *float64 {
	if t.Limits == nil || t.Limits.Daily == nil {
		return nil
	}
	return t.Limits.Daily.MaxUSD
}

// ModelPricing is USD per 1,000 tokens for each token category.
type ModelPricing struct {
	Input         float64 `json:"input"`
	Output        float64 `json:"output"`
	CacheCreation float64 `json:"cacheCreation"`
	CacheRead     float64 `json:"cacheRead"`
}

// Pricing preserves the document order of modelPricing keys — wildcard lookup
// is exact-first, then first match in insertion order.
type Pricing struct {
	Patterns []string
	Table    map[string]ModelPricing
}

// Snapshot is one immutable view of all configuration.
type Snapshot struct {
	Server       ServerConfig
	Upstreams    []Upstream
	LoadBalancer LoadBalancerConfig
	Tenants      []Tenant
	Pricing      Pricing

	tenantByKey map[string]*Tenant
}

// TenantByKey resolves a tenant by its secret key. Returns nil when unknown.
func (s *Snapshot) TenantByKey(key string) *Tenant {
	return s.tenantByKey[key]
}

// ProxyTimeout returns the upstream exchange timeout.
func (s *Snapshot) ProxyTimeout() time.Duration {
	if s.Server.Proxy.Timeout <= 0 {
		return 120 * time.Second
	}
	return time.Duration(s.Server.Proxy.Timeout) * time.Millisecond
}

// ListenAddr returns the host:port the server binds to, honoring the PORT
// environment variable override.
func (s *Snapshot) ListenAddr() string {
	port := s.Server.Server.Port
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			port = n
		}
	}
	return fmt.Sprintf("%s:%d", s.Server.Server.Host, port)
}

// Store hands out the current snapshot and swaps in new ones on reload.
type Store struct {
	dir     string
	decrypt func(string) (string, error)
	snap    atomic.Pointer[Snapshot]
}

// Opts configures optional Store behavior.
type Opts struct {
	// Decrypt, when set, is applied to upstream keys that look like
	// ciphertexts (see internal/crypto).
	Decrypt func(string) (string, error)
}

// NewStore loads, validates and installs the initial snapshot from dir.
func NewStore(dir string, opts *Opts) (*Store, error) {
	st := &Store{dir: dir}
	if opts != nil {
		st.decrypt = opts.Decrypt
	}
	snap, err := st.load()
	if err != nil {
		return nil, err
	}
	if err := Validate(snap); err != nil {
		return nil, err
	}
	st.snap.Store(snap)
	return st, nil
}

// Snapshot returns the current configuration view.
func (st *Store) Snapshot() *Snapshot {
	return st.snap.Load()
}

// Reload re-reads all documents and swaps the snapshot. On any error the
// previous snapshot stays installed.
func (st *Store) Reload() error {
	snap, err := st.load()
	if err != nil {
		return err
	}
	if err := Validate(snap); err != nil {
		return err
	}
	st.snap.Store(snap)
	return nil
}

func (st *Store) load() (*Snapshot, error) {
	snap := &Snapshot{}

	if err := readJSON(filepath.Join(st.dir, "server.json"), &snap.Server); err != nil {
		return nil, err
	}

	var ups struct {
		Upstreams    []upstreamDoc      `json:"upstreams"`
		LoadBalancer LoadBalancerConfig `json:"loadBalancer"`
	}
	if err := readJSON(filepath.Join(st.dir, "upstreams.json"), &ups); err != nil {
		return nil, err
	}
	snap.Upstreams = make([]Upstream, len(ups.Upstreams))
	for i, doc := range ups.Upstreams {
		up := doc.Upstream
		up.Weight = 100
		if doc.Weight != nil {
			up.Weight = *doc.Weight
		}
		snap.Upstreams[i] = up
	}
	snap.LoadBalancer = ups.LoadBalancer

	var tns struct {
		Tenants []Tenant `json:"tenants"`
	}
	if err := readJSON(filepath.Join(st.dir, "tenants.json"), &tns); err != nil {
		return nil, err
	}
	snap.Tenants = tns.Tenants

	pricing, err := st.loadPricing(filepath.Join(st.dir, "pricing.json"))
	if err != nil {
		return nil, err
	}
	snap.Pricing = pricing

	for i := range snap.Upstreams {
		up := &snap.Upstreams[i]
		if st.decrypt != nil && up.Key != "" {
			plain, err := st.decrypt(up.Key)
			if err != nil {
				return nil, fmt.Errorf("decrypt key for upstream %q: %w", up.ID, err)
			}
			up.Key = plain
		}
	}

	snap.tenantByKey = make(map[string]*Tenant, len(snap.Tenants))
	for i := range snap.Tenants {
		snap.tenantByKey[snap.Tenants[i].Key] = &snap.Tenants[i]
	}

	return snap, nil
}

// loadPricing parses pricing.json while preserving key order; a struct or map
// unmarshal would lose it.
func (st *Store) loadPricing(path string) (Pricing, error) {
	p := Pricing{Table: make(map[string]ModelPricing)}

	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read %s: %w", path, err)
	}
	if !gjson.ValidBytes(data) {
		return p, fmt.Errorf("parse %s: invalid JSON", path)
	}

	var walkErr error
	gjson.GetBytes(data, "modelPricing").ForEach(func(key, value gjson.Result) bool {
		var mp ModelPricing
		if err := json.UnmarshalString(value.Raw, &mp); err != nil {
			walkErr = fmt.Errorf("parse %s: entry %q: %w", path, key.String(), err)
			return false
		}
		p.Patterns = append(p.Patterns, key.String())
		p.Table[key.String()] = mp
		return true
	})
	return p, walkErr
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
