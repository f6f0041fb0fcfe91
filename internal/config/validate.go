package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks a snapshot for invalid or missing values. Returns a
// multi-error with all problems found. A validation failure at startup is
// fatal; on reload the previous snapshot is kept.
func Validate(s *Snapshot) error {
	var errs []string

	if s.Server.Server.Port <= 0 || s.Server.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Server.Server.Port))
	}
	if s.Server.Proxy.Timeout < 0 {
		errs = append(errs, "proxy.timeout must be >= 0")
	}
	if s.Server.Admin.Enabled && (s.Server.Admin.Username == "" || s.Server.Admin.Password == "") {
		errs = append(errs, "admin.username and admin.password are required when admin.enabled")
	}

	if len(s.Upstreams) == 0 {
		errs = append(errs, "at least one upstream is required")
	}
	seenUpstream := make(map[string]bool, len(s.Upstreams))
	for _, up := range s.Upstreams {
		if up.ID == "" {
			errs = append(errs, "upstream id is required")
			continue
		}
		if seenUpstream[up.ID] {
			errs = append(errs, fmt.Sprintf("duplicate upstream id %q", up.ID))
		}
		seenUpstream[up.ID] = true
		if u, err := url.Parse(up.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("upstream %q: invalid url %q", up.ID, up.URL))
		}
		if up.Weight < 0 {
			errs = append(errs, fmt.Sprintf("upstream %q: weight must be >= 0", up.ID))
		}
		if up.HealthCheck != nil && up.HealthCheck.Timeout < 0 {
			errs = append(errs, fmt.Sprintf("upstream %q: healthCheck.timeout must be >= 0", up.ID))
		}
	}

	seenTenantID := make(map[string]bool, len(s.Tenants))
	seenTenantKey := make(map[string]bool, len(s.Tenants))
	for _, t := range s.Tenants {
		if t.ID == "" {
			errs = append(errs, "tenant id is required")
			continue
		}
		if seenTenantID[t.ID] {
			errs = append(errs, fmt.Sprintf("duplicate tenant id %q", t.ID))
		}
		seenTenantID[t.ID] = true
		if t.Key == "" {
			errs = append(errs, fmt.Sprintf("tenant %q: key is required", t.ID))
		} else if seenTenantKey[t.Key] {
			errs = append(errs, fmt.Sprintf("tenant %q: key is not unique", t.ID))
		}
		seenTenantKey[t.Key] = true
		if max := t.MaxUSD(); max != nil && *max < 0 {
			errs = append(errs, fmt.Sprintf("tenant %q: limits.daily.maxUSD must be >= 0", t.ID))
		}
	}

	for pattern, mp := range s.Pricing.Table {
		if mp.Input < 0 || mp.Output < 0 || mp.CacheCreation < 0 || mp.CacheRead < 0 {
			errs = append(errs, fmt.Sprintf("pricing %q: prices must be >= 0", pattern))
		}
	}

	if len(errs) > 0 {
		return errors.New("config validation failed: " + strings.Join(errs, "; "))
	}
	return nil
}
