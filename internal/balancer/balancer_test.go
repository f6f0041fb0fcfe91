package balancer

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sertdev/ccgate/internal/config"
)

func snapshot(strategy string, healthChecks, failover bool, ups ...config.Upstream) *config.Snapshot {
	return &config.Snapshot{
		Upstreams: ups,
		LoadBalancer: config.LoadBalancerConfig{
			Strategy:           strategy,
			HealthCheckEnabled: healthChecks,
			FailoverEnabled:    failover,
		},
	}
}

func up(id string, weight int) config.Upstream {
	return config.Upstream{ID: id, Name: id, URL: "https://" + id + ".example.com", Weight: weight, Enabled: true}
}

func selectIDs(t *testing.T, b *Balancer, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		sel, err := b.Select()
		if err != nil {
			t.Fatalf("Select %d: %v", i, err)
		}
		ids = append(ids, sel.ID)
	}
	return ids
}

func TestSmoothWeightedRoundRobin(t *testing.T) {
	b := New(snapshot(StrategyWeightedRoundRobin, false, false, up("a", 3), up("b", 1)), nil)
	defer b.Stop()

	got := selectIDs(t, b, 8)
	want := []string{"a", "a", "b", "a", "a", "a", "b", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("selection %d: expected %s, got %s (full: %v)", i, want[i], got[i], got)
		}
	}
}

func TestWeightedRoundRobinWindowCounts(t *testing.T) {
	b := New(snapshot(StrategyWeightedRoundRobin, false, false, up("a", 5), up("b", 2), up("c", 1)), nil)
	defer b.Stop()

	counts := map[string]int{}
	for _, id := range selectIDs(t, b, 8) {
		counts[id]++
	}
	if counts["a"] != 5 || counts["b"] != 2 || counts["c"] != 1 {
		t.Fatalf("expected window counts to equal weights, got %v", counts)
	}
}

func TestRoundRobinCycles(t *testing.T) {
	b := New(snapshot(StrategyRoundRobin, false, false, up("a", 1), up("b", 1)), nil)
	defer b.Stop()

	got := selectIDs(t, b, 4)
	want := []string{"a", "b", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("selection %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestRandomReturnsCandidate(t *testing.T) {
	b := New(snapshot(StrategyRandom, false, false, up("a", 1), up("b", 1)), nil)
	defer b.Stop()

	for i := 0; i < 20; i++ {
		sel, err := b.Select()
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if sel.ID != "a" && sel.ID != "b" {
			t.Fatalf("unexpected selection %q", sel.ID)
		}
	}
}

func TestUnknownStrategyAliasesToWeighted(t *testing.T) {
	b := New(snapshot("least_connections", false, false, up("a", 3), up("b", 1)), nil)
	defer b.Stop()

	got := selectIDs(t, b, 4)
	want := []string{"a", "a", "b", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("selection %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestDisabledUpstreamInvisible(t *testing.T) {
	disabled := config.Upstream{ID: "off", URL: "https://off.example.com", Weight: 100, Enabled: false}
	b := New(snapshot(StrategyRoundRobin, false, false, up("a", 1), disabled), nil)
	defer b.Stop()

	for _, id := range selectIDs(t, b, 5) {
		if id == "off" {
			t.Fatalf("disabled upstream must never be selected")
		}
	}
}

func TestNoUpstreamWhenAllDisabled(t *testing.T) {
	disabled := config.Upstream{ID: "off", URL: "https://off.example.com", Enabled: false}
	b := New(snapshot(StrategyRoundRobin, false, false, disabled), nil)
	defer b.Stop()

	if _, err := b.Select(); err != ErrNoUpstream {
		t.Fatalf("expected ErrNoUpstream, got %v", err)
	}
}

func TestUnhealthyFiltered(t *testing.T) {
	b := New(snapshot(StrategyRoundRobin, false, false, up("a", 1), up("b", 1)), nil)
	defer b.Stop()
	b.healthCheckEnabled = true
	b.markHealth("a", false)

	for _, id := range selectIDs(t, b, 4) {
		if id != "b" {
			t.Fatalf("expected only healthy upstream b, got %s", id)
		}
	}
}

func TestFailoverWhenAllUnhealthy(t *testing.T) {
	b := New(snapshot(StrategyRoundRobin, false, true, up("a", 1), up("b", 1)), nil)
	defer b.Stop()
	b.healthCheckEnabled = true
	b.markHealth("a", false)
	b.markHealth("b", false)

	if _, err := b.Select(); err != nil {
		t.Fatalf("expected failover to still return an upstream, got %v", err)
	}
}

func TestNoFailoverRaisesNoUpstream(t *testing.T) {
	b := New(snapshot(StrategyRoundRobin, false, false, up("a", 1)), nil)
	defer b.Stop()
	b.healthCheckEnabled = true
	b.markHealth("a", false)

	if _, err := b.Select(); err != ErrNoUpstream {
		t.Fatalf("expected ErrNoUpstream without failover, got %v", err)
	}
}

func TestUnknownHealthTreatedAsHealthy(t *testing.T) {
	b := New(snapshot(StrategyRoundRobin, false, false, up("a", 1)), nil)
	defer b.Stop()
	b.healthCheckEnabled = true

	if _, err := b.Select(); err != nil {
		t.Fatalf("expected unprobed upstream to be selectable, got %v", err)
	}
}

func TestReloadResetsCounters(t *testing.T) {
	b := New(snapshot(StrategyWeightedRoundRobin, false, false, up("a", 3), up("b", 1)), nil)
	defer b.Stop()

	selectIDs(t, b, 3) // a a b — counters now mid-cycle

	b.Reload(snapshot(StrategyWeightedRoundRobin, false, false, up("a", 3), up("b", 1)))

	got := selectIDs(t, b, 3)
	want := []string{"a", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("post-reload selection %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestHealthProbesMarkUnhealthy(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	transitions := make(chan string, 8)
	snap := snapshot(StrategyRoundRobin, true, false,
		config.Upstream{ID: "good", URL: healthy.URL, Weight: 1, Enabled: true},
		config.Upstream{ID: "bad", URL: broken.URL, Weight: 1, Enabled: true},
	)
	b := New(snap, &Opts{OnHealthChange: func(id string, healthy bool) {
		if !healthy {
			transitions <- id
		}
	}})
	defer b.Stop()

	select {
	case id := <-transitions:
		if id != "bad" {
			t.Fatalf("expected bad upstream to be marked unhealthy, got %s", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("first probe round did not run immediately")
	}

	// With bad marked unhealthy, every selection lands on good.
	for _, id := range selectIDs(t, b, 4) {
		if id != "good" {
			t.Fatalf("unhealthy upstream was still selected: %s", id)
		}
	}
}
