// Package balancer selects a healthy upstream for each request using a
// configurable strategy and keeps upstream health fresh with periodic probes.
package balancer

import (
	"errors"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/sertdev/ccgate/internal/config"
)

// Strategy names accepted in upstreams.json. Anything else (the README's
// least_connections included) aliases to weighted_round_robin with a warning.
const (
	StrategyRoundRobin         = "round_robin"
	StrategyWeightedRoundRobin = "weighted_round_robin"
	StrategyRandom             = "random"
)

// ErrNoUpstream is returned when no candidate upstream remains after health
// filtering and failover.
var ErrNoUpstream = errors.New("no healthy upstream available")

type healthState int8

const (
	healthUnknown healthState = iota // not yet probed; treated as healthy
	healthHealthy
	healthUnhealthy
)

// Opts configures optional balancer behavior.
type Opts struct {
	// OnHealthChange is called after every probe transition (healthy bool).
	OnHealthChange func(upstreamID string, healthy bool)
}

// Balancer picks upstreams. All mutable state (round-robin index, smooth-WRR
// counters, health map) lives behind one mutex; Select and Reload are the
// only writers besides the probe loop.
type Balancer struct {
	mu        sync.Mutex
	upstreams []config.Upstream
	strategy  string

	healthCheckEnabled bool
	failoverEnabled    bool

	rrIndex int
	current map[string]int // smooth-WRR accumulated weights
	health  map[string]healthState

	probes         *prober
	onHealthChange func(string, bool)
}

// New builds a balancer from the snapshot and, when health checks are
// enabled, starts probing immediately.
func New(snap *config.Snapshot, opts *Opts) *Balancer {
	b := &Balancer{}
	if opts != nil {
		b.onHealthChange = opts.OnHealthChange
	}
	b.install(snap)
	return b
}

// install replaces all balancer state from a snapshot. Callers must not hold
// b.mu.
func (b *Balancer) install(snap *config.Snapshot) {
	strategy := normalizeStrategy(snap.LoadBalancer.Strategy)

	b.mu.Lock()
	b.upstreams = snap.Upstreams
	b.strategy = strategy
	b.healthCheckEnabled = snap.LoadBalancer.HealthCheckEnabled
	b.failoverEnabled = snap.LoadBalancer.FailoverEnabled
	b.rrIndex = 0
	b.current = make(map[string]int)
	b.health = make(map[string]healthState)
	old := b.probes
	b.probes = nil
	b.mu.Unlock()

	if old != nil {
		old.stop()
	}
	if snap.LoadBalancer.HealthCheckEnabled {
		p := newProber(b, snap.Upstreams)
		b.mu.Lock()
		b.probes = p
		b.mu.Unlock()
		p.start()
	}
}

// Reload atomically swaps in a new upstream list, clears the weighted
// counters, resets the round-robin index, and restarts the probe schedule.
func (b *Balancer) Reload(snap *config.Snapshot) {
	b.install(snap)
}

// Stop terminates the probe loop.
func (b *Balancer) Stop() {
	b.mu.Lock()
	p := b.probes
	b.probes = nil
	b.mu.Unlock()
	if p != nil {
		p.stop()
	}
}

func normalizeStrategy(s string) string {
	switch s {
	case StrategyRoundRobin, StrategyWeightedRoundRobin, StrategyRandom:
		return s
	case "":
		return StrategyWeightedRoundRobin
	default:
		slog.Warn("unknown load balancer strategy, using weighted_round_robin", "strategy", s)
		return StrategyWeightedRoundRobin
	}
}

// Select returns the upstream for the next request.
func (b *Balancer) Select() (config.Upstream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	candidates := b.candidatesLocked()
	if len(candidates) == 0 {
		return config.Upstream{}, ErrNoUpstream
	}

	switch b.strategy {
	case StrategyRoundRobin:
		up := candidates[b.rrIndex%len(candidates)]
		b.rrIndex++
		return up, nil
	case StrategyRandom:
		return candidates[rand.Intn(len(candidates))], nil
	default:
		return b.smoothWRRLocked(candidates), nil
	}
}

// candidatesLocked computes the selectable set: enabled upstreams, minus the
// ones probing marked unhealthy, falling back to all enabled upstreams when
// failover is on and everything is unhealthy.
func (b *Balancer) candidatesLocked() []config.Upstream {
	enabled := make([]config.Upstream, 0, len(b.upstreams))
	for _, up := range b.upstreams {
		if up.Enabled {
			enabled = append(enabled, up)
		}
	}
	if !b.healthCheckEnabled {
		return enabled
	}

	healthy := make([]config.Upstream, 0, len(enabled))
	for _, up := range enabled {
		if b.health[up.ID] != healthUnhealthy {
			healthy = append(healthy, up)
		}
	}
	if len(healthy) > 0 {
		return healthy
	}
	if b.failoverEnabled {
		return enabled
	}
	return nil
}

// smoothWRRLocked implements smooth weighted round-robin: every candidate's
// counter grows by its weight, the largest counter wins (first occurrence on
// ties), and the winner pays back the total weight. Over sum(w) consecutive
// selections each candidate wins exactly w times, evenly spaced.
func (b *Balancer) smoothWRRLocked(candidates []config.Upstream) config.Upstream {
	total := 0
	best := -1
	for i, up := range candidates {
		b.current[up.ID] += up.Weight
		total += up.Weight
		if best == -1 || b.current[up.ID] > b.current[candidates[best].ID] {
			best = i
		}
	}
	selected := candidates[best]
	b.current[selected.ID] -= total
	return selected
}

// markHealth records a probe result and reports transitions.
func (b *Balancer) markHealth(upstreamID string, healthy bool) {
	state := healthUnhealthy
	if healthy {
		state = healthHealthy
	}

	b.mu.Lock()
	prev := b.health[upstreamID]
	b.health[upstreamID] = state
	b.mu.Unlock()

	if prev != state {
		slog.Info("upstream health changed", "upstream", upstreamID, "healthy", healthy)
		if b.onHealthChange != nil {
			b.onHealthChange(upstreamID, healthy)
		}
	}
}
