package balancer

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sertdev/ccgate/internal/config"
)

const (
	probeInterval       = 30 * time.Second
	defaultProbeTimeout = 5 * time.Second
	defaultProbePath    = "/health"
)

// prober GETs each upstream's health endpoint on a fixed schedule. The first
// round runs immediately; each round fans out one goroutine per upstream.
type prober struct {
	balancer  *Balancer
	upstreams []config.Upstream
	client    *http.Client
	cancel    context.CancelFunc
	done      chan struct{}
}

func newProber(b *Balancer, upstreams []config.Upstream) *prober {
	return &prober{
		balancer:  b,
		upstreams: upstreams,
		// Per-probe deadlines come from the request context; the client
		// itself stays unbounded.
		client: &http.Client{},
		done:   make(chan struct{}),
	}
}

func (p *prober) start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	go func() {
		defer close(p.done)

		p.probeAll(ctx)

		ticker := time.NewTicker(probeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.probeAll(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (p *prober) stop() {
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
}

func (p *prober) probeAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, up := range p.upstreams {
		if !up.Enabled {
			continue
		}
		wg.Add(1)
		go func(up config.Upstream) {
			defer wg.Done()
			p.balancer.markHealth(up.ID, p.probe(ctx, up))
		}(up)
	}
	wg.Wait()
}

// probe reports an upstream healthy when its health endpoint answers with a
// 2xx or 3xx status within the timeout.
func (p *prober) probe(ctx context.Context, up config.Upstream) bool {
	path := defaultProbePath
	timeout := defaultProbeTimeout
	if up.HealthCheck != nil {
		if up.HealthCheck.Path != "" {
			path = up.HealthCheck.Path
		}
		if up.HealthCheck.Timeout > 0 {
			timeout = time.Duration(up.HealthCheck.Timeout) * time.Millisecond
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, up.URL+path, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 400
}
