package proxy

import (
	"sync"

	"github.com/sertdev/ccgate/internal/config"
)

type cachedClient struct {
	client *UpstreamClient
	url    string
	apiKey string
}

// ClientCache is a thread-safe cache of UpstreamClients keyed by upstream ID.
// It prevents creating a new HTTP transport per request and survives config
// reloads: a client is rebuilt only when the upstream's URL or key changed.
type ClientCache struct {
	mu      sync.RWMutex
	clients map[string]*cachedClient
}

// NewClientCache creates an empty ClientCache.
func NewClientCache() *ClientCache {
	return &ClientCache{
		clients: make(map[string]*cachedClient),
	}
}

// Get returns a cached client for the given upstream, creating one when
// needed.
func (c *ClientCache) Get(up config.Upstream) (*UpstreamClient, error) {
	c.mu.RLock()
	cached, ok := c.clients[up.ID]
	c.mu.RUnlock()

	if ok && cached.url == up.URL && cached.apiKey == up.Key {
		return cached.client, nil
	}

	client, err := NewUpstreamClient(up)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.clients[up.ID] = &cachedClient{
		client: client,
		url:    up.URL,
		apiKey: up.Key,
	}
	c.mu.Unlock()

	return client, nil
}
