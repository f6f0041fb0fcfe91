package proxy

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sertdev/ccgate/internal/config"
)

// UpstreamClient sends requests to one configured upstream over a pooled
// transport.
type UpstreamClient struct {
	client *http.Client
	up     config.Upstream
	base   *url.URL
}

// NewUpstreamClient creates an UpstreamClient with a configured transport for
// connection pooling and keep-alive.
func NewUpstreamClient(up config.Upstream) (*UpstreamClient, error) {
	base, err := url.Parse(up.URL)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true, // avoid unnecessary decompress/recompress for passthrough
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &UpstreamClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   0, // per-request deadlines come from the context; streaming can be long-lived
		},
		up:   up,
		base: base,
	}, nil
}

// RewriteURL maps an inbound request path onto the upstream. A leading
// /anthropic prefix is stripped and the upstream URL's own path component (if
// any) is prepended; other paths pass through unchanged.
func (c *UpstreamClient) RewriteURL(incoming string) string {
	path := incoming
	if strings.HasPrefix(path, "/anthropic") {
		path = strings.TrimPrefix(path, "/anthropic")
		if path == "" {
			path = "/"
		}
	}

	u := *c.base
	if u.Path != "" && u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/") + path
	} else {
		u.Path = path
	}
	return u.String()
}

// Do sends a request to the upstream and returns the response. The caller is
// responsible for closing the response body.
func (c *UpstreamClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req)
}

// Host returns the upstream's authority for the Host header.
func (c *UpstreamClient) Host() string {
	return c.base.Host
}
