// Package client implements the Concurrent request engine: liveness-gated
// authenticated fetches, the read-through cache with stale-while-revalidate
// and negative entries, identifier resolution, and the commit pipeline.
package client

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/concrnt/concrnt-go/auth"
	"github.com/concrnt/concrnt-go/store"
)

const (
	defaultRequestTimeout = 5 * time.Second
	defaultNegativeTTL    = 300 * time.Second
)

// Config carries the collaborators and tunables for a Client.
type Config struct {
	// Host is the default home domain requests go to when no other host is
	// resolved.
	Host string
	// Provider supplies authorization headers and document signatures.
	Provider auth.Provider
	// Store is the shared key-value cache backend.
	Store store.Store

	// Scheme overrides the URL scheme (default https; tests use http).
	Scheme string
	// Timeout bounds each outbound request (default 5s).
	Timeout time.Duration
	// DefaultTTL is the positive cache freshness window; zero means entries
	// never go stale on their own.
	DefaultTTL time.Duration
	// NegativeTTL bounds how long a 404 is served from cache (default 300s).
	NegativeTTL time.Duration
	// UseHTTP3 swaps the transport for an HTTP/3 round tripper.
	UseHTTP3 bool
	// HTTPClient overrides the underlying client entirely; mainly for tests.
	HTTPClient *http.Client
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client executes requests against Concurrent domains on behalf of a
// provider, reading through the shared cache.
type Client struct {
	host        string
	scheme      string
	provider    auth.Provider
	store       store.Store
	httpClient  *http.Client
	log         *slog.Logger
	timeout     time.Duration
	defaultTTL  time.Duration
	negativeTTL time.Duration

	inflightMu sync.Mutex
	inflight   map[string]*inflightCall
}

// New creates a Client with the given configuration.
func New(cfg Config) *Client {
	c := &Client{
		host:        cfg.Host,
		scheme:      cfg.Scheme,
		provider:    cfg.Provider,
		store:       cfg.Store,
		httpClient:  cfg.HTTPClient,
		log:         cfg.Logger,
		timeout:     cfg.Timeout,
		defaultTTL:  cfg.DefaultTTL,
		negativeTTL: cfg.NegativeTTL,
		inflight:    make(map[string]*inflightCall),
	}
	if c.scheme == "" {
		c.scheme = "https"
	}
	if c.provider == nil {
		c.provider = auth.NewGuestProvider(cfg.Host)
	}
	if c.store == nil {
		c.store = store.NewMemoryStore()
	}
	if c.timeout <= 0 {
		c.timeout = defaultRequestTimeout
	}
	if c.negativeTTL <= 0 {
		c.negativeTTL = defaultNegativeTTL
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 0} // per-request timeouts via context
		if cfg.UseHTTP3 {
			c.httpClient.Transport = newHTTP3Transport()
		}
	}
	return c
}

// Host returns the client's default home domain.
func (c *Client) Host() string { return c.host }

// Provider returns the client's auth provider.
func (c *Client) Provider() auth.Provider { return c.provider }

// Store returns the shared cache backend.
func (c *Client) Store() store.Store { return c.store }

// targetHost resolves an optional per-call host override.
func (c *Client) targetHost(host string) string {
	if host == "" {
		return c.host
	}
	return host
}
