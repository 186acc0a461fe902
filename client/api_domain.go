package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/concrnt/concrnt-go/core"
)

// GetDomain fetches a domain's self record through the cache. host may be
// empty for the default home.
func (c *Client) GetDomain(ctx context.Context, host string, opts *Options) (*core.Domain, error) {
	key := "domain:" + c.targetHost(host)
	return fetchWithCache[core.Domain](ctx, c, host, "/api/v1/domain", key, opts)
}

// GetDomainByCSID resolves a domain record from its signing identity.
func (c *Client) GetDomainByCSID(ctx context.Context, csid string, opts *Options) (*core.Domain, error) {
	path := "/api/v1/domain/" + url.PathEscape(csid)
	return fetchWithCache[core.Domain](ctx, c, "", path, "domain:"+csid, opts)
}

// GetDomains lists the domains known to a host. Uncached.
func (c *Client) GetDomains(ctx context.Context, host string) ([]core.Domain, error) {
	return fetchJSON[[]core.Domain](ctx, c, host, http.MethodGet, "/api/v1/domains", nil, nil, false)
}

// GetKV reads the provider's value under key from the home domain's
// per-account key-value endpoint. Authenticated, uncached.
func (c *Client) GetKV(ctx context.Context, key string) (string, error) {
	path := "/api/v1/kv/" + url.PathEscape(key)
	return fetchJSON[string](ctx, c, "", http.MethodGet, path, nil, nil, false)
}

// WriteKV stores value under key on the home domain's per-account
// key-value endpoint.
func (c *Client) WriteKV(ctx context.Context, key, value string) error {
	path := "/api/v1/kv/" + url.PathEscape(key)
	_, err := c.do(ctx, request{
		method:  http.MethodPut,
		path:    path,
		body:    []byte(value),
		headers: map[string]string{"content-type": "application/json"},
	})
	return err
}
