package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/concrnt/concrnt-go/core"
)

// GetEntity fetches an account record through the cache from the default
// host, without a resolution hint.
func (c *Client) GetEntity(ctx context.Context, ccid string, opts *Options) (*core.Entity, error) {
	return c.getEntityFrom(ctx, "", ccid, "", opts)
}

// GetEntityWithHint is GetEntity with a resolution hint forwarded upstream.
func (c *Client) GetEntityWithHint(ctx context.Context, ccid, hint string, opts *Options) (*core.Entity, error) {
	return c.getEntityFrom(ctx, "", ccid, hint, opts)
}

func (c *Client) getEntityFrom(ctx context.Context, host, ccid, hint string, opts *Options) (*core.Entity, error) {
	path := "/api/v1/entity/" + url.PathEscape(ccid)
	if hint != "" {
		path += "?hint=" + url.QueryEscape(hint)
	}
	return fetchWithCache[core.Entity](ctx, c, host, path, "entity:"+ccid, opts)
}

// GetEntities lists the entities known to a domain. Uncached.
func (c *Client) GetEntities(ctx context.Context, host string) ([]core.Entity, error) {
	return fetchJSON[[]core.Entity](ctx, c, host, http.MethodGet, "/api/v1/entities", nil, nil, false)
}

// GetAcking lists the acknowledgements an entity has issued.
func (c *Client) GetAcking(ctx context.Context, ccid string, opts *Options) ([]core.Ack, error) {
	path := "/api/v1/entity/" + url.PathEscape(ccid) + "/acking"
	acks, err := fetchWithCache[[]core.Ack](ctx, c, "", path, "acking:"+ccid, opts)
	if err != nil {
		return nil, err
	}
	return *acks, nil
}

// GetAcker lists the acknowledgements targeting an entity.
func (c *Client) GetAcker(ctx context.Context, ccid string, opts *Options) ([]core.Ack, error) {
	path := "/api/v1/entity/" + url.PathEscape(ccid) + "/acker"
	acks, err := fetchWithCache[[]core.Ack](ctx, c, "", path, "acker:"+ccid, opts)
	if err != nil {
		return nil, err
	}
	return *acks, nil
}

// GetOwnKeys lists the provider's sub-keys. Authenticated, uncached.
func (c *Client) GetOwnKeys(ctx context.Context) ([]core.Key, error) {
	return fetchJSON[[]core.Key](ctx, c, "", http.MethodGet, "/api/v1/keys/mine", nil, nil, false)
}

// GetKeyChain fetches the key records rooted at a CKID through the cache.
func (c *Client) GetKeyChain(ctx context.Context, ckid string, opts *Options) ([]core.Key, error) {
	path := "/api/v1/key/" + url.PathEscape(ckid)
	keys, err := fetchWithCache[[]core.Key](ctx, c, "", path, "key:"+ckid, opts)
	if err != nil {
		return nil, err
	}
	return *keys, nil
}
