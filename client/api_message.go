package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/concrnt/concrnt-go/core"
)

// GetMessage fetches a message through the cache. host may be empty for the
// default home; callers resolving cross-domain ids pass the resolved host.
func (c *Client) GetMessage(ctx context.Context, id, host string, opts *Options) (*core.Message, error) {
	path := "/api/v1/message/" + url.PathEscape(id)
	return fetchWithCache[core.Message](ctx, c, host, path, "message:"+id, opts)
}

// GetMessageAssociations lists the associations attached to a message.
// Uncached: association lists churn with every reaction.
func (c *Client) GetMessageAssociations(ctx context.Context, id, host string) ([]core.Association, error) {
	path := "/api/v1/message/" + url.PathEscape(id) + "/associations"
	return fetchJSON[[]core.Association](ctx, c, host, http.MethodGet, path, nil, nil, false)
}

// GetMessageAssociationsBySchema filters a message's associations by schema
// and optional variant.
func (c *Client) GetMessageAssociationsBySchema(ctx context.Context, id, host, schema, variant string) ([]core.Association, error) {
	q := url.Values{}
	q.Set("schema", schema)
	if variant != "" {
		q.Set("variant", variant)
	}
	path := "/api/v1/message/" + url.PathEscape(id) + "/associations?" + q.Encode()
	return fetchJSON[[]core.Association](ctx, c, host, http.MethodGet, path, nil, nil, false)
}

// GetMessageAssociationCounts returns per-schema association counts for a
// message.
func (c *Client) GetMessageAssociationCounts(ctx context.Context, id, host string) (map[string]int64, error) {
	path := "/api/v1/message/" + url.PathEscape(id) + "/associationcounts"
	return fetchJSON[map[string]int64](ctx, c, host, http.MethodGet, path, nil, nil, false)
}

// GetAssociation fetches an association through the cache.
func (c *Client) GetAssociation(ctx context.Context, id, host string, opts *Options) (*core.Association, error) {
	path := "/api/v1/association/" + url.PathEscape(id)
	return fetchWithCache[core.Association](ctx, c, host, path, "association:"+id, opts)
}

// UpsertMessage writes a message resource into the cache under its id.
// The realtime socket feeds fresh timeline payloads through here.
func (c *Client) UpsertMessage(ctx context.Context, resource json.RawMessage) {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resource, &probe); err != nil || probe.ID == "" {
		return
	}
	if err := c.store.Set(ctx, "message:"+probe.ID, resource); err != nil {
		c.log.Warn("message upsert failed", "id", probe.ID, "err", err)
	}
}

// InvalidateMessage drops a message from the cache so the next read
// refetches it.
func (c *Client) InvalidateMessage(ctx context.Context, id string) {
	if id == "" {
		return
	}
	if err := c.store.Invalidate(ctx, "message:"+id); err != nil {
		c.log.Warn("message invalidation failed", "id", id, "err", err)
	}
}
