package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/concrnt/concrnt-go/core"
)

// GetProfile fetches a profile by id through the cache.
func (c *Client) GetProfile(ctx context.Context, id, host string, opts *Options) (*core.Profile, error) {
	path := "/api/v1/profile/" + url.PathEscape(id)
	return fetchWithCache[core.Profile](ctx, c, host, path, "profile:"+id, opts)
}

// GetProfileBySemanticID fetches a profile by its owner-scoped semantic id
// through the cache.
func (c *Client) GetProfileBySemanticID(ctx context.Context, semanticID, owner, host string, opts *Options) (*core.Profile, error) {
	path := "/api/v1/profile/" + url.PathEscape(owner) + "/" + url.PathEscape(semanticID)
	return fetchWithCache[core.Profile](ctx, c, host, path, "profile:"+semanticID+"@"+owner, opts)
}

// ProfileQuery filters the profiles listing.
type ProfileQuery struct {
	Author string
	Schema string
	Since  time.Time
	Until  time.Time
	Limit  int
}

// GetProfiles lists profiles matching the query. Uncached.
func (c *Client) GetProfiles(ctx context.Context, host string, query ProfileQuery) ([]core.Profile, error) {
	q := url.Values{}
	if query.Author != "" {
		q.Set("author", query.Author)
	}
	if query.Schema != "" {
		q.Set("schema", query.Schema)
	}
	if !query.Since.IsZero() {
		q.Set("since", sinceParam(query.Since))
	}
	if !query.Until.IsZero() {
		q.Set("until", untilParam(query.Until))
	}
	if query.Limit > 0 {
		q.Set("limit", strconv.Itoa(query.Limit))
	}
	path := "/api/v1/profiles"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}
	return fetchJSON[[]core.Profile](ctx, c, host, http.MethodGet, path, nil, nil, false)
}
