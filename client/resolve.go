package client

import (
	"context"
	"fmt"

	"github.com/concrnt/concrnt-go/core"
)

// ResolveDomain maps an identifier to the FQDN of its responsible domain.
// The hint host is consulted only when the default host is itself offline.
func (c *Client) ResolveDomain(ctx context.Context, id, hint string) (string, error) {
	if core.IsCSID(id) {
		domain, err := c.GetDomainByCSID(ctx, id, nil)
		if err != nil {
			return "", err
		}
		return domain.FQDN, nil
	}

	host := ""
	if hint != "" && !c.IsOnline(ctx, c.host) {
		host = hint
	}
	entity, err := c.getEntityFrom(ctx, host, id, "", &Options{Cache: CacheBestEffort})
	if err != nil {
		return "", fmt.Errorf("resolve domain of %s: %w", id, err)
	}
	return entity.Domain, nil
}

// ResolveTimelineHost maps a timeline identifier to its home domain: the
// @-suffix when present (resolving identifier suffixes through their entity
// records), the default host otherwise.
func (c *Client) ResolveTimelineHost(ctx context.Context, timelineID string) (string, error) {
	_, suffix := core.SplitResourceID(timelineID)
	if suffix == "" {
		return c.host, nil
	}
	if core.IsCCID(suffix) || core.IsCSID(suffix) {
		return c.ResolveDomain(ctx, suffix, "")
	}
	return suffix, nil
}
