package client

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/concrnt/concrnt-go/core"
)

// Wire time parameters are seconds since epoch: until rounds up so the
// named instant stays included, since rounds down.
func untilParam(t time.Time) string {
	return strconv.FormatInt(int64(math.Ceil(float64(t.UnixMilli())/1000)), 10)
}

func sinceParam(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

// GetTimeline fetches a timeline record through the cache.
func (c *Client) GetTimeline(ctx context.Context, id, host string, opts *Options) (*core.Timeline, error) {
	path := "/api/v1/timeline/" + url.PathEscape(id)
	return fetchWithCache[core.Timeline](ctx, c, host, path, "timeline:"+id, opts)
}

// GetTimelines lists timelines on a host, optionally filtered by schema.
// Uncached.
func (c *Client) GetTimelines(ctx context.Context, host, schema string) ([]core.Timeline, error) {
	path := "/api/v1/timelines"
	if schema != "" {
		path += "?schema=" + url.QueryEscape(schema)
	}
	return fetchJSON[[]core.Timeline](ctx, c, host, http.MethodGet, path, nil, nil, false)
}

// GetTimelineRecent returns the latest items across the given timelines.
func (c *Client) GetTimelineRecent(ctx context.Context, host string, timelines []string) ([]core.TimelineItem, error) {
	path := "/api/v1/timelines/recent?timelines=" + url.QueryEscape(strings.Join(timelines, ","))
	return fetchJSON[[]core.TimelineItem](ctx, c, host, http.MethodGet, path, nil, nil, false)
}

// GetTimelineRanged returns items across the given timelines within a time
// window. Zero times leave the corresponding bound open.
func (c *Client) GetTimelineRanged(ctx context.Context, host string, timelines []string, since, until time.Time) ([]core.TimelineItem, error) {
	q := url.Values{}
	q.Set("timelines", strings.Join(timelines, ","))
	if !since.IsZero() {
		q.Set("since", sinceParam(since))
	}
	if !until.IsZero() {
		q.Set("until", untilParam(until))
	}
	path := "/api/v1/timelines/range?" + q.Encode()
	return fetchJSON[[]core.TimelineItem](ctx, c, host, http.MethodGet, path, nil, nil, false)
}

// TimelineQuery filters a single timeline's items.
type TimelineQuery struct {
	Schema string
	Owner  string
	Author string
	Until  time.Time
	Limit  int
}

// QueryTimeline pages through one timeline's items, returning the next
// cursor alongside the batch.
func (c *Client) QueryTimeline(ctx context.Context, id, host string, query TimelineQuery) ([]core.TimelineItem, string, error) {
	q := url.Values{}
	if query.Schema != "" {
		q.Set("schema", query.Schema)
	}
	if query.Owner != "" {
		q.Set("owner", query.Owner)
	}
	if query.Author != "" {
		q.Set("author", query.Author)
	}
	if !query.Until.IsZero() {
		q.Set("until", untilParam(query.Until))
	}
	if query.Limit > 0 {
		q.Set("limit", strconv.Itoa(query.Limit))
	}
	path := "/api/v1/timeline/" + url.PathEscape(id) + "/query"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}
	envelope, err := fetchJSONEnvelope[[]core.TimelineItem](ctx, c, host, http.MethodGet, path, nil, false)
	if err != nil {
		return nil, "", err
	}
	return envelope.Content, envelope.Next, nil
}

// GetTimelineAssociations lists the associations attached to a timeline.
func (c *Client) GetTimelineAssociations(ctx context.Context, id, host string) ([]core.Association, error) {
	path := "/api/v1/timeline/" + url.PathEscape(id) + "/associations"
	return fetchJSON[[]core.Association](ctx, c, host, http.MethodGet, path, nil, nil, false)
}

// GetSubscription fetches a subscription record through the cache.
func (c *Client) GetSubscription(ctx context.Context, id, host string, opts *Options) (*core.Subscription, error) {
	path := "/api/v1/subscription/" + url.PathEscape(id)
	return fetchWithCache[core.Subscription](ctx, c, host, path, "subscription:"+id, opts)
}

// GetOwnSubscriptions lists the provider's subscriptions. Authenticated,
// uncached.
func (c *Client) GetOwnSubscriptions(ctx context.Context) ([]core.Subscription, error) {
	return fetchJSON[[]core.Subscription](ctx, c, "", http.MethodGet, "/api/v1/subscriptions/mine", nil, nil, false)
}
