package client

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"
)

// Offline backoff: after k consecutive failures a host stays offline for
// 500ms × 1.5^min(k, 15), so healthy retries are cheap while a dead peer is
// probed at most every ~3.6 minutes.
const (
	offlineBaseDelay     = 500 * time.Millisecond
	offlineBackoffFactor = 1.5
	offlineBackoffCap    = 15

	onlineProbeFreshness = 5 * time.Second
)

func offlineKey(host string) string { return "offline:" + host }
func onlineKey(host string) string  { return "online:" + host }

func offlineThreshold(failCount int) time.Duration {
	exp := min(failCount, offlineBackoffCap)
	return time.Duration(float64(offlineBaseDelay) * math.Pow(offlineBackoffFactor, float64(exp)))
}

// IsOnline reports whether host should be attempted. A host is online unless
// a non-expired offline backoff entry exists. Cache errors degrade to online.
func (c *Client) IsOnline(ctx context.Context, host string) bool {
	entry, ok, err := c.store.Get(ctx, offlineKey(host))
	if err != nil {
		c.log.Warn("liveness read failed", "host", host, "err", err)
		return true
	}
	if !ok {
		return true
	}
	failCount := decodeFailCount(entry.Data)
	return time.Since(entry.Timestamp) >= offlineThreshold(failCount)
}

// markOnline clears the backoff entry after a successful exchange.
func (c *Client) markOnline(ctx context.Context, host string) {
	if err := c.store.Invalidate(ctx, offlineKey(host)); err != nil {
		c.log.Warn("liveness reset failed", "host", host, "err", err)
	}
}

// markOffline records another failed probe, growing the backoff window.
func (c *Client) markOffline(ctx context.Context, host string) {
	failCount := 0
	if entry, ok, err := c.store.Get(ctx, offlineKey(host)); err == nil && ok {
		failCount = decodeFailCount(entry.Data)
	}
	data, _ := json.Marshal(failCount + 1)
	if err := c.store.Set(ctx, offlineKey(host), data); err != nil {
		c.log.Warn("liveness write failed", "host", host, "err", err)
	}
}

func decodeFailCount(data json.RawMessage) int {
	n, err := strconv.Atoi(string(data))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// GetHostOnlineStatus actively probes a host, remembering the result
// (positive or negative) for a short window. It is independent of the offline backoff gate.
func (c *Client) GetHostOnlineStatus(ctx context.Context, host string) bool {
	host = c.targetHost(host)
	if entry, ok, err := c.store.Get(ctx, onlineKey(host)); err == nil && ok {
		if time.Since(entry.Timestamp) < onlineProbeFreshness {
			return string(entry.Data) == "true"
		}
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, fmt.Sprintf("%s://%s/api/v1/domain", c.scheme, host), nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	alive := false
	if err == nil {
		_ = resp.Body.Close()
		alive = resp.StatusCode < 500
	}
	data, _ := json.Marshal(alive)
	if err := c.store.Set(ctx, onlineKey(host), data); err != nil {
		c.log.Warn("probe result write failed", "host", host, "err", err)
	}
	return alive
}
