package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/concrnt/concrnt-go/core"
)

// CacheMode selects how a read consults the cache.
type CacheMode string

const (
	// CacheDefault serves fresh hits, serves stale hits immediately while
	// revalidating in the background, and fetches otherwise.
	CacheDefault CacheMode = ""
	// CacheNoCache skips the cache read and always fetches.
	CacheNoCache CacheMode = "no-cache"
	// CacheForce serves only from cache and fails with core.ErrCacheMiss.
	CacheForce CacheMode = "force-cache"
	// CacheBestEffort serves any positive hit regardless of age without
	// revalidating; a stale negative hit revalidates in the background but
	// still reads as not-found now.
	CacheBestEffort CacheMode = "best-effort"
	// CacheNegativeOnly fetches but records only negative results, for
	// reads whose positive payloads are too churny to keep.
	CacheNegativeOnly CacheMode = "negative-only"
)

// Options tunes a single cached read.
type Options struct {
	Cache   CacheMode
	TTL     time.Duration // 0 → client default; client default 0 → never stale
	NoAuth  bool
	Timeout time.Duration
	// ExpressGetter is invoked synchronously the moment a value (cached or
	// fresh) becomes available, before promotion.
	ExpressGetter func(json.RawMessage)
}

func (o *Options) orDefault() Options {
	if o == nil {
		return Options{}
	}
	return *o
}

// inflightCall is the shared future of the single network request allowed
// per cache key. data == nil with err == nil records a 404.
type inflightCall struct {
	done chan struct{}
	data json.RawMessage
	err  error
}

// getOrStartFetch atomically joins the in-flight request for key or starts
// one. The entry is removed before the call settles, on success and failure
// alike.
func (c *Client) getOrStartFetch(key string, fetch func() (json.RawMessage, error)) *inflightCall {
	c.inflightMu.Lock()
	if call, ok := c.inflight[key]; ok {
		c.inflightMu.Unlock()
		return call
	}
	call := &inflightCall{done: make(chan struct{})}
	c.inflight[key] = call
	c.inflightMu.Unlock()

	go func() {
		data, err := fetch()
		c.inflightMu.Lock()
		delete(c.inflight, key)
		c.inflightMu.Unlock()
		call.data, call.err = data, err
		close(call.done)
	}()
	return call
}

// fetchWithCache reads host+path through the cache under key, promoting the
// result to T. A nil result means the resource does not exist and surfaces
// as core.ErrNotFound.
func fetchWithCache[T any](ctx context.Context, c *Client, host, path, key string, opts *Options) (*T, error) {
	o := opts.orDefault()
	ttl := o.TTL
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	var stale *json.RawMessage
	if o.Cache != CacheNoCache {
		entry, ok, err := c.store.Get(ctx, key)
		if err != nil {
			c.log.Warn("cache read failed", "key", key, "err", err)
		}
		if err == nil && ok {
			age := time.Since(entry.Timestamp)
			if entry.Data != nil {
				if o.ExpressGetter != nil {
					o.ExpressGetter(entry.Data)
				}
				fresh := ttl <= 0 || age < ttl
				if fresh || o.Cache == CacheBestEffort {
					return promote[T](entry.Data)
				}
				data := entry.Data
				stale = &data
			} else {
				if age < c.negativeTTL {
					return nil, fmt.Errorf("%s: %w", key, core.ErrNotFound)
				}
				if o.Cache == CacheBestEffort {
					// Revalidate for future readers, answer not-found now.
					c.revalidate(key, host, path, o)
					return nil, fmt.Errorf("%s: %w", key, core.ErrNotFound)
				}
			}
		}
	}

	if o.Cache == CacheForce {
		return nil, fmt.Errorf("%s: %w", key, core.ErrCacheMiss)
	}

	if stale != nil {
		// Stale-while-revalidate: answer from the retained value and let the
		// background fetch refresh the entry for future readers.
		c.revalidate(key, host, path, o)
		return promote[T](*stale)
	}

	call := c.getOrStartFetch(key, func() (json.RawMessage, error) {
		return c.networkFetch(key, host, path, o)
	})
	select {
	case <-call.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if call.err != nil {
		return nil, call.err
	}
	if call.data == nil {
		return nil, fmt.Errorf("%s: %w", key, core.ErrNotFound)
	}
	if o.ExpressGetter != nil {
		o.ExpressGetter(call.data)
	}
	return promote[T](call.data)
}

// revalidate refreshes key in the background, coalescing with any in-flight
// request. Failures are logged only; the caller already has an answer.
func (c *Client) revalidate(key, host, path string, o Options) {
	call := c.getOrStartFetch(key, func() (json.RawMessage, error) {
		return c.networkFetch(key, host, path, o)
	})
	go func() {
		<-call.done
		if call.err != nil {
			c.log.Debug("revalidation failed", "key", key, "err", call.err)
		}
	}()
}

// networkFetch performs the actual exchange for a cache key and maintains
// the cache entry. It runs detached from any single caller's context so
// joiners and background revalidations share its result.
func (c *Client) networkFetch(key, host, path string, o Options) (json.RawMessage, error) {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	content, err := fetchJSON[json.RawMessage](ctx, c, host, http.MethodGet, path, nil, nil, o.NoAuth)
	if err != nil {
		if isNotFound(err) {
			if serr := c.store.Set(ctx, key, nil); serr != nil {
				c.log.Warn("negative cache write failed", "key", key, "err", serr)
			}
			return nil, nil
		}
		return nil, err
	}
	if o.Cache != CacheNegativeOnly {
		if serr := c.store.Set(ctx, key, content); serr != nil {
			c.log.Warn("cache write failed", "key", key, "err", serr)
		}
	}
	return content, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}

func promote[T any](data json.RawMessage) (*T, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("promote cached value: %w", err)
	}
	return &out, nil
}
