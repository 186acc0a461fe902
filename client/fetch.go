package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/concrnt/concrnt-go/core"
)

const errorBodyLimit = 4 * 1024

// request is a single outbound exchange after host/auth resolution.
type request struct {
	host    string
	method  string
	path    string
	body    []byte
	headers map[string]string
	accept  string
	noAuth  bool
	timeout time.Duration
}

// do executes one HTTPS exchange: liveness gate, header merge, timeout,
// status classification, and liveness bookkeeping. It returns the raw
// response body for 2xx responses.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	host := c.targetHost(r.host)
	if !c.IsOnline(ctx, host) {
		return nil, &core.DomainOfflineError{Host: host}
	}

	timeout := r.timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if r.body != nil {
		bodyReader = bytes.NewReader(r.body)
	}
	url := fmt.Sprintf("%s://%s%s", c.scheme, host, r.path)
	req, err := http.NewRequestWithContext(reqCtx, r.method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	if r.accept != "" {
		req.Header.Set("Accept", r.accept)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	if !r.noAuth {
		authHeaders, err := c.provider.Headers(ctx, host)
		if err != nil {
			// Proceed unauthenticated; public reads still work.
			c.log.Warn("auth headers unavailable", "host", host, "err", err)
		}
		for k, v := range authHeaders {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isHostUnreachable(err) {
			c.markOffline(ctx, host)
			return nil, &core.DomainOfflineError{Host: host}
		}
		return nil, fmt.Errorf("%s %s: %w", r.method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, &core.PermissionError{Message: strings.TrimSpace(string(body))}
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s %s: %w", r.method, r.path, core.ErrNotFound)
	case resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout:
		c.markOffline(ctx, host)
		return nil, &core.DomainOfflineError{Host: host}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, &core.TransportError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	c.markOnline(ctx, host)
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", host, err)
	}
	return body, nil
}

// isHostUnreachable reports whether a network-level error means the host is
// down rather than the request being malformed: name resolution failures and
// refused connections.
func isHostUnreachable(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsNotFound || dnsErr.IsTimeout
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}

// fetchJSON runs a credentialed JSON exchange and unwraps the response
// envelope, requiring status "ok".
func fetchJSON[T any](ctx context.Context, c *Client, host, method, path string, body []byte, headers map[string]string, noAuth bool) (T, error) {
	var zero T
	merged := map[string]string{}
	for k, v := range headers {
		merged[k] = v
	}
	raw, err := c.do(ctx, request{
		host:    host,
		method:  method,
		path:    path,
		body:    body,
		headers: merged,
		accept:  "application/json",
		noAuth:  noAuth,
	})
	if err != nil {
		return zero, err
	}
	var envelope core.ApiResponse[T]
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return zero, fmt.Errorf("decode response from %s: %w", c.targetHost(host), err)
	}
	if envelope.Status != core.ResponseOK {
		return zero, &core.ApplicationError{Message: envelope.Error}
	}
	return envelope.Content, nil
}

// fetchJSONEnvelope is fetchJSON for paginated reads that need the
// envelope's next/prev cursors alongside the content.
func fetchJSONEnvelope[T any](ctx context.Context, c *Client, host, method, path string, body []byte, noAuth bool) (core.ApiResponse[T], error) {
	var envelope core.ApiResponse[T]
	raw, err := c.do(ctx, request{
		host:   host,
		method: method,
		path:   path,
		body:   body,
		accept: "application/json",
		noAuth: noAuth,
	})
	if err != nil {
		return envelope, err
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return envelope, fmt.Errorf("decode response from %s: %w", c.targetHost(host), err)
	}
	if envelope.Status != core.ResponseOK {
		return envelope, &core.ApplicationError{Message: envelope.Error}
	}
	return envelope, nil
}

// FetchBlob runs a credentialed exchange against host and returns the raw
// response bytes, for endpoints outside the JSON envelope (media, exports).
func (c *Client) FetchBlob(ctx context.Context, host, path string) ([]byte, error) {
	return c.do(ctx, request{host: host, method: http.MethodGet, path: path})
}
