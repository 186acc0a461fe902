// Package auth produces the credentials presented to remote domains:
// per-remote bearer JWTs and the home-domain passport.
package auth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/concrnt/concrnt-go/core"
	"github.com/concrnt/concrnt-go/keyring"
)

// Provider yields authorization material for requests to a remote domain.
// Guest providers return empty headers and fail identity operations with
// [core.ErrNotImplemented].
type Provider interface {
	// CCID returns the provider's account root identifier.
	CCID() (string, error)
	// CKID returns the active sub-key identifier, or "" for a master key.
	CKID() (string, error)
	// Host is the provider's home domain.
	Host() string
	// Sign produces a detached signature over data.
	Sign(data []byte) (string, error)
	// IssueJWT mints a signed JWT, defaulting iss to the provider identity.
	IssueJWT(claims map[string]any) (string, error)
	// AuthToken returns a valid bearer token for the remote domain,
	// minting one if the cached token is absent or expired.
	AuthToken(remote string) (string, error)
	// Passport returns the home-domain passport, fetching it on first use.
	Passport(ctx context.Context) (string, error)
	// Headers returns the header set to merge into a request to domain.
	Headers(ctx context.Context, domain string) (map[string]string, error)
}

const passportTimeout = 10 * time.Second

// Option configures a key-backed provider.
type Option func(*keyProvider)

// WithHTTPClient replaces the HTTP client used for the passport fetch.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *keyProvider) { p.httpClient = hc }
}

// WithLogger replaces the provider's logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *keyProvider) { p.log = l }
}

// WithScheme overrides the URL scheme used for the passport fetch.
// The default is https; tests use http against local fixtures.
func WithScheme(scheme string) Option {
	return func(p *keyProvider) { p.scheme = scheme }
}

// keyProvider backs both the master-key and sub-key variants; the sub-key
// variant carries a non-empty ckid and signs JWTs with iss/kid set to it.
type keyProvider struct {
	key  keyring.KeyPair
	ccid string
	ckid string
	host string

	scheme     string
	httpClient *http.Client
	log        *slog.Logger

	tokenMu sync.Mutex
	tokens  map[string]string

	passportMu sync.Mutex
	passport   *passportCall
}

// passportCall is the shared future for the one passport fetch: concurrent
// callers wait on done and read the settled value.
type passportCall struct {
	done  chan struct{}
	value string
	err   error
}

// NewMasterKeyProvider builds a provider from a PEM master key. The CCID is
// derived from the key's public half.
func NewMasterKeyProvider(pemText, host string, opts ...Option) (Provider, error) {
	kp, err := keyring.LoadKey(pemText)
	if err != nil {
		return nil, err
	}
	p := &keyProvider{
		key:  *kp,
		ccid: keyring.ComputeCCID(kp.Public),
		host: host,
	}
	p.applyDefaults(opts)
	return p, nil
}

// NewSubKeyProvider builds a provider from a sub-key blob. The home domain
// and owner CCID come from the blob itself.
func NewSubKeyProvider(blob string, opts ...Option) (Provider, error) {
	sk, err := keyring.LoadSubKey(blob)
	if err != nil {
		return nil, err
	}
	p := &keyProvider{
		key:  sk.Key,
		ccid: sk.CCID,
		ckid: sk.CKID,
		host: sk.Domain,
	}
	p.applyDefaults(opts)
	return p, nil
}

func (p *keyProvider) applyDefaults(opts []Option) {
	p.scheme = "https"
	p.httpClient = &http.Client{Timeout: passportTimeout}
	p.log = slog.Default()
	p.tokens = make(map[string]string)
	for _, opt := range opts {
		opt(p)
	}
}

func (p *keyProvider) CCID() (string, error) { return p.ccid, nil }
func (p *keyProvider) CKID() (string, error) { return p.ckid, nil }
func (p *keyProvider) Host() string          { return p.host }

func (p *keyProvider) Sign(data []byte) (string, error) {
	return keyring.Sign(p.key.Private, data), nil
}

// issuer is the identity minted tokens speak as: the sub-key when one is
// active, the account root otherwise.
func (p *keyProvider) issuer() string {
	if p.ckid != "" {
		return p.ckid
	}
	return p.ccid
}

func (p *keyProvider) IssueJWT(claims map[string]any) (string, error) {
	merged := make(map[string]any, len(claims)+1)
	for k, v := range claims {
		merged[k] = v
	}
	if _, ok := merged["iss"]; !ok {
		merged["iss"] = p.issuer()
	}
	return keyring.IssueJWT(p.key.Private, merged, keyring.JWTOptions{KeyID: p.ckid})
}

func (p *keyProvider) AuthToken(remote string) (string, error) {
	p.tokenMu.Lock()
	token, ok := p.tokens[remote]
	p.tokenMu.Unlock()
	if ok && keyring.CheckJwtIsValid(token) {
		return token, nil
	}

	token, err := p.IssueJWT(map[string]any{
		"aud": remote,
		"sub": "concrnt",
	})
	if err != nil {
		return "", fmt.Errorf("mint token for %s: %w", remote, err)
	}
	// Concurrent minting for one remote is tolerated; last writer wins.
	p.tokenMu.Lock()
	p.tokens[remote] = token
	p.tokenMu.Unlock()
	return token, nil
}

func (p *keyProvider) Passport(ctx context.Context) (string, error) {
	p.passportMu.Lock()
	call := p.passport
	if call == nil {
		call = &passportCall{done: make(chan struct{})}
		p.passport = call
		go p.fetchPassport(call)
	}
	p.passportMu.Unlock()

	select {
	case <-call.done:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return call.value, call.err
}

func (p *keyProvider) fetchPassport(call *passportCall) {
	defer close(call.done)

	value, err := p.requestPassport()
	call.value, call.err = value, err
	if err != nil {
		// Drop the failed future so a later call can retry.
		p.passportMu.Lock()
		if p.passport == call {
			p.passport = nil
		}
		p.passportMu.Unlock()
	}
}

func (p *keyProvider) requestPassport() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), passportTimeout)
	defer cancel()

	token, err := p.AuthToken(p.host)
	if err != nil {
		return "", err
	}
	u := fmt.Sprintf("%s://%s/api/v1/auth/passport", p.scheme, p.host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch passport: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("read passport: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &core.TransportError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return strings.TrimSpace(string(body)), nil
}

func (p *keyProvider) Headers(ctx context.Context, domain string) (map[string]string, error) {
	token, err := p.AuthToken(domain)
	if err != nil {
		return nil, err
	}
	headers := map[string]string{
		"authorization": "Bearer " + token,
	}
	passport, err := p.Passport(ctx)
	if err != nil {
		// Degrade to bearer-only; the remote may still accept the request.
		p.log.Warn("passport unavailable", "host", p.host, "err", err)
		return headers, nil
	}
	headers["passport"] = passport
	return headers, nil
}

// GuestProvider is the identity-less variant. Call sites that require an
// identity fail fast with [core.ErrNotImplemented].
type GuestProvider struct {
	host string
}

// NewGuestProvider builds a guest provider homed at host.
func NewGuestProvider(host string) *GuestProvider {
	return &GuestProvider{host: host}
}

func (p *GuestProvider) CCID() (string, error) { return "", core.ErrNotImplemented }
func (p *GuestProvider) CKID() (string, error) { return "", core.ErrNotImplemented }
func (p *GuestProvider) Host() string          { return p.host }

func (p *GuestProvider) Sign([]byte) (string, error) {
	return "", core.ErrNotImplemented
}

func (p *GuestProvider) IssueJWT(map[string]any) (string, error) {
	return "", core.ErrNotImplemented
}

func (p *GuestProvider) AuthToken(string) (string, error) {
	return "", core.ErrNotImplemented
}

func (p *GuestProvider) Passport(context.Context) (string, error) {
	return "", core.ErrNotImplemented
}

func (p *GuestProvider) Headers(context.Context, string) (map[string]string, error) {
	return map[string]string{}, nil
}
