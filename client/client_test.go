package client

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/concrnt/concrnt-go/auth"
	"github.com/concrnt/concrnt-go/core"
	"github.com/concrnt/concrnt-go/store"
)

func testHost(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	return u.Host
}

// newTestClient builds a guest client over http against a test server.
func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return New(Config{
		Host:   testHost(t, srv),
		Scheme: "http",
		Store:  store.NewMemoryStore(),
	})
}

func newTestKeyProvider(t *testing.T, host string) auth.Provider {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	pemText := string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
	p, err := auth.NewMasterKeyProvider(pemText, host, auth.WithScheme("http"))
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func okJSON(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok","content":` + content + `}`))
}

func TestFetchClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "forbidden",
			status: http.StatusForbidden,
			body:   "sealed",
			check: func(t *testing.T, err error) {
				var perr *core.PermissionError
				if !errors.As(err, &perr) || perr.Message != "sealed" {
					t.Fatalf("err = %v", err)
				}
			},
		},
		{
			name:   "not found",
			status: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, core.ErrNotFound) {
					t.Fatalf("err = %v", err)
				}
			},
		},
		{
			name:   "teapot",
			status: http.StatusTeapot,
			body:   "short and stout",
			check: func(t *testing.T, err error) {
				var terr *core.TransportError
				if !errors.As(err, &terr) || terr.Status != http.StatusTeapot || terr.Body != "short and stout" {
					t.Fatalf("err = %v", err)
				}
			},
		},
		{
			name:   "bad gateway",
			status: http.StatusBadGateway,
			check: func(t *testing.T, err error) {
				if !core.IsDomainOffline(err) {
					t.Fatalf("err = %v", err)
				}
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, tc.body, tc.status)
			}))
			defer srv.Close()
			c := newTestClient(t, srv)
			_, err := fetchJSON[core.Entity](context.Background(), c, "", http.MethodGet, "/api/v1/entity/x", nil, nil, false)
			if err == nil {
				t.Fatal("expected error")
			}
			tc.check(t, err)
		})
	}
}

func TestFetchApplicationError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"error","error":"schema mismatch"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := fetchJSON[core.Entity](context.Background(), c, "", http.MethodGet, "/api/v1/entity/x", nil, nil, false)
	var aerr *core.ApplicationError
	if !errors.As(err, &aerr) || aerr.Message != "schema mismatch" {
		t.Fatalf("err = %v", err)
	}
}

func TestFetchMarksHostOfflineOnRefusedConnection(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	host := testHost(t, srv)
	srv.Close() // free the port so the dial is refused

	c := New(Config{Host: host, Scheme: "http", Store: store.NewMemoryStore()})
	_, err := fetchJSON[core.Entity](context.Background(), c, "", http.MethodGet, "/api/v1/entity/x", nil, nil, false)
	if !core.IsDomainOffline(err) {
		t.Fatalf("err = %v, want DomainOffline", err)
	}
	if c.IsOnline(context.Background(), host) {
		t.Fatal("host still online after refused connection")
	}
}

func TestFetchSendsAuthHeaders(t *testing.T) {
	t.Parallel()

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/auth/passport" {
			_, _ = w.Write([]byte("pp"))
			return
		}
		gotAuth = r.Header.Get("Authorization")
		okJSON(w, `{"ccid":"x"}`)
	}))
	defer srv.Close()

	host := testHost(t, srv)
	c := New(Config{
		Host:     host,
		Scheme:   "http",
		Provider: newTestKeyProvider(t, host),
		Store:    store.NewMemoryStore(),
	})
	if _, err := fetchJSON[core.Entity](context.Background(), c, "", http.MethodGet, "/api/v1/entity/x", nil, nil, false); err != nil {
		t.Fatal(err)
	}
	if gotAuth == "" || gotAuth == "Bearer " {
		t.Fatalf("authorization = %q", gotAuth)
	}
}
