package client

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/concrnt/concrnt-go/auth"
	"github.com/concrnt/concrnt-go/core"
	"github.com/concrnt/concrnt-go/keyring"
	"github.com/concrnt/concrnt-go/store"
)

// commitCapture records the last commit request body a test server saw.
type commitCapture struct {
	req core.CommitRequest
}

func newCommitServer(t *testing.T, capture *commitCapture, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/auth/passport" {
			_, _ = io.WriteString(w, "pp")
			return
		}
		if r.URL.Path != "/api/v1/commit" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &capture.req); err != nil {
			t.Errorf("bad commit body: %v", err)
		}
		okJSON(w, content)
	}))
}

func TestCommitSignsWithMasterKey(t *testing.T) {
	t.Parallel()

	var capture commitCapture
	srv := newCommitServer(t, &capture, `{"id":"m1","author":"x"}`)
	defer srv.Close()

	host := testHost(t, srv)
	provider := newTestKeyProvider(t, host)
	c := New(Config{Host: host, Scheme: "http", Provider: provider, Store: store.NewMemoryStore()})

	msg, err := CreateMessage(context.Background(), c, "https://schema.example/note", map[string]string{"body": "hello"}, []string{"t1"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID != "m1" {
		t.Fatalf("returned message = %+v", msg)
	}

	var doc core.MessageDocument[map[string]string]
	if err := json.Unmarshal([]byte(capture.req.Document), &doc); err != nil {
		t.Fatal(err)
	}
	ccid, _ := provider.CCID()
	if doc.Signer != ccid {
		t.Fatalf("signer = %q, want %q", doc.Signer, ccid)
	}
	if doc.KeyID != "" {
		t.Fatalf("keyID = %q, want absent for master key", doc.KeyID)
	}
	if doc.SignedAt.IsZero() {
		t.Fatal("signedAt not stamped")
	}
	if len(doc.Timelines) != 1 || doc.Timelines[0] != "t1" {
		t.Fatalf("timelines = %v", doc.Timelines)
	}
	if capture.req.Signature == "" {
		t.Fatal("missing signature")
	}
}

func TestCommitStampsSubKeyID(t *testing.T) {
	t.Parallel()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	ckid := keyring.ComputeCKID(priv.Public().(ed25519.PublicKey))
	ccid := "con1aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

	var capture commitCapture
	srv := newCommitServer(t, &capture, `{"id":"m2"}`)
	defer srv.Close()
	host := testHost(t, srv)

	blob := "concurrent-subkey " + ckid + " " + hex.EncodeToString(priv.Seed()) + " " + ccid + "@" + host
	provider, err := auth.NewSubKeyProvider(blob, auth.WithScheme("http"))
	if err != nil {
		t.Fatal(err)
	}
	c := New(Config{Host: host, Scheme: "http", Provider: provider, Store: store.NewMemoryStore()})

	if _, err := CreateMessage(context.Background(), c, "https://schema.example/note", struct{}{}, []string{"t1"}, nil); err != nil {
		t.Fatal(err)
	}

	var doc core.DocumentBase[json.RawMessage]
	if err := json.Unmarshal([]byte(capture.req.Document), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Signer != ccid {
		t.Fatalf("signer = %q, want owner ccid %q", doc.Signer, ccid)
	}
	if doc.KeyID != ckid {
		t.Fatalf("keyID = %q, want %q", doc.KeyID, ckid)
	}

	// The detached signature verifies against the sub-key.
	if !keyring.Verify(priv.Public().(ed25519.PublicKey), []byte(capture.req.Document), capture.req.Signature) {
		t.Fatal("signature does not verify")
	}
}

func TestCommitInvalidatesAssociationTarget(t *testing.T) {
	t.Parallel()

	var capture commitCapture
	srv := newCommitServer(t, &capture, `{"id":"a1","target":"m1"}`)
	defer srv.Close()

	host := testHost(t, srv)
	s := store.NewMemoryStore()
	c := New(Config{Host: host, Scheme: "http", Provider: newTestKeyProvider(t, host), Store: s})
	ctx := context.Background()

	if err := s.Set(ctx, "message:m1", []byte(`{"id":"m1"}`)); err != nil {
		t.Fatal(err)
	}

	if _, err := CreateAssociation(ctx, c, "https://schema.example/like", struct{}{}, "m1", "", nil, nil); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, "message:m1"); ok {
		t.Fatal("message:m1 cache entry survived the association commit")
	}
}

func TestCommitRequiresIdentity(t *testing.T) {
	t.Parallel()

	c := New(Config{Host: "h.example", Store: store.NewMemoryStore()})
	_, err := CreateMessage(context.Background(), c, "s", struct{}{}, nil, nil)
	if err == nil {
		t.Fatal("guest commit succeeded")
	}
}

func TestRegisterSendsOptionAndCaptcha(t *testing.T) {
	t.Parallel()

	var gotCaptcha string
	var capture commitCapture
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/auth/passport" {
			_, _ = io.WriteString(w, "pp")
			return
		}
		gotCaptcha = r.Header.Get("Captcha")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &capture.req)
		okJSON(w, `{"ccid":"x","domain":"reg.example"}`)
	}))
	defer srv.Close()

	host := testHost(t, srv)
	c := New(Config{Host: host, Scheme: "http", Provider: newTestKeyProvider(t, host), Store: store.NewMemoryStore()})

	entity, err := c.Register(context.Background(), host, json.RawMessage(`{"inviter":"someone"}`), "inv-1", "captcha-token")
	if err != nil {
		t.Fatal(err)
	}
	if entity.Domain != "reg.example" {
		t.Fatalf("entity = %+v", entity)
	}
	if gotCaptcha != "captcha-token" {
		t.Fatalf("captcha header = %q", gotCaptcha)
	}
	if capture.req.Option == nil || capture.req.Option.Invitation != "inv-1" {
		t.Fatalf("option = %+v", capture.req.Option)
	}
}
