package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const (
	resolveCCID = "con1aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	resolveCSID = "ccs1aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

func TestResolveTimelineHostSuffixes(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/entity/" + resolveCCID:
			okJSON(w, `{"ccid":"`+resolveCCID+`","domain":"remote.example"}`)
		case "/api/v1/domain/" + resolveCSID:
			okJSON(w, `{"fqdn":"csid-home.example","csid":"`+resolveCSID+`"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	ctx := context.Background()

	// CCID suffix resolves through the entity record on the default host.
	host, err := c.ResolveTimelineHost(ctx, "t1@"+resolveCCID)
	if err != nil {
		t.Fatal(err)
	}
	if host != "remote.example" {
		t.Fatalf("host = %q, want remote.example", host)
	}

	// CSID suffix resolves through the domain record.
	host, err = c.ResolveTimelineHost(ctx, "t1@"+resolveCSID)
	if err != nil {
		t.Fatal(err)
	}
	if host != "csid-home.example" {
		t.Fatalf("host = %q, want csid-home.example", host)
	}

	// FQDN suffix is taken as-is, no lookup.
	host, err = c.ResolveTimelineHost(ctx, "t1@elsewhere.example")
	if err != nil {
		t.Fatal(err)
	}
	if host != "elsewhere.example" {
		t.Fatalf("host = %q, want elsewhere.example", host)
	}

	// No suffix means the default host.
	host, err = c.ResolveTimelineHost(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if host != c.Host() {
		t.Fatalf("host = %q, want default %q", host, c.Host())
	}
}

func TestResolveDomainUsesHintOnlyWhenHomeOffline(t *testing.T) {
	t.Parallel()

	var homeHits, hintHits int
	home := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		homeHits++
		okJSON(w, `{"ccid":"`+resolveCCID+`","domain":"home-answer.example"}`)
	}))
	defer home.Close()
	hint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hintHits++
		okJSON(w, `{"ccid":"`+resolveCCID+`","domain":"hint-answer.example"}`)
	}))
	defer hint.Close()

	c := newTestClient(t, home)
	ctx := context.Background()

	got, err := c.ResolveDomain(ctx, resolveCCID, testHost(t, hint))
	if err != nil {
		t.Fatal(err)
	}
	if got != "home-answer.example" || hintHits != 0 {
		t.Fatalf("got %q with hintHits=%d; hint consulted while home online", got, hintHits)
	}

	// Take the home offline: the hint becomes the fallback for an id that
	// is not cached yet.
	const otherCCID = "con1bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	c.markOffline(ctx, c.Host())
	got, err = c.ResolveDomain(ctx, otherCCID, testHost(t, hint))
	if err != nil {
		t.Fatal(err)
	}
	if got != "hint-answer.example" || hintHits != 1 {
		t.Fatalf("got %q with hintHits=%d; hint not consulted while home offline", got, hintHits)
	}
	if homeHits != 1 {
		t.Fatalf("home hit %d times after going offline", homeHits)
	}
}
