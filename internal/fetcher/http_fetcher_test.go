package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestHTTPFetcherSendsOriginAndReturnsResponse(t *testing.T) {
	var gotOrigin, gotAgent string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOrigin = r.Header.Get("Origin")
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Add("X-Multi", "1")
		w.Header().Add("X-Multi", "2")
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("hello"))
	}))
	defer upstream.Close()

	f := NewHTTPFetcher(upstream.Client(), "corsproxy-test")
	resp, err := f.Fetch(context.Background(), upstream.URL+"/a?b=c")
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}

	u, _ := url.Parse(upstream.URL)
	if gotOrigin != "http://"+u.Host {
		t.Fatalf("unexpected origin header: %s", gotOrigin)
	}
	if gotAgent != "corsproxy-test" {
		t.Fatalf("unexpected user agent: %s", gotAgent)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if string(resp.Body) != "hello" {
		t.Fatalf("unexpected body: %s", string(resp.Body))
	}
	if got := resp.Values("X-Multi"); len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Fatalf("duplicate headers must be preserved in order: %v", got)
	}
	for i := 1; i < len(resp.Headers); i++ {
		if resp.Headers[i-1].Name > resp.Headers[i].Name {
			t.Fatalf("headers should be sorted by name: %+v", resp.Headers)
		}
	}
}

func TestHTTPFetcherDoesNotFollowRedirects(t *testing.T) {
	hits := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/final", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte("final"))
	}))
	defer upstream.Close()

	resp, err := NewHTTPFetcher(http.DefaultClient, "").Fetch(context.Background(), upstream.URL+"/start")
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected first response 302, got %d", resp.StatusCode)
	}
	if got := resp.Values("Location"); len(got) != 1 || got[0] != "/final" {
		t.Fatalf("unexpected location: %v", got)
	}
	if hits != 1 {
		t.Fatalf("redirect must not be followed, hits=%d", hits)
	}
}

func TestHTTPFetcherTransportError(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	target := upstream.URL
	upstream.Close()

	_, err := NewHTTPFetcher(nil, "").Fetch(context.Background(), target)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestHTTPFetcherRejectsRelativeURL(t *testing.T) {
	_, err := NewHTTPFetcher(nil, "").Fetch(context.Background(), "image.png")
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestOriginOf(t *testing.T) {
	u, _ := url.Parse("https://example.test:8443/path/a?q=1#frag")
	if got := OriginOf(u); got != "https://example.test:8443" {
		t.Fatalf("unexpected origin: %s", got)
	}
}

func TestNewSelectsImplementation(t *testing.T) {
	f, err := New(Options{Kind: "http"})
	if err != nil {
		t.Fatalf("new error: %v", err)
	}
	if _, ok := f.(*HTTPFetcher); !ok {
		t.Fatalf("expected HTTPFetcher, got %T", f)
	}
	f, err = New(Options{Kind: "curl", CurlPath: "/usr/bin/curl"})
	if err != nil {
		t.Fatalf("new error: %v", err)
	}
	if _, ok := f.(*CommandFetcher); !ok {
		t.Fatalf("expected CommandFetcher, got %T", f)
	}
	if _, err := New(Options{Kind: "curl"}); err == nil {
		t.Fatalf("curl without path should fail")
	}
	if _, err := New(Options{Kind: "wget"}); err == nil {
		t.Fatalf("unknown kind should fail")
	}
}
