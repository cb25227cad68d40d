package blobserver_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"deckport/internal/blobserver"
	"deckport/internal/blobstore"
	"deckport/internal/logging"
)

func newServer(t *testing.T) (*httptest.Server, *blobstore.Store) {
	t.Helper()
	store, err := blobstore.New(t.TempDir(), logging.NewNop())
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	if err := store.Store(ctx, "deck-assets/d1/a1", []byte("image-bytes"), blobstore.Attributes{
		ContentType: "image/png", Public: true, AccessToken: "tok-1", Owner: "creator",
	}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := store.Store(ctx, "private/p1", []byte("secret"), blobstore.Attributes{
		ContentType: "text/plain", AccessToken: "tok-2",
	}); err != nil {
		t.Fatalf("Store: %v", err)
	}

	srv := httptest.NewServer(blobserver.New(store, "bucket", logging.NewNop()).Handler())
	t.Cleanup(srv.Close)
	return srv, store
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func TestAccessURLServesMedia(t *testing.T) {
	srv, _ := newServer(t)
	resp, body := get(t, blobstore.AccessURL(srv.URL, "bucket", "deck-assets/d1/a1", "tok-1"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	if string(body) != "image-bytes" {
		t.Fatalf("unexpected body %q", body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestAccessURLRejectsBadToken(t *testing.T) {
	srv, _ := newServer(t)
	for _, token := range []string{"", "wrong"} {
		resp, _ := get(t, blobstore.AccessURL(srv.URL, "bucket", "deck-assets/d1/a1", token))
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("token %q: expected 403, got %d", token, resp.StatusCode)
		}
	}
}

func TestUnknownObjectAndBucket(t *testing.T) {
	srv, _ := newServer(t)
	if resp, _ := get(t, blobstore.AccessURL(srv.URL, "bucket", "deck-assets/d1/none", "tok-1")); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown object, got %d", resp.StatusCode)
	}
	if resp, _ := get(t, blobstore.AccessURL(srv.URL, "other", "deck-assets/d1/a1", "tok-1")); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown bucket, got %d", resp.StatusCode)
	}
}

func TestMetadataWithoutAltMedia(t *testing.T) {
	srv, _ := newServer(t)
	resp, body := get(t, srv.URL+"/v0/b/bucket/o/deck-assets%2Fd1%2Fa1?token=tok-1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var meta map[string]string
	if err := json.Unmarshal(body, &meta); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if meta["name"] != "deck-assets/d1/a1" || meta["contentType"] != "image/png" || meta["size"] != "11" {
		t.Fatalf("unexpected metadata %v", meta)
	}
}

func TestPublicRoute(t *testing.T) {
	srv, _ := newServer(t)
	resp, body := get(t, srv.URL+"/public/bucket/deck-assets/d1/a1")
	if resp.StatusCode != http.StatusOK || string(body) != "image-bytes" {
		t.Fatalf("expected public object, got %d %q", resp.StatusCode, body)
	}
	if resp, _ := get(t, srv.URL+"/public/bucket/private/p1"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected private object hidden, got %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newServer(t)
	if resp, _ := get(t, srv.URL+"/healthz"); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	store, err := blobstore.New(t.TempDir(), logging.NewNop())
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- blobserver.New(store, "bucket", logging.NewNop()).Serve(ctx, "127.0.0.1:0") }()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Serve: %v", err)
	}
}
