package testsupport

import (
	"context"
	"testing"

	"deckport/internal/blobstore"
	"deckport/internal/config"
	"deckport/internal/docstore"
	"deckport/internal/logging"
)

// OpenDocStore opens the configured document store and registers cleanup.
func OpenDocStore(t testing.TB, cfg *config.Config) *docstore.Store {
	t.Helper()

	store, err := docstore.Open(context.Background(), cfg.DocumentStorePath(), logging.NewNop())
	if err != nil {
		t.Fatalf("docstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// OpenBlobStore opens the configured blob store and registers cleanup.
func OpenBlobStore(t testing.TB, cfg *config.Config) *blobstore.Store {
	t.Helper()

	store, err := blobstore.New(cfg.BlobDir(), logging.NewNop())
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
