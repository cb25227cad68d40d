package manifest_test

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"deckport/internal/manifest"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	store := manifest.NewStore(filepath.Join(t.TempDir(), "decks.json"), nil)
	m, err := store.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("expected empty manifest, got %d entries", m.Len())
	}
}

func TestPendingKeepsInsertionOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decks.json")
	writeFile(t, path, `{
		"900": {"imported": false, "sourceExtension": "z-deck", "topicIds": ["a"]},
		"12":  {"imported": true,  "sourceExtension": "done", "topicIds": []},
		"345": {"imported": false, "sourceExtension": "m-deck", "topicIds": ["b", "c"]}
	}`)

	m, err := manifest.NewStore(path, nil).Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	pending := m.Pending()
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending entries, got %d", len(pending))
	}
	if pending[0].DeckID != "900" || pending[1].DeckID != "345" {
		t.Fatalf("unexpected pending order: %+v", pending)
	}
	if pending[1].Entry.SourceExtension != "m-deck" || !slices.Equal(pending[1].Entry.TopicIDs, []string{"b", "c"}) {
		t.Fatalf("unexpected entry: %+v", pending[1].Entry)
	}
	if got := m.DeckIDs(); !slices.Equal(got, []string{"900", "12", "345"}) {
		t.Fatalf("unexpected deck order: %v", got)
	}
}

func TestLoadAcceptsLegacyKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decks.json")
	writeFile(t, path, `{"7":{"imported":false,"extension":"old-style","topics":["t1","t1","t2"]}}`)

	m, err := manifest.NewStore(path, nil).Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	entry, ok := m.Get("7")
	if !ok {
		t.Fatal("expected deck 7")
	}
	if entry.SourceExtension != "old-style" {
		t.Fatalf("unexpected extension %q", entry.SourceExtension)
	}
	if !slices.Equal(entry.TopicIDs, []string{"t1", "t2"}) {
		t.Fatalf("expected deduplicated topics, got %v", entry.TopicIDs)
	}
}

func TestMarkImportedReturnsNewSnapshot(t *testing.T) {
	m := manifest.New().Merge("42", "biology-101", []string{"science"})

	next, err := m.MarkImported("42")
	if err != nil {
		t.Fatalf("MarkImported returned error: %v", err)
	}
	if entry, _ := m.Get("42"); entry.Imported {
		t.Fatal("expected original snapshot to stay unchanged")
	}
	if entry, _ := next.Get("42"); !entry.Imported {
		t.Fatal("expected new snapshot to be imported")
	}
	again, err := next.MarkImported("42")
	if err != nil || again != next {
		t.Fatalf("expected idempotent mark, got %v (err=%v)", again, err)
	}
	if _, err := m.MarkImported("missing"); !errors.Is(err, manifest.ErrUnknownDeck) {
		t.Fatalf("expected ErrUnknownDeck, got %v", err)
	}
}

func TestMergeUnionsTopicsAndPreservesState(t *testing.T) {
	m := manifest.New().Merge("1", "first", []string{"a"})
	m, _ = m.MarkImported("1")
	m = m.Merge("2", "second", []string{"b"})
	m = m.Merge("1", "renamed", []string{"a", "c"})

	entry, _ := m.Get("1")
	if !entry.Imported {
		t.Fatal("merge must not reset imported")
	}
	if entry.SourceExtension != "first" {
		t.Fatalf("merge must keep the original extension, got %q", entry.SourceExtension)
	}
	if !slices.Equal(entry.TopicIDs, []string{"a", "c"}) {
		t.Fatalf("unexpected topics %v", entry.TopicIDs)
	}
	if got := m.DeckIDs(); !slices.Equal(got, []string{"1", "2"}) {
		t.Fatalf("unexpected order %v", got)
	}
	counts := m.Counts()
	if counts.Total != 2 || counts.Imported != 1 || counts.Pending != 1 {
		t.Fatalf("unexpected counts %+v", counts)
	}
}

func TestPersistRoundTripAndLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "decks.json")
	store := manifest.NewStore(path, nil)

	m := manifest.New().
		Merge("b", "bee", []string{"x"}).
		Merge("a", "ay", nil)
	m, _ = m.MarkImported("b")
	if err := store.Persist(m); err != nil {
		t.Fatalf("Persist returned error: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	text := string(raw)
	if strings.Index(text, `"b"`) > strings.Index(text, `"a"`) {
		t.Fatalf("expected insertion order in file, got %s", text)
	}
	if !strings.Contains(text, `"topicIds": []`) {
		t.Fatalf("expected empty topic list to be written as [], got %s", text)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if entry, _ := loaded.Get("b"); !entry.Imported || entry.SourceExtension != "bee" {
		t.Fatalf("unexpected entry after reload: %+v", entry)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temporary file left behind: %s", e.Name())
		}
	}
}

func TestPersistFailureKeepsPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "decks.json")
	store := manifest.NewStore(path, nil)
	if err := store.Persist(manifest.New().Merge("1", "one", nil)); err != nil {
		t.Fatalf("Persist returned error: %v", err)
	}

	// A directory occupying the target path makes the rename fail.
	blocked := manifest.NewStore(filepath.Join(dir, "blocked"), nil)
	if err := os.MkdirAll(filepath.Join(dir, "blocked", "child"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := blocked.Persist(manifest.New()); err == nil {
		t.Fatal("expected persist over a directory to fail")
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded.Len() != 1 {
		t.Fatalf("expected previous snapshot intact, got %d entries", loaded.Len())
	}
}

func TestLockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decks.json")
	first := manifest.NewStore(path, nil)
	second := manifest.NewStore(path, nil)

	if err := first.Lock(); err != nil {
		t.Fatalf("first Lock returned error: %v", err)
	}
	defer first.Unlock()

	if err := second.Lock(); !errors.Is(err, manifest.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}
