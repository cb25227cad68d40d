package main

import (
	"path/filepath"
	"testing"

	"deckport/internal/manifest"
	"deckport/internal/testsupport"
)

func TestCrawlCommandMergesDiscoveredDecks(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteJSON(t, env.cfg.Paths.TopicsPath, map[string][]string{
		"topic-bio": {"biology"},
	})
	env.source.AddTopicPage("biology", 1, testsupport.TopicPage(env.source.URL, 1, "42/biology-101", "43/cells"))
	seedManifest(t, env.cfg, manifest.New().Merge("42", "biology-101", nil))

	out, _, err := runCLI(t, []string{"crawl"}, env.configPath)
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	requireContains(t, out, "New decks")

	m := loadManifest(t, env.cfg)
	if m.Len() != 2 {
		t.Fatalf("expected 2 decks after crawl, got %d", m.Len())
	}
	entry, ok := m.Get("43")
	if !ok || entry.SourceExtension != "cells" || entry.Imported {
		t.Fatalf("unexpected entry for 43: %+v (present=%v)", entry, ok)
	}
	if len(entry.TopicIDs) != 1 || entry.TopicIDs[0] != "topic-bio" {
		t.Fatalf("expected topic-bio, got %v", entry.TopicIDs)
	}
}

func TestCrawlCommandWithoutTopics(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Paths.TopicsPath = filepath.Join(env.baseDir, "missing.json")
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"crawl"}, env.configPath)
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	requireContains(t, out, "nothing to crawl")
}
