package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"deckport/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantManifest := filepath.Join(tempHome, ".local", "share", "deckport", "decks.json")
	if cfg.Paths.ManifestPath != wantManifest {
		t.Fatalf("unexpected manifest path: got %q want %q", cfg.Paths.ManifestPath, wantManifest)
	}
	if cfg.Import.SectionSize != 50 {
		t.Fatalf("expected default section size 50, got %d", cfg.Import.SectionSize)
	}
	if cfg.Import.AssetChunkSize != 200 {
		t.Fatalf("expected default asset chunk size 200, got %d", cfg.Import.AssetChunkSize)
	}
	if cfg.Import.CrawlBeforeImport {
		t.Fatal("expected crawler disabled by default")
	}
	if cfg.Source.BaseURL != "https://quizlet.com" {
		t.Fatalf("unexpected source base url: %q", cfg.Source.BaseURL)
	}
	if got := cfg.DocumentStorePath(); got != filepath.Join(tempHome, ".local", "share", "deckport", "deckport.db") {
		t.Fatalf("unexpected document store path: %q", got)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, filepath.Dir(cfg.Paths.ManifestPath)} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist", dir)
		}
	}
}

func TestLoadCustomConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	custom := config.Default()
	custom.Paths.ManifestPath = "~/decks/manifest.json"
	custom.Source.BaseURL = "https://example.test/"
	custom.Import.SectionSize = 10
	custom.Import.AssetChunkSize = 3
	custom.Import.CreatorID = "creator-1"
	custom.Blob.PublicBaseURL = "https://blobs.example.test/"
	custom.Logging.Format = "JSON"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %q to be used, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Paths.ManifestPath != filepath.Join(tempHome, "decks", "manifest.json") {
		t.Fatalf("unexpected manifest path: %q", cfg.Paths.ManifestPath)
	}
	if cfg.Source.BaseURL != "https://example.test" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Source.BaseURL)
	}
	if cfg.Blob.PublicBaseURL != "https://blobs.example.test" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Blob.PublicBaseURL)
	}
	if cfg.Import.SectionSize != 10 || cfg.Import.AssetChunkSize != 3 {
		t.Fatalf("unexpected import sizing: %+v", cfg.Import)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lower-cased log format, got %q", cfg.Logging.Format)
	}
}

func TestCreatorIDFromEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DECKPORT_CREATOR_ID", "env-creator")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Import.CreatorID != "env-creator" {
		t.Fatalf("expected creator from env, got %q", cfg.Import.CreatorID)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"section size", func(c *config.Config) { c.Import.SectionSize = 0 }, "import.section_size"},
		{"chunk size", func(c *config.Config) { c.Import.AssetChunkSize = -1 }, "import.asset_chunk_size"},
		{"creator", func(c *config.Config) { c.Import.CreatorID = "" }, "import.creator_id"},
		{"source url", func(c *config.Config) { c.Source.BaseURL = "ftp://example" }, "source.base_url"},
		{"bucket", func(c *config.Config) { c.Blob.Bucket = "" }, "blob.bucket"},
		{"public url", func(c *config.Config) { c.Blob.PublicBaseURL = "" }, "blob.public_base_url"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Blob.Bucket != "deckport.local" {
		t.Fatalf("unexpected bucket from sample: %q", cfg.Blob.Bucket)
	}
}
