package testsupport

import (
	"path/filepath"
	"testing"

	"deckport/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.ManifestPath = filepath.Join(base, "decks.json")
	cfg.Paths.TopicsPath = filepath.Join(base, "topics.json")
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Import.CreatorID = "test-creator"
	cfg.Blob.Bucket = "test-bucket"
	cfg.Blob.PublicBaseURL = "http://blobs.test"
	cfg.Blob.Bind = "127.0.0.1:0"
	cfg.Logging.RetentionDays = 0

	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithSourceURL points the source platform at a test server.
func WithSourceURL(url string) ConfigOption {
	return func(c *config.Config) { c.Source.BaseURL = url }
}

// WithSectionSize overrides the maximum number of cards per section.
func WithSectionSize(n int) ConfigOption {
	return func(c *config.Config) { c.Import.SectionSize = n }
}

// WithAssetChunkSize overrides the number of concurrent asset transfers per chunk.
func WithAssetChunkSize(n int) ConfigOption {
	return func(c *config.Config) { c.Import.AssetChunkSize = n }
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ManifestPath)
}
