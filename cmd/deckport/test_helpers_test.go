package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"deckport/internal/config"
	"deckport/internal/manifest"
	"deckport/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	source     *testsupport.SourceServer
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	src := testsupport.NewSourceServer(t)
	cfg := testsupport.NewConfig(t, testsupport.WithSourceURL(src.URL))
	cfg.Logging.Level = "error"
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))

	configPath := filepath.Join(base, "deckport.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		source:     src,
		configPath: configPath,
		baseDir:    base,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func seedManifest(t *testing.T, cfg *config.Config, m *manifest.Manifest) {
	t.Helper()
	if err := manifest.NewStore(cfg.Paths.ManifestPath, nil).Persist(m); err != nil {
		t.Fatalf("seed manifest: %v", err)
	}
}

func loadManifest(t *testing.T, cfg *config.Config) *manifest.Manifest {
	t.Helper()
	m, err := manifest.NewStore(cfg.Paths.ManifestPath, nil).Load()
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	return m
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
