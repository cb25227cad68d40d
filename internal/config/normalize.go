package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSource()
	c.normalizeImport()
	c.normalizeBlob()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ManifestPath) == "" {
		c.Paths.ManifestPath = defaultManifestPath
	}
	if c.Paths.ManifestPath, err = expandPath(c.Paths.ManifestPath); err != nil {
		return fmt.Errorf("paths.manifest_path: %w", err)
	}
	if strings.TrimSpace(c.Paths.TopicsPath) == "" {
		c.Paths.TopicsPath = defaultTopicsPath
	}
	if c.Paths.TopicsPath, err = expandPath(c.Paths.TopicsPath); err != nil {
		return fmt.Errorf("paths.topics_path: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSource() {
	c.Source.BaseURL = strings.TrimRight(strings.TrimSpace(c.Source.BaseURL), "/")
	if c.Source.BaseURL == "" {
		c.Source.BaseURL = defaultSourceBaseURL
	}
	c.Source.UserAgent = strings.TrimSpace(c.Source.UserAgent)
	if c.Source.UserAgent == "" {
		c.Source.UserAgent = defaultSourceUserAgent
	}
	if c.Source.RequestTimeout == 0 {
		c.Source.RequestTimeout = defaultSourceTimeout
	}
	c.Source.Label = strings.TrimSpace(c.Source.Label)
	if c.Source.Label == "" {
		c.Source.Label = defaultSourceLabel
	}
}

func (c *Config) normalizeImport() {
	if value, ok := os.LookupEnv("DECKPORT_CREATOR_ID"); ok && strings.TrimSpace(value) != "" {
		c.Import.CreatorID = value
	}
	c.Import.CreatorID = strings.TrimSpace(c.Import.CreatorID)
}

func (c *Config) normalizeBlob() {
	c.Blob.Bucket = strings.TrimSpace(c.Blob.Bucket)
	c.Blob.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Blob.PublicBaseURL), "/")
	c.Blob.Bind = strings.TrimSpace(c.Blob.Bind)
	if c.Blob.Bind == "" {
		c.Blob.Bind = defaultBlobBind
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
