package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSource(); err != nil {
		return err
	}
	if err := c.validateImport(); err != nil {
		return err
	}
	if err := c.validateBlob(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.ManifestPath == "" {
		return errors.New("paths.manifest_path must be set")
	}
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateSource() error {
	if err := validateAbsoluteURL("source.base_url", c.Source.BaseURL); err != nil {
		return err
	}
	if c.Source.RequestTimeout < 0 {
		return errors.New("source.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateImport() error {
	if c.Import.SectionSize <= 0 {
		return errors.New("import.section_size must be positive")
	}
	if c.Import.AssetChunkSize <= 0 {
		return errors.New("import.asset_chunk_size must be positive")
	}
	if c.Import.CreatorID == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("import.creator_id is required. Set DECKPORT_CREATOR_ID env var or edit %s (create with 'deckport config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateBlob() error {
	if c.Blob.Bucket == "" {
		return errors.New("blob.bucket must be set")
	}
	return validateAbsoluteURL("blob.public_base_url", c.Blob.PublicBaseURL)
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	return nil
}

func validateAbsoluteURL(key, value string) error {
	if value == "" {
		return fmt.Errorf("%s must be set", key)
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", key, value)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", key)
	}
	return nil
}
