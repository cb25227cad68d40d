// Package config loads, normalizes, and validates deckport configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the DECKPORT_CREATOR_ID
// environment fallback. Section size and asset chunk size are fixed per
// deployment here; nothing downstream negotiates them at runtime.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
