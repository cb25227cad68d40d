// Package crawler discovers decks by walking topic listing pages and adds them
// to the manifest as pending entries.
package crawler
