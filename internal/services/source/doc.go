// Package source is the HTTP client for the platform decks are migrated from.
//
// It fetches deck pages, topic listing pages, and raw asset bytes. Every
// failure it returns is a transport-level failure: either the request could
// not complete or the server answered with a non-2xx *StatusError. Callers
// decide what such a failure means for a deck.
package source
