// Package manifest is the durable checkpoint of the deck import.
//
// The snapshot file maps deck ids to {imported, sourceExtension, topicIds}
// and keeps the order decks were added in, which is also the order pending
// decks are imported. A Manifest value is never modified in place: marking a
// deck imported or merging crawler results yields a new snapshot, and Store
// replaces the file wholesale on every Persist.
package manifest
