// Package docstore is the document database decks are written to.
//
// Documents live at slash-separated paths that alternate collection names and
// document ids (decks/{deck}/cards/{card}). Each document holds a JSON field
// map. The store supports create-if-absent, atomic write batches, listing a
// collection in creation order, and deleting a document together with its
// nested collections. Data is kept in SQLite through the pure-Go
// modernc.org/sqlite driver.
package docstore
