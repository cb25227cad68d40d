// Package deckwriter writes an extracted deck to the document store: the deck
// record, its sections in index order, and every card in one atomic batch.
package deckwriter
