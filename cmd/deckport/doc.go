// Package main hosts the deckport CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration, builds the structured logger,
// opens the document and blob stores, and hands off to the crawler, importer,
// and blob server packages. Commands stay thin: behavior lives in internal/.
package main
