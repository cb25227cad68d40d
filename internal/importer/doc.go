// Package importer drives the catalog migration.
//
// Each pending manifest entry moves through Extracting, Writing, AssetsQueued
// and Draining before it is Imported. Failures end in PermanentlySkipped or
// Retryable depending on their services.Kind. Decks are imported strictly one
// after another and the manifest is persisted after every deck that changes
// state, which is what makes a pass safe to interrupt and resume.
package importer
