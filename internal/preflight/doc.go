// Package preflight provides readiness checks for the filesystem paths and the
// source platform an import pass depends on.
//
// The importer runs Verify before each pass; if any check fails the pass is
// abandoned before a single deck is touched. The status command shows the
// individual results.
package preflight
