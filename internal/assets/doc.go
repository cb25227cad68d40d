// Package assets migrates media referenced by decks and cards into the blob
// store.
//
// Migration is two-phase. Reserve resolves the content type, mints an access
// token, and returns the final access URL immediately so the URL can be
// embedded in card markup before any bytes move. Drain later performs the
// transfers in fixed-size chunks: chunks run sequentially, transfers within a
// chunk run concurrently, and a failed transfer only affects its own asset.
//
// One Migrator is owned by one deck import; it holds no global state.
package assets
