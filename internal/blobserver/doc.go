// Package blobserver serves migrated assets over HTTP.
//
// Objects are addressed as /v0/b/{bucket}/o/{object} where the object path is
// sent as a single %2F-encoded segment, and require the access token issued
// when the asset was reserved. alt=media streams the bytes; without it the
// route returns object metadata. Objects stored as public are also readable
// without a token under /public/{bucket}/{path}.
package blobserver
