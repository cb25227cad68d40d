// Package blobstore keeps migrated media on local disk.
//
// Object bytes are content-addressed by SHA-256 and the object index lives in a
// bbolt database next to them. AccessURL produces the tokenized download URL
// served by the blobserver package.
package blobstore
