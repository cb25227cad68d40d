package docstore

import "maps"

type write struct {
	path   string
	fields Fields
	merge  bool
}

// Batch collects writes for CommitBatch.
type Batch struct {
	writes []write
}

// NewBatch returns an empty batch.
func NewBatch() *Batch { return &Batch{} }

// Set replaces the document at path.
func (b *Batch) Set(path string, fields Fields) {
	b.writes = append(b.writes, write{path: path, fields: maps.Clone(fields)})
}

// Merge overlays fields onto the document at path, creating it if absent.
func (b *Batch) Merge(path string, fields Fields) {
	b.writes = append(b.writes, write{path: path, fields: maps.Clone(fields), merge: true})
}

// Len reports the number of queued writes.
func (b *Batch) Len() int { return len(b.writes) }
