package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// ErrUnknownDeck is returned when a snapshot operation names a deck that is
// not in the manifest.
var ErrUnknownDeck = errors.New("deck not in manifest")

// Entry is the import state of one deck.
type Entry struct {
	Imported        bool
	SourceExtension string
	TopicIDs        []string
}

// Pending pairs a deck id with its entry.
type Pending struct {
	DeckID string
	Entry  Entry
}

// Counts summarizes a snapshot.
type Counts struct {
	Total    int
	Imported int
	Pending  int
}

// Manifest is an immutable, insertion-ordered snapshot of deck import state.
// Operations that change state return a new snapshot and leave the receiver
// untouched.
type Manifest struct {
	order   []string
	entries map[string]Entry
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{entries: map[string]Entry{}}
}

// Len reports the number of decks.
func (m *Manifest) Len() int {
	return len(m.order)
}

// Get returns the entry for deckID.
func (m *Manifest) Get(deckID string) (Entry, bool) {
	entry, ok := m.entries[deckID]
	if !ok {
		return Entry{}, false
	}
	entry.TopicIDs = slices.Clone(entry.TopicIDs)
	return entry, true
}

// DeckIDs returns every deck id in insertion order.
func (m *Manifest) DeckIDs() []string {
	return slices.Clone(m.order)
}

// Pending returns the entries not yet imported, in insertion order.
func (m *Manifest) Pending() []Pending {
	out := make([]Pending, 0, len(m.order))
	for _, id := range m.order {
		entry := m.entries[id]
		if entry.Imported {
			continue
		}
		entry.TopicIDs = slices.Clone(entry.TopicIDs)
		out = append(out, Pending{DeckID: id, Entry: entry})
	}
	return out
}

// Counts tallies imported and pending decks.
func (m *Manifest) Counts() Counts {
	c := Counts{Total: len(m.order)}
	for _, id := range m.order {
		if m.entries[id].Imported {
			c.Imported++
		}
	}
	c.Pending = c.Total - c.Imported
	return c
}

// MarkImported returns a snapshot in which deckID is imported. Marking an
// already imported deck returns the receiver.
func (m *Manifest) MarkImported(deckID string) (*Manifest, error) {
	entry, ok := m.entries[deckID]
	if !ok {
		return nil, fmt.Errorf("mark %s imported: %w", deckID, ErrUnknownDeck)
	}
	if entry.Imported {
		return m, nil
	}
	next := m.clone()
	entry.Imported = true
	next.entries[deckID] = entry
	return next, nil
}

// Merge returns a snapshot that contains deckID. A new deck is appended as not
// imported; an existing deck keeps its state and extension and gains any topic
// ids it did not already carry.
func (m *Manifest) Merge(deckID, sourceExtension string, topicIDs []string) *Manifest {
	next := m.clone()
	entry, ok := next.entries[deckID]
	if !ok {
		next.order = append(next.order, deckID)
		next.entries[deckID] = Entry{
			SourceExtension: sourceExtension,
			TopicIDs:        unionTopics(nil, topicIDs),
		}
		return next
	}
	entry.TopicIDs = unionTopics(entry.TopicIDs, topicIDs)
	next.entries[deckID] = entry
	return next
}

func (m *Manifest) clone() *Manifest {
	next := &Manifest{
		order:   slices.Clone(m.order),
		entries: make(map[string]Entry, len(m.entries)+1),
	}
	for id, entry := range m.entries {
		next.entries[id] = entry
	}
	return next
}

func unionTopics(existing, added []string) []string {
	out := make([]string, 0, len(existing)+len(added))
	seen := make(map[string]struct{}, cap(out))
	for _, list := range [][]string{existing, added} {
		for _, id := range list {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

type entryRecord struct {
	Imported        bool     `json:"imported"`
	SourceExtension string   `json:"sourceExtension"`
	TopicIDs        []string `json:"topicIds"`
}

// legacyRecord accepts both the current keys and the older extension/topics keys.
type legacyRecord struct {
	entryRecord
	Extension string   `json:"extension"`
	Topics    []string `json:"topics"`
}

// MarshalJSON writes the snapshot as a JSON object keyed by deck id, in
// insertion order.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range m.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		entry := m.entries[id]
		topics := entry.TopicIDs
		if topics == nil {
			topics = []string{}
		}
		value, err := json.Marshal(entryRecord{
			Imported:        entry.Imported,
			SourceExtension: entry.SourceExtension,
			TopicIDs:        topics,
		})
		if err != nil {
			return nil, fmt.Errorf("encode deck %s: %w", id, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keyed by deck id, keeping key order. A
// repeated key keeps its first position and its last value.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	*m = Manifest{entries: map[string]Entry{}}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("manifest must be a JSON object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected manifest key %v", tok)
		}
		var rec legacyRecord
		if err := dec.Decode(&rec); err != nil {
			return fmt.Errorf("decode deck %s: %w", id, err)
		}
		entry := Entry{
			Imported:        rec.Imported,
			SourceExtension: rec.SourceExtension,
			TopicIDs:        unionTopics(rec.TopicIDs, rec.Topics),
		}
		if entry.SourceExtension == "" {
			entry.SourceExtension = rec.Extension
		}
		if _, seen := m.entries[id]; !seen {
			m.order = append(m.order, id)
		}
		m.entries[id] = entry
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
