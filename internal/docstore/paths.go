package docstore

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const (
	idLength   = 20
	idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// NewID returns a random 20-character alphanumeric document id.
func NewID() string {
	const limit = 256 - 256%len(idAlphabet)
	out := make([]byte, 0, idLength)
	buf := make([]byte, idLength*2)
	for len(out) < idLength {
		if _, err := rand.Read(buf); err != nil {
			panic(fmt.Sprintf("docstore: read random bytes: %v", err))
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, idAlphabet[int(b)%len(idAlphabet)])
			if len(out) == idLength {
				break
			}
		}
	}
	return string(out)
}

// DecksCollection is the top-level collection of deck documents.
const DecksCollection = "decks"

// DeckPath is the document path of a deck.
func DeckPath(deckID string) string { return DecksCollection + "/" + deckID }

// SectionsPath is the collection holding a deck's sections.
func SectionsPath(deckID string) string { return DeckPath(deckID) + "/sections" }

// CardsPath is the collection holding a deck's cards.
func CardsPath(deckID string) string { return DeckPath(deckID) + "/cards" }

// SectionPath is the document path of one section.
func SectionPath(deckID, sectionID string) string { return SectionsPath(deckID) + "/" + sectionID }

// CardPath is the document path of one card.
func CardPath(deckID, cardID string) string { return CardsPath(deckID) + "/" + cardID }

// splitDocumentPath returns the collection and id of a document path. Document
// paths alternate collection and id segments, so they always have an even
// number of segments.
func splitDocumentPath(docPath string) (collection, id string, err error) {
	docPath = strings.Trim(docPath, "/")
	segments := strings.Split(docPath, "/")
	if docPath == "" || len(segments)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, docPath)
	}
	for _, seg := range segments {
		if seg == "" {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, docPath)
		}
	}
	i := strings.LastIndexByte(docPath, '/')
	return docPath[:i], docPath[i+1:], nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
