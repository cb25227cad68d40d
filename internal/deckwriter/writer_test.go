package deckwriter_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"deckport/internal/deckwriter"
	"deckport/internal/docstore"
	"deckport/internal/extract"
	"deckport/internal/logging"
	"deckport/internal/render"
	"deckport/internal/services"
	"deckport/internal/testsupport"
)

type fakeReserver struct {
	mu      sync.Mutex
	cards   []string
	covers  []string
	failURL string
}

func (f *fakeReserver) ReserveCardAsset(deckID, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if url == f.failURL {
		return "", services.Wrap(services.ErrUnknownContentType, "writing", "reserve asset", url, nil)
	}
	f.cards = append(f.cards, url)
	return fmt.Sprintf("http://blobs.test/%s/%d", deckID, len(f.cards)), nil
}

func (f *fakeReserver) ReserveDeckCover(deckID, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if url == f.failURL {
		return "", services.Wrap(services.ErrUnknownContentType, "writing", "reserve asset", url, nil)
	}
	f.covers = append(f.covers, url)
	return "http://blobs.test/cover/" + deckID, nil
}

func textTerms(n int) []extract.Term {
	terms := make([]extract.Term, n)
	for i := range terms {
		terms[i] = extract.Term{ID: int64(i + 1), FrontText: fmt.Sprintf("front %d", i+1), BackText: fmt.Sprintf("back %d", i+1)}
	}
	return terms
}

func newWriter(t *testing.T, sectionSize int) (*deckwriter.Writer, *docstore.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	docs := testsupport.OpenDocStore(t, cfg)
	w := deckwriter.New(docs, render.New(), deckwriter.Options{
		SectionSize: sectionSize,
		CreatorID:   "creator",
		SourceLabel: "quizlet",
	}, logging.NewNop())
	return w, docs
}

func TestWritePartitionsIntoSections(t *testing.T) {
	w, docs := newWriter(t, 50)
	ctx := context.Background()

	result, err := w.Write(ctx, &fakeReserver{}, deckwriter.Deck{ID: "42", Name: "Biology", TopicIDs: []string{"science"}}, textTerms(120))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := fmt.Sprint(result.SectionCounts); got != "[50 50 20]" {
		t.Fatalf("unexpected section sizes %s", got)
	}

	sections, err := docs.List(ctx, docstore.SectionsPath("42"))
	if err != nil {
		t.Fatalf("List sections: %v", err)
	}
	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(sections))
	}
	for i, s := range sections {
		if s.Int("index") != int64(i) || s.String("name") != fmt.Sprintf("Section %d", i+1) {
			t.Fatalf("section %d has unexpected fields %+v", i, s.Fields)
		}
		if s.Int("cardCount") != int64(result.SectionCounts[i]) {
			t.Fatalf("section %d cardCount = %d", i, s.Int("cardCount"))
		}
	}

	cards, err := docs.List(ctx, docstore.CardsPath("42"))
	if err != nil {
		t.Fatalf("List cards: %v", err)
	}
	if len(cards) != 120 {
		t.Fatalf("expected 120 cards, got %d", len(cards))
	}
	for i, c := range cards {
		wantSection := sections[i/50].ID
		if c.String("section") != wantSection {
			t.Fatalf("card %d in section %s, want %s", i, c.String("section"), wantSection)
		}
		if !strings.Contains(c.String("front"), fmt.Sprintf("front %d", i+1)) {
			t.Fatalf("card %d out of order: %q", i, c.String("front"))
		}
		for _, counter := range []string{"viewCount", "reviewCount", "skipCount"} {
			if _, ok := c.Fields[counter]; !ok || c.Int(counter) != 0 {
				t.Fatalf("card %d counter %s not zero", i, counter)
			}
		}
	}

	deck, err := docs.Get(ctx, docstore.DeckPath("42"))
	if err != nil {
		t.Fatalf("Get deck: %v", err)
	}
	if deck.Int("cardCount") != 120 {
		t.Fatalf("deck cardCount = %d", deck.Int("cardCount"))
	}
}

func TestSectionCountMatchesCeiling(t *testing.T) {
	for n := 0; n <= 7; n++ {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			w, docs := newWriter(t, 3)
			ctx := context.Background()
			if _, err := w.Write(ctx, &fakeReserver{}, deckwriter.Deck{ID: "d", Name: "D"}, textTerms(n)); err != nil {
				t.Fatalf("Write: %v", err)
			}
			got, err := docs.Count(ctx, docstore.SectionsPath("d"))
			if err != nil {
				t.Fatalf("Count: %v", err)
			}
			if want := deckwriter.SectionCount(n, 3); got != want {
				t.Fatalf("expected %d sections, got %d", want, got)
			}
			if want := (n + 2) / 3; got != want {
				t.Fatalf("expected ceil(%d/3)=%d sections, got %d", n, want, got)
			}
		})
	}
}

func TestDeckRecordFields(t *testing.T) {
	w, docs := newWriter(t, 50)
	ctx := context.Background()
	reserver := &fakeReserver{}

	result, err := w.Write(ctx, reserver, deckwriter.Deck{
		ID:            "7",
		Name:          "Chemistry",
		TopicIDs:      []string{"t1", "t2"},
		CoverImageURL: "https://o.source.test/cover.jpg",
	}, textTerms(1))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if result.CoverURL != "http://blobs.test/cover/7" || len(reserver.covers) != 1 {
		t.Fatalf("cover not reserved: %+v %+v", result, reserver.covers)
	}

	deck, err := docs.Get(ctx, docstore.DeckPath("7"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !deck.Bool("hasImage") || deck.String("name") != "Chemistry" || deck.String("source") != "quizlet" || deck.String("creator") != "creator" {
		t.Fatalf("unexpected deck fields %+v", deck.Fields)
	}
	for _, counter := range []string{"viewCount", "ratingCount", "3StarRatingCount", "averageRating", "favoriteCount"} {
		if _, ok := deck.Fields[counter]; !ok || deck.Int(counter) != 0 {
			t.Fatalf("counter %s not initialized to zero", counter)
		}
	}
	if deck.String("subtitle") != "" || deck.String("created") == "" {
		t.Fatalf("unexpected descriptive fields %+v", deck.Fields)
	}
}

func TestWriteExistingDeck(t *testing.T) {
	w, docs := newWriter(t, 50)
	ctx := context.Background()
	if err := docs.CreateIfAbsent(ctx, docstore.DeckPath("42"), docstore.Fields{"name": "Earlier"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := w.Write(ctx, &fakeReserver{}, deckwriter.Deck{ID: "42", Name: "Biology"}, textTerms(10))
	if services.Classify(err) != services.KindDeckAlreadyExists {
		t.Fatalf("expected deck already exists, got %v", err)
	}
	deck, err := docs.Get(ctx, docstore.DeckPath("42"))
	if err != nil {
		t.Fatalf("existing deck removed: %v", err)
	}
	if deck.String("name") != "Earlier" {
		t.Fatalf("existing deck modified: %+v", deck.Fields)
	}
	if n, _ := docs.Count(ctx, docstore.SectionsPath("42")); n != 0 {
		t.Fatalf("expected no sections, got %d", n)
	}
}

func TestUnknownContentTypeRollsBack(t *testing.T) {
	w, docs := newWriter(t, 2)
	ctx := context.Background()
	terms := textTerms(5)
	terms[3].ImageURL = "https://o.source.test/blob"

	_, err := w.Write(ctx, &fakeReserver{failURL: "https://o.source.test/blob"}, deckwriter.Deck{ID: "9", Name: "N"}, terms)
	if services.Classify(err) != services.KindUnknownContentType {
		t.Fatalf("expected unknown content type, got %v", err)
	}
	if _, err := docs.Get(ctx, docstore.DeckPath("9")); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected deck rolled back, got %v", err)
	}
	if n, _ := docs.Count(ctx, docstore.SectionsPath("9")); n != 0 {
		t.Fatalf("expected sections rolled back, got %d", n)
	}
}

func TestCoverFailureRollsBack(t *testing.T) {
	w, docs := newWriter(t, 50)
	ctx := context.Background()

	_, err := w.Write(ctx, &fakeReserver{failURL: "https://o.source.test/cover"}, deckwriter.Deck{
		ID:            "11",
		Name:          "N",
		CoverImageURL: "https://o.source.test/cover",
	}, textTerms(3))
	if services.Classify(err) != services.KindUnknownContentType {
		t.Fatalf("expected unknown content type, got %v", err)
	}
	if _, err := docs.Get(ctx, docstore.DeckPath("11")); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected deck rolled back, got %v", err)
	}
}

func TestCardMarkupUsesReservedURLs(t *testing.T) {
	w, docs := newWriter(t, 50)
	ctx := context.Background()
	terms := []extract.Term{{
		ID:            1,
		FrontText:     "**cell**",
		BackText:      "unit of life",
		ImageURL:      "https://o.source.test/cell.png",
		FrontAudioURL: "https://o.source.test/cell.mp3",
	}}

	if _, err := w.Write(ctx, &fakeReserver{}, deckwriter.Deck{ID: "5", Name: "N"}, terms); err != nil {
		t.Fatalf("Write: %v", err)
	}
	cards, err := docs.List(ctx, docstore.CardsPath("5"))
	if err != nil || len(cards) != 1 {
		t.Fatalf("List: %v (%d cards)", err, len(cards))
	}
	front := cards[0].String("front")
	back := cards[0].String("back")
	if front != `<audio src="http://blobs.test/5/2"></audio><h3 style="text-align:center;"><strong>cell</strong></h3>` {
		t.Fatalf("unexpected front %q", front)
	}
	if back != `<figure class="image"><img src="http://blobs.test/5/1"></figure><h3 style="text-align:center;">unit of life</h3>` {
		t.Fatalf("unexpected back %q", back)
	}
}
