package extract_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"deckport/internal/extract"
	"deckport/internal/services"
	"deckport/internal/services/source"
	"deckport/internal/testsupport"
)

func TestParseFollowsOriginalOrder(t *testing.T) {
	terms := []testsupport.FakeTerm{
		{ID: 30, Word: "third id", Definition: "c"},
		{ID: 10, Word: "first id", Definition: "a", ImageURL: "/tpl/img.png", WordAudioURL: "/tts/w.mp3"},
		{ID: 20, Word: "second id", Definition: "b", DefinitionAudioURL: "https://audio.test/d.mp3"},
	}
	page := testsupport.DeckPage(t, "Biology 101", "https://img.test/cover.jpg", terms)

	data, err := extract.Parse(page)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if data.Name != "Biology 101" {
		t.Fatalf("unexpected name %q", data.Name)
	}
	if data.CoverImageURL != "https://img.test/cover.jpg" {
		t.Fatalf("unexpected cover %q", data.CoverImageURL)
	}
	if len(data.Terms) != 3 {
		t.Fatalf("expected 3 terms, got %d", len(data.Terms))
	}
	for i, want := range []int64{30, 10, 20} {
		if data.Terms[i].ID != want {
			t.Fatalf("term %d: got id %d want %d", i, data.Terms[i].ID, want)
		}
	}
	second := data.Terms[1]
	if second.ImageURL != "/tpl/img.png" || second.FrontAudioURL != "/tts/w.mp3" || second.BackAudioURL != "" {
		t.Fatalf("unexpected media fields: %+v", second)
	}
	if data.Terms[2].BackAudioURL != "https://audio.test/d.mp3" {
		t.Fatalf("unexpected back audio: %+v", data.Terms[2])
	}
}

func TestParseNormalizesText(t *testing.T) {
	// "e" followed by a combining acute accent composes to U+00E9.
	page := testsupport.DeckPage(t, "Cafe\u0301", "", []testsupport.FakeTerm{{ID: 1, Word: "re\u0301sume\u0301", Definition: "cv"}})
	data, err := extract.Parse(page)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if data.Name != "Caf\u00e9" {
		t.Fatalf("expected NFC title, got %q", data.Name)
	}
	if data.Terms[0].FrontText != "r\u00e9sum\u00e9" {
		t.Fatalf("expected NFC term, got %q", data.Terms[0].FrontText)
	}
}

func TestParseRejectsBrokenPayloads(t *testing.T) {
	wrap := func(payload string) string {
		return `<script>(function(){window.Quizlet["setPageData"] = ` + payload +
			`; QLoad("Quizlet.setPageData");}).call(this);(function(){var script = document.querySelector("#s");script.parentNode.removeChild(script);})();</script>`
	}
	tests := []struct {
		name string
		page string
	}{
		{"no script", "<html>This set has been removed</html>"},
		{"bad json", wrap(`{"set":`)},
		{"missing title", wrap(`{"set":{"title":""},"originalOrder":[],"termIdToTermsMap":{}}`)},
		{"missing term", wrap(`{"set":{"title":"x"},"originalOrder":[5],"termIdToTermsMap":{}}`)},
		{"zero term id", wrap(`{"set":{"title":"x"},"originalOrder":[0],"termIdToTermsMap":{"0":{"id":0,"word":"a","definition":"b"}}}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := extract.Parse(tt.page); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestExtractClassifiesFailures(t *testing.T) {
	server := testsupport.NewSourceServer(t)
	server.AddDeck("1", "good", testsupport.DeckPage(t, "Good", "", testsupport.NumberedTerms(2)))
	server.AddDeck("2", "changed", "<html>new layout</html>")
	server.Fail("/3/removed/", http.StatusNotFound)

	ex := extract.New(source.New(server.URL), nil)
	ctx := context.Background()

	data, err := ex.Extract(ctx, "1", "good")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if len(data.Terms) != 2 {
		t.Fatalf("expected 2 terms, got %d", len(data.Terms))
	}

	if _, err := ex.Extract(ctx, "2", "changed"); !errors.Is(err, services.ErrPageDataUnavailable) {
		t.Fatalf("expected ErrPageDataUnavailable, got %v", err)
	}
	if _, err := ex.Extract(ctx, "3", "removed"); !errors.Is(err, services.ErrPageDataBadRequest) {
		t.Fatalf("expected ErrPageDataBadRequest, got %v", err)
	}
}

type cancelledFetcher struct{}

func (cancelledFetcher) FetchPage(ctx context.Context, deckID, extension string) (string, error) {
	return "", fmt.Errorf("fetch: %w", ctx.Err())
}

func TestExtractCancellationIsUnclassified(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := extract.New(cancelledFetcher{}, nil).Extract(ctx, "1", "x")
	if err == nil {
		t.Fatal("expected error")
	}
	if kind := services.Classify(err); kind != services.KindUnclassified {
		t.Fatalf("expected unclassified, got %s", kind)
	}
}
