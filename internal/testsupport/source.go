package testsupport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// FakeTerm mirrors one entry of the source platform's term map.
type FakeTerm struct {
	ID                 int64
	Word               string
	Definition         string
	ImageURL           string
	WordAudioURL       string
	DefinitionAudioURL string
}

// NumberedTerms returns n text-only terms with ids 1..n.
func NumberedTerms(n int) []FakeTerm {
	terms := make([]FakeTerm, n)
	for i := range terms {
		terms[i] = FakeTerm{
			ID:         int64(i + 1),
			Word:       fmt.Sprintf("term %d", i+1),
			Definition: fmt.Sprintf("definition %d", i+1),
		}
	}
	return terms
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// DeckPage renders a deck page embedding the payload the extractor looks for.
// Terms appear in the original order given; the term map is keyed by id.
func DeckPage(t testing.TB, title, thumbnailURL string, terms []FakeTerm) string {
	t.Helper()

	type term struct {
		ID                 int64   `json:"id"`
		Word               string  `json:"word"`
		Definition         string  `json:"definition"`
		ImageURL           *string `json:"_imageUrl"`
		WordAudioURL       *string `json:"_wordAudioUrl"`
		DefinitionAudioURL *string `json:"_definitionAudioUrl"`
	}
	order := make([]int64, 0, len(terms))
	termMap := make(map[string]term, len(terms))
	for _, ft := range terms {
		order = append(order, ft.ID)
		termMap[fmt.Sprint(ft.ID)] = term{
			ID:                 ft.ID,
			Word:               ft.Word,
			Definition:         ft.Definition,
			ImageURL:           nullable(ft.ImageURL),
			WordAudioURL:       nullable(ft.WordAudioURL),
			DefinitionAudioURL: nullable(ft.DefinitionAudioURL),
		}
	}
	payload := map[string]any{
		"set": map[string]any{
			"title":         title,
			"_thumbnailUrl": nullable(thumbnailURL),
		},
		"originalOrder":    order,
		"termIdToTermsMap": termMap,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal page data: %v", err)
	}
	return `<html><body><div id="app"></div><script>(function(){window.Quizlet["setPageData"] = ` +
		string(data) +
		`; QLoad("Quizlet.setPageData");}).call(this);(function(){var script = document.querySelector("#setPageDataScript");script.parentNode.removeChild(script);})();</script></body></html>`
}

// TopicPage renders a topic listing page linking to the given decks
// ("id/extension" pairs) and reporting numPages in its pagination blob.
func TopicPage(baseURL string, numPages int, decks ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body>`)
	for _, deck := range decks {
		fmt.Fprintf(&b, `<div class="SetPreview"><a class="UILink" href="%s/%s/">deck</a></div>`+"\n", baseURL, deck)
	}
	fmt.Fprintf(&b, `<script>window.Quizlet = {"pagination":{"currentPageNum":1,"numPages":%d}};</script>`, numPages)
	b.WriteString(`</body></html>`)
	return b.String()
}

// SourceServer is an in-process stand-in for the source platform.
type SourceServer struct {
	*httptest.Server

	mu      sync.Mutex
	bodies  map[string][]byte
	failing map[string]int
	hits    map[string]int
}

// NewSourceServer starts a server that answers 404 for anything not registered.
func NewSourceServer(t testing.TB) *SourceServer {
	t.Helper()
	s := &SourceServer{
		bodies:  map[string][]byte{},
		failing: map[string]int{},
		hits:    map[string]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *SourceServer) serve(w http.ResponseWriter, r *http.Request) {
	key := r.URL.RequestURI()
	s.mu.Lock()
	s.hits[key]++
	status, failing := s.failing[key]
	body, ok := s.bodies[key]
	s.mu.Unlock()

	switch {
	case failing:
		http.Error(w, http.StatusText(status), status)
	case !ok:
		http.NotFound(w, r)
	default:
		_, _ = w.Write(body)
	}
}

// Handle registers a body for a request URI such as "/42/biology-101/".
func (s *SourceServer) Handle(requestURI string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies[requestURI] = body
}

// AddDeck registers a deck page.
func (s *SourceServer) AddDeck(deckID, extension, page string) {
	s.Handle(fmt.Sprintf("/%s/%s/", deckID, extension), []byte(page))
}

// AddTopicPage registers one page of a topic listing.
func (s *SourceServer) AddTopicPage(name string, page int, html string) {
	uri := fmt.Sprintf("/subject/%s/", name)
	if page > 1 {
		uri += fmt.Sprintf("?page=%d", page)
	}
	s.Handle(uri, []byte(html))
}

// AddAsset registers asset bytes and returns their absolute URL.
func (s *SourceServer) AddAsset(path string, data []byte) string {
	s.Handle(path, data)
	return s.URL + path
}

// Fail makes a request URI answer with status.
func (s *SourceServer) Fail(requestURI string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[requestURI] = status
}

// Hits reports how many times a request URI was requested.
func (s *SourceServer) Hits(requestURI string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[requestURI]
}
