package render_test

import (
	"strings"
	"testing"

	"deckport/internal/render"
)

func TestTextUnwrapsSingleParagraph(t *testing.T) {
	r := render.New()
	tests := []struct {
		in   string
		want string
	}{
		{"hello", "hello"},
		{"**bold** move", "<strong>bold</strong> move"},
		{"", ""},
	}
	for _, tt := range tests {
		got, err := r.Text(tt.in)
		if err != nil {
			t.Fatalf("Text(%q) returned error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("Text(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTextKeepsMultipleParagraphs(t *testing.T) {
	got, err := render.New().Text("one\n\ntwo")
	if err != nil {
		t.Fatalf("Text returned error: %v", err)
	}
	if !strings.HasPrefix(got, "<p>one</p>") || !strings.HasSuffix(got, "<p>two</p>") {
		t.Fatalf("expected both paragraphs kept, got %q", got)
	}
}

func TestTextStripsScripts(t *testing.T) {
	got, err := render.New().Text(`hi <script>alert(1)</script>`)
	if err != nil {
		t.Fatalf("Text returned error: %v", err)
	}
	if strings.Contains(got, "script") {
		t.Fatalf("expected script removed, got %q", got)
	}
}

func TestCardLayout(t *testing.T) {
	front, back, err := render.New().Card(render.Sides{
		Front:         "word",
		Back:          "meaning",
		ImageURL:      "https://blobs.test/img?alt=media&token=t",
		FrontAudioURL: "https://blobs.test/fa",
		BackAudioURL:  "https://blobs.test/ba",
	})
	if err != nil {
		t.Fatalf("Card returned error: %v", err)
	}
	wantFront := `<audio src="https://blobs.test/fa"></audio><h3 style="text-align:center;">word</h3>`
	if front != wantFront {
		t.Fatalf("front = %q, want %q", front, wantFront)
	}
	wantBack := `<audio src="https://blobs.test/ba"></audio>` +
		`<figure class="image"><img src="https://blobs.test/img?alt=media&amp;token=t"></figure>` +
		`<h3 style="text-align:center;">meaning</h3>`
	if back != wantBack {
		t.Fatalf("back = %q, want %q", back, wantBack)
	}
}

func TestCardOmitsAbsentMedia(t *testing.T) {
	front, back, err := render.New().Card(render.Sides{Front: "a", Back: "b"})
	if err != nil {
		t.Fatalf("Card returned error: %v", err)
	}
	if front != `<h3 style="text-align:center;">a</h3>` {
		t.Fatalf("unexpected front %q", front)
	}
	if back != `<h3 style="text-align:center;">b</h3>` {
		t.Fatalf("unexpected back %q", back)
	}
	for _, s := range []string{front, back} {
		if strings.Contains(s, "null") || strings.Contains(s, "audio") || strings.Contains(s, "figure") {
			t.Fatalf("unexpected placeholder markup in %q", s)
		}
	}
}
