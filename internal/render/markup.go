// Package render converts card text to the presentation markup stored on
// cards.
package render

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	goldhtml "github.com/yuin/goldmark/renderer/html"
)

var singleParagraph = regexp.MustCompile(`^<p>(.*?)</p>$`)

// Sides carries the inputs of one card. Empty URLs mean the media is absent.
type Sides struct {
	Front         string
	Back          string
	ImageURL      string
	FrontAudioURL string
	BackAudioURL  string
}

// Renderer turns markdown card text into sanitized markup.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// New returns a renderer with the card sanitizing policy.
func New() *Renderer {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("figure", "audio", "span", "sub", "sup")
	policy.AllowAttrs("src").OnElements("audio")
	policy.AllowAttrs("class").OnElements("figure", "span")
	return &Renderer{
		md:     goldmark.New(goldmark.WithRendererOptions(goldhtml.WithUnsafe())),
		policy: policy,
	}
}

// Text renders markdown to markup. A result consisting of exactly one
// single-line paragraph is unwrapped.
func (r *Renderer) Text(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	out := strings.TrimSpace(r.policy.Sanitize(buf.String()))
	if m := singleParagraph.FindStringSubmatch(out); m != nil {
		return m[1], nil
	}
	return out, nil
}

// Card renders both sides of a card. The front is the front audio followed by
// the centered front text. The back is the back audio, then the image, then
// the centered back text.
func (r *Renderer) Card(s Sides) (front, back string, err error) {
	frontText, err := r.Text(s.Front)
	if err != nil {
		return "", "", err
	}
	backText, err := r.Text(s.Back)
	if err != nil {
		return "", "", err
	}
	front = audioTag(s.FrontAudioURL) + heading(frontText)
	back = audioTag(s.BackAudioURL) + figureTag(s.ImageURL) + heading(backText)
	return front, back, nil
}

func heading(text string) string {
	return `<h3 style="text-align:center;">` + text + `</h3>`
}

func audioTag(url string) string {
	if url == "" {
		return ""
	}
	return `<audio src="` + html.EscapeString(url) + `"></audio>`
}

func figureTag(url string) string {
	if url == "" {
		return ""
	}
	return `<figure class="image"><img src="` + html.EscapeString(url) + `"></figure>`
}
