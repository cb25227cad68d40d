package assets

import (
	"mime"
	"net/url"
	"path"
	"strings"
)

// knownTypes covers the media the source platform serves. Lookups fall back to
// the system MIME table for anything else.
var knownTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".bmp":  "image/bmp",
	".avif": "image/avif",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/opus",
	".weba": "audio/webm",
	".flac": "audio/flac",
}

// ContentType resolves a media type from the extension of the URL's path. The
// query string and fragment are ignored. It returns "" when no type is known.
func ContentType(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		p = rawURL[:i]
	}
	ext := strings.ToLower(path.Ext(p))
	if ext == "" || ext == "." {
		return ""
	}
	if t, ok := knownTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if mediaType, _, err := mime.ParseMediaType(t); err == nil {
			return mediaType
		}
		return t
	}
	return ""
}

// NormalizeURL makes a source reference absolute. Root-relative paths are
// resolved against baseURL and protocol-relative URLs get https.
func NormalizeURL(baseURL, rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	switch {
	case strings.HasPrefix(rawURL, "//"):
		return "https:" + rawURL
	case strings.HasPrefix(rawURL, "/"):
		return strings.TrimRight(baseURL, "/") + rawURL
	default:
		return rawURL
	}
}

func topLevel(mediaType string) string {
	if i := strings.IndexByte(mediaType, '/'); i >= 0 {
		return mediaType[:i]
	}
	return mediaType
}
