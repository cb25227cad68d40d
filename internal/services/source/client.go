package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"deckport/internal/config"
)

const (
	maxPageBytes  = 32 << 20
	maxAssetBytes = 128 << 20
)

// HTTPDoer describes the HTTP client used to reach the source platform.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned %d", e.URL, e.StatusCode)
}

// ErrResponseTooLarge is returned when a body exceeds the read limit.
var ErrResponseTooLarge = errors.New("response body too large")

// Client fetches deck pages, topic listings, and asset bytes.
type Client struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	http      HTTPDoer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithUserAgent sets the User-Agent header sent on every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = strings.TrimSpace(ua) }
}

// WithTimeout bounds each request. Zero disables the per-request bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New builds a client for the platform rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig builds a client from the [source] section.
func NewFromConfig(cfg *config.Config) *Client {
	return New(cfg.Source.BaseURL,
		WithUserAgent(cfg.Source.UserAgent),
		WithTimeout(cfg.SourceTimeout()),
	)
}

// BaseURL returns the platform root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PageURL returns the address of a deck page.
func (c *Client) PageURL(deckID, extension string) string {
	return fmt.Sprintf("%s/%s/%s/", c.baseURL, url.PathEscape(deckID), url.PathEscape(extension))
}

// TopicURL returns the address of one page of a topic listing.
func (c *Client) TopicURL(name string, page int) string {
	u := fmt.Sprintf("%s/subject/%s/", c.baseURL, url.PathEscape(name))
	if page > 1 {
		u += "?page=" + strconv.Itoa(page)
	}
	return u
}

// FetchPage returns the raw text of a deck page.
func (c *Client) FetchPage(ctx context.Context, deckID, extension string) (string, error) {
	body, err := c.get(ctx, c.PageURL(deckID, extension), maxPageBytes)
	if err != nil {
		return "", fmt.Errorf("fetch deck page %s: %w", deckID, err)
	}
	return string(body), nil
}

// FetchTopicPage returns the raw text of one topic listing page (1-based).
func (c *Client) FetchTopicPage(ctx context.Context, name string, page int) (string, error) {
	body, err := c.get(ctx, c.TopicURL(name, page), maxPageBytes)
	if err != nil {
		return "", fmt.Errorf("fetch topic %q page %d: %w", name, page, err)
	}
	return string(body), nil
}

// FetchBytes downloads an absolute URL.
func (c *Client) FetchBytes(ctx context.Context, rawURL string) ([]byte, error) {
	body, err := c.get(ctx, rawURL, maxAssetBytes)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	return body, nil
}

// Ping checks that the platform root answers at all. Any HTTP status counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodHead, c.baseURL+"/")
	if err != nil {
		return err
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
		req = req.WithContext(ctx)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("reach %s: %w", c.baseURL, err)
	}
	resp.Body.Close()
	return nil
}

func (c *Client) get(ctx context.Context, rawURL string, limit int64) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := c.newRequest(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, ErrResponseTooLarge
	}
	return body, nil
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return req, nil
}
