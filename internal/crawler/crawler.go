package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"deckport/internal/logging"
	"deckport/internal/manifest"
)

var paginationPattern = regexp.MustCompile(`"pagination":\{"currentPageNum":\d+?,"numPages":(\d+?)\}`)

// TopicFetcher returns one page of a topic listing.
type TopicFetcher interface {
	FetchTopicPage(ctx context.Context, name string, page int) (string, error)
}

// ManifestStore loads and persists the checkpoint.
type ManifestStore interface {
	Load() (*manifest.Manifest, error)
	Persist(m *manifest.Manifest) error
}

// Topic is a listing name together with the topic ids it feeds.
type Topic struct {
	Name     string
	TopicIDs []string
}

// DeckRef is a deck link found on a listing page.
type DeckRef struct {
	ID        string
	Extension string
}

// Report summarizes a crawl.
type Report struct {
	Topics       int
	FailedTopics []string
	DecksFound   int
	NewDecks     int
}

// PageHook is notified after each listing page is read.
type PageHook func(topic string, page, pages int)

// Crawler discovers decks from topic listings and records them in the manifest.
type Crawler struct {
	fetcher  TopicFetcher
	logger   *slog.Logger
	deckLink *regexp.Regexp
	onPage   PageHook
}

// New returns a crawler for the platform rooted at baseURL.
func New(fetcher TopicFetcher, baseURL string, logger *slog.Logger) *Crawler {
	base := regexp.QuoteMeta(strings.TrimRight(baseURL, "/"))
	return &Crawler{
		fetcher:  fetcher,
		logger:   logging.NewComponentLogger(logger, "crawler"),
		deckLink: regexp.MustCompile(`<a.+?class="UILink".+?href="` + base + `/(\d+?)/(.+?)/".*?>.*?</a>`),
	}
}

// OnPage registers a hook called after every listing page.
func (c *Crawler) OnPage(hook PageHook) {
	c.onPage = hook
}

// LoadTopics reads a topics file mapping topic ids to listing names and
// returns one Topic per listing name, sorted by name. A missing file yields no
// topics.
func LoadTopics(path string) ([]Topic, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read topics: %w", err)
	}
	var byID map[string][]string
	if err := json.Unmarshal(data, &byID); err != nil {
		return nil, fmt.Errorf("decode topics %s: %w", path, err)
	}
	return InvertTopics(byID), nil
}

// InvertTopics turns topicId -> names into name -> topicIds.
func InvertTopics(byID map[string][]string) []Topic {
	byName := map[string][]string{}
	for id, names := range byID {
		for _, name := range names {
			name = norm.NFC.String(strings.TrimSpace(name))
			if name == "" || slices.Contains(byName[name], id) {
				continue
			}
			byName[name] = append(byName[name], id)
		}
	}
	topics := make([]Topic, 0, len(byName))
	for name, ids := range byName {
		slices.Sort(ids)
		topics = append(topics, Topic{Name: name, TopicIDs: ids})
	}
	slices.SortFunc(topics, func(a, b Topic) int { return strings.Compare(a.Name, b.Name) })
	return topics
}

// PageCount reads the number of listing pages from a page, defaulting to 1.
func PageCount(page string) int {
	m := paginationPattern.FindStringSubmatch(page)
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// DeckLinks returns the decks linked from a listing page in page order.
func (c *Crawler) DeckLinks(page string) []DeckRef {
	var refs []DeckRef
	for _, m := range c.deckLink.FindAllStringSubmatch(page, -1) {
		refs = append(refs, DeckRef{ID: m[1], Extension: m[2]})
	}
	return refs
}

// CrawlTopic reads every listing page of one topic.
func (c *Crawler) CrawlTopic(ctx context.Context, name string) ([]DeckRef, error) {
	first, err := c.fetcher.FetchTopicPage(ctx, name, 1)
	if err != nil {
		return nil, err
	}
	pages := PageCount(first)
	refs := c.DeckLinks(first)
	c.pageRead(name, 1, pages)

	for page := 2; page <= pages; page++ {
		body, err := c.fetcher.FetchTopicPage(ctx, name, page)
		if err != nil {
			return nil, err
		}
		refs = append(refs, c.DeckLinks(body)...)
		c.pageRead(name, page, pages)
	}
	return refs, nil
}

func (c *Crawler) pageRead(name string, page, pages int) {
	c.logger.Debug("topic page read",
		logging.String("topic", name),
		logging.Int("page", page),
		logging.Int("pages", pages))
	if c.onPage != nil {
		c.onPage(name, page, pages)
	}
}

// Run crawls every topic and merges the decks found into the manifest, which
// is persisted after each topic. A topic whose listing cannot be read is
// logged and skipped. Imported state is never changed.
func (c *Crawler) Run(ctx context.Context, topics []Topic, store ManifestStore) (Report, error) {
	var report Report
	m, err := store.Load()
	if err != nil {
		return report, fmt.Errorf("load manifest: %w", err)
	}

	for _, topic := range topics {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Topics++
		refs, err := c.CrawlTopic(ctx, topic.Name)
		if err != nil {
			report.FailedTopics = append(report.FailedTopics, topic.Name)
			logging.WarnWithContext(c.logger, "topic crawl failed", "topic_crawl_failed",
				logging.String("topic", topic.Name),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the topic name in the topics file"),
				logging.String(logging.FieldImpact, "decks of this topic are not discovered"),
			)
			continue
		}

		before := m.Len()
		for _, ref := range refs {
			m = m.Merge(ref.ID, ref.Extension, topic.TopicIDs)
		}
		added := m.Len() - before
		report.DecksFound += len(refs)
		report.NewDecks += added

		if err := store.Persist(m); err != nil {
			return report, fmt.Errorf("persist manifest after topic %q: %w", topic.Name, err)
		}
		c.logger.Info("topic crawled",
			logging.String(logging.FieldEventType, "topic_crawled"),
			logging.String("topic", topic.Name),
			logging.Int("decks", len(refs)),
			logging.Int("new_decks", added))
	}
	return report, nil
}
