package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"deckport/internal/blobstore"
	"deckport/internal/logging"
	"deckport/internal/services"
)

// DefaultChunkSize is the number of transfers run concurrently per chunk.
const DefaultChunkSize = 200

// ErrDuplicateDestination is returned when a destination path is reserved twice.
var ErrDuplicateDestination = errors.New("destination path already reserved")

// Descriptor is one queued transfer.
type Descriptor struct {
	DestinationPath string
	SourceURL       string
	ContentType     string
	AccessToken     string
}

// Fetcher downloads source bytes.
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// BlobWriter stores transferred bytes.
type BlobWriter interface {
	Store(ctx context.Context, path string, data []byte, attrs blobstore.Attributes) error
}

// Observer receives drain progress. Calls for assets within a chunk may be
// concurrent.
type Observer interface {
	ChunkStarted(index, total, size int)
	AssetFinished(d Descriptor, err error)
	ChunkFinished(index, total int)
}

// DrainReport summarizes one Drain call.
type DrainReport struct {
	Chunks    int
	Attempted int
	Stored    int
	Failed    int
}

// Options holds deployment settings for a Migrator.
type Options struct {
	SourceBaseURL string
	PublicBaseURL string
	Bucket        string
	Owner         string
	ChunkSize     int
}

// Option customizes a Migrator.
type Option func(*Migrator)

// WithObserver reports drain progress to o.
func WithObserver(o Observer) Option {
	return func(m *Migrator) { m.observer = o }
}

// WithTokenSource replaces the access token generator.
func WithTokenSource(fn func() string) Option {
	return func(m *Migrator) { m.newToken = fn }
}

// WithIDSource replaces the asset id generator.
func WithIDSource(fn func() string) Option {
	return func(m *Migrator) { m.newID = fn }
}

// Migrator issues access URLs for media up front and transfers the bytes
// later. Reserve never performs I/O; Drain is the only place transfers happen.
type Migrator struct {
	opts     Options
	fetcher  Fetcher
	blobs    BlobWriter
	logger   *slog.Logger
	observer Observer
	newToken func() string
	newID    func() string

	mu       sync.Mutex
	pending  []Descriptor
	reserved map[string]struct{}
}

// NewMigrator returns an empty migrator.
func NewMigrator(opts Options, fetcher Fetcher, blobs BlobWriter, logger *slog.Logger, options ...Option) *Migrator {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	m := &Migrator{
		opts:     opts,
		fetcher:  fetcher,
		blobs:    blobs,
		logger:   logging.NewComponentLogger(logger, "assets"),
		newToken: uuid.NewString,
		newID:    func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
		reserved: map[string]struct{}{},
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// CardAssetPath is where a card's media is stored.
func CardAssetPath(deckID, assetID string) string {
	return "deck-assets/" + deckID + "/" + assetID
}

// DeckCoverPath is where a deck's cover image is stored.
func DeckCoverPath(deckID string) string {
	return "decks/" + deckID
}

// Reserve queues a transfer of sourceURL to destinationPath and returns the
// access URL the stored object will answer to.
func (m *Migrator) Reserve(sourceURL, destinationPath string) (string, error) {
	return m.reserve(sourceURL, func() string { return destinationPath })
}

// ReserveCardAsset reserves media referenced by a card under the deck's asset
// namespace with a fresh asset id.
func (m *Migrator) ReserveCardAsset(deckID, sourceURL string) (string, error) {
	return m.reserve(sourceURL, func() string { return CardAssetPath(deckID, m.newID()) })
}

// ReserveDeckCover reserves the deck's cover image.
func (m *Migrator) ReserveDeckCover(deckID, sourceURL string) (string, error) {
	return m.reserve(sourceURL, func() string { return DeckCoverPath(deckID) })
}

func (m *Migrator) reserve(sourceURL string, destination func() string) (string, error) {
	normalized := NormalizeURL(m.opts.SourceBaseURL, sourceURL)
	contentType := ContentType(normalized)
	if contentType == "" {
		return "", services.Wrap(services.ErrUnknownContentType, "writing", "reserve asset", normalized, nil)
	}

	d := Descriptor{
		DestinationPath: destination(),
		SourceURL:       normalized,
		ContentType:     contentType,
		AccessToken:     m.newToken(),
	}

	m.mu.Lock()
	if _, dup := m.reserved[d.DestinationPath]; dup {
		m.mu.Unlock()
		return "", fmt.Errorf("reserve %s: %w", d.DestinationPath, ErrDuplicateDestination)
	}
	m.reserved[d.DestinationPath] = struct{}{}
	m.pending = append(m.pending, d)
	m.mu.Unlock()

	m.logger.Debug("asset reserved",
		logging.String(logging.FieldAssetPath, d.DestinationPath),
		logging.String("source_url", d.SourceURL),
		logging.String("content_type", d.ContentType))

	return blobstore.AccessURL(m.opts.PublicBaseURL, m.opts.Bucket, d.DestinationPath, d.AccessToken), nil
}

// Pending returns a copy of the queued descriptors.
func (m *Migrator) Pending() []Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Descriptor(nil), m.pending...)
}

// Drain transfers every queued asset. The queue is split into chunks of
// ChunkSize; chunks run one after another and the transfers inside a chunk run
// concurrently. A failed transfer is logged and counted; it never stops the
// rest of the chunk or later chunks.
func (m *Migrator) Drain(ctx context.Context) DrainReport {
	m.mu.Lock()
	queue := m.pending
	m.pending = nil
	m.mu.Unlock()

	var report DrainReport
	chunks := chunk(queue, m.opts.ChunkSize)
	logger := logging.WithContext(ctx, m.logger)

	for i, batch := range chunks {
		index := i + 1
		if m.observer != nil {
			m.observer.ChunkStarted(index, len(chunks), len(batch))
		}

		var stored, failed atomic.Int64
		var g errgroup.Group
		for _, d := range batch {
			g.Go(func() error {
				err := m.transfer(ctx, d)
				if err != nil {
					failed.Add(1)
					logging.WarnWithContext(logger, "asset transfer failed", "asset_transfer_failed",
						logging.String(logging.FieldAssetPath, d.DestinationPath),
						logging.String("source_url", d.SourceURL),
						logging.Int(logging.FieldChunk, index),
						logging.Error(err),
						logging.String(logging.FieldErrorHint, "re-upload the asset manually if the source is still reachable"),
						logging.String(logging.FieldImpact, "media reference stays broken"),
					)
				} else {
					stored.Add(1)
				}
				if m.observer != nil {
					m.observer.AssetFinished(d, err)
				}
				return nil
			})
		}
		_ = g.Wait()

		report.Chunks++
		report.Attempted += len(batch)
		report.Stored += int(stored.Load())
		report.Failed += int(failed.Load())
		if m.observer != nil {
			m.observer.ChunkFinished(index, len(chunks))
		}
		logger.Debug("asset chunk drained",
			logging.Int(logging.FieldChunk, index),
			logging.Int("chunks", len(chunks)),
			logging.Int("stored", int(stored.Load())),
			logging.Int("failed", int(failed.Load())))
	}
	return report
}

func (m *Migrator) transfer(ctx context.Context, d Descriptor) error {
	data, err := m.fetcher.FetchBytes(ctx, d.SourceURL)
	if err != nil {
		return services.Wrap(services.ErrAssetTransferFailed, "draining", "fetch asset", d.SourceURL, err)
	}
	if sniffed := mimetype.Detect(data).String(); topLevel(sniffed) != topLevel(d.ContentType) {
		logging.WarnWithContext(m.logger, "asset content differs from its extension", "asset_type_mismatch",
			logging.String(logging.FieldAssetPath, d.DestinationPath),
			logging.String("declared", d.ContentType),
			logging.String("sniffed", sniffed),
			logging.String(logging.FieldImpact, "stored with the declared type"),
		)
	}
	err = m.blobs.Store(ctx, d.DestinationPath, data, blobstore.Attributes{
		ContentType: d.ContentType,
		Public:      true,
		AccessToken: d.AccessToken,
		Owner:       m.opts.Owner,
	})
	if err != nil {
		return services.Wrap(services.ErrAssetTransferFailed, "draining", "store asset", d.DestinationPath, err)
	}
	return nil
}

func chunk(queue []Descriptor, size int) [][]Descriptor {
	var out [][]Descriptor
	for start := 0; start < len(queue); start += size {
		end := min(start+size, len(queue))
		out = append(out, queue[start:end])
	}
	return out
}
