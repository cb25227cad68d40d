package importer

import (
	"context"
	"log/slog"
	"time"

	"deckport/internal/assets"
	"deckport/internal/blobstore"
	"deckport/internal/config"
	"deckport/internal/deckwriter"
	"deckport/internal/docstore"
	"deckport/internal/extract"
	"deckport/internal/logging"
	"deckport/internal/manifest"
	"deckport/internal/render"
	"deckport/internal/services"
	"deckport/internal/services/source"
)

// Extractor fetches and parses one deck page.
type Extractor interface {
	Extract(ctx context.Context, deckID, extension string) (*extract.PageData, error)
}

// Writer persists an extracted deck.
type Writer interface {
	Write(ctx context.Context, reserver deckwriter.AssetReserver, deck deckwriter.Deck, terms []extract.Term) (deckwriter.Result, error)
}

// AssetMigrator is the per-deck asset queue.
type AssetMigrator interface {
	deckwriter.AssetReserver
	Pending() []assets.Descriptor
	Drain(ctx context.Context) assets.DrainReport
}

// MigratorFactory returns a fresh migrator for one deck.
type MigratorFactory func(deckID string) AssetMigrator

// ManifestStore loads and persists the checkpoint.
type ManifestStore interface {
	Load() (*manifest.Manifest, error)
	Persist(m *manifest.Manifest) error
}

// Outcome is the terminal result of one deck.
type Outcome struct {
	DeckID   string
	State    State
	Kind     services.Kind
	Err      error
	Sections int
	Cards    int
	Assets   assets.DrainReport
	Duration time.Duration
}

// Option customizes an Importer.
type Option func(*Importer)

// WithPreflight runs check before each pass; an error aborts the pass.
func WithPreflight(check func(ctx context.Context) error) Option {
	return func(i *Importer) { i.preflight = check }
}

// WithOutcomeHook is called after each deck reaches a terminal state.
func WithOutcomeHook(fn func(Outcome)) Option {
	return func(i *Importer) { i.onOutcome = fn }
}

// WithAssetObserver reports asset drain progress. It only applies to
// importers built by NewFromConfig.
func WithAssetObserver(o assets.Observer) Option {
	return func(i *Importer) { i.observer = o }
}

// Importer drives decks through extraction, writing and asset migration, one
// deck at a time.
type Importer struct {
	extractor   Extractor
	writer      Writer
	newMigrator MigratorFactory
	logger      *slog.Logger
	preflight   func(ctx context.Context) error
	onOutcome   func(Outcome)
	observer    assets.Observer
	now         func() time.Time
}

// New assembles an importer from its collaborators.
func New(extractor Extractor, writer Writer, newMigrator MigratorFactory, logger *slog.Logger, opts ...Option) *Importer {
	i := &Importer{
		extractor:   extractor,
		writer:      writer,
		newMigrator: newMigrator,
		logger:      logging.NewComponentLogger(logger, "importer"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// NewFromConfig wires the production collaborators.
func NewFromConfig(cfg *config.Config, client *source.Client, docs *docstore.Store, blobs *blobstore.Store, logger *slog.Logger, opts ...Option) *Importer {
	writer := deckwriter.New(docs, render.New(), deckwriter.Options{
		SectionSize: cfg.Import.SectionSize,
		CreatorID:   cfg.Import.CreatorID,
		SourceLabel: cfg.Source.Label,
	}, logger)
	i := New(extract.New(client, logger), writer, nil, logger, opts...)
	i.newMigrator = func(string) AssetMigrator {
		var migratorOpts []assets.Option
		if i.observer != nil {
			migratorOpts = append(migratorOpts, assets.WithObserver(i.observer))
		}
		return assets.NewMigrator(assets.Options{
			SourceBaseURL: client.BaseURL(),
			PublicBaseURL: cfg.Blob.PublicBaseURL,
			Bucket:        cfg.Blob.Bucket,
			Owner:         cfg.Import.CreatorID,
			ChunkSize:     cfg.Import.AssetChunkSize,
		}, client, blobs, logger, migratorOpts...)
	}
	return i
}

// ImportDeck runs one deck to a terminal state. Failures are reported in the
// Outcome, never returned.
func (i *Importer) ImportDeck(ctx context.Context, deckID string, entry manifest.Entry) Outcome {
	start := i.now()
	ctx = services.WithDeckID(ctx, deckID)
	out := Outcome{DeckID: deckID, State: StatePending}
	logger := logging.WithContext(ctx, i.logger)
	logger.Info("deck import started",
		logging.String(logging.FieldEventType, "deck_start"),
		logging.String("extension", entry.SourceExtension))

	finish := func(state State, err error) Outcome {
		out.State = state
		out.Err = err
		if err != nil {
			out.Kind = services.Classify(err)
		}
		out.Duration = i.now().Sub(start)
		i.report(ctx, out)
		return out
	}

	out.State = StateExtracting
	page, err := i.extractor.Extract(services.WithStage(ctx, string(StateExtracting)), deckID, entry.SourceExtension)
	if err != nil {
		return finish(dispositionFor(services.Classify(err)), err)
	}

	out.State = StateWriting
	migrator := i.newMigrator(deckID)
	result, err := i.writer.Write(services.WithStage(ctx, string(StateWriting)), migrator, deckwriter.Deck{
		ID:            deckID,
		Name:          page.Name,
		TopicIDs:      entry.TopicIDs,
		CoverImageURL: page.CoverImageURL,
	}, page.Terms)
	if err != nil {
		return finish(dispositionFor(services.Classify(err)), err)
	}
	out.Sections = len(result.SectionIDs)
	out.Cards = result.CardCount

	out.State = StateAssetsQueued
	logger.Debug("assets queued", logging.Int("assets", len(migrator.Pending())))

	out.State = StateDraining
	out.Assets = migrator.Drain(services.WithStage(ctx, string(StateDraining)))

	return finish(StateImported, nil)
}

func (i *Importer) report(ctx context.Context, out Outcome) {
	logger := logging.WithContext(ctx, i.logger)
	switch out.State {
	case StateImported:
		logger.Info("deck imported",
			logging.String(logging.FieldEventType, "deck_imported"),
			logging.Int("sections", out.Sections),
			logging.Int("cards", out.Cards),
			logging.Int("assets_stored", out.Assets.Stored),
			logging.Int("assets_failed", out.Assets.Failed),
			logging.Duration("duration", out.Duration))
	case StatePermanentlySkipped:
		logger.Info("deck skipped permanently",
			logging.String(logging.FieldEventType, "deck_skipped"),
			logging.String("reason", out.Kind.String()),
			logging.Error(out.Err))
	default:
		logging.WarnWithContext(logger, "deck left for retry", "deck_retry_pending",
			logging.String("reason", out.Kind.String()),
			logging.Error(out.Err),
			logging.String(logging.FieldErrorHint, retryHint(out.Kind)),
			logging.String(logging.FieldImpact, "deck stays pending in the manifest"),
		)
	}
	if i.onOutcome != nil {
		i.onOutcome(out)
	}
}

func retryHint(kind services.Kind) string {
	switch kind {
	case services.KindPageDataUnavailable:
		return "page layout changed or deck removed; inspect the deck page"
	case services.KindUnknownContentType:
		return "a card references media with an unrecognised extension"
	default:
		return "rerun the import; check the error for details"
	}
}
