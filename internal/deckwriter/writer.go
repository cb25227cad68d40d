package deckwriter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"deckport/internal/docstore"
	"deckport/internal/extract"
	"deckport/internal/logging"
	"deckport/internal/render"
	"deckport/internal/services"
)

// DefaultSectionSize is the maximum number of cards per section.
const DefaultSectionSize = 50

// DocumentStore is the subset of the document database the writer needs.
type DocumentStore interface {
	CreateIfAbsent(ctx context.Context, path string, fields docstore.Fields) error
	CommitBatch(ctx context.Context, b *docstore.Batch) error
	DeleteTree(ctx context.Context, path string) (int64, error)
}

// AssetReserver issues access URLs for media referenced by a deck.
type AssetReserver interface {
	ReserveCardAsset(deckID, sourceURL string) (string, error)
	ReserveDeckCover(deckID, sourceURL string) (string, error)
}

// Options holds per-deployment writer settings.
type Options struct {
	SectionSize int
	CreatorID   string
	SourceLabel string
}

// Deck identifies the deck record to create.
type Deck struct {
	ID            string
	Name          string
	TopicIDs      []string
	CoverImageURL string
}

// Result describes what was written for one deck.
type Result struct {
	SectionIDs    []string
	SectionCounts []int
	CardCount     int
	CoverURL      string
}

// Writer persists decks, sections and cards.
type Writer struct {
	docs     DocumentStore
	renderer *render.Renderer
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// New returns a writer.
func New(docs DocumentStore, renderer *render.Renderer, opts Options, logger *slog.Logger) *Writer {
	if opts.SectionSize <= 0 {
		opts.SectionSize = DefaultSectionSize
	}
	if renderer == nil {
		renderer = render.New()
	}
	return &Writer{
		docs:     docs,
		renderer: renderer,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "deckwriter"),
		now:      time.Now,
		newID:    docstore.NewID,
	}
}

// SectionCount is the number of sections n cards occupy.
func SectionCount(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// Write creates the deck record, its sections, and all of its cards. Any
// failure after the deck record exists removes the deck's documents again, so
// a failed write leaves nothing behind. A deck that already exists fails with
// services.ErrDeckAlreadyExists and is left untouched.
func (w *Writer) Write(ctx context.Context, assets AssetReserver, deck Deck, terms []extract.Term) (Result, error) {
	coverURL, err := w.CreateDeck(ctx, assets, deck)
	if err != nil {
		return Result{}, err
	}

	result, err := w.writeCards(ctx, assets, deck.ID, terms)
	if err != nil {
		w.rollback(ctx, deck.ID, err)
		return Result{}, err
	}
	result.CoverURL = coverURL
	return result, nil
}

// CreateDeck writes the deck record. The cover image, when present, is
// reserved concurrently; both must succeed. If the record was created but the
// cover could not be reserved the record is removed again.
func (w *Writer) CreateDeck(ctx context.Context, assets AssetReserver, deck Deck) (string, error) {
	var (
		created  bool
		coverURL string
		g        errgroup.Group
	)
	g.Go(func() error {
		err := w.docs.CreateIfAbsent(ctx, docstore.DeckPath(deck.ID), w.deckFields(deck))
		if errors.Is(err, docstore.ErrAlreadyExists) {
			return services.Wrap(services.ErrDeckAlreadyExists, "writing", "create deck", deck.ID, err)
		}
		if err != nil {
			return services.Wrap(nil, "writing", "create deck", deck.ID, err)
		}
		created = true
		return nil
	})
	if deck.CoverImageURL != "" {
		g.Go(func() error {
			url, err := assets.ReserveDeckCover(deck.ID, deck.CoverImageURL)
			if err != nil {
				return fmt.Errorf("reserve deck cover: %w", err)
			}
			coverURL = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if created {
			w.rollback(ctx, deck.ID, err)
		}
		return "", err
	}
	w.logger.Debug("deck record created",
		logging.String(logging.FieldDeckID, deck.ID),
		logging.Bool("has_image", deck.CoverImageURL != ""))
	return coverURL, nil
}

// CreateSection writes one section record and returns its id.
func (w *Writer) CreateSection(ctx context.Context, deckID string, index int) (string, error) {
	id := w.newID()
	err := w.docs.CreateIfAbsent(ctx, docstore.SectionPath(deckID, id), docstore.Fields{
		"name":      fmt.Sprintf("Section %d", index+1),
		"index":     index,
		"cardCount": 0,
	})
	if err != nil {
		return "", fmt.Errorf("create section %d: %w", index, err)
	}
	return id, nil
}

// writeCards partitions terms into sections and commits every card in one
// batch. Sections are created one at a time, each before any card citing it is
// queued; a new section begins at term positions 0, S, 2S, and so on.
func (w *Writer) writeCards(ctx context.Context, assets AssetReserver, deckID string, terms []extract.Term) (Result, error) {
	var (
		result    Result
		sectionID string
		inSection int
		batch     = docstore.NewBatch()
	)
	for _, term := range terms {
		if sectionID == "" || inSection == w.opts.SectionSize {
			id, err := w.CreateSection(ctx, deckID, len(result.SectionIDs))
			if err != nil {
				return Result{}, err
			}
			sectionID = id
			inSection = 0
			result.SectionIDs = append(result.SectionIDs, id)
			result.SectionCounts = append(result.SectionCounts, 0)
		}

		front, back, err := w.cardMarkup(assets, deckID, term)
		if err != nil {
			return Result{}, fmt.Errorf("card for term %d: %w", term.ID, err)
		}
		batch.Set(docstore.CardPath(deckID, w.newID()), docstore.Fields{
			"section":     sectionID,
			"front":       front,
			"back":        back,
			"viewCount":   0,
			"reviewCount": 0,
			"skipCount":   0,
		})
		inSection++
		result.SectionCounts[len(result.SectionCounts)-1]++
		result.CardCount++
	}

	for i, id := range result.SectionIDs {
		batch.Merge(docstore.SectionPath(deckID, id), docstore.Fields{"cardCount": result.SectionCounts[i]})
	}
	batch.Merge(docstore.DeckPath(deckID), docstore.Fields{
		"cardCount": result.CardCount,
		"updated":   w.now().UTC(),
	})
	if err := w.CommitCards(ctx, batch); err != nil {
		return Result{}, err
	}
	return result, nil
}

// CommitCards writes a deck's card batch atomically.
func (w *Writer) CommitCards(ctx context.Context, batch *docstore.Batch) error {
	if err := w.docs.CommitBatch(ctx, batch); err != nil {
		return services.Wrap(nil, "writing", "commit cards", "", err)
	}
	return nil
}

func (w *Writer) cardMarkup(assets AssetReserver, deckID string, term extract.Term) (string, string, error) {
	sides := render.Sides{Front: term.FrontText, Back: term.BackText}
	for _, media := range []struct {
		src  string
		dest *string
	}{
		{term.ImageURL, &sides.ImageURL},
		{term.FrontAudioURL, &sides.FrontAudioURL},
		{term.BackAudioURL, &sides.BackAudioURL},
	} {
		if media.src == "" {
			continue
		}
		url, err := assets.ReserveCardAsset(deckID, media.src)
		if err != nil {
			return "", "", err
		}
		*media.dest = url
	}
	return w.renderer.Card(sides)
}

func (w *Writer) deckFields(deck Deck) docstore.Fields {
	now := w.now().UTC()
	topics := deck.TopicIDs
	if topics == nil {
		topics = []string{}
	}
	fields := docstore.Fields{
		"topics":      topics,
		"hasImage":    deck.CoverImageURL != "",
		"name":        deck.Name,
		"subtitle":    "",
		"description": "",
		"creator":     w.opts.CreatorID,
		"created":     now,
		"updated":     now,
		"source":      w.opts.SourceLabel,
	}
	for _, counter := range deckCounters {
		fields[counter] = 0
	}
	return fields
}

var deckCounters = []string{
	"viewCount",
	"uniqueViewCount",
	"ratingCount",
	"1StarRatingCount",
	"2StarRatingCount",
	"3StarRatingCount",
	"4StarRatingCount",
	"5StarRatingCount",
	"averageRating",
	"downloadCount",
	"cardCount",
	"unsectionedCardCount",
	"currentUserCount",
	"allTimeUserCount",
	"favoriteCount",
}

func (w *Writer) rollback(ctx context.Context, deckID string, cause error) {
	removed, err := w.docs.DeleteTree(context.WithoutCancel(ctx), docstore.DeckPath(deckID))
	if err != nil {
		logging.ErrorWithContext(w.logger, "deck rollback failed", "deck_rollback_failed",
			logging.String(logging.FieldDeckID, deckID),
			logging.Error(err),
			logging.String("cause", cause.Error()),
			logging.String(logging.FieldErrorHint, "delete the deck's documents before the next import pass"),
		)
		return
	}
	logging.WarnWithContext(w.logger, "deck write rolled back", "deck_rolled_back",
		logging.String(logging.FieldDeckID, deckID),
		logging.Int64("removed_documents", removed),
		logging.String("cause", cause.Error()),
		logging.String(logging.FieldImpact, "deck will be retried on the next pass"),
	)
}
