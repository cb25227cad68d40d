package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"

	"deckport/internal/logging"
	"deckport/internal/services"
)

const stageName = "extracting"

var pageDataPattern = regexp.MustCompile(`\(function\(\)\{window\.Quizlet\["setPageData"\] = (.+?); QLoad\("Quizlet\.setPageData"\);\}\)\.call\(this\);\(function\(\)\{var script = document\.querySelector\("#.+?"\);script\.parentNode\.removeChild\(script\);\}\)\(\);</script>`)

// PageFetcher returns the raw text of a deck page.
type PageFetcher interface {
	FetchPage(ctx context.Context, deckID, extension string) (string, error)
}

// Term is one front/back pair as published by the source platform.
type Term struct {
	ID            int64
	FrontText     string
	BackText      string
	ImageURL      string
	FrontAudioURL string
	BackAudioURL  string
}

// PageData is the canonical deck content extracted from a page.
type PageData struct {
	Name          string
	CoverImageURL string
	Terms         []Term
}

type pagePayload struct {
	Set struct {
		Title        string  `json:"title" validate:"required"`
		ThumbnailURL *string `json:"_thumbnailUrl"`
	} `json:"set"`
	OriginalOrder    []int64                `json:"originalOrder" validate:"required"`
	TermIDToTermsMap map[string]termPayload `json:"termIdToTermsMap" validate:"required,dive"`
}

type termPayload struct {
	ID                 int64   `json:"id" validate:"required"`
	Word               string  `json:"word"`
	Definition         string  `json:"definition"`
	ImageURL           *string `json:"_imageUrl"`
	WordAudioURL       *string `json:"_wordAudioUrl"`
	DefinitionAudioURL *string `json:"_definitionAudioUrl"`
}

// Extractor fetches deck pages and parses their embedded payload.
type Extractor struct {
	fetcher PageFetcher
	logger  *slog.Logger
}

// New returns an extractor reading pages through fetcher.
func New(fetcher PageFetcher, logger *slog.Logger) *Extractor {
	return &Extractor{fetcher: fetcher, logger: logging.NewComponentLogger(logger, "extract")}
}

// Extract fetches the page for deckID and returns its canonical content.
//
// A failed fetch is reported as services.ErrPageDataBadRequest. A page whose
// payload is missing or malformed is services.ErrPageDataUnavailable.
// Cancellation of ctx is returned unclassified.
func (e *Extractor) Extract(ctx context.Context, deckID, extension string) (*PageData, error) {
	page, err := e.fetcher.FetchPage(ctx, deckID, extension)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("fetch deck page %s: %w", deckID, ctxErr)
		}
		return nil, services.Wrap(services.ErrPageDataBadRequest, stageName, "fetch page", deckID, err)
	}

	data, err := Parse(page)
	if err != nil {
		return nil, services.Wrap(services.ErrPageDataUnavailable, stageName, "parse page", deckID, err)
	}

	logging.WithContext(ctx, e.logger).Debug("page data extracted",
		logging.String("name", data.Name),
		logging.Int("terms", len(data.Terms)),
		logging.Bool("has_cover", data.CoverImageURL != ""))
	return data, nil
}

// Parse locates the embedded payload in a page and converts it to PageData.
// Terms follow the payload's original order.
func Parse(page string) (*PageData, error) {
	match := pageDataPattern.FindStringSubmatch(page)
	if match == nil {
		return nil, fmt.Errorf("page data pattern not found")
	}

	var payload pagePayload
	if err := json.Unmarshal([]byte(match[1]), &payload); err != nil {
		return nil, fmt.Errorf("decode page data: %w", err)
	}
	if err := validate.Struct(&payload); err != nil {
		return nil, fmt.Errorf("validate page data: %w", err)
	}

	terms := make([]Term, 0, len(payload.OriginalOrder))
	for _, id := range payload.OriginalOrder {
		raw, ok := payload.TermIDToTermsMap[strconv.FormatInt(id, 10)]
		if !ok {
			return nil, fmt.Errorf("term %d listed in original order but missing from term map", id)
		}
		terms = append(terms, Term{
			ID:            raw.ID,
			FrontText:     normalizeText(raw.Word),
			BackText:      normalizeText(raw.Definition),
			ImageURL:      optional(raw.ImageURL),
			FrontAudioURL: optional(raw.WordAudioURL),
			BackAudioURL:  optional(raw.DefinitionAudioURL),
		})
	}

	return &PageData{
		Name:          normalizeText(payload.Set.Title),
		CoverImageURL: optional(payload.Set.ThumbnailURL),
		Terms:         terms,
	}, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func normalizeText(s string) string {
	return norm.NFC.String(s)
}

func optional(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
