package services

import (
	"errors"
	"fmt"
	"strings"
)

// Failure markers. Every error produced by the import pipeline that needs a
// specific disposition wraps exactly one of these.
var (
	ErrPageDataUnavailable = errors.New("page data unavailable")
	ErrPageDataBadRequest  = errors.New("page data bad request")
	ErrDeckAlreadyExists   = errors.New("deck already exists")
	ErrUnknownContentType  = errors.New("unknown content type")
	ErrAssetTransferFailed = errors.New("asset transfer failed")
)

// Kind is the closed set of failure classes the orchestrator dispatches on.
type Kind int

const (
	KindUnclassified Kind = iota
	KindPageDataUnavailable
	KindPageDataBadRequest
	KindDeckAlreadyExists
	KindUnknownContentType
	KindAssetTransferFailed
)

func (k Kind) String() string {
	switch k {
	case KindPageDataUnavailable:
		return "page_data_unavailable"
	case KindPageDataBadRequest:
		return "page_data_bad_request"
	case KindDeckAlreadyExists:
		return "deck_already_exists"
	case KindUnknownContentType:
		return "unknown_content_type"
	case KindAssetTransferFailed:
		return "asset_transfer_failed"
	default:
		return "unclassified"
	}
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. A nil marker leaves the error
// unclassified.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	switch {
	case marker == nil && err == nil:
		return errors.New(detail)
	case marker == nil:
		return fmt.Errorf("%s: %w", detail, err)
	case err != nil:
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	default:
		return fmt.Errorf("%w: %s", marker, detail)
	}
}

// Classify maps an error onto its failure Kind. Errors carrying no marker,
// including context cancellation, are KindUnclassified.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnclassified
	case errors.Is(err, ErrDeckAlreadyExists):
		return KindDeckAlreadyExists
	case errors.Is(err, ErrPageDataBadRequest):
		return KindPageDataBadRequest
	case errors.Is(err, ErrPageDataUnavailable):
		return KindPageDataUnavailable
	case errors.Is(err, ErrUnknownContentType):
		return KindUnknownContentType
	case errors.Is(err, ErrAssetTransferFailed):
		return KindAssetTransferFailed
	default:
		return KindUnclassified
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "import failure"
	}
	return strings.Join(parts, ": ")
}
