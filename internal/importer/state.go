package importer

import "deckport/internal/services"

// State is a step in one deck's import.
type State string

const (
	StatePending      State = "pending"
	StateExtracting   State = "extracting"
	StateWriting      State = "writing"
	StateAssetsQueued State = "assets_queued"
	StateDraining     State = "draining"

	// Terminal states.
	StateImported           State = "imported"
	StatePermanentlySkipped State = "permanently_skipped"
	StateRetryable          State = "retryable"
)

// Terminal reports whether no further transition can occur.
func (s State) Terminal() bool {
	switch s {
	case StateImported, StatePermanentlySkipped, StateRetryable:
		return true
	default:
		return false
	}
}

// MarksImported reports whether the manifest entry flips to imported.
func (s State) MarksImported() bool {
	return s == StateImported || s == StatePermanentlySkipped
}

// dispositionFor maps a deck-level failure onto its terminal state. Every Kind
// is listed so adding one forces a decision here.
func dispositionFor(kind services.Kind) State {
	switch kind {
	case services.KindPageDataBadRequest:
		return StatePermanentlySkipped
	case services.KindDeckAlreadyExists:
		return StatePermanentlySkipped
	case services.KindPageDataUnavailable:
		return StateRetryable
	case services.KindUnknownContentType:
		return StateRetryable
	case services.KindAssetTransferFailed:
		// Transfer failures are absorbed by the migrator and never reach a deck.
		return StateRetryable
	case services.KindUnclassified:
		return StateRetryable
	default:
		return StateRetryable
	}
}
