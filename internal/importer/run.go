package importer

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"deckport/internal/logging"
	"deckport/internal/services"
)

// Report summarizes one catalog pass.
type Report struct {
	RunID           string
	Total           int
	AlreadyImported int
	Imported        int
	Skipped         int
	RetryPending    int
	Interrupted     bool
	Outcomes        []Outcome
}

// Run imports every pending deck once, in manifest order. The manifest is
// persisted after each deck that reaches an imported or skipped state; a
// persist failure ends the pass with an error. Cancellation of ctx is checked
// between decks only, so the deck in flight always finishes.
func (i *Importer) Run(ctx context.Context, store ManifestStore) (Report, error) {
	report := Report{RunID: uuid.NewString()}
	ctx = services.WithRunID(ctx, report.RunID)
	logger := logging.WithContext(ctx, i.logger)

	if i.preflight != nil {
		if err := i.preflight(ctx); err != nil {
			return report, fmt.Errorf("preflight: %w", err)
		}
	}

	m, err := store.Load()
	if err != nil {
		return report, fmt.Errorf("load manifest: %w", err)
	}
	pending := m.Pending()
	report.Total = m.Len()
	report.AlreadyImported = report.Total - len(pending)
	logger.Info("import pass started",
		logging.String(logging.FieldEventType, "pass_start"),
		logging.Int("total", report.Total),
		logging.Int("pending", len(pending)))

	for idx, p := range pending {
		if ctx.Err() != nil {
			report.Interrupted = true
			report.RetryPending += len(pending) - idx
			logger.Info("import pass interrupted", logging.Int("remaining", len(pending)-idx))
			break
		}

		out := i.ImportDeck(context.WithoutCancel(ctx), p.DeckID, p.Entry)
		report.Outcomes = append(report.Outcomes, out)
		switch out.State {
		case StateImported:
			report.Imported++
		case StatePermanentlySkipped:
			report.Skipped++
		default:
			report.RetryPending++
		}
		if !out.State.MarksImported() {
			continue
		}

		next, err := m.MarkImported(p.DeckID)
		if err != nil {
			return report, err
		}
		if err := store.Persist(next); err != nil {
			logging.ErrorWithContext(logger, "manifest persist failed", "manifest_persist_failed",
				logging.String(logging.FieldDeckID, p.DeckID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check free space and permissions on the manifest directory"),
			)
			return report, fmt.Errorf("persist manifest after %s: %w", p.DeckID, err)
		}
		m = next
	}

	logger.Info("import pass finished",
		logging.String(logging.FieldEventType, "pass_complete"),
		logging.Int("imported", report.Imported),
		logging.Int("skipped", report.Skipped),
		logging.Int("retry_pending", report.RetryPending),
		logging.Bool("interrupted", report.Interrupted))
	return report, nil
}
