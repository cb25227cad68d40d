package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"deckport/internal/blobstore"
	"deckport/internal/docstore"
	"deckport/internal/importer"
	"deckport/internal/manifest"
	"deckport/internal/preflight"
	"deckport/internal/services/source"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var crawlFirst bool
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import every pending deck in the manifest",
		Long: "Import walks the manifest once, importing each deck not yet marked imported.\n" +
			"Decks that fail with a retryable error stay pending; rerun the command to retry them.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			store := manifest.NewStore(cfg.Paths.ManifestPath, logger)
			if err := store.Lock(); err != nil {
				return err
			}
			defer store.Unlock()

			client := source.NewFromConfig(cfg)
			out := cmd.OutOrStdout()
			if crawlFirst || cfg.Import.CrawlBeforeImport {
				report, ran, err := runCrawl(cmd.Context(), cfg, client, store, logger)
				if err != nil {
					return fmt.Errorf("crawl: %w", err)
				}
				if !ctx.JSONMode() {
					printCrawlReport(out, cfg, report, ran)
				}
			}

			opts := []importer.Option{
				importer.WithPreflight(func(c context.Context) error {
					return preflight.Verify(c, cfg, client, logger)
				}),
			}
			if !noProgress && !ctx.JSONMode() && shouldColorize(cmd.ErrOrStderr()) {
				opts = append(opts, importer.WithAssetObserver(newDrainProgress(cmd.ErrOrStderr())))
			}

			return ctx.withStores(cmd.Context(), func(docs *docstore.Store, blobs *blobstore.Store) error {
				report, err := importer.NewFromConfig(cfg, client, docs, blobs, logger, opts...).Run(cmd.Context(), store)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, newImportReportView(report))
				}
				printImportReport(out, report)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&crawlFirst, "crawl", false, "Crawl topic listings before importing")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable asset progress bars")
	return cmd
}

type outcomeView struct {
	DeckID         string `json:"deckId"`
	State          string `json:"state"`
	Kind           string `json:"kind,omitempty"`
	Error          string `json:"error,omitempty"`
	Sections       int    `json:"sections"`
	Cards          int    `json:"cards"`
	AssetsStored   int    `json:"assetsStored"`
	AssetsFailed   int    `json:"assetsFailed"`
	DurationMillis int64  `json:"durationMs"`
}

type importReportView struct {
	RunID           string        `json:"runId"`
	Total           int           `json:"total"`
	AlreadyImported int           `json:"alreadyImported"`
	Imported        int           `json:"imported"`
	Skipped         int           `json:"skipped"`
	RetryPending    int           `json:"retryPending"`
	Interrupted     bool          `json:"interrupted"`
	Outcomes        []outcomeView `json:"outcomes"`
}

func newImportReportView(r importer.Report) importReportView {
	view := importReportView{
		RunID:           r.RunID,
		Total:           r.Total,
		AlreadyImported: r.AlreadyImported,
		Imported:        r.Imported,
		Skipped:         r.Skipped,
		RetryPending:    r.RetryPending,
		Interrupted:     r.Interrupted,
		Outcomes:        make([]outcomeView, 0, len(r.Outcomes)),
	}
	for _, o := range r.Outcomes {
		ov := outcomeView{
			DeckID:         o.DeckID,
			State:          string(o.State),
			Sections:       o.Sections,
			Cards:          o.Cards,
			AssetsStored:   o.Assets.Stored,
			AssetsFailed:   o.Assets.Failed,
			DurationMillis: o.Duration.Milliseconds(),
		}
		if o.Err != nil {
			ov.Kind = o.Kind.String()
			ov.Error = o.Err.Error()
		}
		view.Outcomes = append(view.Outcomes, ov)
	}
	return view
}

func printImportReport(out io.Writer, r importer.Report) {
	if r.Total == r.AlreadyImported && len(r.Outcomes) == 0 && !r.Interrupted {
		fmt.Fprintf(out, "Nothing pending: %d of %d decks already imported\n", r.AlreadyImported, r.Total)
		return
	}

	if len(r.Outcomes) > 0 {
		rows := make([][]string, 0, len(r.Outcomes))
		for _, o := range r.Outcomes {
			reason := ""
			if o.Err != nil {
				reason = o.Kind.String()
			}
			rows = append(rows, []string{
				o.DeckID,
				string(o.State),
				strconv.Itoa(o.Sections),
				strconv.Itoa(o.Cards),
				fmt.Sprintf("%d/%d", o.Assets.Stored, o.Assets.Attempted),
				reason,
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Deck", "State", "Sections", "Cards", "Assets", "Reason"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
		))
	}

	summary := [][]string{
		{"Total", strconv.Itoa(r.Total)},
		{"Already imported", strconv.Itoa(r.AlreadyImported)},
		{"Imported", strconv.Itoa(r.Imported)},
		{"Skipped", strconv.Itoa(r.Skipped)},
		{"Retry pending", strconv.Itoa(r.RetryPending)},
	}
	fmt.Fprintln(out, renderTable([]string{"Import", "Decks"}, summary, []columnAlignment{alignLeft, alignRight}))
	if r.Interrupted {
		fmt.Fprintln(out, "Import interrupted; rerun to continue with the remaining decks")
	}
}
