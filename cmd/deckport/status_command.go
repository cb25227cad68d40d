package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"deckport/internal/docstore"
	"deckport/internal/manifest"
	"deckport/internal/preflight"
	"deckport/internal/services/source"
)

type statusView struct {
	ManifestPath string             `json:"manifestPath"`
	Total        int                `json:"total"`
	Imported     int                `json:"imported"`
	Pending      int                `json:"pending"`
	StoredDecks  int                `json:"storedDecks"`
	NextPending  []pendingView      `json:"nextPending"`
	Checks       []preflight.Result `json:"checks,omitempty"`
}

type pendingView struct {
	DeckID    string   `json:"deckId"`
	Extension string   `json:"sourceExtension"`
	TopicIDs  []string `json:"topicIds"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var check bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show manifest progress and, optionally, preflight checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			m, err := manifest.NewStore(cfg.Paths.ManifestPath, logger).Load()
			if err != nil {
				return err
			}
			counts := m.Counts()
			view := statusView{
				ManifestPath: cfg.Paths.ManifestPath,
				Total:        counts.Total,
				Imported:     counts.Imported,
				Pending:      counts.Pending,
			}
			for _, p := range m.Pending() {
				if limit > 0 && len(view.NextPending) >= limit {
					break
				}
				view.NextPending = append(view.NextPending, pendingView{
					DeckID:    p.DeckID,
					Extension: p.Entry.SourceExtension,
					TopicIDs:  p.Entry.TopicIDs,
				})
			}

			docs, err := docstore.Open(cmd.Context(), cfg.DocumentStorePath(), logger)
			if err != nil {
				return fmt.Errorf("open document store: %w", err)
			}
			defer docs.Close()
			if view.StoredDecks, err = docs.Count(cmd.Context(), docstore.DecksCollection); err != nil {
				return err
			}

			if check {
				view.Checks = preflight.RunAll(cmd.Context(), cfg, source.NewFromConfig(cfg))
			}

			if ctx.JSONMode() {
				return writeJSON(cmd, view)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Manifest", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("Path", statusInfo, view.ManifestPath, colorize))
			fmt.Fprintln(out, renderStatusLine("Decks", statusInfo, strconv.Itoa(view.Total), colorize))
			fmt.Fprintln(out, renderStatusLine("Imported", statusOK, strconv.Itoa(view.Imported), colorize))
			pendingKind := statusOK
			if view.Pending > 0 {
				pendingKind = statusWarn
			}
			fmt.Fprintln(out, renderStatusLine("Pending", pendingKind, strconv.Itoa(view.Pending), colorize))
			fmt.Fprintln(out, renderStatusLine("Decks in store", statusInfo, strconv.Itoa(view.StoredDecks), colorize))

			if len(view.NextPending) > 0 {
				rows := make([][]string, 0, len(view.NextPending))
				for _, p := range view.NextPending {
					rows = append(rows, []string{p.DeckID, p.Extension, strings.Join(p.TopicIDs, ", ")})
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable([]string{"Pending deck", "Extension", "Topics"}, rows, nil))
			}

			if check {
				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Preflight", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, line := range preflightLines(view.Checks, colorize) {
					fmt.Fprintln(out, line)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum pending decks to list (0 lists all)")
	cmd.Flags().BoolVar(&check, "check", false, "Run preflight checks, including a source reachability probe")
	return cmd
}
