package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"deckport/internal/config"
	"deckport/internal/crawler"
	"deckport/internal/logging"
	"deckport/internal/manifest"
	"deckport/internal/services/source"
)

func newCrawlCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Discover decks from the configured topic listings",
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

			report, ran, err := runCrawl(cmd.Context(), cfg, source.NewFromConfig(cfg), store, logger)
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, report)
			}
			printCrawlReport(cmd.OutOrStdout(), cfg, report, ran)
			return nil
		},
	}
}

// runCrawl merges decks listed under every configured topic into the
// manifest. ran is false when the topics file names no topics.
func runCrawl(ctx context.Context, cfg *config.Config, client *source.Client, store crawler.ManifestStore, logger *slog.Logger) (crawler.Report, bool, error) {
	topics, err := crawler.LoadTopics(cfg.Paths.TopicsPath)
	if err != nil {
		return crawler.Report{}, false, err
	}
	if len(topics) == 0 {
		logger.Info("no topics configured; crawl skipped", logging.String("topics_path", cfg.Paths.TopicsPath))
		return crawler.Report{}, false, nil
	}
	report, err := crawler.New(client, client.BaseURL(), logger).Run(ctx, topics, store)
	return report, true, err
}

func printCrawlReport(out io.Writer, cfg *config.Config, report crawler.Report, ran bool) {
	if !ran {
		fmt.Fprintf(out, "No topics found in %s; nothing to crawl\n", cfg.Paths.TopicsPath)
		return
	}
	rows := [][]string{
		{"Topics crawled", strconv.Itoa(report.Topics)},
		{"Decks found", strconv.Itoa(report.DecksFound)},
		{"New decks", strconv.Itoa(report.NewDecks)},
		{"Failed topics", strconv.Itoa(len(report.FailedTopics))},
	}
	fmt.Fprintln(out, renderTable([]string{"Crawl", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
	if len(report.FailedTopics) > 0 {
		fmt.Fprintf(out, "Failed: %s\n", strings.Join(report.FailedTopics, ", "))
	}
}
