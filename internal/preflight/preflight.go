package preflight

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"deckport/internal/config"
	"deckport/internal/logging"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes every check an import pass depends on. The source check is
// skipped when pinger is nil.
func RunAll(ctx context.Context, cfg *config.Config, pinger Pinger) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckManifestWritable(cfg.Paths.ManifestPath),
		CheckFreeSpace("Data directory space", cfg.Paths.DataDir, MinFreeBytes),
	}
	if pinger != nil {
		results = append(results, CheckSource(ctx, cfg.Source.BaseURL, pinger))
	}
	return results
}

// Verify runs RunAll, logs each result, and returns an error naming every
// failed check.
func Verify(ctx context.Context, cfg *config.Config, pinger Pinger, logger *slog.Logger) error {
	logger = logging.NewComponentLogger(logger, "preflight")
	var failures []string
	for _, r := range RunAll(ctx, cfg, pinger) {
		if r.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
			continue
		}
		logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldErrorHint, "fix the reported issue and rerun the import"),
		)
		failures = append(failures, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	if len(failures) > 0 {
		return fmt.Errorf("preflight checks failed: %s", strings.Join(failures, "; "))
	}
	return nil
}
