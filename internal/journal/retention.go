package journal

import (
	"context"
	"log/slog"
	"time"

	"simpleclipboard/internal/logging"
)

const pruneInterval = time.Hour

// RunRetention prunes entries older than days once immediately and then every
// hour until ctx is cancelled. days <= 0 disables pruning.
func RunRetention(ctx context.Context, s *Store, days int, logger *slog.Logger) {
	if s == nil || days <= 0 {
		return
	}
	logger = logging.NewComponentLogger(logger, "journal")
	keep := time.Duration(days) * 24 * time.Hour

	prune := func() {
		removed, err := s.Prune(ctx, time.Now().Add(-keep))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.WarnWithContext(logger, "journal pruning failed", "journal_prune_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "old history entries are kept until the next attempt"),
			)
			return
		}
		if removed > 0 {
			logger.Info("journal pruned", logging.Int64("removed", removed), logging.Int("retention_days", days))
		}
	}

	prune()
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
