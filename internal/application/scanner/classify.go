package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/awarefund/smartmoney/internal/domain"
	"github.com/awarefund/smartmoney/internal/ports"
)

// Classifier assigns a category to every traded market that has not been
// classified yet, grounded on market_classification_job.py's
// classify-new-slugs loop. Classification is keyed on market_slug with
// replace-on-insert semantics, so re-running is idempotent.
type Classifier struct {
	store ports.Store
	log   *slog.Logger
}

// NewClassifier builds a Classifier over the given store.
func NewClassifier(store ports.Store, log *slog.Logger) *Classifier {
	return &Classifier{store: store, log: log}
}

// Run classifies every unclassified market slug, returning the number of
// markets classified. Per-market failures are logged and skipped.
func (c *Classifier) Run(ctx context.Context) (int, error) {
	start := time.Now()
	slugs, err := c.store.UnclassifiedMarketSlugs(ctx)
	if err != nil {
		return 0, fmt.Errorf("classifier.Run: list unclassified: %w", err)
	}

	classified := 0
	for _, slug := range slugs {
		classification := domain.ClassifyMarket(slug, "")
		if err := c.store.SaveClassification(ctx, classification); err != nil {
			c.log.Warn("classifier.Run: save failed", "market", slug, "err", err)
			continue
		}
		classified++
	}

	c.log.Info("classifier.Run: complete", "markets", classified,
		"duration", time.Since(start).Round(time.Millisecond))
	return classified, nil
}
