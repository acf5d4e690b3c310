package scanner

// concurrent.go — worker pool for per-market insider-detector analysis.
//
// The insider scan runs six independent checks against every active market;
// running markets through a worker pool keeps a full scan cheap even when
// the active-market universe is large, the same tradeoff the original
// scanner's sequential per-market loop made as a simplification.

import (
	"context"
	"sync"

	"github.com/awarefund/smartmoney/internal/domain"
)

// analyzeMarketsConcurrent fans marketIDs out across workers (workers <= 0
// uses a fixed pool of 8 — insider scans are I/O bound on the store, so a
// fixed worker count is plenty), calling analyze
// per market and flattening the results. Errors from individual markets are
// swallowed by the caller-supplied analyze func; a market that fails to
// analyze simply contributes no alerts.
func analyzeMarketsConcurrent(ctx context.Context, marketIDs []string, workers int, analyze func(ctx context.Context, marketID string) []domain.Alert) []domain.Alert {
	if workers <= 0 {
		workers = 8
	}
	if workers > len(marketIDs) {
		workers = len(marketIDs)
	}
	if workers == 0 {
		return nil
	}

	workCh := make(chan string, len(marketIDs))
	resultCh := make(chan []domain.Alert, len(marketIDs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for marketID := range workCh {
				resultCh <- analyze(ctx, marketID)
			}
		}()
	}

	for _, id := range marketIDs {
		workCh <- id
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var out []domain.Alert
	for alerts := range resultCh {
		out = append(out, alerts...)
	}
	return out
}
