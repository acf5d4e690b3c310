package resolution

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/awarefund/smartmoney/internal/domain"
	"github.com/awarefund/smartmoney/internal/ports"
	"github.com/awarefund/smartmoney/internal/sanitize"
)

// Tracker fetches resolution metadata for every traded market that isn't
// already marked resolved, and persists it for the P&L calculator.
type Tracker struct {
	store    ports.Store
	metadata ports.MetadataProvider
	log      *slog.Logger
}

// New builds a Tracker over the given store and metadata provider.
func New(store ports.Store, metadata ports.MetadataProvider, log *slog.Logger) *Tracker {
	return &Tracker{store: store, metadata: metadata, log: log}
}

// Run fetches and stores resolutions for every condition ID traded but not
// yet resolved, per spec §4.2's dedup-then-fetch-then-store pipeline.
// Returns the number of resolutions stored.
func (t *Tracker) Run(ctx context.Context) (int, error) {
	pending, err := t.store.UnresolvedConditionIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolution.Run: unresolved condition ids: %w", err)
	}
	t.log.Info("resolution.Run: starting", "pending", len(pending))
	if len(pending) == 0 {
		return 0, nil
	}

	raw, err := t.metadata.FetchResolutions(ctx, pending)
	if err != nil {
		return 0, fmt.Errorf("resolution.Run: fetch: %w", err)
	}

	now := time.Now().UTC()
	stored := 0
	for _, r := range raw {
		res, ok := parseResolution(r, now)
		if !ok || !res.IsResolved {
			continue
		}
		if err := t.store.SaveResolution(ctx, res); err != nil {
			t.log.Warn("resolution.Run: save failed", "condition_id", res.ConditionID, "err", err)
			continue
		}
		stored++
	}

	t.log.Info("resolution.Run: complete", "stored", stored)
	return stored, nil
}

// parseResolution turns a raw API payload into a domain.MarketResolution,
// tolerating the Gamma API's outcomePrices/outcomes fields arriving as
// either a JSON array or a JSON-encoded string (resolution_tracker.py's
// `_parse_market`).
func parseResolution(r ports.RawResolution, now time.Time) (domain.MarketResolution, bool) {
	if r.ConditionID == "" {
		return domain.MarketResolution{}, false
	}

	prices := parseFloatField(r.OutcomePrices)
	outcomes := parseStringField(r.Outcomes)
	if len(outcomes) == 0 {
		outcomes = []string{"Yes", "No"}
	}

	winningOutcome := ""
	winningIdx := -1
	if r.Closed && len(prices) > 0 {
		for i, p := range prices {
			if domain.IsWinner(p) {
				winningIdx = i
				if i < len(outcomes) {
					winningOutcome = outcomes[i]
				}
				break
			}
		}
	}

	return domain.MarketResolution{
		ConditionID:       r.ConditionID,
		MarketSlug:        sanitize.MarketSlug(r.MarketSlug),
		Title:             sanitize.Identifier(r.Title, 500),
		IsResolved:        r.Closed,
		WinningOutcome:    winningOutcome,
		WinningOutcomeIdx: winningIdx,
		OutcomePrices:     prices,
		Outcomes:          outcomes,
		EndTime:           parseTimeField(r.EndDate),
		ResolutionTime:    now,
	}, true
}

// parseFloatField accepts either a []any of numbers/strings or a
// JSON-encoded string and returns a []float64, matching the Python
// isinstance(x, str) branch in the original parser.
func parseFloatField(v any) []float64 {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}
		var raw []json.Number
		if err := json.Unmarshal([]byte(val), &raw); err != nil {
			return nil
		}
		out := make([]float64, 0, len(raw))
		for _, n := range raw {
			f, _ := n.Float64()
			out = append(out, f)
		}
		return out
	case []any:
		out := make([]float64, 0, len(val))
		for _, item := range val {
			out = append(out, toFloat(item))
		}
		return out
	default:
		return nil
	}
}

func parseStringField(v any) []string {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}
		var out []string
		if err := json.Unmarshal([]byte(val), &out); err != nil {
			return nil
		}
		return out
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func toFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case json.Number:
		f, _ := val.Float64()
		return f
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func parseTimeField(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}
