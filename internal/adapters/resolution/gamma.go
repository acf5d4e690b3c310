// Package resolution implements the Resolution Tracker (spec §4.2): it
// fetches closed-market metadata from Polymarket's Gamma API and turns it
// into domain.MarketResolution rows for the P&L calculator to consume.
package resolution

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/awarefund/smartmoney/internal/ports"
)

const (
	defaultGammaBase = "https://gamma-api.polymarket.com"
	marketsPath       = "/markets"

	pageSize    = 100
	maxPages    = 50
	pacingDelay = 200 * time.Millisecond

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// GammaClient fetches closed markets from the Gamma API, rate-limited and
// retrying, generalized from the teacher's polymarket.Client doWithRetry.
type GammaClient struct {
	http    *http.Client
	base    string
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewGammaClient builds a client against base (or the production Gamma API
// if empty), paced at no more than one request per pacingDelay.
func NewGammaClient(base string, log *slog.Logger) *GammaClient {
	if base == "" {
		base = defaultGammaBase
	}
	return &GammaClient{
		http:    &http.Client{Timeout: 30 * time.Second},
		base:    base,
		limiter: rate.NewLimiter(rate.Every(pacingDelay), 1),
		log:     log,
	}
}

type gammaMarket struct {
	ConditionID   string `json:"conditionId"`
	Slug          string `json:"slug"`
	Question      string `json:"question"`
	Title         string `json:"title"`
	Closed        bool   `json:"closed"`
	IsResolved    bool   `json:"isResolved"`
	OutcomePrices any    `json:"outcomePrices"`
	Outcomes      any    `json:"outcomes"`
	EndDate       any    `json:"endDate"`
	EndTime       any    `json:"endTime"`
}

// FetchResolutions implements ports.MetadataProvider: it pages through
// closed markets ordered by closedTime descending, matching against
// conditionIDs, stopping at the safety cap or once every wanted ID is
// found — the two-phase dedup + paginated sweep of resolution_tracker.py.
func (c *GammaClient) FetchResolutions(ctx context.Context, conditionIDs []string) ([]ports.RawResolution, error) {
	wanted := make(map[string]bool, len(conditionIDs))
	for _, id := range conditionIDs {
		wanted[id] = true
	}
	if len(wanted) == 0 {
		return nil, nil
	}

	found := make(map[string]bool)
	var out []ports.RawResolution

	for page := 0; page < maxPages; page++ {
		offset := page * pageSize
		markets, err := c.fetchPage(ctx, offset)
		if err != nil {
			c.log.Warn("resolution.FetchResolutions: page fetch failed, stopping", "page", page, "err", err)
			break
		}
		if len(markets) == 0 {
			break
		}

		for _, m := range markets {
			if !wanted[m.ConditionID] {
				continue
			}
			isResolved := m.Closed || m.IsResolved
			if !isResolved {
				continue
			}
			out = append(out, ports.RawResolution{
				ConditionID:   m.ConditionID,
				MarketSlug:    m.Slug,
				Title:         firstNonEmpty(m.Question, m.Title),
				Closed:        isResolved,
				OutcomePrices: m.OutcomePrices,
				Outcomes:      m.Outcomes,
				EndDate:       stringifyEndDate(m.EndDate, m.EndTime),
			})
			found[m.ConditionID] = true
		}

		if len(found) >= len(wanted) {
			break
		}

		if err := c.pace(ctx); err != nil {
			return out, err
		}
	}

	c.log.Info("resolution.FetchResolutions: complete", "wanted", len(wanted), "found", len(found))
	return out, nil
}

func (c *GammaClient) fetchPage(ctx context.Context, offset int) ([]gammaMarket, error) {
	q := url.Values{}
	q.Set("closed", "true")
	q.Set("limit", strconv.Itoa(pageSize))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("order", "closedTime")
	q.Set("ascending", "false")
	u := c.base + marketsPath + "?" + q.Encode()

	var markets []gammaMarket
	if err := c.getWithRetry(ctx, u, &markets); err != nil {
		return nil, fmt.Errorf("resolution.fetchPage: %w", err)
	}
	return markets, nil
}

func (c *GammaClient) pace(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

func (c *GammaClient) getWithRetry(ctx context.Context, u string, out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			c.sleep(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

func (c *GammaClient) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func stringifyEndDate(primary, fallback any) string {
	if s, ok := primary.(string); ok && s != "" {
		return s
	}
	if s, ok := fallback.(string); ok && s != "" {
		return s
	}
	return ""
}
