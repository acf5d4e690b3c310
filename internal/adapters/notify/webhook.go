package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/awarefund/smartmoney/internal/domain"
)

const (
	webhookTimeout     = 10 * time.Second
	defaultMaxRetries  = 3
	retryBackoffStep   = 1 * time.Second
	signatureHeader    = "X-SmartMoney-Signature"
	webhookRatePerSec  = 5
)

// Webhook posts alerts as JSON to one or more generic HTTP endpoints,
// signing the body with HMAC-SHA256 when a shared secret is configured.
// Retries 5xx and network errors with linear backoff; 4xx is never retried.
type Webhook struct {
	urls       []string
	secret     string
	authHeader string
	maxRetries int
	http       *http.Client
	limiter    *rate.Limiter
	log        *slog.Logger
}

// NewWebhook builds the sink over urls (empty yields an unconfigured no-op
// sink). authHeader, when set, is sent as the Authorization header value.
func NewWebhook(urls []string, secret, authHeader string, log *slog.Logger) *Webhook {
	return &Webhook{
		urls:       urls,
		secret:     secret,
		authHeader: authHeader,
		maxRetries: defaultMaxRetries,
		http:       &http.Client{Timeout: webhookTimeout},
		limiter:    rate.NewLimiter(webhookRatePerSec, webhookRatePerSec),
		log:        log,
	}
}

func (w *Webhook) Name() string { return "webhook" }

// IsConfigured reports whether at least one endpoint is set.
func (w *Webhook) IsConfigured() bool { return len(w.urls) > 0 }

// alertPayload is the tagged-union JSON scheme for the shared envelope.
type alertPayload struct {
	EventType string         `json:"event_type"`
	Timestamp string         `json:"timestamp"`
	Alert     map[string]any `json:"alert,omitempty"`
	Signal    map[string]any `json:"signal,omitempty"`
	Discovery map[string]any `json:"discovery,omitempty"`
	Metadata  map[string]any `json:"metadata"`
}

func metadata() map[string]any {
	return map[string]any{"source": "smartmoney-analytics", "version": "1.0"}
}

// Send delivers one alert to every configured endpoint. Delivery counts as
// success when at least one endpoint accepted it.
func (w *Webhook) Send(ctx context.Context, a domain.Alert) (bool, error) {
	if !w.IsConfigured() {
		return false, nil
	}

	payload := alertPayload{
		EventType: "alert",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Alert: map[string]any{
			"alert_id":    a.AlertID,
			"type":        string(a.Type),
			"severity":    string(a.Severity),
			"title":       a.Title,
			"message":     a.Message,
			"wallet_id":   a.WalletID,
			"market_id":   a.MarketID,
			"direction":   a.Direction,
			"volume_usd":  a.VolumeUSD,
			"num_wallets": a.NumWallets,
			"confidence":  a.Confidence,
			"data":        a.Data,
			"created_at":  a.CreatedAt.UTC().Format(time.RFC3339),
		},
		Metadata: metadata(),
	}
	return w.fanOut(ctx, payload)
}

// SendConsensus delivers a typed consensus signal payload.
func (w *Webhook) SendConsensus(ctx context.Context, marketSlug, direction, strength string, agreementPct float64, numTraders int, totalVolume float64) (bool, error) {
	if !w.IsConfigured() {
		return false, nil
	}
	payload := alertPayload{
		EventType: "consensus_signal",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Signal: map[string]any{
			"market_slug":      marketSlug,
			"direction":        direction,
			"strength":         strength,
			"agreement_pct":    agreementPct,
			"num_traders":      numTraders,
			"total_volume_usd": totalVolume,
		},
		Metadata: metadata(),
	}
	return w.fanOut(ctx, payload)
}

// SendHiddenGem delivers a typed hidden-alpha discovery payload.
func (w *Webhook) SendHiddenGem(ctx context.Context, walletID, discoveryType, reason string, discoveryScore float64, metrics map[string]float64) (bool, error) {
	if !w.IsConfigured() {
		return false, nil
	}
	payload := alertPayload{
		EventType: "hidden_gem_alert",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Discovery: map[string]any{
			"wallet_id":       walletID,
			"discovery_type":  discoveryType,
			"discovery_score": discoveryScore,
			"reason":          reason,
			"metrics":         metrics,
		},
		Metadata: metadata(),
	}
	return w.fanOut(ctx, payload)
}

// fanOut delivers the payload to every endpoint; one failing endpoint does
// not block the others.
func (w *Webhook) fanOut(ctx context.Context, payload alertPayload) (bool, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("webhook: marshal: %w", err)
	}

	sent := false
	var lastErr error
	for _, url := range w.urls {
		if err := w.deliver(ctx, url, body); err != nil {
			w.log.Warn("webhook: delivery failed", "url", url, "err", err)
			lastErr = err
			continue
		}
		sent = true
	}
	if sent {
		return true, nil
	}
	return false, lastErr
}

// deliver posts body to url, retrying 5xx and transport errors with linear
// backoff up to maxRetries. 4xx responses fail immediately.
func (w *Webhook) deliver(ctx context.Context, url string, body []byte) error {
	var lastErr error
	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * retryBackoffStep):
			}
		}
		if err := w.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("webhook: rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("webhook: request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "smartmoney-analytics/1.0")
		if w.authHeader != "" {
			req.Header.Set("Authorization", w.authHeader)
		}
		if w.secret != "" {
			req.Header.Set(signatureHeader, "sha256="+w.sign(body))
		}

		resp, err := w.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("webhook: post: %w", err)
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("webhook: server error %d", resp.StatusCode)
			continue
		default:
			return fmt.Errorf("webhook: rejected with status %d", resp.StatusCode)
		}
	}
	return lastErr
}

// sign computes the hex HMAC-SHA256 of body under the shared secret.
func (w *Webhook) sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(w.secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
