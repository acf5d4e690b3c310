// Package notify implements the notification sinks the dispatcher fans out
// to: a chat-webhook with rich embeds, a bot API with markup messages, and a
// generic signed HTTP webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/awarefund/smartmoney/internal/domain"
)

const marketViewBase = "https://polymarket.com/event/"

// severityColor maps alert severity to the embed sidebar color.
func severityColor(s domain.AlertSeverity) int {
	switch s {
	case domain.SeverityCritical:
		return 0xFF0000
	case domain.SeverityHigh:
		return 0xFFA500
	case domain.SeverityMedium:
		return 0xFFFF00
	default:
		return 0x00FF00
	}
}

func severityEmoji(s domain.AlertSeverity) string {
	switch s {
	case domain.SeverityCritical:
		return "\U0001f6a8"
	case domain.SeverityHigh:
		return "⚠️"
	case domain.SeverityMedium:
		return "\U0001f50d"
	default:
		return "\U0001f4a1"
	}
}

// embed is the chat-webhook's rich message shape.
type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Footer      *embedFooter `json:"footer,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embedFooter struct {
	Text string `json:"text"`
}

// ChatWebhook posts alerts to a chat webhook URL as structured rich
// messages, color-coded by severity.
type ChatWebhook struct {
	url  string
	http *http.Client
	log  *slog.Logger
}

// NewChatWebhook builds the sink. An empty URL yields an unconfigured sink
// whose Send is a no-op returning false.
func NewChatWebhook(url string, log *slog.Logger) *ChatWebhook {
	return &ChatWebhook{
		url:  url,
		http: &http.Client{Timeout: 10 * time.Second},
		log:  log,
	}
}

func (c *ChatWebhook) Name() string { return "chat-webhook" }

// IsConfigured reports whether a webhook URL is set.
func (c *ChatWebhook) IsConfigured() bool { return c.url != "" }

// Send delivers one alert as a rich embed.
func (c *ChatWebhook) Send(ctx context.Context, a domain.Alert) (bool, error) {
	if !c.IsConfigured() {
		return false, nil
	}

	e := embed{
		Title:       fmt.Sprintf("%s %s", severityEmoji(a.Severity), a.Title),
		Description: a.Message,
		Color:       severityColor(a.Severity),
		Timestamp:   a.CreatedAt.UTC().Format(time.RFC3339),
		Footer:      &embedFooter{Text: "smartmoney analytics"},
	}
	if a.MarketID != "" {
		e.URL = marketViewBase + a.MarketID
		e.Fields = append(e.Fields, embedField{Name: "Market", Value: a.MarketID, Inline: true})
	}
	if a.Direction != "" {
		e.Fields = append(e.Fields, embedField{Name: "Direction", Value: a.Direction, Inline: true})
	}
	if a.VolumeUSD > 0 {
		e.Fields = append(e.Fields, embedField{Name: "Volume", Value: fmt.Sprintf("$%.0f", a.VolumeUSD), Inline: true})
	}
	if a.NumWallets > 0 {
		e.Fields = append(e.Fields, embedField{Name: "Wallets", Value: fmt.Sprintf("%d", a.NumWallets), Inline: true})
	}
	if a.Confidence > 0 {
		e.Fields = append(e.Fields, embedField{Name: "Confidence", Value: fmt.Sprintf("%.0f%%", a.Confidence*100), Inline: true})
	}

	return c.post(ctx, map[string]any{
		"embeds":   []embed{e},
		"username": "Smart Money Intelligence",
	})
}

// SendConsensus delivers a consensus signal with its own field layout.
func (c *ChatWebhook) SendConsensus(ctx context.Context, marketSlug, direction, strength string, agreementPct float64, numTraders int, totalVolume float64) (bool, error) {
	if !c.IsConfigured() {
		return false, nil
	}
	e := embed{
		Title: fmt.Sprintf("\U0001f91d Smart money consensus: %s", marketSlug),
		URL:   marketViewBase + marketSlug,
		Color: severityColor(domain.SeverityMedium),
		Fields: []embedField{
			{Name: "Direction", Value: direction, Inline: true},
			{Name: "Strength", Value: strength, Inline: true},
			{Name: "Agreement", Value: fmt.Sprintf("%.0f%%", agreementPct*100), Inline: true},
			{Name: "Traders", Value: fmt.Sprintf("%d", numTraders), Inline: true},
			{Name: "Volume", Value: fmt.Sprintf("$%.0f", totalVolume), Inline: true},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	return c.post(ctx, map[string]any{"embeds": []embed{e}, "username": "Smart Money Intelligence"})
}

// SendHiddenGem delivers a hidden-alpha discovery.
func (c *ChatWebhook) SendHiddenGem(ctx context.Context, walletID, discoveryType, reason string, discoveryScore float64) (bool, error) {
	if !c.IsConfigured() {
		return false, nil
	}
	e := embed{
		Title:       fmt.Sprintf("⭐ %s: %s", discoveryType, walletID),
		Description: reason,
		Color:       severityColor(domain.SeverityLow),
		Fields: []embedField{
			{Name: "Discovery score", Value: fmt.Sprintf("%.1f", discoveryScore), Inline: true},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	return c.post(ctx, map[string]any{"embeds": []embed{e}, "username": "Smart Money Intelligence"})
}

func (c *ChatWebhook) post(ctx context.Context, payload any) (bool, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("chatwebhook: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("chatwebhook: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("chatwebhook: post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true, nil
	}
	return false, fmt.Errorf("chatwebhook: status %d", resp.StatusCode)
}
