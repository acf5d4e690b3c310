package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/awarefund/smartmoney/internal/domain"
)

const defaultBotAPIBase = "https://api.telegram.org/bot"

// BotAPI sends alerts through a chat bot's sendMessage endpoint as markup
// messages with emoji severity prefixes, optionally routed to a forum
// thread.
type BotAPI struct {
	base     string
	token    string
	chatID   string
	threadID int
	silent   bool
	http     *http.Client
	log      *slog.Logger
}

// NewBotAPI builds the sink. An empty base uses the production bot host.
// Missing token or chat ID yields an unconfigured sink whose Send is a
// no-op returning false. threadID is the optional forum-topic route (""
// disables threading).
func NewBotAPI(base, token, chatID, threadID string, log *slog.Logger) *BotAPI {
	if base == "" {
		base = defaultBotAPIBase
	}
	tid := 0
	if threadID != "" {
		if n, err := strconv.Atoi(threadID); err == nil {
			tid = n
		}
	}
	return &BotAPI{
		base:     base,
		token:    token,
		chatID:   chatID,
		threadID: tid,
		http:     &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

func (b *BotAPI) Name() string { return "bot-api" }

// IsConfigured reports whether both token and chat ID are set.
func (b *BotAPI) IsConfigured() bool { return b.token != "" && b.chatID != "" }

// Send delivers one alert as a MarkdownV2-free HTML message.
func (b *BotAPI) Send(ctx context.Context, a domain.Alert) (bool, error) {
	if !b.IsConfigured() {
		return false, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s <b>%s</b>\n", severityEmoji(a.Severity), escapeHTML(a.Title))
	if a.Message != "" {
		fmt.Fprintf(&sb, "%s\n", escapeHTML(a.Message))
	}
	if a.MarketID != "" {
		fmt.Fprintf(&sb, "\nMarket: %s", escapeHTML(a.MarketID))
	}
	if a.Direction != "" {
		fmt.Fprintf(&sb, "\nDirection: %s", escapeHTML(a.Direction))
	}
	if a.VolumeUSD > 0 {
		fmt.Fprintf(&sb, "\nVolume: $%.0f", a.VolumeUSD)
	}
	if a.Confidence > 0 {
		fmt.Fprintf(&sb, "\nConfidence: %.0f%%", a.Confidence*100)
	}

	return b.sendMessage(ctx, sb.String())
}

// SendDecay delivers an edge-decay alert with its own message layout.
func (b *BotAPI) SendDecay(ctx context.Context, walletID string, dimensions []string, recommendedAction string) (bool, error) {
	if !b.IsConfigured() {
		return false, nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "\U0001f4c9 <b>Edge decay: %s</b>\n", escapeHTML(walletID))
	fmt.Fprintf(&sb, "Degrading: %s\n", escapeHTML(strings.Join(dimensions, ", ")))
	if recommendedAction != "" {
		fmt.Fprintf(&sb, "Suggested: %s", escapeHTML(recommendedAction))
	}
	return b.sendMessage(ctx, sb.String())
}

func (b *BotAPI) sendMessage(ctx context.Context, text string) (bool, error) {
	payload := map[string]any{
		"chat_id":    b.chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	if b.threadID != 0 {
		payload["message_thread_id"] = b.threadID
	}
	if b.silent {
		payload["disable_notification"] = true
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("botapi: marshal: %w", err)
	}
	url := b.base + b.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("botapi: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("botapi: post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusOK {
		return true, nil
	}
	return false, fmt.Errorf("botapi: status %d", resp.StatusCode)
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
