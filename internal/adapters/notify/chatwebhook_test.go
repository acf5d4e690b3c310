package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awarefund/smartmoney/internal/domain"
)

func TestChatWebhookSendsEmbed(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewChatWebhook(srv.URL, discard())
	ok, err := sink.Send(context.Background(), testAlert())
	require.NoError(t, err)
	assert.True(t, ok)

	var payload struct {
		Embeds []struct {
			Title string `json:"title"`
			Color int    `json:"color"`
			URL   string `json:"url"`
		} `json:"embeds"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	require.Len(t, payload.Embeds, 1)
	assert.Contains(t, payload.Embeds[0].Title, "test")
	assert.Equal(t, 0xFFA500, payload.Embeds[0].Color, "high severity renders orange")
	assert.Contains(t, payload.Embeds[0].URL, "market-1")
}

func TestChatWebhookSeverityColors(t *testing.T) {
	assert.Equal(t, 0xFF0000, severityColor(domain.SeverityCritical))
	assert.Equal(t, 0xFFA500, severityColor(domain.SeverityHigh))
	assert.Equal(t, 0xFFFF00, severityColor(domain.SeverityMedium))
	assert.Equal(t, 0x00FF00, severityColor(domain.SeverityLow))
}

func TestChatWebhookUnconfiguredNoOp(t *testing.T) {
	sink := NewChatWebhook("", discard())
	ok, err := sink.Send(context.Background(), testAlert())
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestChatWebhookErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	sink := NewChatWebhook(srv.URL, discard())
	ok, err := sink.Send(context.Background(), testAlert())
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestBotAPISendMessage(t *testing.T) {
	var gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewBotAPI(srv.URL+"/bot", "token123", "-1001", "42", discard())
	ok, err := sink.Send(context.Background(), testAlert())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/bottoken123/sendMessage", gotPath)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "-1001", payload["chat_id"])
	assert.Equal(t, "HTML", payload["parse_mode"])
	assert.InDelta(t, 42, payload["message_thread_id"].(float64), 1e-9)
	assert.Contains(t, payload["text"].(string), "test")
}

func TestBotAPIUnconfiguredNoOp(t *testing.T) {
	sink := NewBotAPI("", "", "", "", discard())
	ok, err := sink.Send(context.Background(), testAlert())
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestBotAPIEscapesHTML(t *testing.T) {
	assert.Equal(t, "&lt;b&gt;x&amp;y&lt;/b&gt;", escapeHTML("<b>x&y</b>"))
}
