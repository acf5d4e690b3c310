package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awarefund/smartmoney/internal/domain"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAlert() domain.Alert {
	return domain.Alert{
		AlertID: "abc123", Type: domain.AlertConsensus, Severity: domain.SeverityHigh,
		Title: "test", Message: "msg", MarketID: "market-1", Direction: "YES",
		VolumeUSD: 12345, NumWallets: 4, Confidence: 0.8, CreatedAt: time.Now().UTC(),
	}
}

func TestWebhookSendsSignedPayload(t *testing.T) {
	secret := "shh"
	var gotSig string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-SmartMoney-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook([]string{srv.URL}, secret, "", discard())
	ok, err := wh.Send(context.Background(), testAlert())
	require.NoError(t, err)
	assert.True(t, ok)

	// Signature verifies against the delivered body.
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(gotBody)
	assert.Equal(t, "sha256="+hex.EncodeToString(mac.Sum(nil)), gotSig)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "alert", payload["event_type"])
	alert := payload["alert"].(map[string]any)
	assert.Equal(t, "CONSENSUS", alert["type"])
	assert.Equal(t, "market-1", alert["market_id"])
}

func TestWebhookNoSecretNoSignature(t *testing.T) {
	var sawHeader bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawHeader = r.Header.Get("X-SmartMoney-Signature") != ""
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook([]string{srv.URL}, "", "", discard())
	ok, err := wh.Send(context.Background(), testAlert())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, sawHeader)
}

func TestWebhookRetriesOn5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook([]string{srv.URL}, "", "", discard())
	ok, err := wh.Send(context.Background(), testAlert())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebhookDoesNotRetry4xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	wh := NewWebhook([]string{srv.URL}, "", "", discard())
	ok, err := wh.Send(context.Background(), testAlert())
	assert.False(t, ok)
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWebhookFanOutToleratesOneFailure(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer bad.Close()

	var goodCalls atomic.Int32
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		goodCalls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer good.Close()

	wh := NewWebhook([]string{bad.URL, good.URL}, "", "", discard())
	ok, err := wh.Send(context.Background(), testAlert())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(1), goodCalls.Load())
}

func TestWebhookUnconfiguredNoOp(t *testing.T) {
	wh := NewWebhook(nil, "", "", discard())
	ok, err := wh.Send(context.Background(), testAlert())
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestWebhookAuthHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook([]string{srv.URL}, "", "Bearer tok", discard())
	_, err := wh.Send(context.Background(), testAlert())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", gotAuth)
}

func TestWebhookSendConsensusPayloadShape(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook([]string{srv.URL}, "", "", discard())
	ok, err := wh.SendConsensus(context.Background(), "market-1", "YES", "STRONG", 0.8, 10, 60000)
	require.NoError(t, err)
	assert.True(t, ok)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "consensus_signal", payload["event_type"])
	signal := payload["signal"].(map[string]any)
	assert.Equal(t, "STRONG", signal["strength"])
	assert.InDelta(t, 0.8, signal["agreement_pct"].(float64), 1e-9)
}
