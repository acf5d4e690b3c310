package dispatch

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awarefund/smartmoney/internal/domain"
	"github.com/awarefund/smartmoney/internal/ports"
)

type fakeSink struct {
	mu     sync.Mutex
	name   string
	sent   []domain.Alert
	fail   bool
	refuse bool
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Send(_ context.Context, a domain.Alert) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return false, assert.AnError
	}
	if f.refuse {
		return false, nil
	}
	f.sent = append(f.sent, a)
	return true, nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func volumeSpikeAlert(volume float64) domain.Alert {
	return domain.Alert{
		Type: domain.AlertVolumeSpike, Severity: domain.SeverityHigh,
		Title: "Volume spike", MarketID: "market-1", Direction: "YES",
		VolumeUSD: volume, CreatedAt: time.Now().UTC(),
	}
}

func TestDispatchDeduplicatesWithinTTL(t *testing.T) {
	sink := &fakeSink{name: "fake"}
	d := New([]ports.NotifySink{sink}, nil, Config{MinSeverity: domain.SeverityLow, DedupTTL: 24 * time.Hour}, discard())

	// Two alerts with the same (type, market, wallet, direction, volume
	// bucket) five minutes apart: only the first is delivered.
	first := volumeSpikeAlert(47500)
	second := volumeSpikeAlert(47500)
	second.CreatedAt = first.CreatedAt.Add(5 * time.Minute)

	assert.True(t, d.Dispatch(context.Background(), first))
	assert.False(t, d.Dispatch(context.Background(), second))

	stats := d.GetStats()
	assert.Equal(t, 1, stats.Dispatched)
	assert.Equal(t, 1, stats.Deduplicated)
	assert.Equal(t, 1, sink.count())
}

func TestDispatchVolumeBucketing(t *testing.T) {
	sink := &fakeSink{name: "fake"}
	d := New([]ports.NotifySink{sink}, nil, Config{MinSeverity: domain.SeverityLow, DedupTTL: time.Hour}, discard())

	// 47,100 rounds to the $47k bucket; 47,900 and 48,100 both round to $48k.
	assert.True(t, d.Dispatch(context.Background(), volumeSpikeAlert(47100)))
	assert.True(t, d.Dispatch(context.Background(), volumeSpikeAlert(47900)))
	assert.False(t, d.Dispatch(context.Background(), volumeSpikeAlert(48100)))
}

func TestDispatchSeverityGate(t *testing.T) {
	sink := &fakeSink{name: "fake"}
	d := New([]ports.NotifySink{sink}, nil, Config{MinSeverity: domain.SeverityHigh, DedupTTL: time.Hour}, discard())

	low := volumeSpikeAlert(1000)
	low.Severity = domain.SeverityLow
	assert.False(t, d.Dispatch(context.Background(), low))

	high := volumeSpikeAlert(2000)
	assert.True(t, d.Dispatch(context.Background(), high))

	stats := d.GetStats()
	assert.Equal(t, 1, stats.Filtered)
	assert.Equal(t, 1, stats.Dispatched)
}

func TestDispatchSinkFailureIsolation(t *testing.T) {
	failing := &fakeSink{name: "failing", fail: true}
	healthy := &fakeSink{name: "healthy"}
	d := New([]ports.NotifySink{failing, healthy}, nil, DefaultConfig, discard())

	assert.True(t, d.Dispatch(context.Background(), volumeSpikeAlert(5000)),
		"one healthy sink is enough to count as dispatched")
	assert.Equal(t, 1, healthy.count())
}

func TestDispatchAllSinksFailNotMarkedSent(t *testing.T) {
	failing := &fakeSink{name: "failing", fail: true}
	d := New([]ports.NotifySink{failing}, nil, DefaultConfig, discard())

	assert.False(t, d.Dispatch(context.Background(), volumeSpikeAlert(5000)))
	// Not marked sent: a retry on the next cycle is allowed through.
	assert.False(t, d.isDuplicate(AlertKey(volumeSpikeAlert(5000))))
}

func TestDispatchBatchCounts(t *testing.T) {
	sink := &fakeSink{name: "fake"}
	d := New([]ports.NotifySink{sink}, nil, DefaultConfig, discard())

	batch := []domain.Alert{
		volumeSpikeAlert(1000),
		volumeSpikeAlert(1000), // dup of previous
		volumeSpikeAlert(99000),
	}
	assert.Equal(t, 2, d.DispatchBatch(context.Background(), batch))
}

func TestAlertKeyDeterministic(t *testing.T) {
	a := volumeSpikeAlert(47500)
	b := volumeSpikeAlert(47500)
	require.Equal(t, AlertKey(a), AlertKey(b))
	assert.Len(t, AlertKey(a), 16)

	c := volumeSpikeAlert(47500)
	c.WalletID = "different"
	assert.NotEqual(t, AlertKey(a), AlertKey(c))
}

func TestDispatchExpiredKeysResend(t *testing.T) {
	sink := &fakeSink{name: "fake"}
	d := New([]ports.NotifySink{sink}, nil, Config{MinSeverity: domain.SeverityLow, DedupTTL: time.Millisecond}, discard())

	assert.True(t, d.Dispatch(context.Background(), volumeSpikeAlert(5000)))
	time.Sleep(5 * time.Millisecond)
	assert.True(t, d.Dispatch(context.Background(), volumeSpikeAlert(5000)),
		"after TTL expiry the same alert dispatches again")
}
