// Package dispatch routes scanner alerts to the configured notification
// sinks behind a severity gate and a TTL'd dedup cache, re-architected from
// the original process-wide singleton into an explicitly-constructed
// dependency wired in main.
package dispatch

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/awarefund/smartmoney/internal/domain"
	"github.com/awarefund/smartmoney/internal/ports"
)

const maxCacheSize = 10_000

// Config bounds the dispatcher's severity gate and dedup window.
type Config struct {
	MinSeverity domain.AlertSeverity
	DedupTTL    time.Duration
}

// DefaultConfig dispatches everything, remembering sent alerts for 24h.
var DefaultConfig = Config{
	MinSeverity: domain.SeverityLow,
	DedupTTL:    24 * time.Hour,
}

// Stats counts the dispatcher's outcomes since construction.
type Stats struct {
	Dispatched   int
	Filtered     int
	Deduplicated int
	CacheSize    int
}

// Dispatcher fans alerts out to every configured sink. Safe for concurrent
// use: the dedup cache is guarded by a single mutex, per the shared-resource
// contract in SPEC_FULL.md.
type Dispatcher struct {
	sinks []ports.NotifySink
	store ports.Store
	cfg   Config
	log   *slog.Logger

	mu       sync.Mutex
	sent     map[string]time.Time
	sentSeq  []string // insertion order, for LRU eviction
	stats    Stats
}

// New builds a Dispatcher over the given sinks. store may be nil (alerts are
// then not persisted); it is also used to warm the dedup cache via
// WarmCache.
func New(sinks []ports.NotifySink, store ports.Store, cfg Config, log *slog.Logger) *Dispatcher {
	if cfg.DedupTTL == 0 {
		cfg = DefaultConfig
	}
	return &Dispatcher{
		sinks: sinks,
		store: store,
		cfg:   cfg,
		log:   log,
		sent:  make(map[string]time.Time),
	}
}

// AlertKey is the content hash used both as the alert's identifier and its
// dedup key: (type, market_id, wallet_id, direction, volume rounded to the
// nearest $1000).
func AlertKey(a domain.Alert) string {
	volumeBucket := int(math.Round(a.VolumeUSD/1000)) * 1000
	keyData := fmt.Sprintf("%s:%s:%s:%s:%d", a.Type, a.MarketID, a.WalletID, a.Direction, volumeBucket)
	sum := md5.Sum([]byte(keyData))
	return hex.EncodeToString(sum[:])[:16]
}

// WarmCache seeds the dedup cache with alert IDs dispatched within the TTL
// before this process started, so a restart does not re-send.
func (d *Dispatcher) WarmCache(ctx context.Context) error {
	if d.store == nil {
		return nil
	}
	ids, err := d.store.RecentAlertIDs(ctx, time.Now().UTC().Add(-d.cfg.DedupTTL))
	if err != nil {
		return fmt.Errorf("dispatch.WarmCache: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now().UTC()
	for _, id := range ids {
		if _, ok := d.sent[id]; !ok {
			d.sent[id] = now
			d.sentSeq = append(d.sentSeq, id)
		}
	}
	return nil
}

// Dispatch routes one alert: severity gate, dedup check, then fan-out. An
// alert counts as dispatched when at least one sink delivered it; sink
// failures are isolated from each other. Returns whether it was dispatched.
func (d *Dispatcher) Dispatch(ctx context.Context, a domain.Alert) bool {
	if domain.SeverityRank(a.Severity) < domain.SeverityRank(d.cfg.MinSeverity) {
		d.mu.Lock()
		d.stats.Filtered++
		d.mu.Unlock()
		return false
	}

	key := AlertKey(a)
	if d.isDuplicate(key) {
		d.mu.Lock()
		d.stats.Deduplicated++
		d.mu.Unlock()
		d.log.Debug("dispatch: deduplicated", "type", a.Type, "key", key)
		return false
	}

	if a.AlertID == "" {
		a.AlertID = key
	}

	sent := false
	for _, sink := range d.sinks {
		ok, err := sink.Send(ctx, a)
		if err != nil {
			d.log.Warn("dispatch: sink failed", "sink", sink.Name(), "type", a.Type,
				"err", domain.NewKindError(domain.KindSinkDelivery, err))
			continue
		}
		if ok {
			sent = true
		}
	}
	if !sent {
		return false
	}

	a.DeliveredAt = time.Now().UTC()
	d.markSent(key)
	d.mu.Lock()
	d.stats.Dispatched++
	d.mu.Unlock()

	if d.store != nil {
		if err := d.store.SaveAlert(ctx, a); err != nil {
			d.log.Warn("dispatch: persist failed", "alert", a.AlertID, "err", err)
		}
	}

	d.log.Info("dispatch: sent", "type", a.Type, "severity", a.Severity, "market", a.MarketID)
	return true
}

// DispatchBatch routes a batch, returning the number dispatched.
func (d *Dispatcher) DispatchBatch(ctx context.Context, alerts []domain.Alert) int {
	count := 0
	for _, a := range alerts {
		if d.Dispatch(ctx, a) {
			count++
		}
	}
	return count
}

// isDuplicate reports whether key was sent within the TTL, expiring stale
// entries and evicting oldest-first past the cache cap on the way.
func (d *Dispatcher) isDuplicate(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now().UTC()
	keep := d.sentSeq[:0]
	for _, k := range d.sentSeq {
		sentAt, ok := d.sent[k]
		if !ok {
			continue
		}
		if now.Sub(sentAt) > d.cfg.DedupTTL {
			delete(d.sent, k)
			continue
		}
		keep = append(keep, k)
	}
	d.sentSeq = keep

	for len(d.sentSeq) > maxCacheSize {
		oldest := d.sentSeq[0]
		d.sentSeq = d.sentSeq[1:]
		delete(d.sent, oldest)
	}

	_, dup := d.sent[key]
	return dup
}

func (d *Dispatcher) markSent(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.sent[key]; !ok {
		d.sentSeq = append(d.sentSeq, key)
	}
	d.sent[key] = time.Now().UTC()
}

// GetStats returns a snapshot of the dispatcher's counters.
func (d *Dispatcher) GetStats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	s.CacheSize = len(d.sent)
	return s
}
