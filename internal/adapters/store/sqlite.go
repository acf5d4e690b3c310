// Package store implements ports.Store against an embedded pure-Go SQLite
// database, standing in for the columnar store spec §6 describes behind the
// same query/insert/command contract.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/awarefund/smartmoney/internal/domain"
	"github.com/awarefund/smartmoney/internal/sanitize"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
    tx_hash       TEXT    NOT NULL,
    wallet_id     TEXT    NOT NULL,
    outcome_index INTEGER NOT NULL,
    timestamp     DATETIME NOT NULL,
    display_name  TEXT,
    market_id     TEXT    NOT NULL,
    market_slug   TEXT,
    condition_id  TEXT    NOT NULL,
    outcome_label TEXT,
    side          TEXT    NOT NULL,
    price         REAL    NOT NULL,
    size          REAL    NOT NULL,
    notional      REAL    NOT NULL,
    PRIMARY KEY (tx_hash, wallet_id, outcome_index)
);
CREATE INDEX IF NOT EXISTS idx_trades_wallet ON trades(wallet_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_trades_market ON trades(condition_id);
CREATE INDEX IF NOT EXISTS idx_trades_ts     ON trades(timestamp);

CREATE TABLE IF NOT EXISTS market_resolutions (
    condition_id        TEXT PRIMARY KEY,
    market_slug         TEXT,
    title               TEXT,
    is_resolved         INTEGER NOT NULL DEFAULT 0,
    winning_outcome     TEXT,
    winning_outcome_idx INTEGER NOT NULL DEFAULT -1,
    outcome_prices_json TEXT,
    outcomes_json       TEXT,
    end_time            DATETIME,
    resolution_time     DATETIME
);

CREATE TABLE IF NOT EXISTS position_pnl (
    wallet_id        TEXT    NOT NULL,
    condition_id     TEXT    NOT NULL,
    outcome_index    INTEGER NOT NULL,
    net_shares       REAL    NOT NULL DEFAULT 0,
    net_cost         REAL    NOT NULL DEFAULT 0,
    avg_entry_price  REAL    NOT NULL DEFAULT 0,
    settlement_price REAL    NOT NULL DEFAULT 0,
    realized_pnl     REAL    NOT NULL DEFAULT 0,
    buy_count        INTEGER NOT NULL DEFAULT 0,
    sell_count       INTEGER NOT NULL DEFAULT 0,
    first_trade_at   DATETIME,
    last_trade_at    DATETIME,
    resolved_at      DATETIME,
    calculated_at    DATETIME,
    PRIMARY KEY (wallet_id, condition_id, outcome_index)
);
CREATE INDEX IF NOT EXISTS idx_position_pnl_wallet ON position_pnl(wallet_id, resolved_at);

CREATE TABLE IF NOT EXISTS trader_pnl (
    wallet_id        TEXT PRIMARY KEY,
    total_realized   REAL NOT NULL DEFAULT 0,
    positions_closed INTEGER NOT NULL DEFAULT 0,
    wins             INTEGER NOT NULL DEFAULT 0,
    losses           INTEGER NOT NULL DEFAULT 0,
    win_rate         REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS trader_profiles (
    wallet_id          TEXT PRIMARY KEY,
    total_trades       INTEGER NOT NULL DEFAULT 0,
    total_volume       REAL    NOT NULL DEFAULT 0,
    unique_markets     INTEGER NOT NULL DEFAULT 0,
    first_trade_at     DATETIME,
    last_trade_at      DATETIME,
    days_active        INTEGER NOT NULL DEFAULT 0,
    buy_count          INTEGER NOT NULL DEFAULT 0,
    sell_count         INTEGER NOT NULL DEFAULT 0,
    avg_trade_size     REAL    NOT NULL DEFAULT 0,
    avg_price          REAL    NOT NULL DEFAULT 0,
    complete_set_ratio REAL    NOT NULL DEFAULT 0,
    direction_bias     REAL    NOT NULL DEFAULT 0,
    total_pnl          REAL    NOT NULL DEFAULT 0,
    updated_at         DATETIME,
    data_quality       TEXT
);

CREATE TABLE IF NOT EXISTS wallet_sharpe (
    wallet_id      TEXT PRIMARY KEY,
    sharpe_ratio   REAL NOT NULL DEFAULT 0,
    sharpe_capped  REAL NOT NULL DEFAULT 0,
    mean_daily_pnl REAL NOT NULL DEFAULT 0,
    std_daily_pnl  REAL NOT NULL DEFAULT 0,
    max_drawdown   REAL NOT NULL DEFAULT 0,
    days_with_pnl  INTEGER NOT NULL DEFAULT 0,
    confidence     REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS smart_money_scores (
    wallet_id           TEXT PRIMARY KEY,
    total_score         REAL NOT NULL DEFAULT 0,
    tier                TEXT,
    profitability       REAL NOT NULL DEFAULT 0,
    risk_adjusted       REAL NOT NULL DEFAULT 0,
    consistency         REAL NOT NULL DEFAULT 0,
    track_record        REAL NOT NULL DEFAULT 0,
    strategy_type       TEXT,
    strategy_confidence REAL NOT NULL DEFAULT 0,
    rank                INTEGER NOT NULL DEFAULT 0,
    calculated_at       DATETIME,
    model_version       TEXT
);

CREATE TABLE IF NOT EXISTS smart_money_scores_history (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    wallet_id     TEXT NOT NULL,
    total_score   REAL NOT NULL DEFAULT 0,
    tier          TEXT,
    calculated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scores_history_wallet ON smart_money_scores_history(wallet_id, calculated_at);

CREATE TABLE IF NOT EXISTS market_classifications (
    market_slug      TEXT PRIMARY KEY,
    category         TEXT NOT NULL,
    confidence       REAL NOT NULL DEFAULT 0,
    matched_patterns TEXT
);

CREATE TABLE IF NOT EXISTS psi_index (
    index_id          TEXT PRIMARY KEY,
    created_at        DATETIME,
    last_rebalanced   DATETIME,
    cumulative_return REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS psi_index_constituents (
    index_id            TEXT NOT NULL,
    wallet_id            TEXT NOT NULL,
    weight                REAL NOT NULL DEFAULT 0,
    score_at_inclusion    REAL NOT NULL DEFAULT 0,
    sharpe_at_inclusion   REAL NOT NULL DEFAULT 0,
    strategy_type         TEXT,
    added_at              DATETIME,
    PRIMARY KEY (index_id, wallet_id)
);

CREATE TABLE IF NOT EXISTS alerts (
    alert_id     TEXT PRIMARY KEY,
    type         TEXT NOT NULL,
    severity     TEXT NOT NULL,
    title        TEXT,
    message      TEXT,
    wallet_id    TEXT,
    market_id    TEXT,
    direction    TEXT,
    volume_usd   REAL NOT NULL DEFAULT 0,
    num_wallets  INTEGER NOT NULL DEFAULT 0,
    confidence   REAL NOT NULL DEFAULT 0,
    created_at   DATETIME,
    delivered_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(created_at DESC);
`

// SQLiteStore implements ports.Store against an embedded SQLite database,
// pure Go, no CGo, matching the teacher's storage adapter's driver choice.
type SQLiteStore struct {
	db  *sql.DB
	log *slog.Logger
}

// Open creates or opens the database at path, applying the schema.
func Open(path string, timeout time.Duration, log *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store.Open: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store.Open: apply schema: %w", err)
	}

	log.Info("store.Open: schema applied", "path", path)
	return &SQLiteStore{db: db, log: log}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func scanTime(v sql.NullTime) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return v.Time
}

// SaveTrades upserts a batch of trades inside one transaction.
func (s *SQLiteStore) SaveTrades(ctx context.Context, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store.SaveTrades: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades
			(tx_hash, wallet_id, outcome_index, timestamp, display_name, market_id,
			 market_slug, condition_id, outcome_label, side, price, size, notional)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tx_hash, wallet_id, outcome_index) DO UPDATE SET
			price    = excluded.price,
			size     = excluded.size,
			notional = excluded.notional
	`)
	if err != nil {
		return fmt.Errorf("store.SaveTrades: prepare: %w", err)
	}
	defer stmt.Close()

	for _, t := range trades {
		if _, err := stmt.ExecContext(ctx,
			t.TxHash, sanitize.WalletID(t.WalletID), t.OutcomeIndex, t.Timestamp.UTC(),
			sanitize.Identifier(t.DisplayName, 100),
			t.MarketID, sanitize.MarketSlug(t.MarketSlug), t.ConditionID,
			sanitize.Identifier(t.OutcomeLabel, 100), string(t.Side),
			t.Price, t.Size, t.Notional,
		); err != nil {
			return fmt.Errorf("store.SaveTrades: upsert %s: %w", t.TxHash, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store.SaveTrades: commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) TradesForWallet(ctx context.Context, walletID string, since time.Time) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tx_hash, wallet_id, outcome_index, timestamp, display_name, market_id,
		       market_slug, condition_id, outcome_label, side, price, size, notional
		FROM trades WHERE wallet_id = ? AND timestamp >= ? ORDER BY timestamp ASC
	`, walletID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("store.TradesForWallet: query: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

func (s *SQLiteStore) TradesForMarket(ctx context.Context, conditionID string) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tx_hash, wallet_id, outcome_index, timestamp, display_name, market_id,
		       market_slug, condition_id, outcome_label, side, price, size, notional
		FROM trades WHERE condition_id = ? ORDER BY timestamp ASC
	`, conditionID)
	if err != nil {
		return nil, fmt.Errorf("store.TradesForMarket: query: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

func scanTrades(rows *sql.Rows) ([]domain.Trade, error) {
	var out []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var side string
		if err := rows.Scan(
			&t.TxHash, &t.WalletID, &t.OutcomeIndex, &t.Timestamp, &t.DisplayName,
			&t.MarketID, &t.MarketSlug, &t.ConditionID, &t.OutcomeLabel, &side,
			&t.Price, &t.Size, &t.Notional,
		); err != nil {
			return nil, fmt.Errorf("store: scan trade row: %w", err)
		}
		t.Side = domain.Side(side)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DistinctWalletIDs(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT wallet_id FROM trades WHERE timestamp >= ?`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("store.DistinctWalletIDs: query: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store.DistinctWalletIDs: scan: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ActiveMarkets restricts the scan universe to markets with at least
// minTraders distinct wallets trading since, capped at limit — the
// consensus scanner's market-universe query (SPEC_FULL §12).
func (s *SQLiteStore) ActiveMarkets(ctx context.Context, since time.Time, minTraders, limit int) ([]string, error) {
	minTraders = sanitize.PositiveInt(minTraders, 10_000)
	limit = sanitize.PositiveInt(limit, 10_000)
	rows, err := s.db.QueryContext(ctx, `
		SELECT condition_id FROM trades
		WHERE timestamp >= ?
		GROUP BY condition_id
		HAVING COUNT(DISTINCT wallet_id) >= ?
		ORDER BY COUNT(*) DESC
		LIMIT ?
	`, since.UTC(), minTraders, limit)
	if err != nil {
		return nil, fmt.Errorf("store.ActiveMarkets: query: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store.ActiveMarkets: scan: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveResolution(ctx context.Context, res domain.MarketResolution) error {
	pricesJSON, err := marshalFloats(res.OutcomePrices)
	if err != nil {
		return fmt.Errorf("store.SaveResolution: marshal prices: %w", err)
	}
	outcomesJSON, err := marshalStrings(res.Outcomes)
	if err != nil {
		return fmt.Errorf("store.SaveResolution: marshal outcomes: %w", err)
	}
	isResolved := 0
	if res.IsResolved {
		isResolved = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO market_resolutions
			(condition_id, market_slug, title, is_resolved, winning_outcome,
			 winning_outcome_idx, outcome_prices_json, outcomes_json, end_time, resolution_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(condition_id) DO UPDATE SET
			market_slug         = excluded.market_slug,
			title               = excluded.title,
			is_resolved         = excluded.is_resolved,
			winning_outcome     = excluded.winning_outcome,
			winning_outcome_idx = excluded.winning_outcome_idx,
			outcome_prices_json = excluded.outcome_prices_json,
			outcomes_json       = excluded.outcomes_json,
			end_time            = excluded.end_time,
			resolution_time     = excluded.resolution_time
	`, res.ConditionID, res.MarketSlug, res.Title, isResolved, res.WinningOutcome,
		res.WinningOutcomeIdx, pricesJSON, outcomesJSON, nullTime(res.EndTime), nullTime(res.ResolutionTime))
	if err != nil {
		return fmt.Errorf("store.SaveResolution: upsert %s: %w", res.ConditionID, err)
	}
	return nil
}

func (s *SQLiteStore) UnresolvedConditionIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT t.condition_id FROM trades t
		LEFT JOIN market_resolutions r ON r.condition_id = t.condition_id
		WHERE r.condition_id IS NULL OR r.is_resolved = 0
	`)
	if err != nil {
		return nil, fmt.Errorf("store.UnresolvedConditionIDs: query: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store.UnresolvedConditionIDs: scan: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Resolution(ctx context.Context, conditionID string) (*domain.MarketResolution, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT condition_id, market_slug, title, is_resolved, winning_outcome,
		       winning_outcome_idx, outcome_prices_json, outcomes_json, end_time, resolution_time
		FROM market_resolutions WHERE condition_id = ?
	`, conditionID)

	var res domain.MarketResolution
	var isResolved int
	var pricesJSON, outcomesJSON sql.NullString
	var endTime, resolutionTime sql.NullTime
	if err := row.Scan(&res.ConditionID, &res.MarketSlug, &res.Title, &isResolved,
		&res.WinningOutcome, &res.WinningOutcomeIdx, &pricesJSON, &outcomesJSON,
		&endTime, &resolutionTime); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store.Resolution: scan %s: %w", conditionID, err)
	}
	res.IsResolved = isResolved == 1
	res.EndTime = scanTime(endTime)
	res.ResolutionTime = scanTime(resolutionTime)
	res.OutcomePrices = unmarshalFloats(pricesJSON.String)
	res.Outcomes = unmarshalStrings(outcomesJSON.String)
	return &res, nil
}

func (s *SQLiteStore) SavePositionPnL(ctx context.Context, p domain.PositionPnL) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO position_pnl
			(wallet_id, condition_id, outcome_index, net_shares, net_cost, avg_entry_price,
			 settlement_price, realized_pnl, buy_count, sell_count, first_trade_at,
			 last_trade_at, resolved_at, calculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(wallet_id, condition_id, outcome_index) DO UPDATE SET
			net_shares       = excluded.net_shares,
			net_cost         = excluded.net_cost,
			avg_entry_price  = excluded.avg_entry_price,
			settlement_price = excluded.settlement_price,
			realized_pnl     = excluded.realized_pnl,
			buy_count        = excluded.buy_count,
			sell_count       = excluded.sell_count,
			last_trade_at    = excluded.last_trade_at,
			resolved_at      = excluded.resolved_at,
			calculated_at    = excluded.calculated_at
	`, p.WalletID, p.ConditionID, p.OutcomeIndex, p.NetShares, p.NetCost, p.AvgEntryPrice,
		p.SettlementPrice, p.RealizedPnL, p.BuyCount, p.SellCount, nullTime(p.FirstTradeAt),
		nullTime(p.LastTradeAt), nullTime(p.ResolvedAt), nullTime(p.CalculatedAt))
	if err != nil {
		return fmt.Errorf("store.SavePositionPnL: upsert %s/%s: %w", p.WalletID, p.ConditionID, err)
	}
	return nil
}

func (s *SQLiteStore) PositionPnLForWallet(ctx context.Context, walletID string) ([]domain.PositionPnL, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT wallet_id, condition_id, outcome_index, net_shares, net_cost, avg_entry_price,
		       settlement_price, realized_pnl, buy_count, sell_count, first_trade_at,
		       last_trade_at, resolved_at, calculated_at
		FROM position_pnl WHERE wallet_id = ?
	`, walletID)
	if err != nil {
		return nil, fmt.Errorf("store.PositionPnLForWallet: query: %w", err)
	}
	defer rows.Close()

	var out []domain.PositionPnL
	for rows.Next() {
		var p domain.PositionPnL
		var first, last, resolved, calc sql.NullTime
		if err := rows.Scan(&p.WalletID, &p.ConditionID, &p.OutcomeIndex, &p.NetShares,
			&p.NetCost, &p.AvgEntryPrice, &p.SettlementPrice, &p.RealizedPnL, &p.BuyCount,
			&p.SellCount, &first, &last, &resolved, &calc); err != nil {
			return nil, fmt.Errorf("store.PositionPnLForWallet: scan: %w", err)
		}
		p.FirstTradeAt, p.LastTradeAt, p.ResolvedAt, p.CalculatedAt =
			scanTime(first), scanTime(last), scanTime(resolved), scanTime(calc)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveWalletPnL(ctx context.Context, p domain.WalletPnL) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trader_pnl (wallet_id, total_realized, positions_closed, wins, losses, win_rate)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(wallet_id) DO UPDATE SET
			total_realized   = excluded.total_realized,
			positions_closed = excluded.positions_closed,
			wins             = excluded.wins,
			losses           = excluded.losses,
			win_rate         = excluded.win_rate
	`, p.WalletID, p.TotalRealized, p.PositionsClosed, p.Wins, p.Losses, p.WinRate)
	if err != nil {
		return fmt.Errorf("store.SaveWalletPnL: upsert %s: %w", p.WalletID, err)
	}
	return nil
}

func (s *SQLiteStore) ListWalletPnLs(ctx context.Context) ([]domain.WalletPnL, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT wallet_id, total_realized, positions_closed, wins, losses, win_rate
		FROM trader_pnl
	`)
	if err != nil {
		return nil, fmt.Errorf("store.ListWalletPnLs: query: %w", err)
	}
	defer rows.Close()

	var out []domain.WalletPnL
	for rows.Next() {
		var p domain.WalletPnL
		if err := rows.Scan(&p.WalletID, &p.TotalRealized, &p.PositionsClosed, &p.Wins, &p.Losses, &p.WinRate); err != nil {
			return nil, fmt.Errorf("store.ListWalletPnLs: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DailyPnLForWallet buckets a wallet's resolved positions by settlement day.
func (s *SQLiteStore) DailyPnLForWallet(ctx context.Context, walletID string, since time.Time) ([]domain.DailyPnL, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date(resolved_at) AS d, SUM(realized_pnl)
		FROM position_pnl
		WHERE wallet_id = ? AND resolved_at >= ? AND resolved_at IS NOT NULL
		GROUP BY d ORDER BY d ASC
	`, walletID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("store.DailyPnLForWallet: query: %w", err)
	}
	defer rows.Close()

	var out []domain.DailyPnL
	for rows.Next() {
		var dateStr string
		var pnl float64
		if err := rows.Scan(&dateStr, &pnl); err != nil {
			return nil, fmt.Errorf("store.DailyPnLForWallet: scan: %w", err)
		}
		d, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		out = append(out, domain.DailyPnL{Date: d, PnL: pnl})
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveProfile(ctx context.Context, p domain.WalletProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trader_profiles
			(wallet_id, total_trades, total_volume, unique_markets, first_trade_at,
			 last_trade_at, days_active, buy_count, sell_count, avg_trade_size, avg_price,
			 complete_set_ratio, direction_bias, total_pnl, updated_at, data_quality)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(wallet_id) DO UPDATE SET
			total_trades       = excluded.total_trades,
			total_volume       = excluded.total_volume,
			unique_markets     = excluded.unique_markets,
			last_trade_at      = excluded.last_trade_at,
			days_active        = excluded.days_active,
			buy_count          = excluded.buy_count,
			sell_count         = excluded.sell_count,
			avg_trade_size     = excluded.avg_trade_size,
			avg_price          = excluded.avg_price,
			complete_set_ratio = excluded.complete_set_ratio,
			direction_bias     = excluded.direction_bias,
			total_pnl          = excluded.total_pnl,
			updated_at         = excluded.updated_at,
			data_quality       = excluded.data_quality
	`, p.WalletID, p.TotalTrades, p.TotalVolume, p.UniqueMarkets, nullTime(p.FirstTradeAt),
		nullTime(p.LastTradeAt), p.DaysActive, p.BuyCount, p.SellCount, p.AvgTradeSize,
		p.AvgPrice, p.CompleteSetRatio, p.DirectionBias, p.TotalPnL, nullTime(p.UpdatedAt),
		string(p.DataQuality))
	if err != nil {
		return fmt.Errorf("store.SaveProfile: upsert %s: %w", p.WalletID, err)
	}
	return nil
}

func (s *SQLiteStore) Profile(ctx context.Context, walletID string) (*domain.WalletProfile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT wallet_id, total_trades, total_volume, unique_markets, first_trade_at,
		       last_trade_at, days_active, buy_count, sell_count, avg_trade_size, avg_price,
		       complete_set_ratio, direction_bias, total_pnl, updated_at, data_quality
		FROM trader_profiles WHERE wallet_id = ?
	`, walletID)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store.Profile: scan %s: %w", walletID, err)
	}
	return p, nil
}

func (s *SQLiteStore) ListProfiles(ctx context.Context) ([]domain.WalletProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT wallet_id, total_trades, total_volume, unique_markets, first_trade_at,
		       last_trade_at, days_active, buy_count, sell_count, avg_trade_size, avg_price,
		       complete_set_ratio, direction_bias, total_pnl, updated_at, data_quality
		FROM trader_profiles
	`)
	if err != nil {
		return nil, fmt.Errorf("store.ListProfiles: query: %w", err)
	}
	defer rows.Close()

	var out []domain.WalletProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("store.ListProfiles: scan: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanProfile(row scannable) (*domain.WalletProfile, error) {
	var p domain.WalletProfile
	var first, last, updated sql.NullTime
	var quality string
	if err := row.Scan(&p.WalletID, &p.TotalTrades, &p.TotalVolume, &p.UniqueMarkets, &first,
		&last, &p.DaysActive, &p.BuyCount, &p.SellCount, &p.AvgTradeSize, &p.AvgPrice,
		&p.CompleteSetRatio, &p.DirectionBias, &p.TotalPnL, &updated, &quality); err != nil {
		return nil, err
	}
	p.FirstTradeAt, p.LastTradeAt, p.UpdatedAt = scanTime(first), scanTime(last), scanTime(updated)
	p.DataQuality = domain.DataQuality(quality)
	return &p, nil
}

func (s *SQLiteStore) SaveSharpe(ctx context.Context, sh domain.WalletSharpe) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wallet_sharpe
			(wallet_id, sharpe_ratio, sharpe_capped, mean_daily_pnl, std_daily_pnl,
			 max_drawdown, days_with_pnl, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(wallet_id) DO UPDATE SET
			sharpe_ratio   = excluded.sharpe_ratio,
			sharpe_capped  = excluded.sharpe_capped,
			mean_daily_pnl = excluded.mean_daily_pnl,
			std_daily_pnl  = excluded.std_daily_pnl,
			max_drawdown   = excluded.max_drawdown,
			days_with_pnl  = excluded.days_with_pnl,
			confidence     = excluded.confidence
	`, sh.WalletID, sh.SharpeRatio, sh.SharpeCapped, sh.MeanDailyPnL, sh.StdDailyPnL,
		sh.MaxDrawdown, sh.DaysWithPnL, sh.Confidence)
	if err != nil {
		return fmt.Errorf("store.SaveSharpe: upsert %s: %w", sh.WalletID, err)
	}
	return nil
}

func (s *SQLiteStore) Sharpe(ctx context.Context, walletID string) (*domain.WalletSharpe, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT wallet_id, sharpe_ratio, sharpe_capped, mean_daily_pnl, std_daily_pnl,
		       max_drawdown, days_with_pnl, confidence
		FROM wallet_sharpe WHERE wallet_id = ?
	`, walletID)
	var sh domain.WalletSharpe
	if err := row.Scan(&sh.WalletID, &sh.SharpeRatio, &sh.SharpeCapped, &sh.MeanDailyPnL,
		&sh.StdDailyPnL, &sh.MaxDrawdown, &sh.DaysWithPnL, &sh.Confidence); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store.Sharpe: scan %s: %w", walletID, err)
	}
	return &sh, nil
}

func (s *SQLiteStore) ListSharpes(ctx context.Context) ([]domain.WalletSharpe, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT wallet_id, sharpe_ratio, sharpe_capped, mean_daily_pnl, std_daily_pnl,
		       max_drawdown, days_with_pnl, confidence
		FROM wallet_sharpe
	`)
	if err != nil {
		return nil, fmt.Errorf("store.ListSharpes: query: %w", err)
	}
	defer rows.Close()
	var out []domain.WalletSharpe
	for rows.Next() {
		var sh domain.WalletSharpe
		if err := rows.Scan(&sh.WalletID, &sh.SharpeRatio, &sh.SharpeCapped, &sh.MeanDailyPnL,
			&sh.StdDailyPnL, &sh.MaxDrawdown, &sh.DaysWithPnL, &sh.Confidence); err != nil {
			return nil, fmt.Errorf("store.ListSharpes: scan: %w", err)
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveScore(ctx context.Context, sc domain.WalletScore) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store.SaveScore: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO smart_money_scores
			(wallet_id, total_score, tier, profitability, risk_adjusted, consistency,
			 track_record, strategy_type, strategy_confidence, rank, calculated_at, model_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(wallet_id) DO UPDATE SET
			total_score         = excluded.total_score,
			tier                = excluded.tier,
			profitability       = excluded.profitability,
			risk_adjusted       = excluded.risk_adjusted,
			consistency         = excluded.consistency,
			track_record        = excluded.track_record,
			strategy_type       = excluded.strategy_type,
			strategy_confidence = excluded.strategy_confidence,
			rank                = excluded.rank,
			calculated_at       = excluded.calculated_at,
			model_version       = excluded.model_version
	`, sc.WalletID, sc.TotalScore, string(sc.Tier), sc.Profitability, sc.RiskAdjusted,
		sc.Consistency, sc.TrackRecord, string(sc.StrategyType), sc.StrategyConfidence,
		sc.Rank, nullTime(sc.CalculatedAt), sc.ModelVersion); err != nil {
		return fmt.Errorf("store.SaveScore: upsert %s: %w", sc.WalletID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO smart_money_scores_history (wallet_id, total_score, tier, calculated_at)
		VALUES (?, ?, ?, ?)
	`, sc.WalletID, sc.TotalScore, string(sc.Tier), nullTime(sc.CalculatedAt)); err != nil {
		return fmt.Errorf("store.SaveScore: insert history %s: %w", sc.WalletID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store.SaveScore: commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Scores(ctx context.Context) ([]domain.WalletScore, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT wallet_id, total_score, tier, profitability, risk_adjusted, consistency,
		       track_record, strategy_type, strategy_confidence, rank, calculated_at, model_version
		FROM smart_money_scores
	`)
	if err != nil {
		return nil, fmt.Errorf("store.Scores: query: %w", err)
	}
	defer rows.Close()

	var out []domain.WalletScore
	for rows.Next() {
		var sc domain.WalletScore
		var tier, strategy string
		var calc sql.NullTime
		if err := rows.Scan(&sc.WalletID, &sc.TotalScore, &tier, &sc.Profitability,
			&sc.RiskAdjusted, &sc.Consistency, &sc.TrackRecord, &strategy,
			&sc.StrategyConfidence, &sc.Rank, &calc, &sc.ModelVersion); err != nil {
			return nil, fmt.Errorf("store.Scores: scan: %w", err)
		}
		sc.Tier = domain.Tier(tier)
		sc.StrategyType = domain.StrategyType(strategy)
		sc.CalculatedAt = scanTime(calc)
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveClassification(ctx context.Context, c domain.MarketClassification) error {
	patterns, err := marshalStrings(c.MatchedPatterns)
	if err != nil {
		return fmt.Errorf("store.SaveClassification: marshal patterns: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO market_classifications (market_slug, category, confidence, matched_patterns)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(market_slug) DO UPDATE SET
			category         = excluded.category,
			confidence       = excluded.confidence,
			matched_patterns = excluded.matched_patterns
	`, c.MarketSlug, string(c.Category), c.Confidence, patterns)
	if err != nil {
		return fmt.Errorf("store.SaveClassification: upsert %s: %w", c.MarketSlug, err)
	}
	return nil
}

func (s *SQLiteStore) Classification(ctx context.Context, marketSlug string) (*domain.MarketClassification, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT market_slug, category, confidence, matched_patterns FROM market_classifications WHERE market_slug = ?`,
		marketSlug)
	var c domain.MarketClassification
	var category string
	var patterns sql.NullString
	if err := row.Scan(&c.MarketSlug, &category, &c.Confidence, &patterns); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store.Classification: scan %s: %w", marketSlug, err)
	}
	c.Category = domain.MarketCategory(category)
	c.MatchedPatterns = unmarshalStrings(patterns.String)
	return &c, nil
}

func (s *SQLiteStore) Classifications(ctx context.Context) ([]domain.MarketClassification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT market_slug, category, confidence, matched_patterns FROM market_classifications`)
	if err != nil {
		return nil, fmt.Errorf("store.Classifications: query: %w", err)
	}
	defer rows.Close()

	var out []domain.MarketClassification
	for rows.Next() {
		var c domain.MarketClassification
		var category string
		var patterns sql.NullString
		if err := rows.Scan(&c.MarketSlug, &category, &c.Confidence, &patterns); err != nil {
			return nil, fmt.Errorf("store.Classifications: scan: %w", err)
		}
		c.Category = domain.MarketCategory(category)
		c.MatchedPatterns = unmarshalStrings(patterns.String)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UnclassifiedMarketSlugs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT t.market_slug FROM trades t
		LEFT JOIN market_classifications c ON c.market_slug = t.market_slug
		WHERE c.market_slug IS NULL AND t.market_slug != ''
	`)
	if err != nil {
		return nil, fmt.Errorf("store.UnclassifiedMarketSlugs: query: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, fmt.Errorf("store.UnclassifiedMarketSlugs: scan: %w", err)
		}
		out = append(out, slug)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveIndex(ctx context.Context, idx domain.Index) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store.SaveIndex: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO psi_index (index_id, created_at, last_rebalanced, cumulative_return)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(index_id) DO UPDATE SET
			last_rebalanced   = excluded.last_rebalanced,
			cumulative_return = excluded.cumulative_return
	`, idx.IndexID, nullTime(idx.CreatedAt), nullTime(idx.LastRebalanced), idx.CumulativeReturn); err != nil {
		return fmt.Errorf("store.SaveIndex: upsert index %s: %w", idx.IndexID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM psi_index_constituents WHERE index_id = ?`, idx.IndexID); err != nil {
		return fmt.Errorf("store.SaveIndex: clear constituents %s: %w", idx.IndexID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO psi_index_constituents
			(index_id, wallet_id, weight, score_at_inclusion, sharpe_at_inclusion, strategy_type, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("store.SaveIndex: prepare constituents: %w", err)
	}
	defer stmt.Close()

	for _, c := range idx.Constituents {
		if _, err := stmt.ExecContext(ctx, idx.IndexID, c.WalletID, c.Weight,
			c.ScoreAtInclusion, c.SharpeAtInclusion, string(c.StrategyType), nullTime(c.AddedAt)); err != nil {
			return fmt.Errorf("store.SaveIndex: insert constituent %s: %w", c.WalletID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store.SaveIndex: commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LatestIndex(ctx context.Context, indexID string) (*domain.Index, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT index_id, created_at, last_rebalanced, cumulative_return FROM psi_index WHERE index_id = ?`,
		indexID)
	var idx domain.Index
	var created, rebalanced sql.NullTime
	if err := row.Scan(&idx.IndexID, &created, &rebalanced, &idx.CumulativeReturn); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store.LatestIndex: scan %s: %w", indexID, err)
	}
	idx.CreatedAt, idx.LastRebalanced = scanTime(created), scanTime(rebalanced)

	rows, err := s.db.QueryContext(ctx, `
		SELECT wallet_id, weight, score_at_inclusion, sharpe_at_inclusion, strategy_type, added_at
		FROM psi_index_constituents WHERE index_id = ?
	`, indexID)
	if err != nil {
		return nil, fmt.Errorf("store.LatestIndex: query constituents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.IndexConstituent
		var strategy string
		var added sql.NullTime
		if err := rows.Scan(&c.WalletID, &c.Weight, &c.ScoreAtInclusion,
			&c.SharpeAtInclusion, &strategy, &added); err != nil {
			return nil, fmt.Errorf("store.LatestIndex: scan constituent: %w", err)
		}
		c.StrategyType = domain.StrategyType(strategy)
		c.AddedAt = scanTime(added)
		idx.Constituents = append(idx.Constituents, c)
	}
	return &idx, rows.Err()
}

func (s *SQLiteStore) SaveAlert(ctx context.Context, a domain.Alert) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts
			(alert_id, type, severity, title, message, wallet_id, market_id, direction,
			 volume_usd, num_wallets, confidence, created_at, delivered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(alert_id) DO UPDATE SET delivered_at = excluded.delivered_at
	`, a.AlertID, string(a.Type), string(a.Severity), a.Title, a.Message, a.WalletID,
		a.MarketID, a.Direction, a.VolumeUSD, a.NumWallets, a.Confidence,
		nullTime(a.CreatedAt), nullTime(a.DeliveredAt))
	if err != nil {
		return fmt.Errorf("store.SaveAlert: upsert %s: %w", a.AlertID, err)
	}
	return nil
}

func (s *SQLiteStore) RecentAlertIDs(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT alert_id FROM alerts WHERE created_at >= ?`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("store.RecentAlertIDs: query: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store.RecentAlertIDs: scan: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
