package domain

import "time"

// PositionPnLInput is the set of trades for one (wallet, condition, outcome)
// plus the resolution needed to settle it, grounded on
// pnl_calculator.py's per-position CTE.
type PositionPnLInput struct {
	WalletID     string
	ConditionID  string
	OutcomeIndex int
	Trades       []Trade
	Resolution   *MarketResolution // nil when the market has not resolved yet
}

// CalculatePositionPnL folds a position's trades into net shares/cost and, if
// the market has resolved, realized P&L. Mirrors
// pnl_calculator.py::_calculate_position_pnl exactly: BUY adds size/notional,
// SELL subtracts.
func CalculatePositionPnL(in PositionPnLInput, now time.Time) (PositionPnL, bool) {
	p := PositionPnL{
		WalletID:     in.WalletID,
		ConditionID:  in.ConditionID,
		OutcomeIndex: in.OutcomeIndex,
		CalculatedAt: now,
	}

	var netShares, netCost float64
	for i, t := range in.Trades {
		switch t.Side {
		case Buy:
			netShares += t.Size
			netCost += t.Notional
			p.BuyCount++
		case Sell:
			netShares -= t.Size
			netCost -= t.Notional
			p.SellCount++
		}
		if i == 0 || t.Timestamp.Before(p.FirstTradeAt) {
			p.FirstTradeAt = t.Timestamp
		}
		if t.Timestamp.After(p.LastTradeAt) {
			p.LastTradeAt = t.Timestamp
		}
	}
	p.NetShares = netShares
	p.NetCost = netCost
	if netShares != 0 {
		p.AvgEntryPrice = netCost / netShares
	}

	// Filter: include iff |net_shares| > 0.001 OR |net_cost| > 0.01 (spec
	// §4.3), catching both open-and-held and fully-closed positions.
	include := absF(netShares) > 0.001 || absF(netCost) > 0.01
	if !include {
		return PositionPnL{}, false
	}

	if in.Resolution != nil && in.Resolution.IsResolved {
		if in.OutcomeIndex == in.Resolution.WinningOutcomeIdx {
			p.SettlementPrice = 1.0
		} else {
			p.SettlementPrice = 0.0
		}
		p.RealizedPnL = p.SettlementPrice*p.NetShares - p.NetCost
		p.ResolvedAt = in.Resolution.ResolutionTime
	}

	return p, true
}

func absF(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// AggregateWalletPnL sums a wallet's resolved positions into a WalletPnL,
// grounded on pnl_calculator.py::_aggregate_trader_pnl.
func AggregateWalletPnL(walletID string, positions []PositionPnL) WalletPnL {
	w := WalletPnL{WalletID: walletID}
	for _, p := range positions {
		if p.ResolvedAt.IsZero() {
			continue
		}
		w.TotalRealized += p.RealizedPnL
		w.PositionsClosed++
		if p.RealizedPnL > 0 {
			w.Wins++
		} else if p.RealizedPnL < 0 {
			w.Losses++
		}
	}
	if w.PositionsClosed > 0 {
		w.WinRate = float64(w.Wins) / float64(w.PositionsClosed)
	}
	return w
}

// ApplyPnLToProfile overwrites only the P&L-derived fields of an existing
// profile, preserving everything else — the upsert-preserve-fields pattern
// from pnl_calculator.py::_upsert_profile_pnl (fetch-existing, overwrite a
// named subset, write back).
func ApplyPnLToProfile(existing WalletProfile, w WalletPnL, now time.Time) WalletProfile {
	existing.TotalPnL = w.TotalRealized
	existing.UpdatedAt = now
	existing.DataQuality = DataQualityPnLCalculated
	return existing
}
