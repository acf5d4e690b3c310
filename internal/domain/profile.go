package domain

import (
	"math"
	"time"
)

// BuildProfile folds a wallet's full trade history into its trading-activity
// aggregate: counts, volume, market diversity, buy/sell balance, and the two
// strategy indicators (complete-set ratio and direction bias) the scorer's
// classification step consumes. P&L fields are owned by the P&L calculator
// and preserved from the existing profile.
func BuildProfile(walletID string, trades []Trade, existing WalletProfile, now time.Time) WalletProfile {
	p := WalletProfile{
		WalletID:    walletID,
		TotalPnL:    existing.TotalPnL,
		DataQuality: existing.DataQuality,
		UpdatedAt:   now,
	}
	if p.DataQuality == "" {
		p.DataQuality = DataQualityPartial
	}
	if len(trades) == 0 {
		return p
	}

	first, last := trades[0].Timestamp, trades[0].Timestamp
	markets := map[string]bool{}
	outcomesByMarket := map[string]map[int]bool{}
	var volume, priceSum float64
	var yesBuyVolume, buyVolume float64

	for _, t := range trades {
		if t.Timestamp.Before(first) {
			first = t.Timestamp
		}
		if t.Timestamp.After(last) {
			last = t.Timestamp
		}
		notional := math.Abs(t.Notional)
		volume += notional
		priceSum += t.Price
		markets[t.ConditionID] = true

		if outcomesByMarket[t.ConditionID] == nil {
			outcomesByMarket[t.ConditionID] = map[int]bool{}
		}
		outcomesByMarket[t.ConditionID][t.OutcomeIndex] = true

		if t.Side == Buy {
			p.BuyCount++
			buyVolume += notional
			if t.OutcomeIndex == 0 {
				yesBuyVolume += notional
			}
		} else {
			p.SellCount++
		}
	}

	p.TotalTrades = len(trades)
	p.TotalVolume = volume
	p.UniqueMarkets = len(markets)
	p.FirstTradeAt = first
	p.LastTradeAt = last
	p.DaysActive = int(last.Sub(first).Hours()/24) + 1
	p.AvgTradeSize = volume / float64(len(trades))
	p.AvgPrice = priceSum / float64(len(trades))

	// Complete-set ratio: fraction of markets where both outcomes were traded.
	completeSets := 0
	for _, outcomes := range outcomesByMarket {
		if len(outcomes) > 1 {
			completeSets++
		}
	}
	p.CompleteSetRatio = float64(completeSets) / float64(len(markets))

	// Direction bias: fraction of BUY volume on the first outcome.
	if buyVolume > 0 {
		p.DirectionBias = yesBuyVolume / buyVolume
	} else {
		p.DirectionBias = 0.5
	}

	return p
}
