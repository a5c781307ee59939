package engine

import (
	"fmt"
	"time"

	"dynshop/internal/logger"
)

// Decay pulls a stale index this far back toward neutral per pass.
const decayRate = 0.1

// Factor recomputation caps the counted transactions so a single
// runaway listing can't pin its factor to the bound forever.
const ratioCountCap = 100

// Analyzer runs the scheduled maintenance passes: decaying stale
// market indices toward neutral and recomputing per-listing adjustment
// factors from rolling transaction history. Both passes go through the
// stores' atomic per-key update path, so they are safe to run while
// live transactions are being recorded, and no global lock is held for
// the duration of a scan.
type Analyzer struct {
	indexes *IndexStore
	stats   *StatsStore
	cache   *PriceCache

	staleAfter time.Duration // index idle time before decay
	window     time.Duration // analysis window for factor recomputation

	now func() time.Time
}

// NewAnalyzer wires an Analyzer over the shared stores.
func NewAnalyzer(indexes *IndexStore, stats *StatsStore, cache *PriceCache, staleAfter, window time.Duration) *Analyzer {
	return &Analyzer{
		indexes:    indexes,
		stats:      stats,
		cache:      cache,
		staleAfter: staleAfter,
		window:     window,
		now:        time.Now,
	}
}

// Run executes both passes and logs a summary.
func (a *Analyzer) Run() {
	decayed := a.DecayPass()
	recomputed := a.RecomputePass()
	if decayed > 0 || recomputed > 0 {
		logger.Info("ANALYZER", fmt.Sprintf("Decayed %d indices, recomputed %d listing factors", decayed, recomputed))
	}
}

// DecayPass pulls every index untouched for longer than staleAfter 10%
// of the way back toward neutral and refreshes its timestamp. Returns
// the number of indices decayed.
func (a *Analyzer) DecayPass() int {
	now := a.now()
	count := 0

	a.indexes.ForEach(func(goodKind string, snap MarketIndex) {
		if now.Sub(snap.LastUpdated) < a.staleAfter {
			return
		}
		a.indexes.Update(goodKind, now, func(m *MarketIndex) {
			// Re-check under the key lock: a transaction may have
			// landed since the snapshot.
			if now.Sub(m.LastUpdated) < a.staleAfter {
				return
			}
			m.DemandIndex += (1.0 - m.DemandIndex) * decayRate
			m.SupplyIndex += (1.0 - m.SupplyIndex) * decayRate
			m.LastUpdated = now
		})
		a.cache.InvalidateGood(goodKind)
		count++
	})
	return count
}

// RecomputePass derives a fresh price-adjustment factor for every
// listing with activity inside the analysis window. Returns the number
// of listings updated.
func (a *Analyzer) RecomputePass() int {
	now := a.now()
	cutoff := now.Add(-a.window)
	count := 0

	a.stats.ForEach(func(listingID string, snap ListingStats) {
		if snap.LastBuyTime.Before(cutoff) && snap.LastSellTime.Before(cutoff) {
			return
		}
		if snap.BuyCount == 0 && snap.SellCount == 0 {
			return
		}

		a.stats.Update(listingID, snap.GoodKind, func(s *ListingStats) {
			s.PriceFactor = factorFromCounts(s.BuyCount, s.SellCount)
		})
		a.cache.Invalidate(listingID)
		count++
	})
	return count
}

// factorFromCounts maps a listing's buy:sell history to its price
// adjustment factor. Zero counts take explicit fallback branches, never
// raw division.
func factorFromCounts(buyCount, sellCount int64) float64 {
	var ratio float64
	switch {
	case buyCount > 0 && sellCount > 0:
		ratio = float64(buyCount) / float64(sellCount)
	case buyCount > 0:
		ratio = 1 + float64(min64(buyCount, ratioCountCap))*0.01
	case sellCount > 0:
		ratio = 1 / (1 + float64(min64(sellCount, ratioCountCap))*0.01)
	default:
		return 1.0
	}

	if ratio > 1 {
		return clamp(1+(ratio-1)*0.1, FactorMin, FactorMax)
	}
	return clamp(1-(1-ratio)*0.1, FactorMin, FactorMax)
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
