package engine

import (
	"fmt"
	"math/rand"
	"sort"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"dynshop/internal/config"
	"dynshop/internal/logger"
	"dynshop/internal/recipes"
)

// Fallback base for suggested prices of goods with no configured base
// price and no recipe.
const suggestedFallbackBase = 10.0

// Variety half-width for suggested prices (±5%).
const suggestedVariety = 0.05

// TrendingGood is one entry of the trending ranking.
type TrendingGood struct {
	GoodKind string  `json:"good_kind"`
	Trend    float64 `json:"trend"`
}

// Status is a diagnostic snapshot of the engine.
type Status struct {
	Enabled      bool `json:"enabled"`
	Goods        int  `json:"goods"`
	Listings     int  `json:"listings"`
	CachedPrices int  `json:"cached_prices"`
}

// Engine is the pricing facade: the feature-flagged entry point the
// storefront and presentation collaborators talk to. When dynamic
// pricing is disabled every query returns the static base price and no
// store is touched.
type Engine struct {
	tuning  Tuning
	indexes *IndexStore
	stats   *StatsStore
	graph   *recipes.Graph
	cache   *PriceCache

	recorder *Recorder
	analyzer *Analyzer

	persist Persistence
	cron    *cron.Cron
	enabled atomic.Bool

	now func() time.Time
}

// New builds the engine, warm-loading durable state into the in-memory
// stores. A failed load is degraded-mode, not fatal: the engine starts
// from neutral state and logs a warning.
func New(cfg *config.Config, graph *recipes.Graph, persist Persistence) *Engine {
	tuning := Tuning{
		BuyDemandWeight:  cfg.BuyDemandWeight,
		BuySupplyWeight:  cfg.BuySupplyWeight,
		SellDemandWeight: cfg.SellDemandWeight,
		SellSupplyWeight: cfg.SellSupplyWeight,
		DemandStep:       cfg.DemandStep,
		SupplyStep:       cfg.SupplyStep,
	}

	indexes := NewIndexStore(cfg.DefaultVolatility)
	stats := NewStatsStore()
	cache := NewPriceCache(cfg.CacheMaxEntries)

	e := &Engine{
		tuning:   tuning,
		indexes:  indexes,
		stats:    stats,
		graph:    graph,
		cache:    cache,
		recorder: NewRecorder(indexes, stats, graph, cache, tuning, cfg.ComponentDemandMultiplier),
		analyzer: NewAnalyzer(indexes, stats, cache,
			time.Duration(cfg.StaleIndexThresholdHours)*time.Hour,
			time.Duration(cfg.AnalysisPeriodDays)*24*time.Hour),
		persist: persist,
		now:     time.Now,
	}
	e.enabled.Store(cfg.DynamicPricingEnabled)

	if persist != nil {
		if rows, err := persist.LoadMarketIndices(); err != nil {
			logger.Warn("ENGINE", fmt.Sprintf("Market index load failed, starting neutral: %v", err))
		} else {
			indexes.WarmLoad(rows)
		}
		if rows, err := persist.LoadListingStats(); err != nil {
			logger.Warn("ENGINE", fmt.Sprintf("Listing stats load failed, starting neutral: %v", err))
		} else {
			stats.WarmLoad(rows)
		}
	}

	e.cron = cron.New()
	e.cron.AddFunc("@every 1h", e.analyzer.Run)
	if cfg.CacheClearMinutes > 0 {
		e.cron.AddFunc(fmt.Sprintf("@every %dm", cfg.CacheClearMinutes), e.cache.Clear)
	}
	if cfg.FlushSeconds > 0 {
		e.cron.AddFunc(fmt.Sprintf("@every %ds", cfg.FlushSeconds), e.Flush)
	}

	logger.Success("ENGINE", fmt.Sprintf("Ready (%d goods, %d listings, enabled=%v)",
		indexes.Len(), stats.Len(), e.Enabled()))
	return e
}

// Start begins the scheduled maintenance jobs.
func (e *Engine) Start() {
	e.cron.Start()
}

// Stop halts the scheduled jobs and flushes in-memory state.
func (e *Engine) Stop() {
	ctx := e.cron.Stop()
	<-ctx.Done()
	e.Flush()
	logger.Info("ENGINE", "Stopped")
}

// Enabled reports whether dynamic pricing is active.
func (e *Engine) Enabled() bool {
	return e.enabled.Load()
}

// SetEnabled toggles the feature flag. Disabling clears the price
// cache so re-enabling starts from fresh computations.
func (e *Engine) SetEnabled(on bool) {
	was := e.enabled.Swap(on)
	if was && !on {
		e.cache.Clear()
	}
	if was != on {
		logger.Info("ENGINE", fmt.Sprintf("Dynamic pricing enabled=%v", on))
	}
}

// RecordTransaction ingests one buy/sell event. With pricing disabled
// this is a no-op, not an error. Recording never fails the economic
// transaction: argument errors are returned for the caller to log,
// persistence problems surface later in the flush cycle.
func (e *Engine) RecordTransaction(listingID, goodKind string, quantity int64, isBuy bool) error {
	if !e.Enabled() {
		return nil
	}
	return e.recorder.Record(listingID, goodKind, quantity, isBuy)
}

// DynamicPrice returns the current price for a listing side. With
// pricing disabled, it is the base price untouched.
func (e *Engine) DynamicPrice(listingID, goodKind string, basePrice float64, isBuy bool) float64 {
	if !e.Enabled() || basePrice <= 0 {
		return basePrice
	}

	price, _ := e.cache.GetOrCompute(listingID, goodKind, isBuy, func() (float64, error) {
		idx, _ := e.indexes.Get(goodKind)
		st, ok := e.stats.Get(listingID)
		if !ok {
			st = NeutralStats(goodKind)
		}
		craftValue := e.graph.ListingCraftValue(goodKind, e.componentPrice)
		return CalcPrice(PriceInput{
			GoodKind:   goodKind,
			BasePrice:  basePrice,
			IsBuy:      isBuy,
			Index:      idx,
			Stats:      st,
			CraftValue: craftValue,
		}, e.now(), e.tuning), nil
	})
	return price
}

// MarketData returns the market index for a good, neutral if untracked
// or while pricing is disabled.
func (e *Engine) MarketData(goodKind string) MarketIndex {
	if !e.Enabled() {
		return NeutralIndex(0, time.Time{})
	}
	idx, _ := e.indexes.Get(goodKind)
	return idx
}

// TopTrending ranks tracked goods by demand minus supply, descending.
func (e *Engine) TopTrending(limit int) []TrendingGood {
	if !e.Enabled() || limit <= 0 {
		return nil
	}
	var out []TrendingGood
	e.indexes.ForEach(func(goodKind string, m MarketIndex) {
		out = append(out, TrendingGood{GoodKind: goodKind, Trend: m.Trend()})
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Trend != out[j].Trend {
			return out[i].Trend > out[j].Trend
		}
		return out[i].GoodKind < out[j].GoodKind
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SuggestedPrice estimates a fair price for a good that has no listing:
// the base-price heuristic with the market adjustment applied, no
// per-listing factor or crafting clamps, plus a small random variety
// term so quotes don't look machine-flat.
func (e *Engine) SuggestedPrice(goodKind string, isBuy bool) float64 {
	base := e.heuristicBase(goodKind)
	if !e.Enabled() {
		return RoundCurrency(base)
	}
	price := e.adjustedPrice(goodKind, base, isBuy)
	price *= 1 + (rand.Float64()*2-1)*suggestedVariety
	return RoundCurrency(clamp(price, base*(1-priceClampFraction), base*(1+priceClampFraction)))
}

// CraftingProfitMargin returns the percent margin between what a
// crafted good suggests for and its theoretical craft value. Zero for
// goods without a recipe.
func (e *Engine) CraftingProfitMargin(goodKind string) float64 {
	craftValue := e.graph.CraftValue(goodKind, e.componentPrice)
	if craftValue <= 0 {
		return 0
	}
	// Deterministic variant of the suggested buy price: margins should
	// not jitter between calls.
	buy := e.heuristicBase(goodKind)
	if e.Enabled() {
		buy = e.adjustedPrice(goodKind, buy, true)
	}
	return RoundCurrency((buy - craftValue) / craftValue * 100)
}

// RemoveListing drops a listing's stats and cached prices, signaled by
// the storefront when the listing is deleted.
func (e *Engine) RemoveListing(listingID string) {
	e.stats.Delete(listingID)
	e.cache.Invalidate(listingID)
	if e.persist != nil {
		if err := e.persist.DeleteListingStats(listingID); err != nil {
			logger.Warn("ENGINE", fmt.Sprintf("Delete listing stats %s: %v", listingID, err))
		}
	}
}

// Flush writes dirty in-memory state to durable storage. Failures are
// logged and retried on the next cycle; they never reach callers.
func (e *Engine) Flush() {
	n1, err := e.indexes.FlushTo(e.persist)
	if err != nil {
		logger.Warn("ENGINE", fmt.Sprintf("Index flush failed (will retry): %v", err))
	}
	n2, err := e.stats.FlushTo(e.persist)
	if err != nil {
		logger.Warn("ENGINE", fmt.Sprintf("Stats flush failed (will retry): %v", err))
	}
	if n1+n2 > 0 {
		logger.Info("ENGINE", fmt.Sprintf("Flushed %d indices, %d listing stats", n1, n2))
	}
}

// CurrentStatus returns a diagnostic snapshot.
func (e *Engine) CurrentStatus() Status {
	return Status{
		Enabled:      e.Enabled(),
		Goods:        e.indexes.Len(),
		Listings:     e.stats.Len(),
		CachedPrices: e.cache.Len(),
	}
}

// heuristicBase picks a base price for a good with no listing: the
// configured base price, else the theoretical craft value, else a
// flat fallback.
func (e *Engine) heuristicBase(goodKind string) float64 {
	if base := e.graph.BasePrice(goodKind); base > 0 {
		return base
	}
	if cv := e.graph.CraftValue(goodKind, e.componentPrice); cv > 0 {
		return cv
	}
	return suggestedFallbackBase
}

// adjustedPrice applies the market multiplier and fluctuation to a
// base, without per-listing factor or crafting clamps.
func (e *Engine) adjustedPrice(goodKind string, base float64, isBuy bool) float64 {
	idx, _ := e.indexes.Get(goodKind)
	demandAdj := idx.DemandIndex - 1.0
	supplyAdj := 1.0 - idx.SupplyIndex

	var mult float64
	if isBuy {
		mult = 1 + e.tuning.BuyDemandWeight*demandAdj + e.tuning.BuySupplyWeight*supplyAdj
	} else {
		mult = 1 + e.tuning.SellDemandWeight*demandAdj + e.tuning.SellSupplyWeight*supplyAdj
	}
	return base * mult * (1 + Fluctuation(goodKind, idx.Volatility, e.now()))
}

// componentPrice resolves a component's unit price for craft-value
// sums: the configured base price (0 for unknown goods).
func (e *Engine) componentPrice(goodKind string) float64 {
	return e.graph.BasePrice(goodKind)
}
