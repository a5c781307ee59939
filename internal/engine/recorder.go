package engine

import (
	"fmt"
	"math"
	"time"

	"dynshop/internal/recipes"
)

// Recorder ingests buy/sell events and moves the market state: listing
// counters, per-good indices, crafting propagation, and cache
// invalidation. Persistence is asynchronous; nothing here touches disk.
type Recorder struct {
	indexes *IndexStore
	stats   *StatsStore
	graph   *recipes.Graph
	cache   *PriceCache
	tuning  Tuning

	// How strongly an assembled good's transactions bleed into its
	// components' markets.
	componentMultiplier float64

	now func() time.Time
}

// NewRecorder wires a Recorder over the shared stores.
func NewRecorder(indexes *IndexStore, stats *StatsStore, graph *recipes.Graph, cache *PriceCache, tuning Tuning, componentMultiplier float64) *Recorder {
	return &Recorder{
		indexes:             indexes,
		stats:               stats,
		graph:               graph,
		cache:               cache,
		tuning:              tuning,
		componentMultiplier: componentMultiplier,
		now:                 time.Now,
	}
}

// Record applies one buy/sell event. quantity must be positive.
//
// A buy raises the good's demand index and lowers its supply index; a
// sell does the opposite. If the good is assembled, the inverted
// signal is propagated into its components, scaled by recipe quantity
// and the component multiplier: buying a crafted good consumes
// components as if they were sold out of their own market.
func (r *Recorder) Record(listingID, goodKind string, quantity int64, isBuy bool) error {
	if listingID == "" || goodKind == "" {
		return fmt.Errorf("record: listing id and good kind required")
	}
	if quantity <= 0 {
		return fmt.Errorf("record: quantity must be positive, got %d", quantity)
	}

	now := r.now()

	r.stats.Update(listingID, goodKind, func(s *ListingStats) {
		if isBuy {
			s.BuyCount += quantity
			s.LastBuyTime = now
		} else {
			s.SellCount += quantity
			s.LastSellTime = now
		}
	})

	visited := map[string]bool{}
	r.applyMarketSignal(goodKind, quantity, isBuy, now, visited)

	r.cache.Invalidate(listingID)
	// Conservative: any listing of an affected good may now be stale.
	for good := range visited {
		r.cache.InvalidateGood(good)
	}
	return nil
}

// applyMarketSignal bumps one good's index and recurses into recipe
// components with the opposite signal. The visited set breaks recipe
// cycles and collects affected goods for cache invalidation.
func (r *Recorder) applyMarketSignal(goodKind string, quantity int64, isBuy bool, now time.Time, visited map[string]bool) {
	if visited[goodKind] {
		return
	}
	visited[goodKind] = true

	r.indexes.Update(goodKind, now, func(m *MarketIndex) {
		q := float64(quantity)
		if isBuy {
			m.DemandIndex += r.tuning.DemandStep * q
			m.SupplyIndex -= r.tuning.SupplyStep * q
		} else {
			m.SupplyIndex += r.tuning.DemandStep * q
			m.DemandIndex -= r.tuning.SupplyStep * q
		}
		m.LastUpdated = now
	})

	for _, comp := range r.graph.Components(goodKind) {
		scaled := int64(math.Floor(float64(comp.Quantity) * float64(quantity) * r.componentMultiplier))
		if scaled <= 0 {
			continue
		}
		r.applyMarketSignal(comp.GoodKind, scaled, !isBuy, now, visited)
	}
}
