package engine

import (
	"time"

	"dynshop/internal/db"
)

// Bounds for the per-good market indices and the per-listing adjustment
// factor. 1.0 is neutral for all three.
const (
	IndexMin = 0.5
	IndexMax = 2.0

	FactorMin = 0.7
	FactorMax = 1.5
)

// MarketIndex is the demand/supply state of one good kind.
// Both indices are always clamped to [IndexMin, IndexMax].
type MarketIndex struct {
	DemandIndex float64
	SupplyIndex float64
	Volatility  float64
	LastUpdated time.Time
}

// NeutralIndex returns a fresh index at neutral with the given volatility.
func NeutralIndex(volatility float64, now time.Time) MarketIndex {
	return MarketIndex{
		DemandIndex: 1.0,
		SupplyIndex: 1.0,
		Volatility:  volatility,
		LastUpdated: now,
	}
}

// Clamp forces both indices back into their valid range.
func (m *MarketIndex) Clamp() {
	m.DemandIndex = clamp(m.DemandIndex, IndexMin, IndexMax)
	m.SupplyIndex = clamp(m.SupplyIndex, IndexMin, IndexMax)
	if m.Volatility < 0 {
		m.Volatility = 0
	}
}

// Trend is the signal used for the trending ranking: positive when
// demand outruns supply.
func (m MarketIndex) Trend() float64 {
	return m.DemandIndex - m.SupplyIndex
}

// ListingStats is the rolling transaction state of one listing.
type ListingStats struct {
	GoodKind     string
	BuyCount     int64
	SellCount    int64
	LastBuyTime  time.Time // zero = never bought
	LastSellTime time.Time // zero = never sold
	PriceFactor  float64   // clamped to [FactorMin, FactorMax]
}

// NeutralStats returns fresh stats for a listing of the given good.
func NeutralStats(goodKind string) ListingStats {
	return ListingStats{GoodKind: goodKind, PriceFactor: 1.0}
}

// Clamp forces the adjustment factor back into its valid range.
func (s *ListingStats) Clamp() {
	s.PriceFactor = clamp(s.PriceFactor, FactorMin, FactorMax)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// --- persistence row conversion ---

func indexToRow(goodKind string, m MarketIndex) db.MarketIndexRow {
	return db.MarketIndexRow{
		GoodKind:    goodKind,
		DemandIndex: m.DemandIndex,
		SupplyIndex: m.SupplyIndex,
		Volatility:  m.Volatility,
		LastUpdated: m.LastUpdated.UnixMilli(),
	}
}

func indexFromRow(r db.MarketIndexRow) MarketIndex {
	m := MarketIndex{
		DemandIndex: r.DemandIndex,
		SupplyIndex: r.SupplyIndex,
		Volatility:  r.Volatility,
		LastUpdated: time.UnixMilli(r.LastUpdated),
	}
	m.Clamp()
	return m
}

func statsToRow(listingID string, s ListingStats) db.ListingStatsRow {
	row := db.ListingStatsRow{
		ListingID:             listingID,
		GoodKind:              s.GoodKind,
		BuyCount:              s.BuyCount,
		SellCount:             s.SellCount,
		PriceAdjustmentFactor: s.PriceFactor,
	}
	if !s.LastBuyTime.IsZero() {
		row.LastBuyTime = s.LastBuyTime.UnixMilli()
	}
	if !s.LastSellTime.IsZero() {
		row.LastSellTime = s.LastSellTime.UnixMilli()
	}
	return row
}

func statsFromRow(r db.ListingStatsRow) ListingStats {
	s := ListingStats{
		GoodKind:    r.GoodKind,
		BuyCount:    r.BuyCount,
		SellCount:   r.SellCount,
		PriceFactor: r.PriceAdjustmentFactor,
	}
	if r.LastBuyTime > 0 {
		s.LastBuyTime = time.UnixMilli(r.LastBuyTime)
	}
	if r.LastSellTime > 0 {
		s.LastSellTime = time.UnixMilli(r.LastSellTime)
	}
	s.Clamp()
	return s
}
