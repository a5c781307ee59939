package engine

import (
	"hash/fnv"
	"math"
	"time"
)

// Tuning carries the empirical pricing constants. They come from
// config at startup; the zero value is unusable, always start from
// DefaultTuning.
type Tuning struct {
	BuyDemandWeight  float64
	BuySupplyWeight  float64
	SellDemandWeight float64
	SellSupplyWeight float64
	DemandStep       float64 // index movement per unit bought/sold on the demand side
	SupplyStep       float64 // index movement per unit on the supply side
}

// DefaultTuning returns the stock constants.
func DefaultTuning() Tuning {
	return Tuning{
		BuyDemandWeight:  0.5,
		BuySupplyWeight:  0.3,
		SellDemandWeight: 0.3,
		SellSupplyWeight: 0.5,
		DemandStep:       0.01,
		SupplyStep:       0.002,
	}
}

// Dynamic pricing may never move a price more than this fraction from
// its base in either direction.
const priceClampFraction = 0.5

// How much of the craft value a sell price may capture before the
// multiplier kicks in, preventing craft-and-resell arbitrage loops.
const sellArbitrageDamping = 0.9

// PriceInput is everything CalcPrice needs. CraftValue is 0 for goods
// without a recipe.
type PriceInput struct {
	GoodKind   string
	BasePrice  float64
	IsBuy      bool
	Index      MarketIndex
	Stats      ListingStats
	CraftValue float64
}

// CalcPrice computes the dynamic price for one listing at time t.
// Pure function: no side effects, deterministic for fixed inputs.
//
// The result is clamped to ±50% of the (craft-floored) base price and
// rounded to the smallest currency unit.
func CalcPrice(in PriceInput, t time.Time, tn Tuning) float64 {
	base := in.BasePrice
	if base <= 0 {
		return 0
	}

	craftMult := 1.0
	if in.CraftValue > 0 {
		if in.IsBuy {
			// Never sell an assembled good to players below what the
			// components would cost to buy.
			if base < in.CraftValue {
				base = in.CraftValue
			}
		} else {
			craftMult = math.Min(1, in.CraftValue/base*sellArbitrageDamping)
		}
	}

	// Neutral (1.0) must collapse to a multiplier of exactly 1 so that
	// untouched markets price at base.
	demandAdj := in.Index.DemandIndex - 1.0
	supplyAdj := 1.0 - in.Index.SupplyIndex

	var marketMult float64
	if in.IsBuy {
		marketMult = 1 + tn.BuyDemandWeight*demandAdj + tn.BuySupplyWeight*supplyAdj
	} else {
		marketMult = 1 + tn.SellDemandWeight*demandAdj + tn.SellSupplyWeight*supplyAdj
	}

	fluct := Fluctuation(in.GoodKind, in.Index.Volatility, t)

	raw := base * marketMult * in.Stats.PriceFactor * craftMult * (1 + fluct)

	lo := base - base*priceClampFraction
	hi := base + base*priceClampFraction
	return RoundCurrency(clamp(raw, lo, hi))
}

// Fluctuation returns the bounded time-of-day price wobble for a good:
// volatility · sin(2π·(dayFraction+phase)). The phase is a stable
// per-good offset so different goods peak at different hours instead
// of moving in lockstep.
func Fluctuation(goodKind string, volatility float64, t time.Time) float64 {
	if volatility <= 0 {
		return 0
	}
	secs := float64(t.Hour()*3600+t.Minute()*60+t.Second()) + float64(t.Nanosecond())/1e9
	dayFraction := secs / 86400
	return volatility * math.Sin(2*math.Pi*(dayFraction+PhaseOffset(goodKind)))
}

// PhaseOffset derives a deterministic phase in {0.0, 0.1, ..., 0.9}
// from a stable hash of the good kind.
func PhaseOffset(goodKind string) float64 {
	h := fnv.New32a()
	h.Write([]byte(goodKind))
	return float64(h.Sum32()%10) * 0.1
}

// RoundCurrency rounds to the smallest currency unit (2 decimals).
func RoundCurrency(v float64) float64 {
	return math.Round(v*100) / 100
}
