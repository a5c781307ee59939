package engine

import (
	"math"
	"testing"
	"time"

	"dynshop/internal/recipes"
)

func testRecorder() (*Recorder, *IndexStore, *StatsStore, *PriceCache) {
	graph := recipes.New([]recipes.Recipe{
		{Product: "kit", Components: []recipes.Component{
			{GoodKind: "componentA", Quantity: 2},
			{GoodKind: "componentB", Quantity: 1},
		}},
	}, nil)
	indexes := NewIndexStore(0.05)
	stats := NewStatsStore()
	cache := NewPriceCache(100)
	rec := NewRecorder(indexes, stats, graph, cache, DefaultTuning(), 0.4)
	return rec, indexes, stats, cache
}

func TestRecord_BuyMovesIndicesAndCounters(t *testing.T) {
	rec, indexes, stats, _ := testRecorder()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return now }

	if err := rec.Record("shop1:1", "componentA", 10, true); err != nil {
		t.Fatalf("Record: %v", err)
	}

	m, ok := indexes.Get("componentA")
	if !ok {
		t.Fatal("index not created")
	}
	if math.Abs(m.DemandIndex-1.10) > 1e-9 {
		t.Errorf("demand = %v, want 1.10", m.DemandIndex)
	}
	if math.Abs(m.SupplyIndex-0.98) > 1e-9 {
		t.Errorf("supply = %v, want 0.98", m.SupplyIndex)
	}
	if !m.LastUpdated.Equal(now) {
		t.Errorf("LastUpdated = %v, want %v", m.LastUpdated, now)
	}

	st, _ := stats.Get("shop1:1")
	if st.BuyCount != 10 || st.SellCount != 0 || !st.LastBuyTime.Equal(now) {
		t.Errorf("stats = %+v", st)
	}
}

func TestRecord_BuyNeverDecreasesDemandNorExceedsCap(t *testing.T) {
	rec, indexes, _, _ := testRecorder()

	prev := 1.0
	for i := 0; i < 30; i++ {
		rec.Record("shop1:1", "componentA", 5, true)
		m, _ := indexes.Get("componentA")
		if m.DemandIndex < prev {
			t.Fatalf("demand decreased: %v -> %v", prev, m.DemandIndex)
		}
		if m.DemandIndex > IndexMax {
			t.Fatalf("demand %v above cap", m.DemandIndex)
		}
		prev = m.DemandIndex
	}
	m, _ := indexes.Get("componentA")
	if m.DemandIndex != IndexMax {
		t.Errorf("demand = %v, want pinned at %v", m.DemandIndex, IndexMax)
	}
	// 150 units bought: supply drops 150·0.002 = 0.3, still above the floor.
	if math.Abs(m.SupplyIndex-0.7) > 1e-9 {
		t.Errorf("supply = %v, want 0.7", m.SupplyIndex)
	}
}

func TestRecord_SellIsSymmetric(t *testing.T) {
	rec, indexes, _, _ := testRecorder()
	rec.Record("shop1:1", "componentA", 10, false)

	m, _ := indexes.Get("componentA")
	if math.Abs(m.SupplyIndex-1.10) > 1e-9 {
		t.Errorf("supply = %v, want 1.10", m.SupplyIndex)
	}
	if math.Abs(m.DemandIndex-0.98) > 1e-9 {
		t.Errorf("demand = %v, want 0.98", m.DemandIndex)
	}
}

func TestRecord_CraftingPropagationIsInverted(t *testing.T) {
	// Buying 10 kits (recipe: 2×componentA, 1×componentB, multiplier
	// 0.4) propagates floor(2·10·0.4)=8 as a sell onto componentA and
	// floor(1·10·0.4)=4 onto componentB: their supply rises, as if the
	// components were consumed out of their own market.
	rec, indexes, _, _ := testRecorder()
	rec.Record("shop1:9", "kit", 10, true)

	kit, _ := indexes.Get("kit")
	if math.Abs(kit.DemandIndex-1.10) > 1e-9 {
		t.Errorf("kit demand = %v, want 1.10", kit.DemandIndex)
	}

	a, ok := indexes.Get("componentA")
	if !ok {
		t.Fatal("componentA index not created by propagation")
	}
	if math.Abs(a.SupplyIndex-1.08) > 1e-9 {
		t.Errorf("componentA supply = %v, want 1.08 (sell-type signal)", a.SupplyIndex)
	}
	if math.Abs(a.DemandIndex-(1-0.002*8)) > 1e-9 {
		t.Errorf("componentA demand = %v, want %v", a.DemandIndex, 1-0.002*8)
	}

	b, _ := indexes.Get("componentB")
	if math.Abs(b.SupplyIndex-1.04) > 1e-9 {
		t.Errorf("componentB supply = %v, want 1.04", b.SupplyIndex)
	}
}

func TestRecord_PropagationSkipsZeroScaledQty(t *testing.T) {
	rec, indexes, _, _ := testRecorder()
	// floor(1·1·0.4) = 0 for componentB: no signal at all.
	rec.Record("shop1:9", "kit", 1, true)

	if _, ok := indexes.Get("componentB"); ok {
		t.Error("componentB should not be touched for scaledQty 0")
	}
	// componentA: floor(2·1·0.4) = 0 as well.
	if _, ok := indexes.Get("componentA"); ok {
		t.Error("componentA should not be touched for scaledQty 0")
	}
}

func TestRecord_InvalidatesCaches(t *testing.T) {
	rec, _, _, cache := testRecorder()

	cache.GetOrCompute("shop1:9", "kit", true, func() (float64, error) { return 1, nil })
	cache.GetOrCompute("other", "componentA", true, func() (float64, error) { return 2, nil })
	cache.GetOrCompute("bystander", "unrelated", true, func() (float64, error) { return 3, nil })

	rec.Record("shop1:9", "kit", 10, true)

	// The transacted listing and every listing of an affected good are
	// dropped; unrelated entries survive.
	if cache.Len() != 1 {
		t.Errorf("cache Len = %d, want 1", cache.Len())
	}
	p, _ := cache.GetOrCompute("bystander", "unrelated", true, func() (float64, error) { return 99, nil })
	if p != 3 {
		t.Error("unrelated cache entry was invalidated")
	}
}

func TestRecord_RejectsBadArguments(t *testing.T) {
	rec, _, _, _ := testRecorder()
	if err := rec.Record("", "kit", 1, true); err == nil {
		t.Error("empty listing id should be rejected")
	}
	if err := rec.Record("l1", "", 1, true); err == nil {
		t.Error("empty good kind should be rejected")
	}
	if err := rec.Record("l1", "kit", 0, true); err == nil {
		t.Error("zero quantity should be rejected")
	}
	if err := rec.Record("l1", "kit", -3, true); err == nil {
		t.Error("negative quantity should be rejected")
	}
}
