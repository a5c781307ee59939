package config

// Config holds the pricing engine settings (in-memory representation).
// Persistence is handled by the internal/db package.
type Config struct {
	DynamicPricingEnabled bool `json:"dynamic_pricing_enabled"`

	// Crafting propagation: how strongly a crafted good's transactions
	// bleed into its component goods.
	ComponentDemandMultiplier float64 `json:"component_demand_multiplier"`

	DefaultVolatility float64 `json:"default_volatility"`

	// Analysis window for recomputing per-listing adjustment factors.
	AnalysisPeriodDays int `json:"analysis_period_days"`

	// Indices untouched for longer than this decay toward neutral.
	StaleIndexThresholdHours int `json:"stale_index_threshold_hours"`

	// Coarse cache eviction: wholesale clear on this interval, or once
	// the cache grows past CacheMaxEntries.
	CacheClearMinutes int `json:"cache_clear_minutes"`
	CacheMaxEntries   int `json:"cache_max_entries"`

	// Interval for flushing dirty in-memory state to SQLite.
	FlushSeconds int `json:"flush_seconds"`

	// Empirical economy-balancing constants. Configurable, but the
	// defaults are what players experienced; change with care.
	BuyDemandWeight  float64 `json:"buy_demand_weight"`
	BuySupplyWeight  float64 `json:"buy_supply_weight"`
	SellDemandWeight float64 `json:"sell_demand_weight"`
	SellSupplyWeight float64 `json:"sell_supply_weight"`
	DemandStep       float64 `json:"demand_step"`
	SupplyStep       float64 `json:"supply_step"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		DynamicPricingEnabled:     true,
		ComponentDemandMultiplier: 0.4,
		DefaultVolatility:         0.05,
		AnalysisPeriodDays:        7,
		StaleIndexThresholdHours:  24,
		CacheClearMinutes:         10,
		CacheMaxEntries:           100,
		FlushSeconds:              30,
		BuyDemandWeight:           0.5,
		BuySupplyWeight:           0.3,
		SellDemandWeight:          0.3,
		SellSupplyWeight:          0.5,
		DemandStep:                0.01,
		SupplyStep:                0.002,
	}
}
