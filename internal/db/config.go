package db

import (
	"fmt"
	"strconv"

	"dynshop/internal/config"
)

// LoadConfig reads config from SQLite. If empty, returns defaults.
func (d *DB) LoadConfig() *config.Config {
	cfg := config.Default()

	rows, err := d.sql.Query("SELECT key, value FROM config")
	if err != nil {
		return cfg
	}
	defer rows.Close()

	m := make(map[string]string)
	for rows.Next() {
		var k, v string
		rows.Scan(&k, &v)
		m[k] = v
	}

	if len(m) == 0 {
		return cfg
	}

	if v, ok := m["dynamic_pricing_enabled"]; ok {
		cfg.DynamicPricingEnabled, _ = strconv.ParseBool(v)
	}
	if v, ok := m["component_demand_multiplier"]; ok {
		cfg.ComponentDemandMultiplier, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := m["default_volatility"]; ok {
		cfg.DefaultVolatility, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := m["analysis_period_days"]; ok {
		cfg.AnalysisPeriodDays, _ = strconv.Atoi(v)
	}
	if v, ok := m["stale_index_threshold_hours"]; ok {
		cfg.StaleIndexThresholdHours, _ = strconv.Atoi(v)
	}
	if v, ok := m["cache_clear_minutes"]; ok {
		cfg.CacheClearMinutes, _ = strconv.Atoi(v)
	}
	if v, ok := m["cache_max_entries"]; ok {
		cfg.CacheMaxEntries, _ = strconv.Atoi(v)
	}
	if v, ok := m["flush_seconds"]; ok {
		cfg.FlushSeconds, _ = strconv.Atoi(v)
	}
	if v, ok := m["buy_demand_weight"]; ok {
		cfg.BuyDemandWeight, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := m["buy_supply_weight"]; ok {
		cfg.BuySupplyWeight, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := m["sell_demand_weight"]; ok {
		cfg.SellDemandWeight, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := m["sell_supply_weight"]; ok {
		cfg.SellSupplyWeight, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := m["demand_step"]; ok {
		cfg.DemandStep, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := m["supply_step"]; ok {
		cfg.SupplyStep, _ = strconv.ParseFloat(v, 64)
	}

	return cfg
}

// SaveConfig writes config to SQLite (upsert all fields).
func (d *DB) SaveConfig(cfg *config.Config) error {
	pairs := map[string]string{
		"dynamic_pricing_enabled":     strconv.FormatBool(cfg.DynamicPricingEnabled),
		"component_demand_multiplier": fmt.Sprintf("%g", cfg.ComponentDemandMultiplier),
		"default_volatility":          fmt.Sprintf("%g", cfg.DefaultVolatility),
		"analysis_period_days":        strconv.Itoa(cfg.AnalysisPeriodDays),
		"stale_index_threshold_hours": strconv.Itoa(cfg.StaleIndexThresholdHours),
		"cache_clear_minutes":         strconv.Itoa(cfg.CacheClearMinutes),
		"cache_max_entries":           strconv.Itoa(cfg.CacheMaxEntries),
		"flush_seconds":               strconv.Itoa(cfg.FlushSeconds),
		"buy_demand_weight":           fmt.Sprintf("%g", cfg.BuyDemandWeight),
		"buy_supply_weight":           fmt.Sprintf("%g", cfg.BuySupplyWeight),
		"sell_demand_weight":          fmt.Sprintf("%g", cfg.SellDemandWeight),
		"sell_supply_weight":          fmt.Sprintf("%g", cfg.SellSupplyWeight),
		"demand_step":                 fmt.Sprintf("%g", cfg.DemandStep),
		"supply_step":                 fmt.Sprintf("%g", cfg.SupplyStep),
	}

	tx, err := d.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for k, v := range pairs {
		if _, err := tx.Exec("INSERT OR REPLACE INTO config (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("save config %s: %w", k, err)
		}
	}
	return tx.Commit()
}
