package config

import "testing"

func TestDefault_TuningConstants(t *testing.T) {
	cfg := Default()

	if !cfg.DynamicPricingEnabled {
		t.Error("dynamic pricing should default to enabled")
	}
	if cfg.ComponentDemandMultiplier != 0.4 {
		t.Errorf("ComponentDemandMultiplier = %v, want 0.4", cfg.ComponentDemandMultiplier)
	}
	if cfg.DefaultVolatility != 0.05 {
		t.Errorf("DefaultVolatility = %v, want 0.05", cfg.DefaultVolatility)
	}
	if cfg.AnalysisPeriodDays != 7 {
		t.Errorf("AnalysisPeriodDays = %v, want 7", cfg.AnalysisPeriodDays)
	}
	if cfg.StaleIndexThresholdHours != 24 {
		t.Errorf("StaleIndexThresholdHours = %v, want 24", cfg.StaleIndexThresholdHours)
	}
}

func TestDefault_AsymmetricWeights(t *testing.T) {
	cfg := Default()

	// Buy prices weight demand more heavily, sell prices weight supply
	// more heavily. The asymmetry is intentional.
	if cfg.BuyDemandWeight != 0.5 || cfg.BuySupplyWeight != 0.3 {
		t.Errorf("buy weights = %v/%v, want 0.5/0.3", cfg.BuyDemandWeight, cfg.BuySupplyWeight)
	}
	if cfg.SellDemandWeight != 0.3 || cfg.SellSupplyWeight != 0.5 {
		t.Errorf("sell weights = %v/%v, want 0.3/0.5", cfg.SellDemandWeight, cfg.SellSupplyWeight)
	}
	if cfg.DemandStep != 0.01 || cfg.SupplyStep != 0.002 {
		t.Errorf("steps = %v/%v, want 0.01/0.002", cfg.DemandStep, cfg.SupplyStep)
	}
}
