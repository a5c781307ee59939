package recipes

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"dynshop/internal/logger"
)

// Crafting fee applied on top of summed component value. Two call paths
// historically used different fees; both are kept on purpose.
// CraftFeeTheoretical backs "what would this cost to craft" queries,
// CraftFeeListing backs per-listing price floors.
const (
	CraftFeeTheoretical = 1.10
	CraftFeeListing     = 1.15
)

// Component is one ingredient of a crafting recipe.
type Component struct {
	GoodKind string `json:"good_kind"`
	Quantity int64  `json:"quantity"`
}

// Recipe describes how an assembled good is crafted.
type Recipe struct {
	Product    string      `json:"product"`
	Components []Component `json:"components"`
}

// recipeFile is the on-disk shape of recipes.json.
type recipeFile struct {
	Recipes    []Recipe           `json:"recipes"`
	BasePrices map[string]float64 `json:"base_prices"`
}

// Graph holds the component ↔ assembled-good mapping, built once at
// startup. Forward lookup maps an assembled good to its components;
// the reverse lookup is derived from it.
type Graph struct {
	components map[string][]Component // assembled good -> ordered components
	usedIn     map[string][]string    // component -> assembled goods using it
	basePrices map[string]float64     // configured base price per good kind
}

// New builds a Graph from recipes and configured base prices.
func New(recipeList []Recipe, basePrices map[string]float64) *Graph {
	g := &Graph{
		components: make(map[string][]Component, len(recipeList)),
		usedIn:     make(map[string][]string),
		basePrices: make(map[string]float64, len(basePrices)),
	}
	for _, r := range recipeList {
		if r.Product == "" || len(r.Components) == 0 {
			continue
		}
		comps := make([]Component, len(r.Components))
		copy(comps, r.Components)
		g.components[r.Product] = comps
		for _, c := range comps {
			g.usedIn[c.GoodKind] = append(g.usedIn[c.GoodKind], r.Product)
		}
	}
	// Deterministic reverse-lookup order.
	for k := range g.usedIn {
		sort.Strings(g.usedIn[k])
	}
	for k, v := range basePrices {
		g.basePrices[k] = v
	}
	return g
}

// Load reads recipes.json from path. A missing file is not an error:
// the built-in defaults are used so a fresh install still has a
// functioning crafting economy.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Info("RECIPES", "No recipes.json, using built-in defaults")
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read recipes: %w", err)
	}

	var f recipeFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse recipes: %w", err)
	}
	g := New(f.Recipes, f.BasePrices)
	logger.Success("RECIPES", fmt.Sprintf("Loaded %d recipes", len(g.components)))
	return g, nil
}

// Default returns the built-in recipe set.
func Default() *Graph {
	return New([]Recipe{
		{Product: "iron_pickaxe", Components: []Component{
			{GoodKind: "iron_ingot", Quantity: 3},
			{GoodKind: "stick", Quantity: 2},
		}},
		{Product: "iron_ingot", Components: []Component{
			{GoodKind: "iron_ore", Quantity: 1},
			{GoodKind: "coal", Quantity: 1},
		}},
		{Product: "bread", Components: []Component{
			{GoodKind: "wheat", Quantity: 3},
		}},
		{Product: "iron_sword", Components: []Component{
			{GoodKind: "iron_ingot", Quantity: 2},
			{GoodKind: "stick", Quantity: 1},
		}},
	}, map[string]float64{
		"iron_ore":     8,
		"coal":         4,
		"iron_ingot":   15,
		"stick":        1,
		"iron_pickaxe": 60,
		"iron_sword":   45,
		"wheat":        2,
		"bread":        7,
	})
}

// Components returns the ordered component list for an assembled good,
// or nil if the good is not assembled.
func (g *Graph) Components(goodKind string) []Component {
	return g.components[goodKind]
}

// UsedIn returns the assembled goods that consume the given component.
func (g *Graph) UsedIn(componentKind string) []string {
	return g.usedIn[componentKind]
}

// IsAssembled reports whether the good has a crafting recipe.
func (g *Graph) IsAssembled(goodKind string) bool {
	_, ok := g.components[goodKind]
	return ok
}

// IsComponent reports whether the good appears in any recipe.
func (g *Graph) IsComponent(goodKind string) bool {
	_, ok := g.usedIn[goodKind]
	return ok
}

// BasePrice returns the configured base price for a good kind, or 0 if
// the good is unknown.
func (g *Graph) BasePrice(goodKind string) float64 {
	return g.basePrices[goodKind]
}

// CraftValue computes the theoretical crafting cost of an assembled
// good: summed component value times the theoretical crafting fee.
// priceOf resolves a component's unit price; it may return 0 for
// unknown components, which contribute nothing. Returns 0 for goods
// without a recipe.
func (g *Graph) CraftValue(goodKind string, priceOf func(string) float64) float64 {
	return g.craftValue(goodKind, priceOf, CraftFeeTheoretical)
}

// ListingCraftValue computes the crafting cost used for per-listing
// price floors. Same sum as CraftValue but with the listing fee.
func (g *Graph) ListingCraftValue(goodKind string, priceOf func(string) float64) float64 {
	return g.craftValue(goodKind, priceOf, CraftFeeListing)
}

func (g *Graph) craftValue(goodKind string, priceOf func(string) float64, fee float64) float64 {
	comps, ok := g.components[goodKind]
	if !ok {
		return 0
	}
	var sum float64
	for _, c := range comps {
		sum += priceOf(c.GoodKind) * float64(c.Quantity)
	}
	return sum * fee
}
