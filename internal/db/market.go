package db

import (
	"fmt"
)

// MarketIndexRow is the persisted shape of a per-good market index.
type MarketIndexRow struct {
	GoodKind    string  `json:"good_kind"`
	DemandIndex float64 `json:"demand_index"`
	SupplyIndex float64 `json:"supply_index"`
	Volatility  float64 `json:"volatility"`
	LastUpdated int64   `json:"last_updated"` // unix millis
}

// ListingStatsRow is the persisted shape of per-listing transaction stats.
type ListingStatsRow struct {
	ListingID             string  `json:"listing_id"`
	GoodKind              string  `json:"good_kind"`
	BuyCount              int64   `json:"buy_count"`
	SellCount             int64   `json:"sell_count"`
	LastBuyTime           int64   `json:"last_buy_time"` // unix millis, 0 = never
	LastSellTime          int64   `json:"last_sell_time"`
	PriceAdjustmentFactor float64 `json:"price_adjustment_factor"`
}

// LoadMarketIndices reads every market index row, keyed by good kind.
func (d *DB) LoadMarketIndices() (map[string]MarketIndexRow, error) {
	rows, err := d.sql.Query(`
		SELECT good_kind, demand_index, supply_index, volatility, last_updated
		FROM market_index
	`)
	if err != nil {
		return nil, fmt.Errorf("load market indices: %w", err)
	}
	defer rows.Close()

	out := make(map[string]MarketIndexRow)
	for rows.Next() {
		var r MarketIndexRow
		if err := rows.Scan(&r.GoodKind, &r.DemandIndex, &r.SupplyIndex, &r.Volatility, &r.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan market index: %w", err)
		}
		out[r.GoodKind] = r
	}
	return out, rows.Err()
}

// SaveMarketIndices upserts a batch of market index rows in one transaction.
func (d *DB) SaveMarketIndices(batch []MarketIndexRow) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := d.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO market_index
		(good_kind, demand_index, supply_index, volatility, last_updated)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range batch {
		if _, err := stmt.Exec(r.GoodKind, r.DemandIndex, r.SupplyIndex, r.Volatility, r.LastUpdated); err != nil {
			return fmt.Errorf("upsert %s: %w", r.GoodKind, err)
		}
	}
	return tx.Commit()
}

// LoadListingStats reads every listing stats row, keyed by listing ID.
func (d *DB) LoadListingStats() (map[string]ListingStatsRow, error) {
	rows, err := d.sql.Query(`
		SELECT listing_id, good_kind, buy_count, sell_count,
		       last_buy_time, last_sell_time, price_adjustment_factor
		FROM listing_stats
	`)
	if err != nil {
		return nil, fmt.Errorf("load listing stats: %w", err)
	}
	defer rows.Close()

	out := make(map[string]ListingStatsRow)
	for rows.Next() {
		var r ListingStatsRow
		if err := rows.Scan(&r.ListingID, &r.GoodKind, &r.BuyCount, &r.SellCount,
			&r.LastBuyTime, &r.LastSellTime, &r.PriceAdjustmentFactor); err != nil {
			return nil, fmt.Errorf("scan listing stats: %w", err)
		}
		out[r.ListingID] = r
	}
	return out, rows.Err()
}

// SaveListingStats upserts a batch of listing stats rows in one transaction.
func (d *DB) SaveListingStats(batch []ListingStatsRow) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := d.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO listing_stats
		(listing_id, good_kind, buy_count, sell_count, last_buy_time, last_sell_time, price_adjustment_factor)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range batch {
		if _, err := stmt.Exec(r.ListingID, r.GoodKind, r.BuyCount, r.SellCount,
			r.LastBuyTime, r.LastSellTime, r.PriceAdjustmentFactor); err != nil {
			return fmt.Errorf("upsert %s: %w", r.ListingID, err)
		}
	}
	return tx.Commit()
}

// DeleteListingStats removes the stats row for a listing the storefront
// has taken down.
func (d *DB) DeleteListingStats(listingID string) error {
	_, err := d.sql.Exec("DELETE FROM listing_stats WHERE listing_id = ?", listingID)
	if err != nil {
		return fmt.Errorf("delete listing stats %s: %w", listingID, err)
	}
	return nil
}
