package engine

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// cachedPrice holds one computed price with a coarse insertion time.
type cachedPrice struct {
	price    float64
	goodKind string
	storedAt time.Time
}

// PriceCache is a thread-safe in-memory cache of computed listing
// prices, keyed by listing id + side. A singleflight.Group coalesces
// concurrent computes for the same key.
//
// Eviction is deliberately coarse: individual entries are invalidated
// on transactions, and the whole cache is cleared on an interval or
// once it grows past maxEntries. Callers tolerate bounded staleness
// between a transaction and its invalidation.
type PriceCache struct {
	mu         sync.RWMutex
	entries    map[string]*cachedPrice
	byGood     map[string]map[string]struct{} // goodKind -> cache keys
	group      singleflight.Group
	maxEntries int
}

// NewPriceCache creates an empty cache. maxEntries <= 0 disables the
// size-based wholesale clear.
func NewPriceCache(maxEntries int) *PriceCache {
	return &PriceCache{
		entries:    make(map[string]*cachedPrice),
		byGood:     make(map[string]map[string]struct{}),
		maxEntries: maxEntries,
	}
}

func cacheKey(listingID string, isBuy bool) string {
	if isBuy {
		return listingID + "|buy"
	}
	return listingID + "|sell"
}

// GetOrCompute returns the cached price for a listing side, computing
// and storing it on a miss. Concurrent calls for the same key share
// one compute.
func (pc *PriceCache) GetOrCompute(listingID, goodKind string, isBuy bool, compute func() (float64, error)) (float64, error) {
	key := cacheKey(listingID, isBuy)

	pc.mu.RLock()
	if e, ok := pc.entries[key]; ok {
		pc.mu.RUnlock()
		return e.price, nil
	}
	pc.mu.RUnlock()

	v, err, _ := pc.group.Do(key, func() (interface{}, error) {
		// Re-check: another flight may have stored it between the
		// RUnlock above and entering the group.
		pc.mu.RLock()
		if e, ok := pc.entries[key]; ok {
			pc.mu.RUnlock()
			return e.price, nil
		}
		pc.mu.RUnlock()

		price, err := compute()
		if err != nil {
			return 0.0, err
		}
		pc.put(key, goodKind, price)
		return price, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (pc *PriceCache) put(key, goodKind string, price float64) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.maxEntries > 0 && len(pc.entries) >= pc.maxEntries {
		// Coarse eviction: wipe everything rather than tracking
		// per-entry TTLs.
		pc.entries = make(map[string]*cachedPrice)
		pc.byGood = make(map[string]map[string]struct{})
	}

	pc.entries[key] = &cachedPrice{price: price, goodKind: goodKind, storedAt: time.Now()}
	set, ok := pc.byGood[goodKind]
	if !ok {
		set = make(map[string]struct{})
		pc.byGood[goodKind] = set
	}
	set[key] = struct{}{}
}

// Invalidate drops both sides' cached prices for a listing.
func (pc *PriceCache) Invalidate(listingID string) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.remove(cacheKey(listingID, true))
	pc.remove(cacheKey(listingID, false))
}

// InvalidateGood drops every cached price for listings of a good kind.
func (pc *PriceCache) InvalidateGood(goodKind string) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	for key := range pc.byGood[goodKind] {
		delete(pc.entries, key)
	}
	delete(pc.byGood, goodKind)
}

// remove must be called with mu held.
func (pc *PriceCache) remove(key string) {
	e, ok := pc.entries[key]
	if !ok {
		return
	}
	delete(pc.entries, key)
	if set, ok := pc.byGood[e.goodKind]; ok {
		delete(set, key)
		if len(set) == 0 {
			delete(pc.byGood, e.goodKind)
		}
	}
}

// Clear wipes the whole cache.
func (pc *PriceCache) Clear() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.entries = make(map[string]*cachedPrice)
	pc.byGood = make(map[string]map[string]struct{})
}

// Len returns the number of cached prices.
func (pc *PriceCache) Len() int {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return len(pc.entries)
}
