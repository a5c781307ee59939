package engine

import (
	"hash/fnv"
	"sync"
	"time"

	"dynshop/internal/db"
)

// Persistence is the durable half of the stores. *db.DB implements it;
// tests substitute fakes. A nil Persistence means purely in-memory
// operation.
type Persistence interface {
	LoadMarketIndices() (map[string]db.MarketIndexRow, error)
	SaveMarketIndices([]db.MarketIndexRow) error
	LoadListingStats() (map[string]db.ListingStatsRow, error)
	SaveListingStats([]db.ListingStatsRow) error
	DeleteListingStats(listingID string) error
}

const numShards = 32

func shardFor(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32() % numShards
}

// IndexStore holds the authoritative in-memory market index per good
// kind. Updates are read-modify-write under a per-shard lock, so
// concurrent writers to the same key can never lose updates, while
// different shards proceed in parallel. Modified keys are tracked in a
// dirty set and written back to SQLite in batches.
type IndexStore struct {
	shards     [numShards]*indexShard
	volatility float64 // default volatility for lazily created indices
}

type indexShard struct {
	mu      sync.Mutex
	entries map[string]MarketIndex
	dirty   map[string]struct{}
}

// NewIndexStore creates an empty store. Lazily created indices start
// neutral with the given default volatility.
func NewIndexStore(defaultVolatility float64) *IndexStore {
	s := &IndexStore{volatility: defaultVolatility}
	for i := range s.shards {
		s.shards[i] = &indexShard{
			entries: make(map[string]MarketIndex),
			dirty:   make(map[string]struct{}),
		}
	}
	return s
}

// Get returns the index for a good kind. Missing keys yield a neutral
// default and ok=false; that is not an error condition.
func (s *IndexStore) Get(goodKind string) (MarketIndex, bool) {
	sh := s.shards[shardFor(goodKind)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if m, ok := sh.entries[goodKind]; ok {
		return m, true
	}
	return NeutralIndex(s.volatility, time.Time{}), false
}

// Update applies fn to the current index for goodKind as a single
// atomic read-modify-write, creating a neutral index on first touch.
// The result is clamped before being stored and returned.
func (s *IndexStore) Update(goodKind string, now time.Time, fn func(*MarketIndex)) MarketIndex {
	sh := s.shards[shardFor(goodKind)]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	m, ok := sh.entries[goodKind]
	if !ok {
		m = NeutralIndex(s.volatility, now)
	}
	fn(&m)
	m.Clamp()
	sh.entries[goodKind] = m
	sh.dirty[goodKind] = struct{}{}
	return m
}

// ForEach calls fn for every (goodKind, index) pair. Each shard is
// snapshotted under its own lock and fn runs lock-free, so a full scan
// never blocks writers for its duration.
func (s *IndexStore) ForEach(fn func(goodKind string, m MarketIndex)) {
	for _, sh := range s.shards {
		sh.mu.Lock()
		snap := make(map[string]MarketIndex, len(sh.entries))
		for k, v := range sh.entries {
			snap[k] = v
		}
		sh.mu.Unlock()
		for k, v := range snap {
			fn(k, v)
		}
	}
}

// Len returns the number of tracked good kinds.
func (s *IndexStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}

// WarmLoad seeds the store from persisted rows at startup.
func (s *IndexStore) WarmLoad(rows map[string]db.MarketIndexRow) {
	for k, r := range rows {
		sh := s.shards[shardFor(k)]
		sh.mu.Lock()
		sh.entries[k] = indexFromRow(r)
		sh.mu.Unlock()
	}
}

// FlushTo writes all dirty entries to p in one batch. On failure the
// keys stay dirty and are retried on the next flush. Returns the
// number of rows written.
func (s *IndexStore) FlushTo(p Persistence) (int, error) {
	if p == nil {
		return 0, nil
	}
	var rows []db.MarketIndexRow
	var keys []string
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k := range sh.dirty {
			rows = append(rows, indexToRow(k, sh.entries[k]))
			keys = append(keys, k)
			delete(sh.dirty, k)
		}
		sh.mu.Unlock()
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := p.SaveMarketIndices(rows); err != nil {
		s.markDirty(keys)
		return 0, err
	}
	return len(rows), nil
}

func (s *IndexStore) markDirty(keys []string) {
	for _, k := range keys {
		sh := s.shards[shardFor(k)]
		sh.mu.Lock()
		sh.dirty[k] = struct{}{}
		sh.mu.Unlock()
	}
}

// StatsStore holds the authoritative in-memory transaction stats per
// listing, with the same sharding, atomic-update, and dirty-flush
// discipline as IndexStore.
type StatsStore struct {
	shards [numShards]*statsShard
}

type statsShard struct {
	mu      sync.Mutex
	entries map[string]ListingStats
	dirty   map[string]struct{}
}

// NewStatsStore creates an empty stats store.
func NewStatsStore() *StatsStore {
	s := &StatsStore{}
	for i := range s.shards {
		s.shards[i] = &statsShard{
			entries: make(map[string]ListingStats),
			dirty:   make(map[string]struct{}),
		}
	}
	return s
}

// Get returns the stats for a listing. Missing listings yield neutral
// stats (unknown good kind) and ok=false.
func (s *StatsStore) Get(listingID string) (ListingStats, bool) {
	sh := s.shards[shardFor(listingID)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if st, ok := sh.entries[listingID]; ok {
		return st, true
	}
	return NeutralStats(""), false
}

// Update applies fn atomically to the stats for listingID, creating a
// neutral record for goodKind on first touch.
func (s *StatsStore) Update(listingID, goodKind string, fn func(*ListingStats)) ListingStats {
	sh := s.shards[shardFor(listingID)]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.entries[listingID]
	if !ok {
		st = NeutralStats(goodKind)
	}
	fn(&st)
	st.Clamp()
	sh.entries[listingID] = st
	sh.dirty[listingID] = struct{}{}
	return st
}

// Delete removes a listing's stats (storefront removed the listing).
func (s *StatsStore) Delete(listingID string) {
	sh := s.shards[shardFor(listingID)]
	sh.mu.Lock()
	delete(sh.entries, listingID)
	delete(sh.dirty, listingID)
	sh.mu.Unlock()
}

// ForEach calls fn for every (listingID, stats) pair, shard by shard,
// without holding any lock while fn runs.
func (s *StatsStore) ForEach(fn func(listingID string, st ListingStats)) {
	for _, sh := range s.shards {
		sh.mu.Lock()
		snap := make(map[string]ListingStats, len(sh.entries))
		for k, v := range sh.entries {
			snap[k] = v
		}
		sh.mu.Unlock()
		for k, v := range snap {
			fn(k, v)
		}
	}
}

// Len returns the number of tracked listings.
func (s *StatsStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}

// WarmLoad seeds the store from persisted rows at startup.
func (s *StatsStore) WarmLoad(rows map[string]db.ListingStatsRow) {
	for k, r := range rows {
		sh := s.shards[shardFor(k)]
		sh.mu.Lock()
		sh.entries[k] = statsFromRow(r)
		sh.mu.Unlock()
	}
}

// FlushTo writes all dirty entries to p in one batch, keeping them
// dirty on failure.
func (s *StatsStore) FlushTo(p Persistence) (int, error) {
	if p == nil {
		return 0, nil
	}
	var rows []db.ListingStatsRow
	var keys []string
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k := range sh.dirty {
			rows = append(rows, statsToRow(k, sh.entries[k]))
			keys = append(keys, k)
			delete(sh.dirty, k)
		}
		sh.mu.Unlock()
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := p.SaveListingStats(rows); err != nil {
		for _, k := range keys {
			sh := s.shards[shardFor(k)]
			sh.mu.Lock()
			sh.dirty[k] = struct{}{}
			sh.mu.Unlock()
		}
		return 0, err
	}
	return len(rows), nil
}
