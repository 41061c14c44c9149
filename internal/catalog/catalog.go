// Package catalog holds the authoritative in-memory catalog state.
package catalog

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/kioshini/catalog-sync-service/internal/model"
)

type key struct {
	itemID  string
	stockID string
}

type entryState struct {
	mu sync.Mutex
	e  model.Entry
}

// Store maps item/location pairs to catalog entries. Additive updates for
// different keys proceed in parallel; updates for the same key serialize on a
// per-entry lock. The map-level lock only guards lookup and wholesale swap.
type Store struct {
	mu sync.RWMutex
	m  map[key]*entryState
}

// New creates an empty Store.
func New() *Store {
	return &Store{m: make(map[key]*entryState)}
}

// Get returns a copy of the entry for the given item/location, if present.
func (s *Store) Get(itemID, stockID string) (model.Entry, bool) {
	s.mu.RLock()
	st, ok := s.m[key{itemID, stockID}]
	s.mu.RUnlock()
	if !ok {
		return model.Entry{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.e, true
}

// ApplyAdditive atomically adds the signed deltas to the entry's fields,
// clamping every result at zero. It returns false without effect when the
// entry does not exist.
func (s *Store) ApplyAdditive(itemID, stockID string, d model.FieldDeltas) bool {
	s.mu.RLock()
	st, ok := s.m[key{itemID, stockID}]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	e := &st.e
	e.PriceT = ClampAddDecimal(e.PriceT, d.PriceT)
	e.PriceLimitT1 = ClampAddDecimal(e.PriceLimitT1, d.PriceLimitT1)
	e.PriceT1 = ClampAddDecimal(e.PriceT1, d.PriceT1)
	e.PriceLimitT2 = ClampAddDecimal(e.PriceLimitT2, d.PriceLimitT2)
	e.PriceT2 = ClampAddDecimal(e.PriceT2, d.PriceT2)
	e.PriceM = ClampAddDecimal(e.PriceM, d.PriceM)
	e.PriceLimitM1 = ClampAddDecimal(e.PriceLimitM1, d.PriceLimitM1)
	e.PriceM1 = ClampAddDecimal(e.PriceM1, d.PriceM1)
	e.PriceLimitM2 = ClampAddDecimal(e.PriceLimitM2, d.PriceLimitM2)
	e.PriceM2 = ClampAddDecimal(e.PriceM2, d.PriceM2)
	e.InStockT = ClampAdd(e.InStockT, d.InStockT)
	e.InStockM = ClampAdd(e.InStockM, d.InStockM)
	e.SoonArriveT = ClampAdd(e.SoonArriveT, d.SoonArriveT)
	e.SoonArriveM = ClampAdd(e.SoonArriveM, d.SoonArriveM)
	return true
}

// ReplaceAll swaps the entire backing collection in one visible step. Readers
// never observe a partially replaced catalog.
func (s *Store) ReplaceAll(entries []model.Entry) {
	m := make(map[key]*entryState, len(entries))
	for _, e := range entries {
		if e.ItemID == "" {
			continue
		}
		m[key{e.ItemID, e.StockID}] = &entryState{e: e}
	}
	s.mu.Lock()
	s.m = m
	s.mu.Unlock()
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// Snapshot returns a copy of all entries, in no particular order.
func (s *Store) Snapshot() []model.Entry {
	s.mu.RLock()
	states := make([]*entryState, 0, len(s.m))
	for _, st := range s.m {
		states = append(states, st)
	}
	s.mu.RUnlock()
	out := make([]model.Entry, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		out = append(out, st.e)
		st.mu.Unlock()
	}
	return out
}

// ClampAdd returns max(0, cur+delta).
func ClampAdd(cur, delta float64) float64 {
	v := cur + delta
	if v < 0 {
		return 0
	}
	return v
}

// ClampAddDecimal returns max(0, cur+delta) in exact decimal arithmetic.
func ClampAddDecimal(cur, delta decimal.Decimal) decimal.Decimal {
	v := cur.Add(delta)
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
