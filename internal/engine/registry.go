package engine

import (
	"sort"
	"sync"

	"github.com/forgemo/market-game/internal/store"
)

// Registry creates and holds one Engine per asset. Engines are created
// lazily the first time an asset's book is touched.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]*Engine

	settler Settler
	orders  *store.OrderStore
	trades  *store.TradeStore
	fee     int64
}

// NewRegistry creates an empty registry sharing the given dependencies
// across engines.
func NewRegistry(settler Settler, orders *store.OrderStore, trades *store.TradeStore, fee int64) *Registry {
	return &Registry{
		engines: make(map[string]*Engine),
		settler: settler,
		orders:  orders,
		trades:  trades,
		fee:     fee,
	}
}

// GetOrCreate returns the engine for an asset, starting one if needed.
// Concurrent callers for the same asset get the same instance.
func (r *Registry) GetOrCreate(assetID string) *Engine {
	r.mu.RLock()
	e, ok := r.engines[assetID]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.engines[assetID]; ok {
		return e
	}
	e = NewEngine(assetID, r.settler, r.orders, r.trades, r.fee)
	r.engines[assetID] = e
	return e
}

// Get returns the engine for an asset, or nil if none exists yet.
func (r *Registry) Get(assetID string) *Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.engines[assetID]
}

// List returns all engines sorted by asset ID.
func (r *Registry) List() []*Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()

	engines := make([]*Engine, 0, len(r.engines))
	for _, e := range r.engines {
		engines = append(engines, e)
	}
	sort.Slice(engines, func(i, j int) bool {
		return engines[i].assetID < engines[j].assetID
	})
	return engines
}

// StopAll shuts down every engine. Used during graceful shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.engines {
		e.Stop()
	}
	r.engines = make(map[string]*Engine)
}
