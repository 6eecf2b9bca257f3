package store

import (
	"sync"

	"github.com/forgemo/market-game/internal/domain"
)

// TradeStore is a thread-safe in-memory store for trades, indexed by
// asset_id and by the orders on each side of the fill. Trades are
// append-only and chronological.
type TradeStore struct {
	mu      sync.RWMutex
	byAsset map[string][]*domain.Trade // asset_id → trades (chronological)
	byOrder map[string][]*domain.Trade // order_id → trades it participated in
}

// NewTradeStore creates an empty TradeStore.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		byAsset: make(map[string][]*domain.Trade),
		byOrder: make(map[string][]*domain.Trade),
	}
}

// Append records a trade under its asset and under both order sides.
func (s *TradeStore) Append(t *domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byAsset[t.AssetID] = append(s.byAsset[t.AssetID], t)
	s.byOrder[t.BuyOrderID] = append(s.byOrder[t.BuyOrderID], t)
	s.byOrder[t.SellOrderID] = append(s.byOrder[t.SellOrderID], t)
}

// GetByAsset returns all trades for an asset in chronological order.
// Returns an empty slice if no trades exist for the asset.
func (s *TradeStore) GetByAsset(assetID string) []*domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyTrades(s.byAsset[assetID])
}

// GetByOrder returns the trades an order participated in, oldest first.
func (s *TradeStore) GetByOrder(orderID string) []*domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyTrades(s.byOrder[orderID])
}

// FilledVolume sums the executed quantity across an order's trades.
// It always equals the order's filled_quantity.
func (s *TradeStore) FilledVolume(orderID string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var volume int64
	for _, t := range s.byOrder[orderID] {
		volume += t.Quantity
	}
	return volume
}

// copyTrades shields the internal slices from caller mutation.
func copyTrades(trades []*domain.Trade) []*domain.Trade {
	out := make([]*domain.Trade, len(trades))
	copy(out, trades)
	return out
}
