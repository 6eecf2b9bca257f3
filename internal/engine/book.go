package engine

import (
	"github.com/google/btree"

	"github.com/forgemo/market-game/internal/domain"
)

// BookEntry is the sort key and payload of a resting order in one side
// of the book. Entries are ordered by price, then by arrival sequence,
// which yields price-time priority.
type BookEntry struct {
	Price   int64
	Seq     uint64
	OrderID string
	Order   *domain.Order
}

// bidLess orders bids best-first: highest price, then earliest arrival.
func bidLess(a, b BookEntry) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	return a.Seq < b.Seq
}

// askLess orders asks best-first: lowest price, then earliest arrival.
func askLess(a, b BookEntry) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.Seq < b.Seq
}

// PriceLevel is an aggregated view of all resting orders at one price.
type PriceLevel struct {
	Price         int64 `json:"price"`
	TotalQuantity int64 `json:"total_quantity"`
	OrderCount    int   `json:"order_count"`
}

// OrderBook holds the resting orders of a single asset. It is not
// safe for concurrent use; the engine's worker goroutine owns it.
type OrderBook struct {
	assetID string
	bids    *btree.BTreeG[BookEntry]
	asks    *btree.BTreeG[BookEntry]
	index   map[string]BookEntry
}

// NewOrderBook creates an empty book for the given asset.
func NewOrderBook(assetID string) *OrderBook {
	return &OrderBook{
		assetID: assetID,
		bids:    btree.NewG(2, bidLess),
		asks:    btree.NewG(2, askLess),
		index:   make(map[string]BookEntry),
	}
}

// Insert rests an order on its side of the book.
func (b *OrderBook) Insert(o *domain.Order) {
	entry := BookEntry{
		Price:   o.Price,
		Seq:     o.Sequence,
		OrderID: o.OrderID,
		Order:   o,
	}
	if o.Side == domain.OrderSideBuy {
		b.bids.ReplaceOrInsert(entry)
	} else {
		b.asks.ReplaceOrInsert(entry)
	}
	b.index[o.OrderID] = entry
}

// Remove takes an order out of the book by ID. Returns the order and
// true if it was resting, or nil and false otherwise.
func (b *OrderBook) Remove(orderID string) (*domain.Order, bool) {
	entry, ok := b.index[orderID]
	if !ok {
		return nil, false
	}
	delete(b.index, orderID)
	if entry.Order.Side == domain.OrderSideBuy {
		b.bids.Delete(entry)
	} else {
		b.asks.Delete(entry)
	}
	return entry.Order, true
}

// BestBid returns the highest-priced bid, or nil if the side is empty.
func (b *OrderBook) BestBid() *domain.Order {
	entry, ok := b.bids.Min()
	if !ok {
		return nil
	}
	return entry.Order
}

// BestAsk returns the lowest-priced ask, or nil if the side is empty.
func (b *OrderBook) BestAsk() *domain.Order {
	entry, ok := b.asks.Min()
	if !ok {
		return nil
	}
	return entry.Order
}

// WalkBids visits bids best-first until fn returns false.
func (b *OrderBook) WalkBids(fn func(*domain.Order) bool) {
	b.bids.Ascend(func(entry BookEntry) bool {
		return fn(entry.Order)
	})
}

// WalkAsks visits asks best-first until fn returns false.
func (b *OrderBook) WalkAsks(fn func(*domain.Order) bool) {
	b.asks.Ascend(func(entry BookEntry) bool {
		return fn(entry.Order)
	})
}

// TopBids aggregates the best bid price levels, at most depth levels.
func (b *OrderBook) TopBids(depth int) []PriceLevel {
	return topLevels(b.bids, depth)
}

// TopAsks aggregates the best ask price levels, at most depth levels.
func (b *OrderBook) TopAsks(depth int) []PriceLevel {
	return topLevels(b.asks, depth)
}

func topLevels(side *btree.BTreeG[BookEntry], depth int) []PriceLevel {
	levels := []PriceLevel{}
	side.Ascend(func(entry BookEntry) bool {
		n := len(levels)
		if n > 0 && levels[n-1].Price == entry.Price {
			levels[n-1].TotalQuantity += entry.Order.RemainingQuantity
			levels[n-1].OrderCount++
			return true
		}
		if n == depth {
			return false
		}
		levels = append(levels, PriceLevel{
			Price:         entry.Price,
			TotalQuantity: entry.Order.RemainingQuantity,
			OrderCount:    1,
		})
		return true
	})
	return levels
}

// BidCount returns the number of resting bids.
func (b *OrderBook) BidCount() int {
	return b.bids.Len()
}

// AskCount returns the number of resting asks.
func (b *OrderBook) AskCount() int {
	return b.asks.Len()
}
