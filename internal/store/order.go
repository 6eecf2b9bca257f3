package store

import (
	"sync"

	"github.com/forgemo/market-game/internal/domain"
)

// OrderStore is a thread-safe in-memory store for orders, with a primary
// index by order_id and a secondary index by portfolio_id. Terminal
// orders are retained for queries.
type OrderStore struct {
	mu              sync.RWMutex
	orders          map[string]*domain.Order
	portfolioOrders map[string][]*domain.Order // portfolio_id → orders (append-only)
}

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:          make(map[string]*domain.Order),
		portfolioOrders: make(map[string][]*domain.Order),
	}
}

// Create adds an order to the store and appends it to the portfolio's
// secondary index.
func (s *OrderStore) Create(o *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[o.OrderID] = o
	s.portfolioOrders[o.PortfolioID] = append(s.portfolioOrders[o.PortfolioID], o)
}

// Get retrieves an order by ID. It returns domain.ErrOrderNotFound if
// the order does not exist. The result is a detached copy: the matching
// engine keeps mutating stored orders, so live pointers never leave
// the store.
func (s *OrderStore) Get(id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o.Clone(), nil
}

// Mutate runs fn while holding the store's write lock. The matching
// engine wraps every mutation of a published order in it, so Get and
// ListByPortfolio never observe a half-applied fill.
func (s *OrderStore) Mutate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// ListByPortfolio returns orders for a portfolio in reverse chronological
// order (newest first). If status is non-nil, only orders matching that
// status are included. Pagination is 1-based. Returns detached copies of
// the matching orders for the requested page and the total count of
// matching orders (before pagination).
func (s *OrderStore) ListByPortfolio(portfolioID string, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.portfolioOrders[portfolioID]

	filtered := make([]*domain.Order, 0)
	for i := len(all) - 1; i >= 0; i-- {
		if status != nil && all[i].Status != *status {
			continue
		}
		filtered = append(filtered, all[i])
	}

	total := len(filtered)

	start := (page - 1) * limit
	if start >= total {
		return []*domain.Order{}, total
	}
	end := start + limit
	if end > total {
		end = total
	}

	window := filtered[start:end]
	out := make([]*domain.Order, len(window))
	for i, o := range window {
		out[i] = o.Clone()
	}
	return out, total
}
