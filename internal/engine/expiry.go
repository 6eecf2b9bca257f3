package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/forgemo/market-game/internal/domain"
)

// Notifier is an interface for dispatching webhook notifications from
// the engine layer without depending on the service layer directly.
type Notifier interface {
	DispatchOrderExpired(order *domain.Order)
}

// ExpiryManager tracks resting limit orders sorted by expires_at and
// periodically expires orders whose expiration time has passed. The
// actual expiration runs through each asset's engine worker, so it is
// serialized with matching.
type ExpiryManager struct {
	interval time.Duration
	registry *Registry
	notifier Notifier
	active   []*domain.Order // sorted by expires_at ASC
	mu       sync.Mutex      // protects active slice
}

// NewExpiryManager creates a new ExpiryManager with the given dependencies.
func NewExpiryManager(interval time.Duration, registry *Registry, notifier Notifier) *ExpiryManager {
	return &ExpiryManager{
		interval: interval,
		registry: registry,
		notifier: notifier,
		active:   make([]*domain.Order, 0),
	}
}

// SetNotifier wires the webhook dispatcher after construction. The
// service layer depends on the registry, so it is built second.
func (e *ExpiryManager) SetNotifier(n Notifier) {
	e.notifier = n
}

// Add inserts an order into the sorted active slice, maintaining
// expires_at ASC order. Only call this for limit orders that rest on
// the book.
func (e *ExpiryManager) Add(order *domain.Order) {
	if order.ExpiresAt == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	expiresAt := *order.ExpiresAt
	idx := sort.Search(len(e.active), func(i int) bool {
		return e.active[i].ExpiresAt.After(expiresAt)
	})
	e.active = append(e.active, nil)
	copy(e.active[idx+1:], e.active[idx:])
	e.active[idx] = order
}

// Remove deletes an order from the active slice by order ID.
func (e *ExpiryManager) Remove(orderID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, o := range e.active {
		if o.OrderID == orderID {
			e.active = append(e.active[:i], e.active[i+1:]...)
			return
		}
	}
}

// Start launches a background goroutine that ticks at the configured
// interval and expires orders. It stops when ctx is cancelled.
func (e *ExpiryManager) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				e.tick(ctx, t)
			}
		}
	}()
}

// tick iterates from the front of the sorted active slice and expires
// all orders where expires_at <= now.
func (e *ExpiryManager) tick(ctx context.Context, now time.Time) {
	e.mu.Lock()
	var toExpire []*domain.Order
	cutoff := 0
	for cutoff < len(e.active) {
		o := e.active[cutoff]
		if o.ExpiresAt == nil || o.ExpiresAt.After(now) {
			break
		}
		toExpire = append(toExpire, o)
		cutoff++
	}
	if cutoff > 0 {
		e.active = e.active[cutoff:]
	}
	e.mu.Unlock()

	for _, order := range toExpire {
		e.expireOrder(ctx, order)
	}
}

// expireOrder routes the expiration through the order's engine so the
// status check and book removal are serialized with matching. The
// webhook fires outside the engine to keep network I/O off the worker.
// The context unblocks the send when the engine stopped during shutdown.
func (e *ExpiryManager) expireOrder(ctx context.Context, order *domain.Order) {
	eng := e.registry.Get(order.AssetID)
	if eng == nil {
		return
	}

	expired, err := eng.Expire(ctx, order.OrderID)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("failed to expire order", "order_id", order.OrderID, "error", err)
		}
		return
	}

	// A nil order means it already left the book, filled or cancelled.
	if expired != nil && e.notifier != nil {
		e.notifier.DispatchOrderExpired(expired)
	}
}

// ActiveOrderCount returns the number of orders currently tracked for
// expiration. Useful for testing.
func (e *ExpiryManager) ActiveOrderCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}
