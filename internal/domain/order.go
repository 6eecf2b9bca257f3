package domain

import "time"

// OrderMode distinguishes limit orders from best (immediate) orders.
type OrderMode string

const (
	OrderModeLimit OrderMode = "limit"
	OrderModeBest  OrderMode = "best"
)

// OrderSide indicates whether an order buys or sells the asset.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusOpen            OrderStatus = "open"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusExpired         OrderStatus = "expired"
)

// Order represents a buy or sell instruction submitted by a portfolio.
// The matching engine owning the order's asset is the sole writer of
// every mutable field after submission.
type Order struct {
	OrderID           string
	PortfolioID       string
	AssetID           string
	Side              OrderSide
	Mode              OrderMode
	Price             int64 // coins per unit, 0 for best orders
	Quantity          int64
	FilledQuantity    int64
	RemainingQuantity int64
	CancelledQuantity int64
	Sequence          uint64 // assigned by the engine, monotonic per book
	Status            OrderStatus
	ExpiresAt         *time.Time // nil for best orders
	CreatedAt         time.Time
	CancelledAt       *time.Time
	ExpiredAt         *time.Time
	Trades            []*Trade
}

// Clone returns a deep copy detached from the engine's live order, so
// later fills cannot mutate it under a reader.
func (o *Order) Clone() *Order {
	c := *o
	c.ExpiresAt = cloneTime(o.ExpiresAt)
	c.CancelledAt = cloneTime(o.CancelledAt)
	c.ExpiredAt = cloneTime(o.ExpiredAt)
	c.Trades = append([]*Trade(nil), o.Trades...)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// Resting reports whether the order is currently on the book awaiting
// a counterparty.
func (o *Order) Resting() bool {
	return o.Status == OrderStatusOpen || o.Status == OrderStatusPartiallyFilled
}

// AveragePrice computes the volume-weighted average execution price
// as sum(trade.price × trade.quantity) / filled_quantity using integer
// arithmetic. Returns (price, true) when trades exist, or (0, false)
// when no trades have been executed.
func (o *Order) AveragePrice() (int64, bool) {
	if len(o.Trades) == 0 || o.FilledQuantity == 0 {
		return 0, false
	}
	var total int64
	for _, t := range o.Trades {
		total += t.Price * t.Quantity
	}
	return total / o.FilledQuantity, true
}
