package engine

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/forgemo/market-game/internal/domain"
	"github.com/forgemo/market-game/internal/store"
)

// Settler applies the monetary side effects of matching. The ledger
// implements it; tests may substitute their own.
type Settler interface {
	Settle(buyerID, sellerID, assetID string, quantity, price int64) error
	BillFee(portfolioID string, amount int64) error
	Balance(portfolioID string) (int64, error)
	Position(portfolioID, assetID string) (int64, error)
}

// PlaceResult is the outcome of a successfully accepted order. Order is
// a detached copy taken after processing; later fills against a resting
// remainder do not update it. Halt is non-nil when matching stopped
// partway: the fills in Trades stand and the unfilled remainder was
// cancelled for the reason given.
type PlaceResult struct {
	Order  *domain.Order
	Trades []*domain.Trade
	Halt   error
}

// BookSnapshot is a point-in-time aggregated view of one asset's book.
type BookSnapshot struct {
	AssetID    string       `json:"asset_id"`
	Bids       []PriceLevel `json:"bids"`
	Asks       []PriceLevel `json:"asks"`
	Spread     *int64       `json:"spread"`
	SnapshotAt time.Time    `json:"snapshot_at"`
}

// QuoteLevel is one price level contributing to a quote estimate.
type QuoteLevel struct {
	Price    int64 `json:"price"`
	Quantity int64 `json:"quantity"`
}

// QuoteResult estimates the cost of crossing the book for a quantity
// without placing an order.
type QuoteResult struct {
	AssetID           string       `json:"asset_id"`
	Side              string       `json:"side"`
	Quantity          int64        `json:"quantity"`
	QuantityAvailable int64        `json:"quantity_available"`
	FullyFillable     bool         `json:"fully_fillable"`
	EstimatedAvgPrice *int64       `json:"estimated_avg_price"`
	EstimatedTotal    *int64       `json:"estimated_total"`
	PriceLevels       []QuoteLevel `json:"price_levels"`
}

type requestKind int

const (
	reqPlace requestKind = iota
	reqCancel
	reqExpire
	reqSnapshot
	reqQuote
	reqStop
)

type placeReply struct {
	res *PlaceResult
	err error
}

type cancelReply struct {
	order *domain.Order
	err   error
}

type request struct {
	kind        requestKind
	order       *domain.Order
	portfolioID string
	orderID     string
	depth       int
	side        domain.OrderSide
	quantity    int64

	placec  chan placeReply
	cancelc chan cancelReply
	errc    chan error
	snapc   chan *BookSnapshot
	quotec  chan *QuoteResult
}

// Engine serializes all mutations of a single asset's book through one
// worker goroutine. Requests are submitted over a channel and answered
// on per-request reply channels, so callers never touch the book
// concurrently.
type Engine struct {
	assetID string
	book    *OrderBook
	settler Settler
	orders  *store.OrderStore
	trades  *store.TradeStore
	fee     int64
	seq     uint64
	reqs    chan request
}

// NewEngine creates an engine for one asset and starts its worker.
func NewEngine(assetID string, settler Settler, orders *store.OrderStore, trades *store.TradeStore, fee int64) *Engine {
	e := &Engine{
		assetID: assetID,
		book:    NewOrderBook(assetID),
		settler: settler,
		orders:  orders,
		trades:  trades,
		fee:     fee,
		reqs:    make(chan request, 64),
	}
	go e.run()
	return e
}

// AssetID returns the asset this engine serves.
func (e *Engine) AssetID() string {
	return e.assetID
}

func (e *Engine) run() {
	for req := range e.reqs {
		switch req.kind {
		case reqPlace:
			res, err := e.processPlace(req.order)
			req.placec <- placeReply{res: res, err: err}
		case reqCancel:
			order, err := e.processCancel(req.portfolioID, req.orderID)
			req.cancelc <- cancelReply{order: order, err: err}
		case reqExpire:
			order, err := e.processExpire(req.orderID)
			req.cancelc <- cancelReply{order: order, err: err}
		case reqSnapshot:
			req.snapc <- e.buildSnapshot(req.depth)
		case reqQuote:
			req.quotec <- e.simulate(req.side, req.quantity)
		case reqStop:
			close(req.errc)
			return
		}
	}
}

// PlaceOrder submits an order to the book and blocks until matching
// completes or the context is cancelled.
func (e *Engine) PlaceOrder(ctx context.Context, o *domain.Order) (*PlaceResult, error) {
	req := request{kind: reqPlace, order: o, placec: make(chan placeReply, 1)}
	select {
	case e.reqs <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case reply := <-req.placec:
		return reply.res, reply.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CancelOrder removes a resting order owned by the given portfolio.
func (e *Engine) CancelOrder(ctx context.Context, portfolioID, orderID string) (*domain.Order, error) {
	req := request{kind: reqCancel, portfolioID: portfolioID, orderID: orderID, cancelc: make(chan cancelReply, 1)}
	select {
	case e.reqs <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case reply := <-req.cancelc:
		return reply.order, reply.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Expire removes an order whose lifetime has elapsed. Unlike
// cancellation it carries no fee and skips ownership checks. It returns
// the expired order, or nil when the order already left the book.
func (e *Engine) Expire(ctx context.Context, orderID string) (*domain.Order, error) {
	req := request{kind: reqExpire, orderID: orderID, cancelc: make(chan cancelReply, 1)}
	select {
	case e.reqs <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case reply := <-req.cancelc:
		return reply.order, reply.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Snapshot returns an aggregated view of the book's top price levels.
func (e *Engine) Snapshot(ctx context.Context, depth int) (*BookSnapshot, error) {
	req := request{kind: reqSnapshot, depth: depth, snapc: make(chan *BookSnapshot, 1)}
	select {
	case e.reqs <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case snap := <-req.snapc:
		return snap, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Quote estimates the outcome of crossing the book for a quantity.
func (e *Engine) Quote(ctx context.Context, side domain.OrderSide, quantity int64) (*QuoteResult, error) {
	req := request{kind: reqQuote, side: side, quantity: quantity, quotec: make(chan *QuoteResult, 1)}
	select {
	case e.reqs <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case quote := <-req.quotec:
		return quote, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop shuts the worker down after draining queued requests.
func (e *Engine) Stop() {
	req := request{kind: reqStop, errc: make(chan error)}
	e.reqs <- req
	<-req.errc
}

func (e *Engine) processPlace(o *domain.Order) (*PlaceResult, error) {
	if err := e.settler.BillFee(o.PortfolioID, e.fee); err != nil {
		return nil, err
	}

	if err := e.checkFunds(o); err != nil {
		return nil, err
	}

	o.OrderID = uuid.NewString()
	o.CreatedAt = time.Now()
	o.Sequence = e.seq
	e.seq++
	o.RemainingQuantity = o.Quantity
	o.Status = domain.OrderStatusOpen
	e.orders.Create(o)

	res := &PlaceResult{Trades: []*domain.Trade{}}
	e.match(o, res)

	if o.RemainingQuantity > 0 {
		switch {
		case res.Halt != nil || o.Mode == domain.OrderModeBest:
			if res.Halt == nil {
				res.Halt = domain.ErrNoLiquidity
			}
			now := time.Now()
			e.orders.Mutate(func() {
				o.CancelledQuantity = o.RemainingQuantity
				o.RemainingQuantity = 0
				o.CancelledAt = &now
				o.Status = domain.OrderStatusCancelled
			})
		default:
			e.book.Insert(o)
		}
	}

	res.Order = o.Clone()
	return res, nil
}

// checkFunds is an advisory pre-flight check. The ledger re-validates
// at settlement time, so passing here does not guarantee fills succeed.
func (e *Engine) checkFunds(o *domain.Order) error {
	if o.Mode == domain.OrderModeBest {
		opposite := e.book.BestAsk()
		if o.Side == domain.OrderSideSell {
			opposite = e.book.BestBid()
		}
		if opposite == nil {
			return domain.ErrNoLiquidity
		}
	}

	if o.Side == domain.OrderSideSell {
		held, err := e.settler.Position(o.PortfolioID, o.AssetID)
		if err != nil {
			return err
		}
		if held < o.Quantity {
			return domain.ErrInsufficientAssets
		}
		return nil
	}

	balance, err := e.settler.Balance(o.PortfolioID)
	if err != nil {
		return err
	}

	var required int64
	if o.Mode == domain.OrderModeLimit {
		cost, ok := domain.Cost(o.Price, o.Quantity)
		if !ok {
			return domain.ErrInsufficientFunds
		}
		required = cost
	} else {
		required = e.estimateBestCost(o.Quantity)
	}
	if balance < required {
		return domain.ErrInsufficientFunds
	}
	return nil
}

// estimateBestCost walks the asks and sums the cost of the quantity
// that is actually available to fill. The sum saturates at MaxInt64
// instead of wrapping, so no balance can cover it.
func (e *Engine) estimateBestCost(quantity int64) int64 {
	var cost, filled int64
	e.book.WalkAsks(func(resting *domain.Order) bool {
		take := min(quantity-filled, resting.RemainingQuantity)
		level, ok := domain.Cost(resting.Price, take)
		if !ok || cost > math.MaxInt64-level {
			cost = math.MaxInt64
			return false
		}
		cost += level
		filled += take
		return filled < quantity
	})
	return cost
}

func (e *Engine) match(incoming *domain.Order, res *PlaceResult) {
	for incoming.RemainingQuantity > 0 {
		var resting *domain.Order
		if incoming.Side == domain.OrderSideBuy {
			resting = e.book.BestAsk()
			if resting == nil {
				return
			}
			if incoming.Mode == domain.OrderModeLimit && resting.Price > incoming.Price {
				return
			}
		} else {
			resting = e.book.BestBid()
			if resting == nil {
				return
			}
			if incoming.Mode == domain.OrderModeLimit && resting.Price < incoming.Price {
				return
			}
		}

		fillQty := min(incoming.RemainingQuantity, resting.RemainingQuantity)
		execPrice := resting.Price

		buyerID, sellerID := incoming.PortfolioID, resting.PortfolioID
		buyOrderID, sellOrderID := incoming.OrderID, resting.OrderID
		if incoming.Side == domain.OrderSideSell {
			buyerID, sellerID = resting.PortfolioID, incoming.PortfolioID
			buyOrderID, sellOrderID = resting.OrderID, incoming.OrderID
		}

		// Settle before mutating either order. A failed settlement
		// halts matching and leaves prior fills untouched.
		if err := e.settler.Settle(buyerID, sellerID, e.assetID, fillQty, execPrice); err != nil {
			res.Halt = err
			return
		}

		trade := &domain.Trade{
			TradeID:     uuid.NewString(),
			BuyOrderID:  buyOrderID,
			SellOrderID: sellOrderID,
			AssetID:     e.assetID,
			Price:       execPrice,
			Quantity:    fillQty,
			ExecutedAt:  time.Now(),
		}

		e.orders.Mutate(func() {
			applyFill(incoming, trade, fillQty)
			applyFill(resting, trade, fillQty)
		})
		res.Trades = append(res.Trades, trade)
		e.trades.Append(trade)

		if resting.RemainingQuantity == 0 {
			e.book.Remove(resting.OrderID)
		}
	}
}

func applyFill(o *domain.Order, trade *domain.Trade, quantity int64) {
	o.FilledQuantity += quantity
	o.RemainingQuantity -= quantity
	o.Trades = append(o.Trades, trade)
	if o.RemainingQuantity == 0 {
		o.Status = domain.OrderStatusFilled
	} else {
		o.Status = domain.OrderStatusPartiallyFilled
	}
}

func (e *Engine) processCancel(portfolioID, orderID string) (*domain.Order, error) {
	if err := e.settler.BillFee(portfolioID, e.fee); err != nil {
		return nil, err
	}

	order, err := e.orders.Get(orderID)
	if err != nil {
		return nil, err
	}
	if order.AssetID != e.assetID {
		return nil, domain.ErrOrderNotFound
	}
	if order.PortfolioID != portfolioID {
		return nil, domain.ErrNotOrderOwner
	}
	if !order.Resting() {
		return nil, domain.ErrOrderNotCancellable
	}

	// The store handed out a copy; the live order to mutate sits on
	// the book.
	live, ok := e.book.Remove(orderID)
	if !ok {
		return nil, domain.ErrOrderNotCancellable
	}
	now := time.Now()
	e.orders.Mutate(func() {
		live.CancelledQuantity = live.RemainingQuantity
		live.RemainingQuantity = 0
		live.CancelledAt = &now
		live.Status = domain.OrderStatusCancelled
	})
	return live.Clone(), nil
}

func (e *Engine) processExpire(orderID string) (*domain.Order, error) {
	order, err := e.orders.Get(orderID)
	if err != nil {
		return nil, err
	}
	if !order.Resting() {
		return nil, nil
	}

	live, ok := e.book.Remove(orderID)
	if !ok {
		return nil, nil
	}
	now := time.Now()
	e.orders.Mutate(func() {
		live.CancelledQuantity = live.RemainingQuantity
		live.RemainingQuantity = 0
		live.ExpiredAt = &now
		live.Status = domain.OrderStatusExpired
	})
	return live.Clone(), nil
}

func (e *Engine) buildSnapshot(depth int) *BookSnapshot {
	snap := &BookSnapshot{
		AssetID:    e.assetID,
		Bids:       e.book.TopBids(depth),
		Asks:       e.book.TopAsks(depth),
		SnapshotAt: time.Now(),
	}
	if len(snap.Bids) > 0 && len(snap.Asks) > 0 {
		spread := snap.Asks[0].Price - snap.Bids[0].Price
		snap.Spread = &spread
	}
	return snap
}

func (e *Engine) simulate(side domain.OrderSide, quantity int64) *QuoteResult {
	res := &QuoteResult{
		AssetID:     e.assetID,
		Side:        string(side),
		Quantity:    quantity,
		PriceLevels: []QuoteLevel{},
	}

	walk := e.book.WalkAsks
	if side == domain.OrderSideSell {
		walk = e.book.WalkBids
	}

	var filled, total int64
	overflow := false
	walk(func(resting *domain.Order) bool {
		take := min(quantity-filled, resting.RemainingQuantity)
		filled += take
		level, ok := domain.Cost(resting.Price, take)
		if !ok || total > math.MaxInt64-level {
			overflow = true
		} else {
			total += level
		}

		n := len(res.PriceLevels)
		if n > 0 && res.PriceLevels[n-1].Price == resting.Price {
			res.PriceLevels[n-1].Quantity += take
		} else {
			res.PriceLevels = append(res.PriceLevels, QuoteLevel{Price: resting.Price, Quantity: take})
		}
		return filled < quantity
	})

	res.QuantityAvailable = filled
	res.FullyFillable = filled == quantity
	// A total beyond int64 cannot be reported honestly; leave the
	// estimates null.
	if filled > 0 && !overflow {
		avg := total / filled
		res.EstimatedAvgPrice = &avg
		res.EstimatedTotal = &total
	}
	return res
}
