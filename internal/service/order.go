package service

import (
	"context"
	"fmt"
	"time"

	"github.com/forgemo/market-game/internal/domain"
	"github.com/forgemo/market-game/internal/engine"
	"github.com/forgemo/market-game/internal/ledger"
	"github.com/forgemo/market-game/internal/store"
)

// ValidOrderStatuses lists all valid order status values for validation.
var ValidOrderStatuses = map[domain.OrderStatus]bool{
	domain.OrderStatusOpen:            true,
	domain.OrderStatusPartiallyFilled: true,
	domain.OrderStatusFilled:          true,
	domain.OrderStatusCancelled:       true,
	domain.OrderStatusExpired:         true,
}

// PlaceOrderRequest represents the input for order placement.
type PlaceOrderRequest struct {
	PortfolioID string
	AssetID     string
	Side        domain.OrderSide
	Mode        domain.OrderMode
	Price       *int64 // required for limit, must be nil for best
	Quantity    int64
}

// OrderService handles order placement, cancellation, retrieval and
// listing.
type OrderService struct {
	registry   *engine.Registry
	expiry     *engine.ExpiryManager
	ledger     *ledger.Ledger
	assetStore *store.AssetStore
	orderStore *store.OrderStore
	webhookSvc *WebhookService
	orderTTL   time.Duration
}

// NewOrderService creates a new OrderService with the given dependencies.
func NewOrderService(
	registry *engine.Registry,
	expiry *engine.ExpiryManager,
	l *ledger.Ledger,
	assetStore *store.AssetStore,
	orderStore *store.OrderStore,
	webhookSvc *WebhookService,
	orderTTL time.Duration,
) *OrderService {
	return &OrderService{
		registry:   registry,
		expiry:     expiry,
		ledger:     l,
		assetStore: assetStore,
		orderStore: orderStore,
		webhookSvc: webhookSvc,
		orderTTL:   orderTTL,
	}
}

// Place validates the request, routes the order through the asset's
// engine, and dispatches webhooks for any trades executed.
func (s *OrderService) Place(ctx context.Context, req PlaceOrderRequest) (*engine.PlaceResult, error) {
	if req.Side != domain.OrderSideBuy && req.Side != domain.OrderSideSell {
		return nil, &domain.ValidationError{Message: "side must be 'buy' or 'sell'"}
	}
	if req.Mode != domain.OrderModeLimit && req.Mode != domain.OrderModeBest {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("unknown order mode: %s, must be one of: limit, best", req.Mode),
		}
	}
	if req.Quantity <= 0 {
		return nil, &domain.ValidationError{Message: "quantity must be a positive integer"}
	}

	order := &domain.Order{
		PortfolioID: req.PortfolioID,
		AssetID:     req.AssetID,
		Side:        req.Side,
		Mode:        req.Mode,
		Quantity:    req.Quantity,
	}

	switch req.Mode {
	case domain.OrderModeLimit:
		if req.Price == nil {
			return nil, &domain.ValidationError{Message: "price is required for limit orders"}
		}
		if *req.Price <= 0 {
			return nil, &domain.ValidationError{Message: "price must be a positive integer"}
		}
		if _, ok := domain.Cost(*req.Price, req.Quantity); !ok {
			return nil, &domain.ValidationError{Message: "order value exceeds the representable coin range"}
		}
		order.Price = *req.Price
		expiresAt := time.Now().Add(s.orderTTL)
		order.ExpiresAt = &expiresAt
	case domain.OrderModeBest:
		if req.Price != nil {
			return nil, &domain.ValidationError{Message: "price must be omitted for best orders"}
		}
	}

	if !s.ledger.Exists(req.PortfolioID) {
		return nil, domain.ErrPortfolioNotFound
	}
	if !s.assetStore.Exists(req.AssetID) {
		return nil, domain.ErrAssetNotFound
	}

	res, err := s.registry.GetOrCreate(req.AssetID).PlaceOrder(ctx, order)
	if err != nil {
		return nil, err
	}

	if res.Order.Resting() {
		s.expiry.Add(res.Order)
	}

	s.notifyTrades(res.Trades)
	return res, nil
}

// notifyTrades dispatches trade.executed webhooks to both sides of
// every fill.
func (s *OrderService) notifyTrades(trades []*domain.Trade) {
	if s.webhookSvc == nil {
		return
	}
	for _, trade := range trades {
		if buyOrder, err := s.orderStore.Get(trade.BuyOrderID); err == nil {
			s.webhookSvc.DispatchTradeExecuted(buyOrder.PortfolioID, trade, buyOrder)
		}
		if sellOrder, err := s.orderStore.Get(trade.SellOrderID); err == nil {
			s.webhookSvc.DispatchTradeExecuted(sellOrder.PortfolioID, trade, sellOrder)
		}
	}
}

// Cancel removes a resting order owned by the given portfolio.
func (s *OrderService) Cancel(ctx context.Context, portfolioID, assetID, orderID string) (*domain.Order, error) {
	if !s.ledger.Exists(portfolioID) {
		return nil, domain.ErrPortfolioNotFound
	}
	if !s.assetStore.Exists(assetID) {
		return nil, domain.ErrAssetNotFound
	}

	eng := s.registry.Get(assetID)
	if eng == nil {
		return nil, domain.ErrOrderNotFound
	}

	order, err := eng.CancelOrder(ctx, portfolioID, orderID)
	if err != nil {
		return nil, err
	}

	s.expiry.Remove(orderID)
	if s.webhookSvc != nil {
		s.webhookSvc.DispatchOrderCancelled(order)
	}
	return order, nil
}

// Get returns an order with its trades.
func (s *OrderService) Get(orderID string) (*domain.Order, error) {
	return s.orderStore.Get(orderID)
}

// List returns a page of the portfolio's orders, newest first,
// optionally filtered by status. Returns the page plus the total count.
func (s *OrderService) List(portfolioID string, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int, error) {
	if !s.ledger.Exists(portfolioID) {
		return nil, 0, domain.ErrPortfolioNotFound
	}
	if status != nil && !ValidOrderStatuses[*status] {
		return nil, 0, &domain.ValidationError{
			Message: fmt.Sprintf("unknown status: %s", *status),
		}
	}
	if page < 1 {
		return nil, 0, &domain.ValidationError{Message: "page must be >= 1"}
	}
	if limit < 1 || limit > 100 {
		return nil, 0, &domain.ValidationError{Message: "limit must be between 1 and 100"}
	}

	orders, total := s.orderStore.ListByPortfolio(portfolioID, status, page, limit)
	return orders, total, nil
}
