package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/forgemo/market-game/internal/domain"
	"github.com/forgemo/market-game/internal/engine"
	"github.com/forgemo/market-game/internal/service"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// placeOrderRequest is the JSON request body for the buy/sell routes.
type placeOrderRequest struct {
	Mode     string `json:"mode"`
	Price    *int64 `json:"price"`
	Quantity int64  `json:"quantity"`
}

// orderResponse is the JSON response for a single order.
// Nullable fields use pointers and are always present.
type orderResponse struct {
	OrderID           string          `json:"order_id"`
	PortfolioID       string          `json:"portfolio_id"`
	AssetID           string          `json:"asset_id"`
	Side              string          `json:"side"`
	Mode              string          `json:"mode"`
	Price             *int64          `json:"price"`
	Quantity          int64           `json:"quantity"`
	FilledQuantity    int64           `json:"filled_quantity"`
	RemainingQuantity int64           `json:"remaining_quantity"`
	CancelledQuantity int64           `json:"cancelled_quantity"`
	Status            string          `json:"status"`
	ExpiresAt         *string         `json:"expires_at"`
	CreatedAt         string          `json:"created_at"`
	CancelledAt       *string         `json:"cancelled_at"`
	ExpiredAt         *string         `json:"expired_at"`
	AveragePrice      *int64          `json:"average_price"`
	Trades            []tradeResponse `json:"trades"`
}

// tradeResponse is a single trade in the order response.
type tradeResponse struct {
	TradeID    string `json:"trade_id"`
	Price      int64  `json:"price"`
	Quantity   int64  `json:"quantity"`
	ExecutedAt string `json:"executed_at"`
}

// placeOrderResponse wraps the order with the halting reason when
// matching stopped partway.
type placeOrderResponse struct {
	Order        orderResponse `json:"order"`
	HaltedReason *string       `json:"halted_reason"`
}

func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func buildOrderResponse(o *domain.Order) orderResponse {
	resp := orderResponse{
		OrderID:           o.OrderID,
		PortfolioID:       o.PortfolioID,
		AssetID:           o.AssetID,
		Side:              string(o.Side),
		Mode:              string(o.Mode),
		Quantity:          o.Quantity,
		FilledQuantity:    o.FilledQuantity,
		RemainingQuantity: o.RemainingQuantity,
		CancelledQuantity: o.CancelledQuantity,
		Status:            string(o.Status),
		ExpiresAt:         formatTimePtr(o.ExpiresAt),
		CreatedAt:         formatTime(o.CreatedAt),
		CancelledAt:       formatTimePtr(o.CancelledAt),
		ExpiredAt:         formatTimePtr(o.ExpiredAt),
		Trades:            make([]tradeResponse, 0, len(o.Trades)),
	}

	if o.Mode == domain.OrderModeLimit {
		price := o.Price
		resp.Price = &price
	}
	if avg, ok := o.AveragePrice(); ok {
		resp.AveragePrice = &avg
	}
	for _, t := range o.Trades {
		resp.Trades = append(resp.Trades, tradeResponse{
			TradeID:    t.TradeID,
			Price:      t.Price,
			Quantity:   t.Quantity,
			ExecutedAt: formatTime(t.ExecutedAt),
		})
	}
	return resp
}

func buildPlaceResponse(res *engine.PlaceResult) placeOrderResponse {
	resp := placeOrderResponse{Order: buildOrderResponse(res.Order)}
	if res.Halt != nil {
		reason := res.Halt.Error()
		resp.HaltedReason = &reason
	}
	return resp
}

// Buy handles POST /portfolios/{portfolio_id}/assets/{asset_id}/buy.
func (h *OrderHandler) Buy(w http.ResponseWriter, r *http.Request) {
	h.place(w, r, domain.OrderSideBuy)
}

// Sell handles POST /portfolios/{portfolio_id}/assets/{asset_id}/sell.
func (h *OrderHandler) Sell(w http.ResponseWriter, r *http.Request) {
	h.place(w, r, domain.OrderSideSell)
}

func (h *OrderHandler) place(w http.ResponseWriter, r *http.Request, side domain.OrderSide) {
	var req placeOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := h.orderSvc.Place(r.Context(), service.PlaceOrderRequest{
		PortfolioID: chi.URLParam(r, "portfolio_id"),
		AssetID:     chi.URLParam(r, "asset_id"),
		Side:        side,
		Mode:        domain.OrderMode(req.Mode),
		Price:       req.Price,
		Quantity:    req.Quantity,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildPlaceResponse(res))
}

// Cancel handles DELETE /portfolios/{p}/assets/{a}/orders/{o}.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderSvc.Cancel(
		r.Context(),
		chi.URLParam(r, "portfolio_id"),
		chi.URLParam(r, "asset_id"),
		chi.URLParam(r, "order_id"),
	)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// Get handles GET /orders/{order_id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderSvc.Get(chi.URLParam(r, "order_id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}
