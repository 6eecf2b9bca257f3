package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/forgemo/market-game/internal/domain"
	"github.com/forgemo/market-game/internal/service"
)

// PortfolioHandler handles HTTP requests for portfolio endpoints.
type PortfolioHandler struct {
	portfolioSvc *service.PortfolioService
	orderSvc     *service.OrderService
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(portfolioSvc *service.PortfolioService, orderSvc *service.OrderService) *PortfolioHandler {
	return &PortfolioHandler{portfolioSvc: portfolioSvc, orderSvc: orderSvc}
}

// createPortfolioRequest is the JSON request body for POST /portfolios.
type createPortfolioRequest struct {
	Cash int64 `json:"cash"`
}

// portfolioResponse is the JSON response for portfolio endpoints.
type portfolioResponse struct {
	PortfolioID string           `json:"portfolio_id"`
	Cash        int64            `json:"cash"`
	Positions   map[string]int64 `json:"positions"`
	CreatedAt   string           `json:"created_at"`
}

// Create handles POST /portfolios.
func (h *PortfolioHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPortfolioRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	p, err := h.portfolioSvc.Create(req.Cash)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, portfolioResponse{
		PortfolioID: p.PortfolioID,
		Cash:        p.Cash,
		Positions:   map[string]int64{},
		CreatedAt:   formatTime(p.CreatedAt),
	})
}

// Get handles GET /portfolios/{portfolio_id}.
func (h *PortfolioHandler) Get(w http.ResponseWriter, r *http.Request) {
	portfolioID := chi.URLParam(r, "portfolio_id")

	view, err := h.portfolioSvc.Get(portfolioID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, portfolioResponse{
		PortfolioID: view.PortfolioID,
		Cash:        view.Cash,
		Positions:   view.Positions,
		CreatedAt:   formatTime(view.CreatedAt),
	})
}

// grantRequest is the JSON request body for POST /portfolios/{id}/assets.
type grantRequest struct {
	AssetID  string `json:"asset_id"`
	Quantity int64  `json:"quantity"`
}

// Grant handles POST /portfolios/{portfolio_id}/assets.
func (h *PortfolioHandler) Grant(w http.ResponseWriter, r *http.Request) {
	portfolioID := chi.URLParam(r, "portfolio_id")

	var req grantRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.portfolioSvc.Grant(portfolioID, req.AssetID, req.Quantity); err != nil {
		WriteDomainError(w, err)
		return
	}

	view, err := h.portfolioSvc.Get(portfolioID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, portfolioResponse{
		PortfolioID: view.PortfolioID,
		Cash:        view.Cash,
		Positions:   view.Positions,
		CreatedAt:   formatTime(view.CreatedAt),
	})
}

// listOrdersResponse is the JSON response for the order listing.
type listOrdersResponse struct {
	Orders []orderResponse `json:"orders"`
	Total  int             `json:"total"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
}

// ListOrders handles GET /portfolios/{portfolio_id}/orders.
func (h *PortfolioHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	portfolioID := chi.URLParam(r, "portfolio_id")

	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "page must be an integer")
			return
		}
		page = n
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be an integer")
			return
		}
		limit = n
	}

	var status *domain.OrderStatus
	if v := r.URL.Query().Get("status"); v != "" {
		s := domain.OrderStatus(v)
		status = &s
	}

	orders, total, err := h.orderSvc.List(portfolioID, status, page, limit)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	resp := listOrdersResponse{
		Orders: make([]orderResponse, 0, len(orders)),
		Total:  total,
		Page:   page,
		Limit:  limit,
	}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, buildOrderResponse(o))
	}

	WriteJSON(w, http.StatusOK, resp)
}
