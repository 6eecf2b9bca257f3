package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/forgemo/market-game/internal/domain"
	"github.com/forgemo/market-game/internal/service"
)

// BookHandler handles HTTP requests for order book endpoints.
type BookHandler struct {
	bookSvc *service.BookService
}

// NewBookHandler creates a new BookHandler.
func NewBookHandler(bookSvc *service.BookService) *BookHandler {
	return &BookHandler{bookSvc: bookSvc}
}

// GetBook handles GET /books/{asset_id}.
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "asset_id")

	depth := 0
	if v := r.URL.Query().Get("depth"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "depth must be an integer")
			return
		}
		depth = n
	}

	snap, err := h.bookSvc.Snapshot(r.Context(), assetID, depth)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, snap)
}

// ListBooks handles GET /books.
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.bookSvc.SnapshotAll(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"books": snaps})
}

// GetQuote handles GET /books/{asset_id}/quote.
func (h *BookHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "asset_id")

	side := domain.OrderSide(r.URL.Query().Get("side"))

	quantity, err := strconv.ParseInt(r.URL.Query().Get("quantity"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "quantity must be an integer")
		return
	}

	quote, err := h.bookSvc.Quote(r.Context(), assetID, side, quantity)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, quote)
}
