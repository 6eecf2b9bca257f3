package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/forgemo/market-game/internal/domain"
	"github.com/forgemo/market-game/internal/service"
)

// AssetHandler handles HTTP requests for asset endpoints.
type AssetHandler struct {
	assetSvc *service.AssetService
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(assetSvc *service.AssetService) *AssetHandler {
	return &AssetHandler{assetSvc: assetSvc}
}

// createAssetRequest is the JSON request body for POST /assets.
type createAssetRequest struct {
	Name string `json:"name"`
}

// assetResponse is the JSON response for asset endpoints.
type assetResponse struct {
	AssetID   string `json:"asset_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

func buildAssetResponse(a *domain.Asset) assetResponse {
	return assetResponse{
		AssetID:   a.AssetID,
		Name:      a.Name,
		CreatedAt: formatTime(a.CreatedAt),
	}
}

// Create handles POST /assets.
func (h *AssetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAssetRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	asset, err := h.assetSvc.Create(req.Name)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildAssetResponse(asset))
}

// Get handles GET /assets/{asset_id}.
func (h *AssetHandler) Get(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "asset_id")

	asset, err := h.assetSvc.Get(assetID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildAssetResponse(asset))
}

// List handles GET /assets.
func (h *AssetHandler) List(w http.ResponseWriter, r *http.Request) {
	assets := h.assetSvc.List()

	resp := make([]assetResponse, 0, len(assets))
	for _, a := range assets {
		resp = append(resp, buildAssetResponse(a))
	}

	WriteJSON(w, http.StatusOK, map[string]any{"assets": resp})
}
