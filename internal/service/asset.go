package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/forgemo/market-game/internal/domain"
	"github.com/forgemo/market-game/internal/store"
)

// AssetService handles asset creation and lookup.
type AssetService struct {
	store *store.AssetStore
}

// NewAssetService creates a new AssetService.
func NewAssetService(assets *store.AssetStore) *AssetService {
	return &AssetService{store: assets}
}

// Create registers a new tradeable asset.
func (s *AssetService) Create(name string) (*domain.Asset, error) {
	if name == "" {
		return nil, &domain.ValidationError{Message: "name is required"}
	}
	if len(name) > 64 {
		return nil, &domain.ValidationError{Message: "name must be at most 64 characters"}
	}

	asset := &domain.Asset{
		AssetID:   uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now(),
	}
	s.store.Create(asset)
	return asset, nil
}

// Get returns an asset by ID.
func (s *AssetService) Get(assetID string) (*domain.Asset, error) {
	return s.store.Get(assetID)
}

// List returns all assets in creation order.
func (s *AssetService) List() []*domain.Asset {
	return s.store.List()
}
