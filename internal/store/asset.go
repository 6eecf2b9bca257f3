package store

import (
	"sync"

	"github.com/forgemo/market-game/internal/domain"
)

// AssetStore is a thread-safe in-memory store for assets, keyed by
// asset_id. Listing preserves creation order.
type AssetStore struct {
	mu     sync.RWMutex
	assets map[string]*domain.Asset
	order  []string // asset_id in creation order
}

// NewAssetStore creates an empty AssetStore.
func NewAssetStore() *AssetStore {
	return &AssetStore{
		assets: make(map[string]*domain.Asset),
	}
}

// Create adds an asset to the store.
func (s *AssetStore) Create(a *domain.Asset) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assets[a.AssetID] = a
	s.order = append(s.order, a.AssetID)
}

// Get retrieves an asset by ID. It returns domain.ErrAssetNotFound if
// the asset does not exist.
func (s *AssetStore) Get(id string) (*domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[id]
	if !ok {
		return nil, domain.ErrAssetNotFound
	}
	return a, nil
}

// Exists returns true if an asset with the given ID exists.
func (s *AssetStore) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.assets[id]
	return ok
}

// List returns all assets in creation order.
func (s *AssetStore) List() []*domain.Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Asset, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.assets[id])
	}
	return result
}
