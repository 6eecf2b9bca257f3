package service

import (
	"context"

	"github.com/forgemo/market-game/internal/domain"
	"github.com/forgemo/market-game/internal/engine"
	"github.com/forgemo/market-game/internal/store"
)

const (
	defaultBookDepth = 10
	maxBookDepth     = 50
)

// BookService serves aggregated book snapshots and quote simulations.
type BookService struct {
	registry *engine.Registry
	assets   *store.AssetStore
}

// NewBookService creates a new BookService.
func NewBookService(registry *engine.Registry, assets *store.AssetStore) *BookService {
	return &BookService{registry: registry, assets: assets}
}

// Snapshot returns the aggregated top levels of one asset's book.
// depth 0 means the default depth.
func (s *BookService) Snapshot(ctx context.Context, assetID string, depth int) (*engine.BookSnapshot, error) {
	if !s.assets.Exists(assetID) {
		return nil, domain.ErrAssetNotFound
	}
	if depth == 0 {
		depth = defaultBookDepth
	}
	if depth < 1 || depth > maxBookDepth {
		return nil, &domain.ValidationError{Message: "depth must be between 1 and 50"}
	}
	return s.registry.GetOrCreate(assetID).Snapshot(ctx, depth)
}

// SnapshotAll returns a snapshot of every asset's book, sorted by
// asset ID. Assets whose book was never touched report empty sides.
func (s *BookService) SnapshotAll(ctx context.Context) ([]*engine.BookSnapshot, error) {
	snapshots := make([]*engine.BookSnapshot, 0)
	for _, asset := range s.assets.List() {
		snap, err := s.registry.GetOrCreate(asset.AssetID).Snapshot(ctx, defaultBookDepth)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

// Quote simulates crossing the book for a quantity without placing an
// order.
func (s *BookService) Quote(ctx context.Context, assetID string, side domain.OrderSide, quantity int64) (*engine.QuoteResult, error) {
	if !s.assets.Exists(assetID) {
		return nil, domain.ErrAssetNotFound
	}
	if side != domain.OrderSideBuy && side != domain.OrderSideSell {
		return nil, &domain.ValidationError{Message: "side must be 'buy' or 'sell'"}
	}
	if quantity <= 0 {
		return nil, &domain.ValidationError{Message: "quantity must be a positive integer"}
	}
	return s.registry.GetOrCreate(assetID).Quote(ctx, side, quantity)
}
