package service

import (
	"github.com/forgemo/market-game/internal/domain"
	"github.com/forgemo/market-game/internal/ledger"
	"github.com/forgemo/market-game/internal/store"
)

// PortfolioService handles portfolio creation, lookup and asset seeding.
type PortfolioService struct {
	ledger *ledger.Ledger
	assets *store.AssetStore
}

// NewPortfolioService creates a new PortfolioService.
func NewPortfolioService(l *ledger.Ledger, assets *store.AssetStore) *PortfolioService {
	return &PortfolioService{ledger: l, assets: assets}
}

// Create creates a portfolio seeded with the given amount of coins.
func (s *PortfolioService) Create(initialCash int64) (*domain.Portfolio, error) {
	if initialCash < 0 {
		return nil, &domain.ValidationError{Message: "cash must not be negative"}
	}
	return s.ledger.CreatePortfolio(initialCash), nil
}

// Get returns a consistent snapshot of the portfolio's cash and positions.
func (s *PortfolioService) Get(portfolioID string) (*ledger.View, error) {
	return s.ledger.View(portfolioID)
}

// Grant seeds a portfolio with units of an existing asset.
func (s *PortfolioService) Grant(portfolioID, assetID string, quantity int64) error {
	if quantity <= 0 {
		return &domain.ValidationError{Message: "quantity must be a positive integer"}
	}
	if !s.assets.Exists(assetID) {
		return domain.ErrAssetNotFound
	}
	return s.ledger.Grant(portfolioID, assetID, quantity)
}
