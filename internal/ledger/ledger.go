// Package ledger owns every portfolio's coin balance and asset positions
// and applies the atomic debit/credit pairs produced by matched trades.
package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forgemo/market-game/internal/domain"
)

// View is a read-only snapshot of a single portfolio.
type View struct {
	PortfolioID string
	Cash        int64
	Positions   map[string]int64
	CreatedAt   time.Time
}

// Ledger is the process-wide portfolio ledger. It is shared across all
// matching engines: a trade touches two portfolios that may concurrently
// be involved in trades on other assets, so every settlement locks only
// the two accounts involved, always in PortfolioID order.
type Ledger struct {
	mu         sync.RWMutex
	portfolios map[string]*domain.Portfolio

	houseMu sync.Mutex
	house   int64 // accumulated command fees
}

// New creates an empty Ledger.
func New() *Ledger {
	return &Ledger{
		portfolios: make(map[string]*domain.Portfolio),
	}
}

// CreatePortfolio registers a new portfolio with the given starting cash
// and returns it. The PortfolioID is assigned here.
func (l *Ledger) CreatePortfolio(initialCash int64) *domain.Portfolio {
	p := &domain.Portfolio{
		PortfolioID: uuid.New().String(),
		Cash:        initialCash,
		Positions:   make(map[string]int64),
		CreatedAt:   time.Now(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.portfolios[p.PortfolioID] = p
	return p
}

// Get retrieves a portfolio by ID. It returns domain.ErrPortfolioNotFound
// if the portfolio does not exist.
func (l *Ledger) Get(id string) (*domain.Portfolio, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.portfolios[id]
	if !ok {
		return nil, domain.ErrPortfolioNotFound
	}
	return p, nil
}

// Exists returns true if a portfolio with the given ID exists.
func (l *Ledger) Exists(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.portfolios[id]
	return ok
}

// Grant credits a portfolio with units of an asset, used when seeding a
// simulation. Quantity must be positive; validation happens in the
// service layer.
func (l *Ledger) Grant(portfolioID, assetID string, quantity int64) error {
	p, err := l.Get(portfolioID)
	if err != nil {
		return err
	}

	p.Mu.Lock()
	defer p.Mu.Unlock()
	p.Positions[assetID] += quantity
	return nil
}

// Settle applies one trade: it debits the buyer's cash by price×quantity,
// credits the buyer's position, credits the seller's cash, and debits the
// seller's position. All four mutations happen, or none do: it returns
// domain.ErrInsufficientFunds if the buyer's cash would go negative and
// domain.ErrInsufficientAssets if the seller's position would go negative,
// in both cases without touching either portfolio.
//
// The two portfolio locks are acquired in PortfolioID order. Two
// settlements racing from different asset engines over an overlapping
// pair of portfolios therefore can never wait on each other cyclically.
func (l *Ledger) Settle(buyerID, sellerID, assetID string, quantity, price int64) error {
	buyer, err := l.Get(buyerID)
	if err != nil {
		return err
	}
	seller, err := l.Get(sellerID)
	if err != nil {
		return err
	}

	first, second := buyer, seller
	if second.PortfolioID < first.PortfolioID {
		first, second = second, first
	}
	first.Mu.Lock()
	defer first.Mu.Unlock()
	if first != second {
		second.Mu.Lock()
		defer second.Mu.Unlock()
	}

	// A cost that exceeds int64 can never be paid. Without this check
	// the product wraps and the funds guard below passes.
	cost, ok := domain.Cost(price, quantity)
	if !ok {
		return domain.ErrInsufficientFunds
	}
	if buyer.Cash < cost {
		return domain.ErrInsufficientFunds
	}
	if seller.Positions[assetID] < quantity {
		return domain.ErrInsufficientAssets
	}

	buyer.Cash -= cost
	buyer.Positions[assetID] += quantity
	seller.Cash += cost
	seller.Positions[assetID] -= quantity
	return nil
}

// BillFee debits a flat command fee from the portfolio into the house
// account. A zero or negative amount is a no-op. Returns
// domain.ErrInsufficientFunds without mutation if the portfolio cannot
// cover the fee.
func (l *Ledger) BillFee(portfolioID string, amount int64) error {
	if amount <= 0 {
		return nil
	}

	p, err := l.Get(portfolioID)
	if err != nil {
		return err
	}

	p.Mu.Lock()
	if p.Cash < amount {
		p.Mu.Unlock()
		return domain.ErrInsufficientFunds
	}
	p.Cash -= amount
	p.Mu.Unlock()

	l.houseMu.Lock()
	l.house += amount
	l.houseMu.Unlock()
	return nil
}

// Balance returns the portfolio's current cash.
func (l *Ledger) Balance(portfolioID string) (int64, error) {
	p, err := l.Get(portfolioID)
	if err != nil {
		return 0, err
	}

	p.Mu.Lock()
	defer p.Mu.Unlock()
	return p.Cash, nil
}

// Position returns the portfolio's held quantity for the given asset.
func (l *Ledger) Position(portfolioID, assetID string) (int64, error) {
	p, err := l.Get(portfolioID)
	if err != nil {
		return 0, err
	}

	p.Mu.Lock()
	defer p.Mu.Unlock()
	return p.Positions[assetID], nil
}

// View returns a consistent snapshot of the portfolio's cash and positions.
func (l *Ledger) View(portfolioID string) (*View, error) {
	p, err := l.Get(portfolioID)
	if err != nil {
		return nil, err
	}

	p.Mu.Lock()
	defer p.Mu.Unlock()

	positions := make(map[string]int64, len(p.Positions))
	for assetID, qty := range p.Positions {
		positions[assetID] = qty
	}

	return &View{
		PortfolioID: p.PortfolioID,
		Cash:        p.Cash,
		Positions:   positions,
		CreatedAt:   p.CreatedAt,
	}, nil
}

// HouseBalance returns the total command fees collected so far.
func (l *Ledger) HouseBalance() int64 {
	l.houseMu.Lock()
	defer l.houseMu.Unlock()
	return l.house
}
