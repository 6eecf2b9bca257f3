package domain

import (
	"sync"
	"time"
)

// Portfolio represents a registered participant: a coin balance plus a
// position in each asset it has ever held. Mutated only through the
// ledger's settlement calls.
type Portfolio struct {
	PortfolioID string
	Cash        int64            // coins
	Positions   map[string]int64 // asset_id → units held
	CreatedAt   time.Time
	Mu          sync.Mutex // per-portfolio lock, acquired in PortfolioID order
}

// Position returns the held quantity for the given asset, or 0 if the
// portfolio has never held it. Callers must hold Mu.
func (p *Portfolio) Position(assetID string) int64 {
	return p.Positions[assetID]
}
