package ledger

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

// Cash and units are conserved across any sequence of settlements,
// whether each individual settlement succeeds or fails, and no account
// ever goes negative.
func TestProperty_SettlementConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		l := New()

		numPortfolios := rapid.IntRange(2, 5).Draw(t, "numPortfolios")
		ids := make([]string, numPortfolios)
		var totalCash, totalUnits int64
		for i := 0; i < numPortfolios; i++ {
			cash := rapid.Int64Range(0, 10_000).Draw(t, fmt.Sprintf("cash-%d", i))
			units := rapid.Int64Range(0, 1_000).Draw(t, fmt.Sprintf("units-%d", i))
			p := l.CreatePortfolio(cash)
			if units > 0 {
				if err := l.Grant(p.PortfolioID, "a1", units); err != nil {
					t.Fatalf("grant failed: %v", err)
				}
			}
			ids[i] = p.PortfolioID
			totalCash += cash
			totalUnits += units
		}

		numTrades := rapid.IntRange(1, 50).Draw(t, "numTrades")
		for i := 0; i < numTrades; i++ {
			buyer := rapid.SampledFrom(ids).Draw(t, fmt.Sprintf("buyer-%d", i))
			seller := rapid.SampledFrom(ids).Draw(t, fmt.Sprintf("seller-%d", i))
			qty := rapid.Int64Range(1, 100).Draw(t, fmt.Sprintf("qty-%d", i))
			price := rapid.Int64Range(1, 200).Draw(t, fmt.Sprintf("price-%d", i))
			// Failures are expected; conservation must hold either way.
			_ = l.Settle(buyer, seller, "a1", qty, price)
		}

		var sumCash, sumUnits int64
		for _, id := range ids {
			bal, err := l.Balance(id)
			if err != nil {
				t.Fatalf("balance failed: %v", err)
			}
			if bal < 0 {
				t.Fatalf("portfolio %s has negative cash %d", id, bal)
			}
			pos, err := l.Position(id, "a1")
			if err != nil {
				t.Fatalf("position failed: %v", err)
			}
			if pos < 0 {
				t.Fatalf("portfolio %s has negative position %d", id, pos)
			}
			sumCash += bal
			sumUnits += pos
		}

		if sumCash != totalCash {
			t.Fatalf("cash not conserved: have %d, want %d", sumCash, totalCash)
		}
		if sumUnits != totalUnits {
			t.Fatalf("units not conserved: have %d, want %d", sumUnits, totalUnits)
		}
	})
}
