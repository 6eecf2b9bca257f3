package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/forgemo/market-game/internal/domain"
)

func newTestOrder(id, portfolioID string, createdAt time.Time) *domain.Order {
	return &domain.Order{
		OrderID:           id,
		PortfolioID:       portfolioID,
		AssetID:           "a1",
		Side:              domain.OrderSideBuy,
		Mode:              domain.OrderModeLimit,
		Price:             150,
		Quantity:          10,
		RemainingQuantity: 10,
		Status:            domain.OrderStatusOpen,
		CreatedAt:         createdAt,
	}
}

func TestOrderStore_Create_and_Get(t *testing.T) {
	s := NewOrderStore()
	s.Create(newTestOrder("order-1", "p1", time.Now()))

	got, err := s.Get("order-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.OrderID != "order-1" {
		t.Fatalf("expected order-1, got %s", got.OrderID)
	}
	if got.PortfolioID != "p1" {
		t.Fatalf("expected p1, got %s", got.PortfolioID)
	}
}

func TestOrderStore_Get_ReturnsDetachedCopy(t *testing.T) {
	s := NewOrderStore()
	s.Create(newTestOrder("order-1", "p1", time.Now()))

	got, err := s.Get("order-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	got.Status = domain.OrderStatusCancelled
	got.RemainingQuantity = 0

	again, _ := s.Get("order-1")
	if again.Status != domain.OrderStatusOpen || again.RemainingQuantity != 10 {
		t.Fatalf("store must hand out copies, got %s / %d", again.Status, again.RemainingQuantity)
	}
}

func TestOrderStore_Mutate_VisibleToReaders(t *testing.T) {
	s := NewOrderStore()
	o := newTestOrder("order-1", "p1", time.Now())
	s.Create(o)

	s.Mutate(func() {
		o.FilledQuantity = 4
		o.RemainingQuantity = 6
		o.Status = domain.OrderStatusPartiallyFilled
	})

	got, _ := s.Get("order-1")
	if got.FilledQuantity != 4 || got.RemainingQuantity != 6 {
		t.Fatalf("expected 4 filled / 6 remaining, got %d / %d", got.FilledQuantity, got.RemainingQuantity)
	}
	if got.Status != domain.OrderStatusPartiallyFilled {
		t.Errorf("expected partially_filled, got %s", got.Status)
	}
}

func TestOrderStore_Get_NotFound(t *testing.T) {
	s := NewOrderStore()

	if _, err := s.Get("no-such-order"); err != domain.ErrOrderNotFound {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderStore_ListByPortfolio_ReverseChronological(t *testing.T) {
	s := NewOrderStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		s.Create(newTestOrder(
			fmt.Sprintf("order-%d", i),
			"p1",
			base.Add(time.Duration(i)*time.Minute),
		))
	}

	orders, total := s.ListByPortfolio("p1", nil, 1, 10)
	if total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
	for i := 0; i < len(orders)-1; i++ {
		if !orders[i].CreatedAt.After(orders[i+1].CreatedAt) {
			t.Fatalf("orders not in reverse chronological order at index %d", i)
		}
	}
}

func TestOrderStore_ListByPortfolio_StatusFilter(t *testing.T) {
	s := NewOrderStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	statuses := []domain.OrderStatus{
		domain.OrderStatusOpen,
		domain.OrderStatusFilled,
		domain.OrderStatusOpen,
		domain.OrderStatusCancelled,
		domain.OrderStatusOpen,
	}

	for i, st := range statuses {
		o := newTestOrder(fmt.Sprintf("order-%d", i), "p1", base.Add(time.Duration(i)*time.Minute))
		o.Status = st
		s.Create(o)
	}

	open := domain.OrderStatusOpen
	orders, total := s.ListByPortfolio("p1", &open, 1, 10)
	if total != 3 {
		t.Fatalf("expected total 3, got %d", total)
	}
	for _, o := range orders {
		if o.Status != domain.OrderStatusOpen {
			t.Errorf("expected only open orders, got %s", o.Status)
		}
	}
}

func TestOrderStore_ListByPortfolio_Pagination(t *testing.T) {
	s := NewOrderStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 7; i++ {
		s.Create(newTestOrder(fmt.Sprintf("order-%d", i), "p1", base.Add(time.Duration(i)*time.Minute)))
	}

	page1, total := s.ListByPortfolio("p1", nil, 1, 3)
	if total != 7 || len(page1) != 3 {
		t.Fatalf("page 1: total %d len %d, want 7 and 3", total, len(page1))
	}
	page3, _ := s.ListByPortfolio("p1", nil, 3, 3)
	if len(page3) != 1 {
		t.Fatalf("page 3: len %d, want 1", len(page3))
	}
	pageEmpty, total := s.ListByPortfolio("p1", nil, 4, 3)
	if len(pageEmpty) != 0 || total != 7 {
		t.Fatalf("page 4: len %d total %d, want 0 and 7", len(pageEmpty), total)
	}
}

func TestOrderStore_ListByPortfolio_UnknownPortfolio(t *testing.T) {
	s := NewOrderStore()
	orders, total := s.ListByPortfolio("nobody", nil, 1, 10)
	if total != 0 || len(orders) != 0 {
		t.Fatalf("expected empty result, got total %d len %d", total, len(orders))
	}
}
