package store

import (
	"sync"

	"github.com/forgemo/market-game/internal/domain"
)

// WebhookStore is a thread-safe in-memory store for webhooks.
// Primary index: webhook_id → webhook.
// Secondary index: portfolio_id → event → webhook.
type WebhookStore struct {
	mu          sync.RWMutex
	webhooks    map[string]*domain.Webhook
	byPortfolio map[string]map[string]*domain.Webhook
}

// NewWebhookStore creates an empty WebhookStore.
func NewWebhookStore() *WebhookStore {
	return &WebhookStore{
		webhooks:    make(map[string]*domain.Webhook),
		byPortfolio: make(map[string]map[string]*domain.Webhook),
	}
}

// Upsert inserts or updates a webhook subscription keyed by
// (portfolio_id, event). If a subscription already exists for that pair,
// the URL and UpdatedAt are updated and the webhook_id remains stable.
// Returns true if a new subscription was created.
func (s *WebhookStore) Upsert(w *domain.Webhook) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if events, ok := s.byPortfolio[w.PortfolioID]; ok {
		if existing, ok := events[w.Event]; ok {
			if existing.URL != w.URL {
				existing.URL = w.URL
				existing.UpdatedAt = w.UpdatedAt
			}
			return false
		}
	}

	s.webhooks[w.WebhookID] = w

	if s.byPortfolio[w.PortfolioID] == nil {
		s.byPortfolio[w.PortfolioID] = make(map[string]*domain.Webhook)
	}
	s.byPortfolio[w.PortfolioID][w.Event] = w

	return true
}

// Get retrieves a webhook by ID. It returns domain.ErrWebhookNotFound
// if the webhook does not exist.
func (s *WebhookStore) Get(id string) (*domain.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.webhooks[id]
	if !ok {
		return nil, domain.ErrWebhookNotFound
	}
	return w, nil
}

// ListByPortfolio returns all webhooks for a portfolio.
// Returns an empty slice if the portfolio has no subscriptions.
func (s *WebhookStore) ListByPortfolio(portfolioID string) []*domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.byPortfolio[portfolioID]
	if len(events) == 0 {
		return []*domain.Webhook{}
	}

	result := make([]*domain.Webhook, 0, len(events))
	for _, w := range events {
		result = append(result, w)
	}
	return result
}

// Delete removes a webhook by ID. It returns domain.ErrWebhookNotFound
// if the webhook does not exist. Both indexes are cleaned up.
func (s *WebhookStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.webhooks[id]
	if !ok {
		return domain.ErrWebhookNotFound
	}

	delete(s.webhooks, id)

	if events, ok := s.byPortfolio[w.PortfolioID]; ok {
		delete(events, w.Event)
		if len(events) == 0 {
			delete(s.byPortfolio, w.PortfolioID)
		}
	}

	return nil
}

// GetByPortfolioEvent returns the webhook for a specific
// (portfolio, event) pair, or nil if no subscription exists.
func (s *WebhookStore) GetByPortfolioEvent(portfolioID, event string) *domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.byPortfolio[portfolioID]
	if events == nil {
		return nil
	}
	return events[event]
}
