package service

import (
	"time"

	"github.com/forgemo/market-game/internal/engine"
	"github.com/forgemo/market-game/internal/ledger"
	"github.com/forgemo/market-game/internal/store"
)

// testEnv wires a full service stack against fresh in-memory state.
type testEnv struct {
	ledger     *ledger.Ledger
	assets     *store.AssetStore
	orders     *store.OrderStore
	trades     *store.TradeStore
	webhooks   *store.WebhookStore
	registry   *engine.Registry
	expiry     *engine.ExpiryManager
	portfolios *PortfolioService
	assetSvc   *AssetService
	orderSvc   *OrderService
	bookSvc    *BookService
	webhookSvc *WebhookService
}

func newTestEnv() *testEnv {
	l := ledger.New()
	assets := store.NewAssetStore()
	orders := store.NewOrderStore()
	trades := store.NewTradeStore()
	webhooks := store.NewWebhookStore()
	registry := engine.NewRegistry(l, orders, trades, 0)
	webhookSvc := NewWebhookService(webhooks, l, time.Second)
	expiry := engine.NewExpiryManager(time.Second, registry, webhookSvc)
	orderSvc := NewOrderService(registry, expiry, l, assets, orders, webhookSvc, 24*time.Hour)

	return &testEnv{
		ledger:     l,
		assets:     assets,
		orders:     orders,
		trades:     trades,
		webhooks:   webhooks,
		registry:   registry,
		expiry:     expiry,
		portfolios: NewPortfolioService(l, assets),
		assetSvc:   NewAssetService(assets),
		orderSvc:   orderSvc,
		bookSvc:    NewBookService(registry, assets),
		webhookSvc: webhookSvc,
	}
}

func (env *testEnv) stop() {
	env.registry.StopAll()
}
