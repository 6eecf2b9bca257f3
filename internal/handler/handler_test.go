package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/forgemo/market-game/internal/engine"
	"github.com/forgemo/market-game/internal/ledger"
	"github.com/forgemo/market-game/internal/service"
	"github.com/forgemo/market-game/internal/store"
)

// testEnv bundles all dependencies for handler integration tests.
type testEnv struct {
	router http.Handler
}

func newTestEnv() *testEnv {
	l := ledger.New()
	assets := store.NewAssetStore()
	orders := store.NewOrderStore()
	trades := store.NewTradeStore()
	webhooks := store.NewWebhookStore()
	registry := engine.NewRegistry(l, orders, trades, 0)
	webhookSvc := service.NewWebhookService(webhooks, l, 5*time.Second)
	expiry := engine.NewExpiryManager(time.Hour, registry, webhookSvc) // long interval, no auto-expiry in tests

	portfolioSvc := service.NewPortfolioService(l, assets)
	assetSvc := service.NewAssetService(assets)
	orderSvc := service.NewOrderService(registry, expiry, l, assets, orders, webhookSvc, 24*time.Hour)
	bookSvc := service.NewBookService(registry, assets)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(portfolioSvc, assetSvc, orderSvc, bookSvc, webhookSvc, logger)

	return &testEnv{router: router}
}

// doJSON sends a JSON request and returns the recorder.
func (env *testEnv) doJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

// doRaw sends a raw request with optional content-type override.
func (env *testEnv) doRaw(t *testing.T, method, path, contentType, rawBody string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(rawBody))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

// decodeJSON decodes the response body into v.
func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rr.Body.String())
	}
}

// createPortfolio creates a portfolio via the API and returns its ID.
func (env *testEnv) createPortfolio(t *testing.T, cash int64) string {
	t.Helper()
	rr := env.doJSON(t, "POST", "/portfolios", map[string]any{"cash": cash})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create portfolio: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	return resp["portfolio_id"].(string)
}

// createAsset creates an asset via the API and returns its ID.
func (env *testEnv) createAsset(t *testing.T, name string) string {
	t.Helper()
	rr := env.doJSON(t, "POST", "/assets", map[string]any{"name": name})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create asset: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	return resp["asset_id"].(string)
}

// grant seeds a portfolio with asset units via the API.
func (env *testEnv) grant(t *testing.T, portfolioID, assetID string, qty int64) {
	t.Helper()
	rr := env.doJSON(t, "POST", "/portfolios/"+portfolioID+"/assets", map[string]any{
		"asset_id": assetID,
		"quantity": qty,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("grant: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

// placeOrder places a limit order via the API and returns the response.
func (env *testEnv) placeOrder(t *testing.T, portfolioID, assetID, side string, price, qty int64) map[string]any {
	t.Helper()
	rr := env.doJSON(t, "POST", fmt.Sprintf("/portfolios/%s/assets/%s/%s", portfolioID, assetID, side), map[string]any{
		"mode":     "limit",
		"price":    price,
		"quantity": qty,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("place %s order: expected 201, got %d: %s", side, rr.Code, rr.Body.String())
	}
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	return resp
}

func TestHealthz(t *testing.T) {
	env := newTestEnv()
	rr := env.doJSON(t, "GET", "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["status"] != "ok" {
		t.Fatalf("expected status ok, got %s", resp["status"])
	}
}

func TestCreatePortfolio_AndGet(t *testing.T) {
	env := newTestEnv()
	id := env.createPortfolio(t, 500)

	rr := env.doJSON(t, "GET", "/portfolios/"+id, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["cash"].(float64) != 500 {
		t.Errorf("expected cash 500, got %v", resp["cash"])
	}
}

func TestGetPortfolio_NotFound(t *testing.T) {
	env := newTestEnv()
	rr := env.doJSON(t, "GET", "/portfolios/missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestCreatePortfolio_NegativeCash(t *testing.T) {
	env := newTestEnv()
	rr := env.doJSON(t, "POST", "/portfolios", map[string]any{"cash": -5})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCreateAsset_AndList(t *testing.T) {
	env := newTestEnv()
	env.createAsset(t, "gold")
	env.createAsset(t, "silver")

	rr := env.doJSON(t, "GET", "/assets", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp map[string][]map[string]any
	decodeJSON(t, rr, &resp)
	if len(resp["assets"]) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(resp["assets"]))
	}
}

func TestGrant_UpdatesPositions(t *testing.T) {
	env := newTestEnv()
	p := env.createPortfolio(t, 0)
	asset := env.createAsset(t, "gold")
	env.grant(t, p, asset, 10)

	rr := env.doJSON(t, "GET", "/portfolios/"+p, nil)
	var resp struct {
		Positions map[string]int64 `json:"positions"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Positions[asset] != 10 {
		t.Errorf("expected position 10, got %d", resp.Positions[asset])
	}
}

func TestPlaceOrder_FullFlow(t *testing.T) {
	env := newTestEnv()
	buyer := env.createPortfolio(t, 1000)
	seller := env.createPortfolio(t, 0)
	asset := env.createAsset(t, "gold")
	env.grant(t, seller, asset, 10)

	askResp := env.placeOrder(t, seller, asset, "sell", 100, 5)
	askOrder := askResp["order"].(map[string]any)
	if askOrder["status"] != "open" {
		t.Fatalf("expected resting ask, got %v", askOrder["status"])
	}

	bidResp := env.placeOrder(t, buyer, asset, "buy", 100, 5)
	bidOrder := bidResp["order"].(map[string]any)
	if bidOrder["status"] != "filled" {
		t.Fatalf("expected filled bid, got %v", bidOrder["status"])
	}
	if bidResp["halted_reason"] != nil {
		t.Errorf("expected no halt, got %v", bidResp["halted_reason"])
	}
	trades := bidOrder["trades"].([]any)
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}

	// The buyer's cash moved and the position appeared.
	rr := env.doJSON(t, "GET", "/portfolios/"+buyer, nil)
	var view struct {
		Cash      int64            `json:"cash"`
		Positions map[string]int64 `json:"positions"`
	}
	decodeJSON(t, rr, &view)
	if view.Cash != 500 || view.Positions[asset] != 5 {
		t.Errorf("expected 500 cash and 5 units, got %d / %d", view.Cash, view.Positions[asset])
	}
}

func TestPlaceOrder_InsufficientFunds(t *testing.T) {
	env := newTestEnv()
	buyer := env.createPortfolio(t, 10)
	asset := env.createAsset(t, "gold")

	rr := env.doJSON(t, "POST", fmt.Sprintf("/portfolios/%s/assets/%s/buy", buyer, asset), map[string]any{
		"mode":     "limit",
		"price":    100,
		"quantity": 5,
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["error"] != "insufficient_funds" {
		t.Errorf("expected insufficient_funds, got %v", resp["error"])
	}
}

func TestPlaceOrder_BestNoLiquidity(t *testing.T) {
	env := newTestEnv()
	buyer := env.createPortfolio(t, 1000)
	asset := env.createAsset(t, "gold")

	rr := env.doJSON(t, "POST", fmt.Sprintf("/portfolios/%s/assets/%s/buy", buyer, asset), map[string]any{
		"mode":     "best",
		"quantity": 5,
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["error"] != "no_liquidity" {
		t.Errorf("expected no_liquidity, got %v", resp["error"])
	}
}

func TestPlaceOrder_ValidationErrors(t *testing.T) {
	env := newTestEnv()
	buyer := env.createPortfolio(t, 1000)
	asset := env.createAsset(t, "gold")
	path := fmt.Sprintf("/portfolios/%s/assets/%s/buy", buyer, asset)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"unknown mode", map[string]any{"mode": "market", "price": 100, "quantity": 5}},
		{"zero quantity", map[string]any{"mode": "limit", "price": 100, "quantity": 0}},
		{"limit without price", map[string]any{"mode": "limit", "quantity": 5}},
		{"best with price", map[string]any{"mode": "best", "price": 100, "quantity": 5}},
		{"unknown field", map[string]any{"mode": "limit", "price": 100, "quantity": 5, "extra": true}},
		{"overflowing order value", map[string]any{"mode": "limit", "price": int64(math.MaxInt64 / 2), "quantity": 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.doJSON(t, "POST", path, tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestPlaceOrder_MissingContentType(t *testing.T) {
	env := newTestEnv()
	rr := env.doRaw(t, "POST", "/portfolios", "", `{"cash": 100}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestCancelOrder_Flow(t *testing.T) {
	env := newTestEnv()
	buyer := env.createPortfolio(t, 1000)
	other := env.createPortfolio(t, 1000)
	asset := env.createAsset(t, "gold")

	resp := env.placeOrder(t, buyer, asset, "buy", 100, 5)
	orderID := resp["order"].(map[string]any)["order_id"].(string)

	// Wrong owner.
	rr := env.doJSON(t, "DELETE", fmt.Sprintf("/portfolios/%s/assets/%s/orders/%s", other, asset, orderID), nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rr.Code, rr.Body.String())
	}

	// Owner cancels.
	rr = env.doJSON(t, "DELETE", fmt.Sprintf("/portfolios/%s/assets/%s/orders/%s", buyer, asset, orderID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var cancelled map[string]any
	decodeJSON(t, rr, &cancelled)
	if cancelled["status"] != "cancelled" {
		t.Errorf("expected cancelled, got %v", cancelled["status"])
	}

	// Second cancel conflicts.
	rr = env.doJSON(t, "DELETE", fmt.Sprintf("/portfolios/%s/assets/%s/orders/%s", buyer, asset, orderID), nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestGetOrder(t *testing.T) {
	env := newTestEnv()
	buyer := env.createPortfolio(t, 1000)
	asset := env.createAsset(t, "gold")

	resp := env.placeOrder(t, buyer, asset, "buy", 100, 5)
	orderID := resp["order"].(map[string]any)["order_id"].(string)

	rr := env.doJSON(t, "GET", "/orders/"+orderID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = env.doJSON(t, "GET", "/orders/missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestListOrders_PaginationAndFilter(t *testing.T) {
	env := newTestEnv()
	buyer := env.createPortfolio(t, 100000)
	asset := env.createAsset(t, "gold")

	for i := 0; i < 3; i++ {
		env.placeOrder(t, buyer, asset, "buy", int64(10+i), 1)
	}

	rr := env.doJSON(t, "GET", "/portfolios/"+buyer+"/orders?page=1&limit=2", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Orders []map[string]any `json:"orders"`
		Total  int              `json:"total"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Total != 3 || len(resp.Orders) != 2 {
		t.Fatalf("expected total 3 page of 2, got %d / %d", resp.Total, len(resp.Orders))
	}

	rr = env.doJSON(t, "GET", "/portfolios/"+buyer+"/orders?status=filled", nil)
	decodeJSON(t, rr, &resp)
	if resp.Total != 0 {
		t.Errorf("expected 0 filled orders, got %d", resp.Total)
	}

	rr = env.doJSON(t, "GET", "/portfolios/"+buyer+"/orders?status=weird", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad status, got %d", rr.Code)
	}
}

func TestGetBook_AndQuote(t *testing.T) {
	env := newTestEnv()
	buyer := env.createPortfolio(t, 10000)
	seller := env.createPortfolio(t, 0)
	asset := env.createAsset(t, "gold")
	env.grant(t, seller, asset, 10)

	env.placeOrder(t, buyer, asset, "buy", 90, 5)
	env.placeOrder(t, seller, asset, "sell", 110, 5)

	rr := env.doJSON(t, "GET", "/books/"+asset, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var snap struct {
		Bids   []map[string]any `json:"bids"`
		Asks   []map[string]any `json:"asks"`
		Spread *int64           `json:"spread"`
	}
	decodeJSON(t, rr, &snap)
	if len(snap.Bids) != 1 || len(snap.Asks) != 1 {
		t.Fatalf("expected 1 level per side, got %d / %d", len(snap.Bids), len(snap.Asks))
	}
	if snap.Spread == nil || *snap.Spread != 20 {
		t.Errorf("expected spread 20, got %v", snap.Spread)
	}

	rr = env.doJSON(t, "GET", "/books/"+asset+"/quote?side=buy&quantity=3", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var quote struct {
		FullyFillable  bool   `json:"fully_fillable"`
		EstimatedTotal *int64 `json:"estimated_total"`
	}
	decodeJSON(t, rr, &quote)
	if !quote.FullyFillable || quote.EstimatedTotal == nil || *quote.EstimatedTotal != 330 {
		t.Errorf("expected fillable total 330, got %+v", quote)
	}

	rr = env.doJSON(t, "GET", "/books/"+asset+"/quote?side=buy&quantity=abc", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad quantity, got %d", rr.Code)
	}
}

func TestListBooks(t *testing.T) {
	env := newTestEnv()
	env.createAsset(t, "gold")
	env.createAsset(t, "silver")

	rr := env.doJSON(t, "GET", "/books", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		Books []map[string]any `json:"books"`
	}
	decodeJSON(t, rr, &resp)
	if len(resp.Books) != 2 {
		t.Fatalf("expected 2 books, got %d", len(resp.Books))
	}
}

func TestWebhookEndpoints(t *testing.T) {
	env := newTestEnv()
	p := env.createPortfolio(t, 0)

	rr := env.doJSON(t, "POST", "/webhooks", map[string]any{
		"portfolio_id": p,
		"url":          "https://example.com/hook",
		"events":       []string{"trade.executed"},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created struct {
		Webhooks []map[string]any `json:"webhooks"`
	}
	decodeJSON(t, rr, &created)
	if len(created.Webhooks) != 1 {
		t.Fatalf("expected 1 webhook, got %d", len(created.Webhooks))
	}
	webhookID := created.Webhooks[0]["webhook_id"].(string)

	rr = env.doJSON(t, "GET", "/webhooks?portfolio_id="+p, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = env.doJSON(t, "GET", "/webhooks", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without portfolio_id, got %d", rr.Code)
	}

	rr = env.doJSON(t, "DELETE", "/webhooks/"+webhookID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	rr = env.doJSON(t, "DELETE", "/webhooks/"+webhookID, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rr.Code)
	}
}
