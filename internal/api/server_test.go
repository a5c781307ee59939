package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dynshop/internal/config"
	"dynshop/internal/engine"
	"dynshop/internal/recipes"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	graph := recipes.Default()
	eng := engine.New(cfg, graph, nil)
	return NewServer(cfg, eng, nil)
}

func doRequest(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, r)
	return rec
}

func TestHandleStatus_ReturnsEngineState(t *testing.T) {
	srv := testServer(t)

	rec := doRequest(srv, http.MethodGet, "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/status status = %d, want 200", rec.Code)
	}
	var out engine.Status
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !out.Enabled {
		t.Error("engine should start enabled with default config")
	}
}

func TestHandleRecordTransaction_MovesMarketData(t *testing.T) {
	srv := testServer(t)

	rec := doRequest(srv, http.MethodPost, "/api/transactions",
		`{"listing_id":"l1","good_kind":"bread","quantity":20,"is_buy":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/transactions status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(srv, http.MethodGet, "/api/market?good_kind=bread", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/market status = %d, want 200", rec.Code)
	}
	var out struct {
		DemandIndex float64 `json:"demand_index"`
		SupplyIndex float64 `json:"supply_index"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode market data: %v", err)
	}
	if out.DemandIndex <= 1.0 {
		t.Errorf("demand index = %v after buys, want > 1.0", out.DemandIndex)
	}
	if out.SupplyIndex >= 1.0 {
		t.Errorf("supply index = %v after buys, want < 1.0", out.SupplyIndex)
	}
}

func TestHandleRecordTransaction_RejectsBadInput(t *testing.T) {
	srv := testServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"malformed JSON", `{"listing_id":`},
		{"zero quantity", `{"listing_id":"l1","good_kind":"bread","quantity":0,"is_buy":true}`},
		{"missing listing", `{"good_kind":"bread","quantity":5,"is_buy":true}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(srv, http.MethodPost, "/api/transactions", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHandlePrice_ReturnsAdjustedPrice(t *testing.T) {
	srv := testServer(t)

	rec := doRequest(srv, http.MethodGet, "/api/price?listing_id=l1&good_kind=bread&base_price=100&side=buy", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/price status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Price float64 `json:"price"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode price: %v", err)
	}
	// Neutral market with default volatility stays inside the clamp band.
	if out.Price < 50 || out.Price > 150 {
		t.Errorf("price = %v, want within [50, 150]", out.Price)
	}
}

func TestHandlePrice_ValidatesQuery(t *testing.T) {
	srv := testServer(t)

	cases := []string{
		"/api/price?good_kind=bread&base_price=100&side=buy",
		"/api/price?listing_id=l1&base_price=100&side=buy",
		"/api/price?listing_id=l1&good_kind=bread&base_price=0&side=buy",
		"/api/price?listing_id=l1&good_kind=bread&base_price=abc&side=buy",
		"/api/price?listing_id=l1&good_kind=bread&base_price=100&side=sideways",
	}
	for _, target := range cases {
		rec := doRequest(srv, http.MethodGet, target, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want 400", target, rec.Code)
		}
	}
}

func TestHandleTrending_LimitAndShape(t *testing.T) {
	srv := testServer(t)

	doRequest(srv, http.MethodPost, "/api/transactions",
		`{"listing_id":"l1","good_kind":"bread","quantity":30,"is_buy":true}`)
	doRequest(srv, http.MethodPost, "/api/transactions",
		`{"listing_id":"l2","good_kind":"stick","quantity":10,"is_buy":true}`)

	rec := doRequest(srv, http.MethodGet, "/api/trending?limit=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/trending status = %d, want 200", rec.Code)
	}
	var out []engine.TrendingGood
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode trending: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("trending length = %d, want 1", len(out))
	}
	if out[0].GoodKind != "bread" {
		t.Errorf("top trending = %q, want bread", out[0].GoodKind)
	}

	rec = doRequest(srv, http.MethodGet, "/api/trending?limit=-3", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative limit status = %d, want 400", rec.Code)
	}
}

func TestHandleSuggestedPrice_KnownGood(t *testing.T) {
	srv := testServer(t)

	rec := doRequest(srv, http.MethodGet, "/api/suggested?good_kind=iron_ingot&side=sell", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/suggested status = %d, want 200", rec.Code)
	}
	var out struct {
		Price float64 `json:"price"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode suggested: %v", err)
	}
	if out.Price <= 0 {
		t.Errorf("suggested price = %v, want > 0", out.Price)
	}
}

func TestHandleCraftingMargin(t *testing.T) {
	srv := testServer(t)

	rec := doRequest(srv, http.MethodGet, "/api/margin?good_kind=iron_pickaxe", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/margin status = %d, want 200", rec.Code)
	}
	var out struct {
		Margin float64 `json:"margin_percent"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode margin: %v", err)
	}

	// Raw materials have no recipe, so no margin.
	rec = doRequest(srv, http.MethodGet, "/api/margin?good_kind=stick", "")
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode margin: %v", err)
	}
	if out.Margin != 0 {
		t.Errorf("margin for raw material = %v, want 0", out.Margin)
	}
}

func TestHandleSetEnabled_TogglesEngine(t *testing.T) {
	srv := testServer(t)

	rec := doRequest(srv, http.MethodPost, "/api/pricing/enabled", `{"enabled":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/pricing/enabled status = %d, want 200", rec.Code)
	}
	if srv.engine.Enabled() {
		t.Error("engine should be disabled after toggle")
	}
	if srv.cfg.DynamicPricingEnabled {
		t.Error("config flag should track the toggle")
	}

	rec = doRequest(srv, http.MethodGet, "/api/price?listing_id=l1&good_kind=bread&base_price=100&side=buy", "")
	var out struct {
		Price float64 `json:"price"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode price: %v", err)
	}
	if out.Price != 100 {
		t.Errorf("disabled price = %v, want base 100", out.Price)
	}
}

func TestHandleRemoveListing(t *testing.T) {
	srv := testServer(t)

	doRequest(srv, http.MethodPost, "/api/transactions",
		`{"listing_id":"l9","good_kind":"bread","quantity":5,"is_buy":true}`)

	rec := doRequest(srv, http.MethodDelete, "/api/listings/l9", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("DELETE /api/listings/l9 status = %d, want 200", rec.Code)
	}

	status := srv.engine.CurrentStatus()
	if status.Listings != 0 {
		t.Errorf("tracked listings = %d after removal, want 0", status.Listings)
	}
}
