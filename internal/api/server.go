package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"dynshop/internal/config"
	"dynshop/internal/db"
	"dynshop/internal/engine"
	"dynshop/internal/logger"
)

// Server is the HTTP API surface the storefront and presentation
// collaborators talk to. It is a thin layer over the pricing engine;
// the feature-flag check lives in the engine itself.
type Server struct {
	cfg    *config.Config
	engine *engine.Engine
	db     *db.DB
}

// NewServer creates a Server over the given engine and database. db
// may be nil in tests; only the config endpoints use it.
func NewServer(cfg *config.Config, eng *engine.Engine, database *db.DB) *Server {
	return &Server{cfg: cfg, engine: eng, db: database}
}

// Handler returns the HTTP handler with all API routes and CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/transactions", s.handleRecordTransaction)
	mux.HandleFunc("GET /api/price", s.handlePrice)
	mux.HandleFunc("GET /api/market", s.handleMarketData)
	mux.HandleFunc("GET /api/trending", s.handleTrending)
	mux.HandleFunc("GET /api/suggested", s.handleSuggestedPrice)
	mux.HandleFunc("GET /api/margin", s.handleCraftingMargin)
	mux.HandleFunc("POST /api/pricing/enabled", s.handleSetEnabled)
	mux.HandleFunc("DELETE /api/listings/{listingID}", s.handleRemoveListing)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.CurrentStatus())
}

type transactionRequest struct {
	ListingID string `json:"listing_id"`
	GoodKind  string `json:"good_kind"`
	Quantity  int64  `json:"quantity"`
	IsBuy     bool   `json:"is_buy"`
}

func (s *Server) handleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.engine.RecordTransaction(req.ListingID, req.GoodKind, req.Quantity, req.IsBuy); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, map[string]bool{"recorded": true})
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	listingID := q.Get("listing_id")
	goodKind := q.Get("good_kind")
	if listingID == "" || goodKind == "" {
		writeError(w, http.StatusBadRequest, "listing_id and good_kind are required")
		return
	}
	basePrice, err := strconv.ParseFloat(q.Get("base_price"), 64)
	if err != nil || basePrice <= 0 {
		writeError(w, http.StatusBadRequest, "base_price must be a positive number")
		return
	}
	isBuy, ok := parseSide(q.Get("side"))
	if !ok {
		writeError(w, http.StatusBadRequest, "side must be buy or sell")
		return
	}

	price := s.engine.DynamicPrice(listingID, goodKind, basePrice, isBuy)
	writeJSON(w, map[string]interface{}{
		"listing_id": listingID,
		"good_kind":  goodKind,
		"side":       q.Get("side"),
		"price":      price,
	})
}

func (s *Server) handleMarketData(w http.ResponseWriter, r *http.Request) {
	goodKind := r.URL.Query().Get("good_kind")
	if goodKind == "" {
		writeError(w, http.StatusBadRequest, "good_kind is required")
		return
	}
	m := s.engine.MarketData(goodKind)
	writeJSON(w, map[string]interface{}{
		"good_kind":    goodKind,
		"demand_index": m.DemandIndex,
		"supply_index": m.SupplyIndex,
		"volatility":   m.Volatility,
		"last_updated": m.LastUpdated.UnixMilli(),
	})
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	top := s.engine.TopTrending(limit)
	if top == nil {
		top = []engine.TrendingGood{}
	}
	writeJSON(w, top)
}

func (s *Server) handleSuggestedPrice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	goodKind := q.Get("good_kind")
	if goodKind == "" {
		writeError(w, http.StatusBadRequest, "good_kind is required")
		return
	}
	isBuy, ok := parseSide(q.Get("side"))
	if !ok {
		writeError(w, http.StatusBadRequest, "side must be buy or sell")
		return
	}
	writeJSON(w, map[string]interface{}{
		"good_kind": goodKind,
		"side":      q.Get("side"),
		"price":     s.engine.SuggestedPrice(goodKind, isBuy),
	})
}

func (s *Server) handleCraftingMargin(w http.ResponseWriter, r *http.Request) {
	goodKind := r.URL.Query().Get("good_kind")
	if goodKind == "" {
		writeError(w, http.StatusBadRequest, "good_kind is required")
		return
	}
	writeJSON(w, map[string]interface{}{
		"good_kind":      goodKind,
		"margin_percent": s.engine.CraftingProfitMargin(goodKind),
	})
}

type enabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleSetEnabled(w http.ResponseWriter, r *http.Request) {
	var req enabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.engine.SetEnabled(req.Enabled)
	s.cfg.DynamicPricingEnabled = req.Enabled
	if s.db != nil {
		if err := s.db.SaveConfig(s.cfg); err != nil {
			logger.Warn("API", fmt.Sprintf("Persist config: %v", err))
		}
	}
	writeJSON(w, map[string]bool{"enabled": req.Enabled})
}

func (s *Server) handleRemoveListing(w http.ResponseWriter, r *http.Request) {
	listingID := r.PathValue("listingID")
	if listingID == "" {
		writeError(w, http.StatusBadRequest, "listing id required")
		return
	}
	s.engine.RemoveListing(listingID)
	writeJSON(w, map[string]bool{"removed": true})
}

func parseSide(side string) (isBuy, ok bool) {
	switch side {
	case "buy":
		return true, true
	case "sell":
		return false, true
	default:
		return false, false
	}
}
