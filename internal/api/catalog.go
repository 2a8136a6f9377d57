package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/SantoshMahanty/digital-ssp/internal/models"
)

// ListLineItemsHandler handles GET /line-items, returning the current
// catalog snapshot for inspection.
func (s *Server) ListLineItemsHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "line_items"
	const method = "GET"

	snap := s.snapshot()
	items := snap.LineItems
	if items == nil {
		items = []models.LineItem{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(items); err != nil {
		s.Logger.Error("encode line items", zap.Error(err))
	}

	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}

// ListFloorRulesHandler handles GET /floor-rules, returning the ordered
// floor rule list as the engine will evaluate it.
func (s *Server) ListFloorRulesHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "floor_rules"
	const method = "GET"

	snap := s.snapshot()
	rules := snap.FloorRules
	if rules == nil {
		rules = []models.FloorRule{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rules); err != nil {
		s.Logger.Error("encode floor rules", zap.Error(err))
	}

	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}

// ReloadHandler handles POST /reload, refreshing the catalog from Postgres.
func (s *Server) ReloadHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "reload"
	const method = "POST"

	if err := s.Reload(); err != nil {
		s.Logger.Error("reload failed", zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "reload failed", http.StatusInternalServerError)
		return
	}

	s.Metrics.IncrementRequests(endpoint, method, "204")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
	w.WriteHeader(http.StatusNoContent)
}
