package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/SantoshMahanty/digital-ssp/internal/db"
	"github.com/SantoshMahanty/digital-ssp/internal/middleware"
)

// TraceHandler handles GET /ad/{id}/trace, returning the stored decision
// trace for a past request until it ages out of Redis.
func (s *Server) TraceHandler(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "trace"
	const method = "GET"

	reqID := mux.Vars(r)["id"]
	if reqID == "" {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "request id required", http.StatusBadRequest)
		return
	}

	data, err := s.Store.GetTrace(r.Context(), reqID)
	if errors.Is(err, db.ErrTraceNotFound) {
		s.Metrics.IncrementTraceLookups("miss")
		s.Metrics.IncrementRequests(endpoint, method, "404")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "trace not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Error("trace lookup", zap.Error(err), zap.String("req_id", reqID))
		s.Metrics.IncrementTraceLookups("error")
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "trace lookup failed", http.StatusInternalServerError)
		return
	}

	s.Metrics.IncrementTraceLookups("hit")
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)

	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}
