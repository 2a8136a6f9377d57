package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/SantoshMahanty/digital-ssp/internal/analytics"
	"github.com/SantoshMahanty/digital-ssp/internal/engine"
	"github.com/SantoshMahanty/digital-ssp/internal/middleware"
	"github.com/SantoshMahanty/digital-ssp/internal/models"
)

var tracer = otel.Tracer("digital-ssp")

// decisionRequest is the POST /ad payload: the bid opportunity plus the
// optional deal reference and any DSP bids the exchange layer gathered.
type decisionRequest struct {
	models.AdRequest
	DealID string       `json:"deal_id,omitempty"`
	Bids   []models.Bid `json:"bids,omitempty"`
}

// decisionResponse is what the caller gets back. Trace is only populated
// when debug tracing is requested.
type decisionResponse struct {
	ReqID        string                `json:"req_id"`
	Filled       bool                  `json:"filled"`
	NoFillReason string                `json:"no_fill_reason,omitempty"`
	Bid          *models.Bid           `json:"bid,omitempty"`
	Trace        *engine.DecisionTrace `json:"trace,omitempty"`
}

func decodeDecisionRequest(r *http.Request) (*decisionRequest, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	defer func() {
		_ = r.Body.Close()
	}()

	var req decisionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return &req, nil
}

// DecisionHandler handles POST /ad requests: it runs the full decision
// for one impression and persists the trace.
func (s *Server) DecisionHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "DecisionHandler",
		trace.WithAttributes(
			attribute.String("http.method", "POST"),
			attribute.String("http.route", "/ad"),
		))
	defer span.End()

	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "ad"
	const method = "POST"

	req, err := decodeDecisionRequest(r)
	if err != nil {
		logger.Error("decode request", zap.Error(err), zap.String("event_type", "ad_request"))
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	resolveRequestContext(&req.AdRequest, r, s.GeoIP)

	span.SetAttributes(
		attribute.String("req_id", req.ID),
		attribute.String("ad_unit", req.AdUnit),
		attribute.String("geo", req.Geo),
		attribute.String("device", req.Device),
	)

	snap := s.snapshot()

	items, err := s.stampDelivery(ctx, snap.LineItems)
	if err != nil {
		logger.Error("delivery counters", zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "delivery counters unavailable", http.StatusInternalServerError)
		return
	}

	opts := engine.Options{
		FloorRules:   snap.FloorRules,
		ExternalBids: req.Bids,
	}
	if req.DealID != "" {
		if deal, ok := snap.Deals[req.DealID]; ok {
			opts.Deal = &deal
		} else {
			logger.Warn("unknown deal", zap.String("deal_id", req.DealID), zap.String("req_id", req.ID))
		}
	}

	decideStart := time.Now()
	verdict, err := engine.Decide(&req.AdRequest, items, opts, time.Now())
	if err != nil {
		if errors.Is(err, engine.ErrInvalidRequest) {
			logger.Error("invalid ad request", zap.Error(err), zap.String("req_id", req.ID))
			s.Metrics.IncrementRequests(endpoint, method, "400")
			s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		logger.Error("decision failed", zap.Error(err), zap.String("req_id", req.ID))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "decision failed", http.StatusInternalServerError)
		return
	}
	s.Metrics.RecordDecisionLatency(time.Since(decideStart))

	s.persistTrace(ctx, logger, req.ID, verdict.Trace)
	s.recordOutcome(ctx, logger, req, verdict)

	resp := decisionResponse{
		ReqID:        req.ID,
		Filled:       verdict.Filled(),
		NoFillReason: string(verdict.NoFillReason),
		Bid:          verdict.Winner,
	}
	if s.DebugTrace || r.URL.Query().Get("debug") == "1" {
		resp.Trace = verdict.Trace
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("encode response", zap.Error(err))
	}

	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}

// stampDelivery copies the catalog line items and writes the current
// Redis delivery counters onto the copies so pacing sees fresh numbers
// without mutating the shared snapshot.
func (s *Server) stampDelivery(ctx context.Context, items []models.LineItem) ([]*models.LineItem, error) {
	out := make([]*models.LineItem, len(items))
	ids := make([]string, len(items))
	for i := range items {
		li := items[i]
		out[i] = &li
		ids[i] = li.ID
	}

	if s.Store == nil {
		return out, nil
	}
	counts, err := s.Store.DeliveredCounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, li := range out {
		li.DeliveredImps = counts[li.ID]
	}
	return out, nil
}

// persistTrace serializes the trace to Redis under the configured TTL.
// Trace loss is logged but never fails the decision.
func (s *Server) persistTrace(ctx context.Context, logger *zap.Logger, reqID string, tr *engine.DecisionTrace) {
	if s.Store == nil || tr == nil {
		return
	}
	data, err := json.Marshal(tr)
	if err != nil {
		logger.Error("marshal trace", zap.Error(err), zap.String("req_id", reqID))
		return
	}
	if err := s.Store.SaveTrace(ctx, reqID, data, s.Config.TraceTTL); err != nil {
		logger.Error("save trace", zap.Error(err), zap.String("req_id", reqID))
	}
}

// recordOutcome handles the post-decision bookkeeping: delivery counters,
// analytics and outcome metrics.
func (s *Server) recordOutcome(ctx context.Context, logger *zap.Logger, req *decisionRequest, verdict *engine.Verdict) {
	ev := analytics.DecisionEvent{
		Timestamp: time.Now(),
		RequestID: req.ID,
		AdUnit:    req.AdUnit,
		Geo:       req.Geo,
		Device:    req.Device,
	}

	if verdict.Trace != nil {
		eligible := 0
		for _, st := range verdict.Trace.Steps {
			switch st.Kind {
			case engine.StepEligible:
				eligible++
			case engine.StepFloorComputed:
				ev.Floor = st.Floor
				s.Metrics.RecordFloorPrice(st.Floor)
			}
		}
		s.Metrics.RecordEligibleCandidates(eligible)
	}

	if verdict.Filled() {
		win := verdict.Winner
		ev.Outcome = "fill"
		ev.LineItemID = win.LineItemID
		ev.CreativeID = win.CreativeID
		ev.Price = win.Price

		if win.Source == models.BidSourceInternal && win.LineItemID != "" && s.Store != nil {
			if err := s.Store.IncrementDelivered(ctx, win.LineItemID); err != nil {
				logger.Error("increment delivered", zap.Error(err), zap.String("line_item_id", win.LineItemID))
			}
		}
		s.Metrics.IncrementDecisions("fill", "")
		s.Metrics.RecordWinningPrice(win.Price)
	} else {
		ev.Outcome = "no_fill"
		ev.NoFillReason = string(verdict.NoFillReason)
		s.Metrics.IncrementDecisions("no_fill", string(verdict.NoFillReason))
	}

	if s.Analytics != nil {
		if err := s.Analytics.RecordDecision(ctx, ev); err != nil && !errors.Is(err, analytics.ErrUnavailable) {
			logger.Error("analytics record", zap.Error(err), zap.String("req_id", req.ID))
		}
	}
}
