package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/SantoshMahanty/digital-ssp/internal/db"
	"github.com/SantoshMahanty/digital-ssp/internal/engine"
	"github.com/SantoshMahanty/digital-ssp/internal/models"
)

// DecideInput mirrors the POST /ad payload so operators can replay a bid
// opportunity against the live catalog from an MCP client.
type DecideInput struct {
	ReqID  string            `json:"req_id"`
	AdUnit string            `json:"ad_unit"`
	Sizes  []models.Size     `json:"sizes"`
	KV     map[string]string `json:"kv,omitempty"`
	Geo    string            `json:"geo,omitempty"`
	Device string            `json:"device,omitempty"`
	DealID string            `json:"deal_id,omitempty"`
	Bids   []models.Bid      `json:"bids,omitempty"`
}

type DecideOutput struct {
	Filled       bool                  `json:"filled"`
	NoFillReason string                `json:"no_fill_reason,omitempty"`
	Bid          *models.Bid           `json:"bid,omitempty"`
	Trace        *engine.DecisionTrace `json:"trace"`
}

type TraceInput struct {
	ReqID string `json:"req_id"`
}

type TraceOutput struct {
	Trace json.RawMessage `json:"trace"`
}

// InspectServer holds dependencies for the decision inspection tools.
type InspectServer struct {
	pg     *db.Postgres
	store  *db.RedisStore
	logger *zap.Logger

	mu    sync.Mutex
	items []models.LineItem
	rules []models.FloorRule
	deals map[string]models.Deal
}

func (s *InspectServer) reload() error {
	items, err := s.pg.LoadLineItems()
	if err != nil {
		return fmt.Errorf("load line items: %w", err)
	}
	rules, err := s.pg.LoadFloorRules()
	if err != nil {
		return fmt.Errorf("load floor rules: %w", err)
	}
	deals, err := s.pg.LoadDeals()
	if err != nil {
		return fmt.Errorf("load deals: %w", err)
	}
	s.mu.Lock()
	s.items, s.rules, s.deals = items, rules, deals
	s.mu.Unlock()
	return nil
}

// Decide replays one bid opportunity through the decision engine and
// returns the verdict with its full trace.
func (s *InspectServer) Decide(ctx context.Context, req *mcp.CallToolRequest, input DecideInput) (*mcp.CallToolResult, DecideOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.reload(); err != nil {
		return nil, DecideOutput{}, err
	}

	s.mu.Lock()
	items := s.items
	rules := s.rules
	deals := s.deals
	s.mu.Unlock()

	adReq := &models.AdRequest{
		ID:     input.ReqID,
		AdUnit: input.AdUnit,
		Sizes:  input.Sizes,
		KV:     input.KV,
		Geo:    input.Geo,
		Device: input.Device,
	}
	if adReq.ID == "" {
		adReq.ID = fmt.Sprintf("mcp-%d", time.Now().UnixNano())
	}

	snapshot := make([]*models.LineItem, len(items))
	ids := make([]string, len(items))
	for i := range items {
		li := items[i]
		snapshot[i] = &li
		ids[i] = li.ID
	}
	if s.store != nil {
		counts, err := s.store.DeliveredCounts(ctx, ids)
		if err != nil {
			s.logger.Warn("delivery counters unavailable, pacing sees zero delivery", zap.Error(err))
		} else {
			for _, li := range snapshot {
				li.DeliveredImps = counts[li.ID]
			}
		}
	}

	opts := engine.Options{FloorRules: rules, ExternalBids: input.Bids}
	if input.DealID != "" {
		if deal, ok := deals[input.DealID]; ok {
			opts.Deal = &deal
		}
	}

	verdict, err := engine.Decide(adReq, snapshot, opts, time.Now())
	if err != nil {
		return nil, DecideOutput{}, err
	}

	return nil, DecideOutput{
		Filled:       verdict.Filled(),
		NoFillReason: string(verdict.NoFillReason),
		Bid:          verdict.Winner,
		Trace:        verdict.Trace,
	}, nil
}

// GetTrace fetches the stored decision trace for a past request.
func (s *InspectServer) GetTrace(ctx context.Context, req *mcp.CallToolRequest, input TraceInput) (*mcp.CallToolResult, TraceOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	data, err := s.store.GetTrace(ctx, input.ReqID)
	if err != nil {
		return nil, TraceOutput{}, err
	}
	return nil, TraceOutput{Trace: data}, nil
}

func main() {
	// Use stderr to avoid stdio conflicts with the MCP transport
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.NameKey = "logger"
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.StacktraceKey = "stacktrace"

	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.Named("digital-ssp-mcp").With(zap.String("service", "digital-ssp-mcp"))

	postgresDSN := os.Getenv("POSTGRES_DSN")
	if postgresDSN == "" {
		logger.Fatal("POSTGRES_DSN environment variable is required")
	}
	pg, err := db.InitPostgres(postgresDSN, 10, 5, 30*time.Minute, time.Minute)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pg.Close()

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	store, err := db.InitRedis(redisAddr)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer store.Close()

	inspect := &InspectServer{pg: pg, store: store, logger: logger}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "digital-ssp",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "decide_ad_request",
		Description: "Replay a bid opportunity through the decision engine against the live catalog and return the verdict with its full trace",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"req_id": map[string]interface{}{
					"type":        "string",
					"description": "Request id (optional, generated if absent)",
				},
				"ad_unit": map[string]interface{}{
					"type":        "string",
					"description": "Ad unit code",
				},
				"sizes": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"w": map[string]interface{}{"type": "integer"},
							"h": map[string]interface{}{"type": "integer"},
						},
						"required": []string{"w", "h"},
					},
					"description": "Accepted creative sizes",
				},
				"kv": map[string]interface{}{
					"type":        "object",
					"description": "Key-value targeting pairs (optional)",
				},
				"geo": map[string]interface{}{
					"type":        "string",
					"description": "ISO country code (optional)",
				},
				"device": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"desktop", "mobile", "tablet", "ctv"},
					"description": "Device class (optional)",
				},
				"deal_id": map[string]interface{}{
					"type":        "string",
					"description": "Private deal id whose floor overrides the rule list (optional)",
				},
				"bids": map[string]interface{}{
					"type":        "array",
					"description": "External DSP bids to compare against the internal winner (optional)",
				},
			},
			"required": []string{"ad_unit", "sizes"},
		},
	}, inspect.Decide)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_decision_trace",
		Description: "Fetch the stored decision trace for a past request id",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"req_id": map[string]interface{}{
					"type":        "string",
					"description": "Request id to look up",
				},
			},
			"required": []string{"req_id"},
		},
	}, inspect.GetTrace)

	logger.Info("MCP Server running via stdio")
	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}
