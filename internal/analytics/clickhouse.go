package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	_ "github.com/ClickHouse/clickhouse-go/v2"
)

// Service defines the interface for analytics operations. Implementations
// should handle cases where underlying storage is unavailable by returning
// ErrUnavailable.
type Service interface {
	// RecordDecision records the outcome of one ad decision.
	RecordDecision(ctx context.Context, ev DecisionEvent) error
}

// ErrUnavailable is returned when the analytics DB is not configured.
var ErrUnavailable = fmt.Errorf("analytics unavailable")

// Analytics wraps a ClickHouse DB connection.
type Analytics struct {
	DB *sql.DB
}

// DecisionEvent mirrors a row in the decisions table.
type DecisionEvent struct {
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id"`
	AdUnit       string    `json:"ad_unit"`
	Geo          string    `json:"geo"`
	Device       string    `json:"device"`
	Outcome      string    `json:"outcome"`
	NoFillReason string    `json:"no_fill_reason"`
	LineItemID   string    `json:"line_item_id"`
	CreativeID   string    `json:"creative_id"`
	Price        float64   `json:"price"`
	Floor        float64   `json:"floor"`
}

// InitClickHouse connects to ClickHouse and ensures the decisions table exists.
func InitClickHouse(dsn string) (*Analytics, error) {
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(25)
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	create := `CREATE TABLE IF NOT EXISTS decisions (
       timestamp      DateTime,
       request_id     String,
       ad_unit        String,
       geo            String,
       device         String,
       outcome        String,
       no_fill_reason String,
       line_item_id   String,
       creative_id    String,
       price          Float64,
       floor          Float64
   ) ENGINE=MergeTree() ORDER BY (outcome, timestamp)`
	if _, err := db.ExecContext(context.Background(), create); err != nil {
		return nil, fmt.Errorf("clickhouse create table: %w", err)
	}

	zap.L().Info("Connected to ClickHouse")
	return &Analytics{DB: db}, nil
}

// RecordDecision inserts a single decision row into the decisions table.
func (a *Analytics) RecordDecision(ctx context.Context, ev DecisionEvent) error {
	if a == nil || a.DB == nil {
		return ErrUnavailable
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	stmt := `INSERT INTO decisions (timestamp, request_id, ad_unit, geo, device, outcome, no_fill_reason, line_item_id, creative_id, price, floor) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := a.DB.ExecContext(ctx, stmt, ev.Timestamp, ev.RequestID, ev.AdUnit, ev.Geo, ev.Device, ev.Outcome, ev.NoFillReason, ev.LineItemID, ev.CreativeID, ev.Price, ev.Floor); err != nil {
		zap.L().Error("clickhouse insert failed", zap.Error(err), zap.String("request_id", ev.RequestID))
		return fmt.Errorf("insert decision event: %w", err)
	}
	return nil
}

// DecisionsByRequestID returns all decision rows for a request ordered by timestamp.
func (a *Analytics) DecisionsByRequestID(id string) ([]DecisionEvent, error) {
	if a == nil || a.DB == nil {
		return nil, ErrUnavailable
	}
	query := `SELECT timestamp, request_id, ad_unit, geo, device, outcome, no_fill_reason, line_item_id, creative_id, price, floor FROM decisions WHERE request_id=? ORDER BY timestamp`
	rows, err := a.DB.QueryContext(context.Background(), query, id)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			zap.L().Warn("rows close", zap.Error(err))
		}
	}()

	var events []DecisionEvent
	for rows.Next() {
		var ev DecisionEvent
		if err := rows.Scan(&ev.Timestamp, &ev.RequestID, &ev.AdUnit, &ev.Geo, &ev.Device, &ev.Outcome, &ev.NoFillReason, &ev.LineItemID, &ev.CreativeID, &ev.Price, &ev.Floor); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return events, nil
}

// Close terminates the ClickHouse connection.
func (a *Analytics) Close() {
	if a != nil && a.DB != nil {
		if err := a.DB.Close(); err != nil {
			zap.L().Error("clickhouse close", zap.Error(err))
		}
	}
}
