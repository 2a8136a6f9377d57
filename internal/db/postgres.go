package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/SantoshMahanty/digital-ssp/internal/models"
)

// Postgres wraps a postgres DB connection holding the decision catalog:
// line items with their creatives, the ordered floor rule list, and
// private deals.
type Postgres struct {
	DB *sql.DB
}

// schemaSQL sets up the necessary tables if they don't exist.
const schemaSQL = `CREATE TABLE IF NOT EXISTS line_items (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    priority INT NOT NULL,
    cpm DOUBLE PRECISION NOT NULL,
    pacing TEXT NOT NULL DEFAULT 'even',
    booked_imps BIGINT NOT NULL DEFAULT 0,
    start_date TIMESTAMP NULL,
    end_date TIMESTAMP NULL,
    ad_units TEXT[],
    geos TEXT[],
    devices TEXT[],
    key_values JSONB,
    active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS creatives (
    id TEXT PRIMARY KEY,
    line_item_id TEXT NOT NULL REFERENCES line_items(id),
    width INT NOT NULL,
    height INT NOT NULL,
    format TEXT NOT NULL DEFAULT 'display',
    adm TEXT
);

-- position is the authoritative evaluation order; the engine never
-- re-sorts rules by specificity.
CREATE TABLE IF NOT EXISTS floor_rules (
    position INT PRIMARY KEY,
    geo TEXT,
    device TEXT,
    ad_unit TEXT,
    width INT,
    height INT,
    floor DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS deals (
    id TEXT PRIMARY KEY,
    floor DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_creatives_line_item_id ON creatives (line_item_id);
CREATE INDEX IF NOT EXISTS idx_line_items_active ON line_items (active) WHERE active = true;
`

// InitPostgres connects to Postgres with connection pooling configuration.
func InitPostgres(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (*Postgres, error) {
	// Register the otelsql wrapper for postgres
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(
			attribute.String("db.system", "postgresql"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	p := &Postgres{DB: db}
	if err := p.ensureSchema(); err != nil {
		return nil, err
	}
	zap.L().Info("Connected to Postgres",
		zap.Int("max_open_conns", maxOpenConns),
		zap.Int("max_idle_conns", maxIdleConns))
	return p, nil
}

// Close terminates the Postgres connection.
func (p *Postgres) Close() {
	if p != nil && p.DB != nil {
		if err := p.DB.Close(); err != nil {
			zap.L().Error("postgres close", zap.Error(err))
		}
	}
}

// ensureSchema creates the required tables if they do not exist.
func (p *Postgres) ensureSchema() error {
	if _, err := p.DB.ExecContext(context.Background(), schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// LoadLineItems retrieves active line items with their creatives.
// DeliveredImps is left zero: delivery counters live in Redis and are
// stamped onto the snapshot at decision time.
func (p *Postgres) LoadLineItems() ([]models.LineItem, error) {
	ctx := context.Background()
	rows, err := p.DB.QueryContext(ctx, `SELECT id, name, priority, cpm, pacing, booked_imps, start_date, end_date, ad_units, geos, devices, key_values FROM line_items WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query line items: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var items []models.LineItem
	index := make(map[string]int)
	for rows.Next() {
		var li models.LineItem
		var start, end sql.NullTime
		var kv sql.NullString
		var adUnits, geos, devices pq.StringArray
		if err := rows.Scan(&li.ID, &li.Name, &li.Priority, &li.CPM, &li.Pacing, &li.BookedImps, &start, &end, &adUnits, &geos, &devices, &kv); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		if start.Valid {
			li.Start = start.Time
		}
		if end.Valid {
			li.End = end.Time
		}
		li.Targeting.AdUnits = adUnits
		li.Targeting.Geos = geos
		li.Targeting.Devices = devices
		if kv.Valid && kv.String != "" {
			if err := json.Unmarshal([]byte(kv.String), &li.Targeting.KeyValues); err != nil {
				return nil, fmt.Errorf("line item %s: decode key_values: %w", li.ID, err)
			}
		}
		if !models.KnownPriority(li.Priority) {
			zap.L().Warn("line item priority outside known tiers",
				zap.String("line_item_id", li.ID),
				zap.Int("priority", li.Priority))
		}
		index[li.ID] = len(items)
		items = append(items, li)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate line items: %w", err)
	}

	crows, err := p.DB.QueryContext(ctx, `SELECT id, line_item_id, width, height, format, COALESCE(adm, '') FROM creatives ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query creatives: %w", err)
	}
	defer func() {
		_ = crows.Close()
	}()

	for crows.Next() {
		var c models.Creative
		var liID string
		if err := crows.Scan(&c.ID, &liID, &c.Width, &c.Height, &c.Format, &c.Adm); err != nil {
			return nil, fmt.Errorf("scan creative: %w", err)
		}
		i, ok := index[liID]
		if !ok {
			// Creative of an inactive line item; skip rather than fail the reload.
			continue
		}
		items[i].Creatives = append(items[i].Creatives, c)
	}
	if err := crows.Err(); err != nil {
		return nil, fmt.Errorf("iterate creatives: %w", err)
	}

	return items, nil
}

// LoadFloorRules retrieves the floor rule list ordered by position.
func (p *Postgres) LoadFloorRules() ([]models.FloorRule, error) {
	rows, err := p.DB.QueryContext(context.Background(), `SELECT geo, device, ad_unit, width, height, floor FROM floor_rules ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query floor rules: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var rules []models.FloorRule
	for rows.Next() {
		var r models.FloorRule
		var geo, device, adUnit sql.NullString
		var w, h sql.NullInt64
		if err := rows.Scan(&geo, &device, &adUnit, &w, &h, &r.Floor); err != nil {
			return nil, fmt.Errorf("scan floor rule: %w", err)
		}
		if geo.Valid {
			r.Geo = geo.String
		}
		if device.Valid {
			r.Device = device.String
		}
		if adUnit.Valid {
			r.AdUnit = adUnit.String
		}
		if w.Valid && h.Valid {
			r.Size = &models.Size{W: int(w.Int64), H: int(h.Int64)}
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate floor rules: %w", err)
	}
	return rules, nil
}

// LoadDeals retrieves private deals keyed by id.
func (p *Postgres) LoadDeals() (map[string]models.Deal, error) {
	rows, err := p.DB.QueryContext(context.Background(), `SELECT id, floor FROM deals`)
	if err != nil {
		return nil, fmt.Errorf("query deals: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	deals := make(map[string]models.Deal)
	for rows.Next() {
		var d models.Deal
		if err := rows.Scan(&d.ID, &d.Floor); err != nil {
			return nil, fmt.Errorf("scan deal: %w", err)
		}
		deals[d.ID] = d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deals: %w", err)
	}
	return deals, nil
}
