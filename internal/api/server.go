package api

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/SantoshMahanty/digital-ssp/internal/analytics"
	"github.com/SantoshMahanty/digital-ssp/internal/config"
	"github.com/SantoshMahanty/digital-ssp/internal/db"
	"github.com/SantoshMahanty/digital-ssp/internal/geoip"
	"github.com/SantoshMahanty/digital-ssp/internal/models"
	"github.com/SantoshMahanty/digital-ssp/internal/observability"
)

// catalog is the in-memory decision snapshot loaded from Postgres. It is
// replaced wholesale on reload so in-flight requests keep a consistent view.
type catalog struct {
	LineItems  []models.LineItem
	FloorRules []models.FloorRule
	Deals      map[string]models.Deal
}

// Server groups dependencies for HTTP handlers.
type Server struct {
	Logger     *zap.Logger
	Store      *db.RedisStore
	PG         *db.Postgres
	Analytics  analytics.Service
	GeoIP      *geoip.GeoIP
	Metrics    observability.MetricsRegistry
	Config     config.Config
	DebugTrace bool

	mu      sync.RWMutex
	catalog *catalog
}

// NewServer constructs a Server with an empty catalog. Call Reload to
// populate it before serving decisions.
func NewServer(logger *zap.Logger, store *db.RedisStore, pg *db.Postgres, svc analytics.Service, geo *geoip.GeoIP, metrics observability.MetricsRegistry, cfg config.Config) *Server {
	return &Server{
		Logger:     logger,
		Store:      store,
		PG:         pg,
		Analytics:  svc,
		GeoIP:      geo,
		Metrics:    metrics,
		Config:     cfg,
		DebugTrace: cfg.DebugTrace,
		catalog:    &catalog{Deals: map[string]models.Deal{}},
	}
}

// Reload refreshes line items, floor rules and deals from Postgres.
func (s *Server) Reload() error {
	if s.PG == nil {
		return fmt.Errorf("postgres unavailable")
	}

	items, err := s.PG.LoadLineItems()
	if err != nil {
		return fmt.Errorf("load line items: %w", err)
	}
	rules, err := s.PG.LoadFloorRules()
	if err != nil {
		return fmt.Errorf("load floor rules: %w", err)
	}
	deals, err := s.PG.LoadDeals()
	if err != nil {
		return fmt.Errorf("load deals: %w", err)
	}

	s.mu.Lock()
	s.catalog = &catalog{LineItems: items, FloorRules: rules, Deals: deals}
	s.mu.Unlock()

	s.Logger.Info("catalog reloaded",
		zap.Int("line_items", len(items)),
		zap.Int("floor_rules", len(rules)),
		zap.Int("deals", len(deals)))
	return nil
}

// SetCatalog replaces the decision snapshot directly. Used by tests and by
// deployments that load the catalog from somewhere other than Postgres.
func (s *Server) SetCatalog(items []models.LineItem, rules []models.FloorRule, deals map[string]models.Deal) {
	if deals == nil {
		deals = map[string]models.Deal{}
	}
	s.mu.Lock()
	s.catalog = &catalog{LineItems: items, FloorRules: rules, Deals: deals}
	s.mu.Unlock()
}

// snapshot returns the current catalog pointer. The catalog is never
// mutated after publication, so readers can use it without holding the lock.
func (s *Server) snapshot() *catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}
