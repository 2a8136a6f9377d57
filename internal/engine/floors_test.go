package engine

import (
	"testing"

	"github.com/SantoshMahanty/digital-ssp/internal/models"
)

func floorRequest(geo, device string) *models.AdRequest {
	return &models.AdRequest{
		ID:     "req-floor",
		AdUnit: "tech/home/hero",
		Sizes:  []models.Size{{W: 728, H: 90}},
		Geo:    geo,
		Device: device,
	}
}

func TestComputeFloorFirstMatchWins(t *testing.T) {
	rules := []models.FloorRule{
		{Geo: "US", Device: models.DeviceDesktop, Floor: 5.0},
		{Geo: "US", Floor: 3.0},
		{Floor: 1.0},
	}

	tests := []struct {
		name     string
		geo      string
		device   string
		expected float64
	}{
		{"most specific rule first", "US", models.DeviceDesktop, 5.0},
		{"device filter fails, next US rule matches", "US", models.DeviceMobile, 3.0},
		{"only catch-all matches", "DE", models.DeviceMobile, 1.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeFloor(floorRequest(tc.geo, tc.device), rules)
			if got != tc.expected {
				t.Errorf("expected floor %.2f, got %.2f", tc.expected, got)
			}
		})
	}
}

func TestComputeFloorOrderSensitivity(t *testing.T) {
	// First full match wins even when a later rule carries a higher floor.
	rules := []models.FloorRule{
		{Floor: 0.5},
		{Geo: "US", Device: models.DeviceDesktop, Floor: 5.0},
	}
	if got := ComputeFloor(floorRequest("US", models.DeviceDesktop), rules); got != 0.5 {
		t.Errorf("catch-all placed first must win, expected 0.5, got %.2f", got)
	}

	// US-mobile request against a desktop rule then a zero catch-all.
	rules = []models.FloorRule{
		{Geo: "US", Device: models.DeviceDesktop, Floor: 5.0},
		{Floor: 0.0},
	}
	if got := ComputeFloor(floorRequest("US", models.DeviceMobile), rules); got != 0.0 {
		t.Errorf("expected catch-all floor 0.0, got %.2f", got)
	}
}

func TestComputeFloorNoMatch(t *testing.T) {
	rules := []models.FloorRule{
		{Geo: "US", Floor: 5.0},
		{Geo: "CA", Floor: 4.0},
	}
	if got := ComputeFloor(floorRequest("MX", models.DeviceMobile), rules); got != 0 {
		t.Errorf("no matching rule and no catch-all must floor at zero, got %.2f", got)
	}
	if got := ComputeFloor(floorRequest("MX", models.DeviceMobile), nil); got != 0 {
		t.Errorf("empty rule list must floor at zero, got %.2f", got)
	}
}

func TestComputeFloorAdUnitAndSizeFilters(t *testing.T) {
	rules := []models.FloorRule{
		{AdUnit: "tech/home/hero", Size: &models.Size{W: 728, H: 90}, Floor: 8.0},
		{AdUnit: "tech/home/hero", Floor: 6.0},
		{Floor: 1.0},
	}

	req := floorRequest("US", models.DeviceDesktop)
	if got := ComputeFloor(req, rules); got != 8.0 {
		t.Errorf("ad unit + size rule should match, expected 8.0, got %.2f", got)
	}

	req.Sizes = []models.Size{{W: 300, H: 250}}
	if got := ComputeFloor(req, rules); got != 6.0 {
		t.Errorf("size filter fails, ad unit rule should match, expected 6.0, got %.2f", got)
	}

	req.AdUnit = "news/home/hero"
	if got := ComputeFloor(req, rules); got != 1.0 {
		t.Errorf("only catch-all should match, expected 1.0, got %.2f", got)
	}
}

func TestComputeFloorWithDeal(t *testing.T) {
	rules := []models.FloorRule{{Floor: 5.0}}
	req := floorRequest("US", models.DeviceDesktop)

	deal := &models.Deal{ID: "pmp-1", Floor: 2.5}
	if got := ComputeFloorWithDeal(req, rules, deal); got != 2.5 {
		t.Errorf("deal floor must override rules, expected 2.5, got %.2f", got)
	}
	if got := ComputeFloorWithDeal(req, rules, nil); got != 5.0 {
		t.Errorf("without a deal the rule list applies, expected 5.0, got %.2f", got)
	}
}
