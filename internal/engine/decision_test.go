package engine

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/SantoshMahanty/digital-ssp/internal/models"
)

var decisionNow = time.Date(2026, 1, 6, 12, 0, 0, 0, time.UTC)

func matchingLineItem(id string, priority int, cpm float64) *models.LineItem {
	return &models.LineItem{
		ID:       id,
		Priority: priority,
		CPM:      cpm,
		Targeting: models.Targeting{
			AdUnits: []string{"tech/home/hero"},
		},
		Creatives: []models.Creative{{ID: id + "-cr", Width: 728, Height: 90}},
	}
}

func decisionRequest(geo, device string) *models.AdRequest {
	return &models.AdRequest{
		ID:     "req-dec",
		AdUnit: "tech/home/hero",
		Sizes:  []models.Size{{W: 728, H: 90}},
		Geo:    geo,
		Device: device,
	}
}

func TestDecidePriorityBeatsPrice(t *testing.T) {
	// A at priority 16 / $15 must beat B at priority 10 / $50 on a US
	// desktop request with a $5 floor.
	req := decisionRequest("US", models.DeviceDesktop)
	items := []*models.LineItem{
		matchingLineItem("li-b", 10, 50.0),
		matchingLineItem("li-a", 16, 15.0),
	}
	opts := Options{FloorRules: []models.FloorRule{{Geo: "US", Device: models.DeviceDesktop, Floor: 5.0}}}

	v, err := Decide(req, items, opts, decisionNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.Filled() {
		t.Fatalf("expected fill, got no-fill %s", v.NoFillReason)
	}
	if v.Winner.LineItemID != "li-a" || v.Winner.Price != 15.0 {
		t.Errorf("expected li-a at $15, got %s at $%.2f", v.Winner.LineItemID, v.Winner.Price)
	}
	if v.Winner.CreativeID != "li-a-cr" {
		t.Errorf("expected creative li-a-cr, got %s", v.Winner.CreativeID)
	}
	if len(v.Trace.Steps) == 0 {
		t.Error("trace must never be empty")
	}
}

func TestDecideFloorNoFill(t *testing.T) {
	// MX mobile, single candidate at $1.5 against a $2 floor.
	req := decisionRequest("MX", models.DeviceMobile)
	items := []*models.LineItem{matchingLineItem("li-c", 8, 1.5)}
	opts := Options{FloorRules: []models.FloorRule{{Geo: "MX", Device: models.DeviceMobile, Floor: 2.0}}}

	v, err := Decide(req, items, opts, decisionNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Filled() {
		t.Fatal("expected no-fill")
	}
	if v.NoFillReason != NoFillFloor {
		t.Errorf("expected floor no-fill, got %s", v.NoFillReason)
	}
}

func TestDecideTargetingNoFill(t *testing.T) {
	req := decisionRequest("US", models.DeviceDesktop)
	li := matchingLineItem("li-geo", 8, 4.0)
	li.Targeting.Geos = []string{"DE"}

	v, err := Decide(req, []*models.LineItem{li}, Options{}, decisionNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Filled() || v.NoFillReason != NoFillTargeting {
		t.Fatalf("expected targeting no-fill, got %+v", v)
	}

	last := v.Trace.Steps[len(v.Trace.Steps)-1]
	if last.Kind != StepNoFill {
		t.Errorf("expected terminal no_fill step, got %+v", last)
	}
}

func TestDecidePacingNoFill(t *testing.T) {
	// Matches targeting but the ASAP goal is exhausted: the reason must be
	// pacing, not targeting.
	req := decisionRequest("US", models.DeviceDesktop)
	li := matchingLineItem("li-paced", 8, 4.0)
	li.Pacing = models.PacingASAP
	li.BookedImps = 1000
	li.DeliveredImps = 1000

	v, err := Decide(req, []*models.LineItem{li}, Options{}, decisionNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Filled() || v.NoFillReason != NoFillPacing {
		t.Fatalf("expected pacing no-fill, got %+v", v)
	}

	var sawPacingFilter bool
	for _, s := range v.Trace.Steps {
		if s.Kind == StepFilter && s.Reason == string(ReasonPacingConstraint) {
			sawPacingFilter = true
		}
	}
	if !sawPacingFilter {
		t.Error("expected a pacing_constraint filter step in the trace")
	}
}

func TestDecideDegenerateFlightVisibleInTrace(t *testing.T) {
	req := decisionRequest("US", models.DeviceDesktop)
	li := matchingLineItem("li-misconfigured", 8, 4.0)
	li.Pacing = models.PacingEven
	li.BookedImps = 1000 // flight dates never set

	v, err := Decide(req, []*models.LineItem{li}, Options{}, decisionNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.Filled() {
		t.Fatal("degenerate flight must fall back to serving")
	}

	var noted bool
	for _, s := range v.Trace.Steps {
		if s.Kind == StepEligible && s.Note == NoteDegenerateFlight {
			noted = true
		}
	}
	if !noted {
		t.Error("degenerate flight fallback must be visible on the eligible step")
	}
}

func TestDecideTargetingConjunction(t *testing.T) {
	// Flipping any single dimension from match to mismatch removes the
	// only candidate, all else equal.
	flips := map[string]func(*models.AdRequest, *models.LineItem){
		"inventory": func(r *models.AdRequest, li *models.LineItem) { r.AdUnit = "news/home/hero" },
		"key-value": func(r *models.AdRequest, li *models.LineItem) {
			li.Targeting.KeyValues = map[string][]string{"section": {"tech"}}
		},
		"geo":    func(r *models.AdRequest, li *models.LineItem) { li.Targeting.Geos = []string{"DE"} },
		"device": func(r *models.AdRequest, li *models.LineItem) { li.Targeting.Devices = []string{models.DeviceCTV} },
		"size":   func(r *models.AdRequest, li *models.LineItem) { r.Sizes = []models.Size{{W: 160, H: 600}} },
	}

	for dim, flip := range flips {
		t.Run(dim, func(t *testing.T) {
			req := decisionRequest("US", models.DeviceDesktop)
			li := matchingLineItem("li-flip", 8, 4.0)
			flip(req, li)

			v, err := Decide(req, []*models.LineItem{li}, Options{}, decisionNow)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.Filled() {
				t.Errorf("flipping %s must remove eligibility", dim)
			}
		})
	}
}

func TestDecideIdempotence(t *testing.T) {
	req := decisionRequest("US", models.DeviceDesktop)
	items := []*models.LineItem{
		matchingLineItem("li-1", 10, 7.0),
		matchingLineItem("li-2", 10, 7.0),
		matchingLineItem("li-3", 8, 20.0),
	}
	opts := Options{FloorRules: []models.FloorRule{{Floor: 1.0}}}

	first, err := Decide(req, items, opts, decisionNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Decide(req, items, opts, decisionNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical inputs must yield identical verdicts and traces:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestDecideInvalidInput(t *testing.T) {
	valid := decisionRequest("US", models.DeviceDesktop)

	t.Run("missing ad unit", func(t *testing.T) {
		req := *valid
		req.AdUnit = ""
		_, err := Decide(&req, nil, Options{}, decisionNow)
		if !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("expected ErrInvalidRequest, got %v", err)
		}
	})

	t.Run("degenerate requested size", func(t *testing.T) {
		req := *valid
		req.Sizes = []models.Size{{W: 0, H: 90}}
		_, err := Decide(&req, nil, Options{}, decisionNow)
		if !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("expected ErrInvalidRequest, got %v", err)
		}
	})

	t.Run("non-finite line item price", func(t *testing.T) {
		li := matchingLineItem("li-nan", 8, 4.0)
		li.CPM = nan()
		_, err := Decide(valid, []*models.LineItem{li}, Options{}, decisionNow)
		if !errors.Is(err, ErrInvalidLineItem) {
			t.Errorf("expected ErrInvalidLineItem, got %v", err)
		}
	})
}

func nan() float64 {
	z := 0.0
	return z / z
}

func TestDecideExactlyOneOutcome(t *testing.T) {
	cases := []struct {
		name  string
		items []*models.LineItem
		opts  Options
	}{
		{"fill", []*models.LineItem{matchingLineItem("li", 8, 4.0)}, Options{}},
		{"no candidates", nil, Options{}},
		{"below floor", []*models.LineItem{matchingLineItem("li", 8, 0.5)}, Options{FloorRules: []models.FloorRule{{Floor: 2.0}}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := Decide(decisionRequest("US", models.DeviceDesktop), tc.items, tc.opts, decisionNow)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			filled := v.Winner != nil
			noFill := v.NoFillReason != ""
			if filled == noFill {
				t.Errorf("exactly one of winner/no-fill must be set: winner=%v reason=%q", v.Winner, v.NoFillReason)
			}
			if v.Trace == nil || len(v.Trace.Steps) == 0 {
				t.Error("trace must be non-empty for every verdict")
			}
		})
	}
}
