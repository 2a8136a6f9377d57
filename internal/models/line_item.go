package models

import (
	"fmt"
	"math"
	"time"
)

// Pacing modes. They control how a booked impression goal is spread over
// the flight window.
const (
	// PacingEven spreads delivery uniformly across the flight window so a
	// booked goal isn't exhausted early.
	PacingEven = "even"
	// PacingASAP delivers as quickly as possible until the booked goal is
	// reached.
	PacingASAP = "asap"
)

// PriorityBuckets lists the recognized priority tiers, highest first.
// Higher tiers strictly dominate lower ones during winner selection,
// regardless of price:
//   - 16: sponsorship (highest)
//   - 12: premium
//   - 10: price priority
//   - 8:  standard
//   - 6:  non-guaranteed / remnant
//   - 4:  house (lowest)
var PriorityBuckets = []int{16, 12, 10, 8, 6, 4}

// KnownPriority reports whether p is one of the recognized tiers. The
// auction handles arbitrary positive priorities, so an unknown tier is a
// configuration smell rather than an error.
func KnownPriority(p int) bool {
	for _, b := range PriorityBuckets {
		if p == b {
			return true
		}
	}
	return false
}

// Creative is a renderable asset with a fixed size owned by a line item.
type Creative struct {
	ID     string `json:"id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format,omitempty"` // display or video
	Adm    string `json:"adm,omitempty"`
}

// Targeting is the closed rule set a line item matches requests against.
// Every field uses "empty = unrestricted" semantics except KeyValues,
// where a listed key must be present on the request with one of the
// allowed values.
type Targeting struct {
	AdUnits   []string            `json:"ad_units,omitempty"`
	KeyValues map[string][]string `json:"key_values,omitempty"`
	Geos      []string            `json:"geos,omitempty"`
	Devices   []string            `json:"devices,omitempty"`
}

// LineItem is the biddable unit competing for impressions. Instances are
// read-only inputs to a decision: DeliveredImps is a snapshot supplied by
// the caller, and the delivery-logging path (not the engine) advances it.
type LineItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Priority  int       `json:"priority"`
	CPM       float64   `json:"cpm"`
	Targeting Targeting `json:"targeting"`
	// Pacing is PacingEven or PacingASAP. Empty defaults to even.
	Pacing string `json:"pacing,omitempty"`
	// BookedImps is the delivery goal. 0 means no goal, which exempts the
	// line item from pacing gates entirely.
	BookedImps    int `json:"booked_imps,omitempty"`
	DeliveredImps int `json:"delivered_imps,omitempty"`
	// Flight window. Zero values mean open-ended.
	Start     time.Time  `json:"start,omitempty"`
	End       time.Time  `json:"end,omitempty"`
	Creatives []Creative `json:"creatives"`
}

// Validate checks structural invariants of a line item before it is
// admitted into a decision. Non-finite or negative prices and degenerate
// creative sizes are caller contract violations.
func (li *LineItem) Validate() error {
	if li == nil {
		return fmt.Errorf("nil line item")
	}
	if li.ID == "" {
		return fmt.Errorf("line item id is required")
	}
	if math.IsNaN(li.CPM) || math.IsInf(li.CPM, 0) {
		return fmt.Errorf("line item %s: non-finite cpm", li.ID)
	}
	if li.CPM < 0 {
		return fmt.Errorf("line item %s: negative cpm %f", li.ID, li.CPM)
	}
	if li.Priority <= 0 {
		return fmt.Errorf("line item %s: priority must be positive", li.ID)
	}
	switch li.Pacing {
	case "", PacingEven, PacingASAP:
	default:
		return fmt.Errorf("line item %s: unknown pacing mode %q", li.ID, li.Pacing)
	}
	for _, c := range li.Creatives {
		if c.Width <= 0 || c.Height <= 0 {
			return fmt.Errorf("line item %s: creative %s has degenerate size %dx%d", li.ID, c.ID, c.Width, c.Height)
		}
	}
	return nil
}
